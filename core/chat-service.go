package core

import (
	"context"

	"Artsy/provider"
)

type ChatService interface {
	GetResponse(userId int64, prompt string) (string, error)
	ClearContext(userId int64)
	Close() error
}

type ImageService interface {
	GenerateImage(ctx context.Context, userId int64, prompt string) provider.GenerationResult
}
