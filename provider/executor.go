package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"Artsy/lib/sl"
)

type generatePayload struct {
	Inputs string `json:"inputs"`
}

// RawResponse is the unclassified result of one provider call. Err is set
// for transport-level failures (timeout, connection refused); StatusCode and
// Body are only meaningful when Err is nil.
type RawResponse struct {
	StatusCode int
	Body       []byte
	Err        error
}

// Executor performs single attempts against providers. One shared client;
// per-attempt deadlines come from the descriptor and the caller's context.
type Executor struct {
	client *http.Client
	log    *slog.Logger
}

func NewExecutor(log *slog.Logger) *Executor {
	return &Executor{
		client: &http.Client{},
		log:    log.With(sl.Module("executor")),
	}
}

// Do issues one generation call. A non-nil error means the request could not
// even be built and is an internal fault, not a provider outcome.
func (e *Executor) Do(ctx context.Context, p Descriptor, prompt string) (RawResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	jsonBytes, err := json.Marshal(generatePayload{Inputs: prompt})
	if err != nil {
		return RawResponse{}, fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, p.Endpoint, bytes.NewReader(jsonBytes))
	if err != nil {
		return RawResponse{}, fmt.Errorf("making request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.AuthToken))
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return RawResponse{Err: err}, nil
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			e.log.Error("closing response body", sl.Err(err))
		}
	}(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return RawResponse{Err: err}, nil
	}

	return RawResponse{StatusCode: resp.StatusCode, Body: body}, nil
}
