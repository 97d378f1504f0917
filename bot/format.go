package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"Artsy/provider"
)

// maxUserMessageLen bounds every error detail surfaced to the user.
const maxUserMessageLen = 500

// FormatResult turns a finished generation result into the outbound
// message: a photo with the prompt as caption, or an apologetic text with
// the truncated failure detail. Raw errors and credentials never reach
// this point; the orchestrator only emits classified user copy.
func FormatResult(chatId int64, prompt string, res provider.GenerationResult) tgbotapi.Chattable {
	if res.Success {
		photo := tgbotapi.NewPhotoUpload(chatId, tgbotapi.FileBytes{
			Name:  "image.png",
			Bytes: res.ImageBytes,
		})
		photo.Caption = Truncate(prompt, maxUserMessageLen)
		return photo
	}
	return tgbotapi.NewMessage(chatId, FormatError(res.UserMessage))
}

func FormatError(detail string) string {
	if detail == "" {
		detail = "something went wrong"
	}
	return Truncate("Sorry, I couldn't draw that: "+detail, maxUserMessageLen)
}

// Truncate cuts s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
