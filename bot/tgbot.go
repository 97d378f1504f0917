package bot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"Artsy/core"
	"Artsy/lib/sl"
)

const errorResponse = "Sorry, I'm not feeling well today. Please try again later."

type TgBot struct {
	conf        *core.Config
	api         *tgbotapi.BotAPI
	log         *slog.Logger
	chat        core.ChatService
	images      core.ImageService
	botUsername string
	deadline    time.Duration
	stopChan    chan struct{}
}

func NewTgBot(conf *core.Config, log *slog.Logger) (*TgBot, error) {
	api, err := tgbotapi.NewBotAPI(conf.TelegramApiKey)
	if err != nil {
		return nil, err
	}

	return &TgBot{
		conf:        conf,
		api:         api,
		log:         log.With(sl.Module("tgbot")),
		botUsername: conf.Username,
		deadline:    time.Duration(conf.Image.DeadlineSeconds) * time.Second,
		stopChan:    make(chan struct{}),
	}, nil
}

// SetChat sets the conversational service
func (t *TgBot) SetChat(chat core.ChatService) {
	t.chat = chat
}

// SetImages sets the image generation service
func (t *TgBot) SetImages(images core.ImageService) {
	t.images = images
}

func (t *TgBot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates, err := t.api.GetUpdatesChan(u)
	if err != nil {
		return err
	}

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			t.handleMessage(update.Message)
		case <-t.stopChan:
			return nil
		}
	}
}

func (t *TgBot) Stop() {
	close(t.stopChan)
}

func (t *TgBot) handleMessage(incoming *tgbotapi.Message) {
	chat := incoming.Chat
	question := incoming.Text

	if !incoming.IsCommand() && !chat.IsPrivate() && !t.isMentioned(incoming.Text) && !t.isReplyToBot(incoming) {
		return
	}

	if incoming.IsCommand() && incoming.Command() == "help" {
		text := "You can use the following commands:\n"
		text += "/help - show this help\n"
		text += "/image - draw a picture from your description\n"
		text += "/topic - set a subject of conversation\n"
		text += "/ask - ask something or just reply on previous bot message\n"
		text += "/clear - clear bot memory to begin new topic\n"
		t.plainResponse(chat.ID, text)
		return
	}

	logText := question
	if len(logText) > 50 {
		logText = logText[:50] + "..."
	}
	t.log.With(
		slog.String("from", incoming.From.UserName),
		slog.String("text", logText),
	).Info("incoming message")

	// Each message runs as its own task; one user's slow request never
	// delays another's
	if isImage, prompt := detectImageIntent(incoming); isImage {
		go t.sendImage(chat.ID, prompt)
		return
	}
	go t.sendResponse(chat.ID, question)
}

// detectImageIntent decides whether a message asks for a picture, and if
// so extracts the prompt.
func detectImageIntent(msg *tgbotapi.Message) (bool, string) {
	if msg.IsCommand() {
		switch msg.Command() {
		case "image", "draw":
			return true, strings.TrimSpace(msg.CommandArguments())
		}
		return false, ""
	}

	lower := strings.ToLower(msg.Text)
	for _, prefix := range []string{"draw me ", "draw ", "generate an image of "} {
		if strings.HasPrefix(lower, prefix) {
			return true, strings.TrimSpace(msg.Text[len(prefix):])
		}
	}
	return false, ""
}

func (t *TgBot) sendResponse(chatId int64, request string) {
	var reply string
	t.withChatAction(chatId, "typing", func() {
		response, err := t.chat.GetResponse(chatId, request)
		if err != nil {
			t.log.Error("getting response", sl.Err(err))
			response = errorResponse
		}
		reply = response
	})
	t.plainResponse(chatId, reply)
}

func (t *TgBot) sendImage(chatId int64, prompt string) {
	ctx, cancel := context.WithTimeout(context.Background(), t.deadline)
	defer cancel()

	var msg tgbotapi.Chattable
	t.withChatAction(chatId, "upload_photo", func() {
		result := t.images.GenerateImage(ctx, chatId, prompt)
		msg = FormatResult(chatId, prompt, result)
	})
	t.send(msg)
}

// withChatAction keeps a chat action visible while work runs, refreshing
// it every 5 seconds
func (t *TgBot) withChatAction(chatId int64, action string, work func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		t.sendChatAction(chatId, action)
		for {
			select {
			case <-ticker.C:
				t.sendChatAction(chatId, action)
			case <-done:
				return
			}
		}
	}()
	work()
	close(done)
}

func (t *TgBot) sendChatAction(chatId int64, action string) {
	msg := tgbotapi.NewChatAction(chatId, action)
	if _, err := t.api.Send(msg); err != nil {
		t.log.Error("sending chat action", sl.Err(err))
	}
}

func (t *TgBot) plainResponse(chatId int64, text string) {
	t.send(tgbotapi.NewMessage(chatId, text))
}

func (t *TgBot) send(msg tgbotapi.Chattable) {
	if _, err := t.api.Send(msg); err != nil {
		t.log.Error("sending message", sl.Err(err))
	}
}

// detect if we are mentioned in the message
func (t *TgBot) isMentioned(text string) bool {
	if t.botUsername != "" {
		return strings.Contains(text, "@"+t.botUsername)
	}
	return false
}

// detect if message is a reply to a message from the bot
func (t *TgBot) isReplyToBot(message *tgbotapi.Message) bool {
	if message.ReplyToMessage != nil && message.ReplyToMessage.From != nil {
		return message.ReplyToMessage.From.UserName == t.botUsername
	}
	return false
}
