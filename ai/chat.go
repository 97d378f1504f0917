package ai

import (
	"Artsy/core"
	"Artsy/lib/sl"
	"Artsy/storage"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Chat talks to the remote chat model and keeps per-user history ordered
// through the injected session store. The store is the only serialization
// boundary between concurrent messages from the same user.
type Chat struct {
	conf   *core.Config
	log    *slog.Logger
	store  storage.SessionStore
	client *http.Client
}

func NewChat(conf *core.Config, log *slog.Logger, store storage.SessionStore) *Chat {
	return &Chat{
		conf:  conf,
		log:   log.With(sl.Module("chat")),
		store: store,
		client: &http.Client{
			Timeout: time.Duration(conf.Chat.TimeoutSeconds) * time.Second,
		},
	}
}

func (c *Chat) GetResponse(userId int64, question string) (string, error) {
	question = c.handleCommands(userId, question)

	if err := c.store.AppendTurn(userId, storage.RoleUser, question); err != nil {
		c.log.Error("appending user turn", sl.Err(err))
	}

	request := ChatRequest{
		Model:       c.conf.Chat.Model,
		Messages:    c.composeMessages(userId, question),
		Temperature: c.conf.Chat.Temperature,
	}
	jsonBytes, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.conf.Chat.Endpoint, strings.NewReader(string(jsonBytes)))
	if err != nil {
		return "", fmt.Errorf("making request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.conf.Chat.ApiKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("getting response: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Error("closing response body", sl.Err(err))
		}
	}(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}

	var completion ChatCompletion
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("chat completion: %s", completion.Error.Message)
	}
	c.log.With(
		sl.User(userId),
		slog.String("model", completion.Model),
		slog.Int("choices", len(completion.Choices)),
	).Info("chat completion")
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}
	response := completion.Choices[0].Message.Content

	if err := c.store.AppendTurn(userId, storage.RoleAssistant, response); err != nil {
		c.log.Error("appending assistant turn", sl.Err(err))
	}

	logText := response
	if len(logText) > 50 {
		logText = logText[:50] + "..."
	}
	c.log.With(
		sl.User(userId),
		slog.String("text", logText),
	).Info("outgoing message")

	return response, nil
}

// handleCommands applies context commands and returns the question the
// model should actually see.
func (c *Chat) handleCommands(userId int64, question string) string {
	if strings.HasPrefix(question, "/ask ") {
		return strings.TrimPrefix(question, "/ask ")
	}

	if strings.HasPrefix(question, "/clear") {
		c.ClearContext(userId)
		return "Let's talk."
	}

	if strings.HasPrefix(question, "/topic") {
		topic := strings.TrimSpace(strings.TrimPrefix(question, "/topic"))
		if err := c.store.SetTopic(userId, topic); err != nil {
			c.log.Error("setting topic", sl.Err(err))
		}
		return "Let's talk about " + topic + "."
	}

	return question
}

// composeMessages turns the stored session into the role-tagged message
// list the chat API expects. The snapshot already includes the new user
// turn, appended by the caller before the remote call.
func (c *Chat) composeMessages(userId int64, question string) []Message {
	session, err := c.store.GetSession(userId)
	if err != nil {
		c.log.Error("getting session", sl.Err(err))
	}
	if session == nil {
		return []Message{{Role: string(storage.RoleUser), Content: question}}
	}

	messages := make([]Message, 0, len(session.Turns)+1)
	if session.Topic != "" {
		messages = append(messages, Message{
			Role:    "system",
			Content: "The subject of this conversation is: " + session.Topic,
		})
	}
	for _, turn := range session.Turns {
		messages = append(messages, Message{Role: string(turn.Role), Content: turn.Text})
	}
	return messages
}

func (c *Chat) ClearContext(userId int64) {
	if err := c.store.ClearSession(userId); err != nil {
		c.log.Error("clearing session", sl.Err(err))
	}
}

func (c *Chat) Close() error {
	return c.store.Close()
}
