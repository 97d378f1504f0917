package ai

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"Artsy/core"
	"Artsy/storage"
)

// fakeModel is an httptest chat-completions endpoint recording every
// request it sees and answering with a fixed reply.
type fakeModel struct {
	server   *httptest.Server
	requests []ChatRequest
	reply    string
}

func newFakeModel(t *testing.T, reply string) *fakeModel {
	t.Helper()
	fm := &fakeModel{reply: reply}
	fm.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		fm.requests = append(fm.requests, req)

		completion := ChatCompletion{
			Model: req.Model,
			Choices: []Choice{
				{Message: Message{Role: "assistant", Content: fm.reply}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(completion))
	}))
	t.Cleanup(fm.server.Close)
	return fm
}

func newTestChat(endpoint string) (*Chat, storage.SessionStore) {
	conf := &core.Config{}
	conf.Chat.ApiKey = "test-key"
	conf.Chat.Endpoint = endpoint
	conf.Chat.Model = "test-model"
	conf.Chat.Temperature = 0.7
	conf.Chat.TimeoutSeconds = 5

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemoryStore(16, time.Hour, log)
	return NewChat(conf, log, store), store
}

func TestGetResponse_AppendsBothTurnsInOrder(t *testing.T) {
	model := newFakeModel(t, "hello there")
	chat, store := newTestChat(model.server.URL)

	reply, err := chat.GetResponse(1, "hi")
	require.NoError(t, err)
	require.Equal(t, "hello there", reply)

	session, err := store.GetSession(1)
	require.NoError(t, err)
	require.Len(t, session.Turns, 2)
	require.Equal(t, storage.RoleUser, session.Turns[0].Role)
	require.Equal(t, "hi", session.Turns[0].Text)
	require.Equal(t, storage.RoleAssistant, session.Turns[1].Role)
	require.Equal(t, "hello there", session.Turns[1].Text)
}

func TestGetResponse_SendsHistoryOnFollowUp(t *testing.T) {
	model := newFakeModel(t, "pong")
	chat, _ := newTestChat(model.server.URL)

	_, err := chat.GetResponse(1, "first question")
	require.NoError(t, err)
	_, err = chat.GetResponse(1, "second question")
	require.NoError(t, err)

	require.Len(t, model.requests, 2)
	second := model.requests[1]
	require.Len(t, second.Messages, 3)
	require.Equal(t, "first question", second.Messages[0].Content)
	require.Equal(t, "pong", second.Messages[1].Content)
	require.Equal(t, "assistant", second.Messages[1].Role)
	require.Equal(t, "second question", second.Messages[2].Content)
}

func TestGetResponse_TopicBecomesSystemMessage(t *testing.T) {
	model := newFakeModel(t, "sure")
	chat, _ := newTestChat(model.server.URL)

	_, err := chat.GetResponse(1, "/topic space travel")
	require.NoError(t, err)

	require.Len(t, model.requests, 1)
	first := model.requests[0].Messages[0]
	require.Equal(t, "system", first.Role)
	require.Contains(t, first.Content, "space travel")
}

func TestGetResponse_ClearResetsHistory(t *testing.T) {
	model := newFakeModel(t, "ok")
	chat, store := newTestChat(model.server.URL)

	_, err := chat.GetResponse(1, "remember this")
	require.NoError(t, err)
	_, err = chat.GetResponse(1, "/clear")
	require.NoError(t, err)

	session, err := store.GetSession(1)
	require.NoError(t, err)
	// only the canned restart exchange survives the clear
	require.Len(t, session.Turns, 2)
	require.Equal(t, "Let's talk.", session.Turns[0].Text)
}

func TestGetResponse_UsersDoNotShareHistory(t *testing.T) {
	model := newFakeModel(t, "reply")
	chat, _ := newTestChat(model.server.URL)

	_, err := chat.GetResponse(1, "from user one")
	require.NoError(t, err)
	_, err = chat.GetResponse(2, "from user two")
	require.NoError(t, err)

	require.Len(t, model.requests, 2)
	require.Len(t, model.requests[1].Messages, 1)
	require.Equal(t, "from user two", model.requests[1].Messages[0].Content)
}

func TestGetResponse_EmptyChoicesIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ChatCompletion{})
	}))
	t.Cleanup(server.Close)

	chat, _ := newTestChat(server.URL)
	_, err := chat.GetResponse(1, "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty choices")
}
