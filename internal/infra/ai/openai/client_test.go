package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/melascope-dx/internal/domain/assessment"
)

const completion = `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
"choices":[{"index":0,"message":{"role":"assistant","content":"It is best to see a dermatologist."},"finish_reason":"stop"}]}`

func TestSendChatTurn_BuildsConversation(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completion)
	}))
	defer srv.Close()

	c := NewChatClient("test-key", srv.URL+"/v1", "", zerolog.Nop())
	history := []domain.ChatTurn{
		{Role: domain.RoleAssistant, Content: "Hello!"},
		{Role: domain.RoleSystem, Content: "hidden"},
		{Role: domain.RoleUser, Content: "Earlier question"},
	}

	reply := c.SendChatTurn(context.Background(), "Melanoma", 0.9, history, "What now?")

	assert.Equal(t, "It is best to see a dermatologist.", reply)
	assert.Equal(t, defaultModel, got.Model)
	assert.Equal(t, maxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 5)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Contains(t, got.Messages[1].Content, "Melanoma")
	assert.Equal(t, openai.ChatMessageRoleAssistant, got.Messages[2].Role)
	assert.Equal(t, "Earlier question", got.Messages[3].Content)
	assert.Equal(t, "What now?", got.Messages[4].Content)
}

func TestComplete_ReasoningModelUsesCompletionTokens(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, completion)
	}))
	defer srv.Close()

	c := NewChatClient("k", srv.URL+"/v1", "o3-mini", zerolog.Nop())
	_, err := c.Complete(context.Background(), "Nevus", 0.5, nil, "hi")

	require.NoError(t, err)
	assert.Equal(t, maxTokens, got.MaxCompletionTokens)
	assert.Zero(t, got.MaxTokens)
}

func TestComplete_QuotaExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`)
	}))
	defer srv.Close()

	c := NewChatClient("k", srv.URL+"/v1", "", zerolog.Nop())
	_, err := c.Complete(context.Background(), "Nevus", 0.5, nil, "hi")

	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
}

func TestSendChatTurn_QuotaYieldsApology(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`)
	}))
	defer srv.Close()

	c := NewChatClient("k", srv.URL+"/v1", "", zerolog.Nop())
	reply := c.SendChatTurn(context.Background(), "Nevus", 0.5, nil, "hi")

	assert.Equal(t, domain.ChatFallbackReply, reply)
}

func TestSendChatTurn_FallbackOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var ops []string
	c := NewChatClient("k", srv.URL+"/v1", "", zerolog.Nop())
	c.OnFallback(func(op string) { ops = append(ops, op) })

	reply := c.SendChatTurn(context.Background(), "Nevus", 0.5, nil, "hi")

	assert.Equal(t, domain.ChatFallbackReply, reply)
	assert.Equal(t, []string{"chat"}, ops)
}
