// Package openai is the direct chat transport: it answers follow-up questions
// through an OpenAI-compatible chat completion endpoint instead of the analysis API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	domain "github.com/bryanwahyu/melascope-dx/internal/domain/assessment"
	"github.com/bryanwahyu/melascope-dx/internal/infra/ai/prompt"
)

const (
	defaultModel = "gpt-4o-mini"
	maxTokens    = 1024
)

type ChatClient struct {
	*openai.Client
	Model      string
	log        zerolog.Logger
	onFallback func(op string)
}

// NewChatClient; baseURL empty means the public OpenAI endpoint.
func NewChatClient(apiKey, baseURL, model string, log zerolog.Logger) *ChatClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &ChatClient{Client: openai.NewClientWithConfig(cfg), Model: model, log: log}
}

// OnFallback registers a hook called with "chat" whenever the fallback reply is returned.
func (c *ChatClient) OnFallback(fn func(op string)) { c.onFallback = fn }

// Complete asks the model for the next assistant turn.
func (c *ChatClient) Complete(ctx context.Context, label string, confidence float64, history []domain.ChatTurn, message string) (string, error) {
	model := c.Model
	if model == "" {
		model = defaultModel
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+3)
	msgs = append(msgs,
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: prompt.SystemPrompt()},
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: prompt.ContextPrompt(label, confidence)},
	)
	for _, t := range history {
		role := openai.ChatMessageRoleUser
		switch t.Role {
		case domain.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case domain.RoleSystem:
			continue
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	req := openai.ChatCompletionRequest{Model: model, Messages: msgs}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %w", domain.ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errors.New("chat completion returned no content")
	}
	return resp.Choices[0].Message.Content, nil
}

// SendChatTurn implements domain.ChatSender.
func (c *ChatClient) SendChatTurn(ctx context.Context, label string, confidence float64, history []domain.ChatTurn, message string) string {
	reply, err := c.Complete(ctx, label, confidence, history, message)
	if err != nil {
		c.log.Warn().
			Err(err).
			Bool("quota", errors.Is(err, domain.ErrQuotaExceeded)).
			Str("label", label).
			Msg("llm chat failed, using fallback reply")
		if c.onFallback != nil {
			c.onFallback("chat")
		}
		return domain.ChatFallbackReply
	}
	return reply
}
