// Package chat holds the follow-up conversation about one assessment result.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	domain "github.com/bryanwahyu/melascope-dx/internal/domain/assessment"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a reply is still pending")
)

// Context is the assessment the conversation is about.
type Context struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Summary    string  `json:"summary,omitempty"`
}

// Session is safe for concurrent use; at most one Send runs at a time.
type Session struct {
	sender domain.ChatSender
	ctx    Context
	log    zerolog.Logger

	mu    sync.Mutex
	turns []domain.ChatTurn
	busy  bool
}

func Greeting(label string) string {
	return fmt.Sprintf("Hello! I see you have questions about the analysis of **%s**. How can I help you understand these results?", label)
}

// Insight is the turn added when the assessment came with an advisory summary.
func Insight(c Context) string {
	return fmt.Sprintf("Analysis complete! I've detected **%s** with %.1f%% confidence.\n\nQuick Insight:\n%s",
		c.Label, c.Confidence*100, c.Summary)
}

func NewSession(sender domain.ChatSender, c Context, log zerolog.Logger) *Session {
	turns := []domain.ChatTurn{{Role: domain.RoleAssistant, Content: Greeting(c.Label)}}
	if strings.TrimSpace(c.Summary) != "" {
		turns = append(turns, domain.ChatTurn{Role: domain.RoleAssistant, Content: Insight(c)})
	}
	return &Session{
		sender: sender,
		ctx:    c,
		log:    log.With().Str("label", c.Label).Logger(),
		turns:  turns,
	}
}

// Send appends msg as a user turn, asks the sender for a reply and appends it.
// Sender failures arrive as the fallback reply and are never returned.
func (s *Session) Send(ctx context.Context, msg string) (string, error) {
	if strings.TrimSpace(msg) == "" {
		return "", ErrEmptyMessage
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return "", ErrBusy
	}
	s.busy = true
	history := make([]domain.ChatTurn, 0, len(s.turns))
	for _, t := range s.turns {
		if t.Role != domain.RoleSystem {
			history = append(history, t)
		}
	}
	s.turns = append(s.turns, domain.ChatTurn{Role: domain.RoleUser, Content: msg})
	s.mu.Unlock()

	reply := s.sender.SendChatTurn(ctx, s.ctx.Label, s.ctx.Confidence, history, msg)
	if reply == domain.ChatFallbackReply {
		s.log.Warn().Int("history", len(history)).Msg("chat reply fell back")
	}

	s.mu.Lock()
	s.turns = append(s.turns, domain.ChatTurn{Role: domain.RoleAssistant, Content: reply})
	s.busy = false
	s.mu.Unlock()
	return reply, nil
}

// Turns returns a copy of the conversation.
func (s *Session) Turns() []domain.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ChatTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *Session) Context() Context { return s.ctx }

func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}
