package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/melascope-dx/internal/application/assessment"
	"github.com/bryanwahyu/melascope-dx/internal/application/chat"
	"github.com/bryanwahyu/melascope-dx/internal/application/events"
	domain "github.com/bryanwahyu/melascope-dx/internal/domain/assessment"
)

// Session is one open assessment view.
type Session struct {
	ID        string
	CreatedAt time.Time

	wf        *assessment.Workflow
	completed *events.Bus[events.AnalysisCompleted]
	failed    *events.Bus[events.AnalysisFailed]
	unsub     []func()
	sender    domain.ChatSender
	log       zerolog.Logger

	mu       sync.Mutex
	chat     *chat.Session
	lastSeen time.Time
}

// View is what the dashboard renders for a session.
type View struct {
	ID string `json:"id"`
	assessment.Snapshot
	Chat []domain.ChatTurn `json:"chat,omitempty"`
}

func (s *Session) SelectFile(ctx context.Context, file domain.File) error {
	if err := s.wf.SelectFile(ctx, file); err != nil {
		return err
	}
	s.dropChat()
	return nil
}

func (s *Session) Reset(ctx context.Context) error {
	if err := s.wf.Reset(ctx); err != nil {
		return err
	}
	s.dropChat()
	return nil
}

// StartAnalysis runs the analysis inline, or in the background when async is set.
func (s *Session) StartAnalysis(ctx context.Context, async bool) error {
	if async {
		return s.wf.StartAnalysisAsync(ctx)
	}
	return s.wf.StartAnalysis(ctx)
}

// SendChat forwards msg to the chat about the current result.
func (s *Session) SendChat(ctx context.Context, msg string) (string, []domain.ChatTurn, error) {
	c := s.Chat()
	if c == nil {
		return "", nil, ErrNoChat
	}
	reply, err := c.Send(ctx, msg)
	if err != nil {
		return "", nil, err
	}
	return reply, c.Turns(), nil
}

// Chat returns the chat session, nil until an analysis completed.
func (s *Session) Chat() *chat.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chat
}

func (s *Session) View() View {
	v := View{ID: s.ID, Snapshot: s.wf.Snapshot()}
	if c := s.Chat(); c != nil {
		v.Chat = c.Turns()
	}
	return v
}

func (s *Session) Workflow() *assessment.Workflow { return s.wf }

// Completed is the session-scoped bus of completed analyses.
func (s *Session) Completed() *events.Bus[events.AnalysisCompleted] { return s.completed }

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	if now.After(s.lastSeen) {
		s.lastSeen = now
	}
	s.mu.Unlock()
}

// seedChat starts a fresh conversation about the completed analysis.
func (s *Session) seedChat(e events.AnalysisCompleted) {
	c := chat.NewSession(s.sender, chat.Context{
		Label:      e.Label,
		Confidence: e.Confidence,
		Summary:    e.Summary,
	}, s.log)
	s.mu.Lock()
	s.chat = c
	s.mu.Unlock()
}

func (s *Session) dropChat() {
	s.mu.Lock()
	s.chat = nil
	s.mu.Unlock()
}

func (s *Session) close(ctx context.Context) {
	for _, u := range s.unsub {
		u()
	}
	s.wf.Close(ctx)
	s.dropChat()
	s.log.Info().Msg("session closed")
}
