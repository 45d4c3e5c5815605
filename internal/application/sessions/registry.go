// Package sessions tracks the open assessment views. Each session owns one
// workflow, its event buses and the chat about its result.
package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/melascope-dx/internal/application"
	"github.com/bryanwahyu/melascope-dx/internal/application/assessment"
	"github.com/bryanwahyu/melascope-dx/internal/application/events"
	"github.com/bryanwahyu/melascope-dx/internal/application/history"
	domain "github.com/bryanwahyu/melascope-dx/internal/domain/assessment"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoChat          = errors.New("no analysis result to chat about")
)

const DefaultIdleTTL = 30 * time.Minute

// Observer receives lifecycle counts, typically the metrics middleware.
type Observer interface {
	SessionOpened()
	SessionClosed()
	AnalysisCompleted()
	AnalysisFailed()
}

type nopObserver struct{}

func (nopObserver) SessionOpened()     {}
func (nopObserver) SessionClosed()     {}
func (nopObserver) AnalysisCompleted() {}
func (nopObserver) AnalysisFailed()    {}

type Deps struct {
	Analyzer domain.Analyzer
	Advisor  domain.Advisor
	Sender   domain.ChatSender
	Previews domain.PreviewStore
	History  *history.Store
	Observer Observer
	Clock    application.Clock
	Logger   zerolog.Logger
	IdleTTL  time.Duration
}

type Registry struct {
	deps Deps

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(deps Deps) *Registry {
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if deps.History == nil {
		deps.History = history.NewStore(history.DefaultCapacity)
	}
	if deps.IdleTTL <= 0 {
		deps.IdleTTL = DefaultIdleTTL
	}
	deps.Clock = application.OrSystem(deps.Clock)
	return &Registry{deps: deps, sessions: make(map[string]*Session)}
}

// Create opens a new view session.
func (r *Registry) Create() *Session {
	now := r.deps.Clock.Now()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		lastSeen:  now,
		sender:    r.deps.Sender,
		log:       r.deps.Logger,
		completed: events.NewBus[events.AnalysisCompleted](),
		failed:    events.NewBus[events.AnalysisFailed](),
	}
	s.log = r.deps.Logger.With().Str("session", s.ID).Logger()
	s.wf = assessment.New(assessment.Deps{
		SessionID: s.ID,
		Analyzer:  r.deps.Analyzer,
		Advisor:   r.deps.Advisor,
		Previews:  r.deps.Previews,
		Completed: s.completed,
		Failed:    s.failed,
		Clock:     r.deps.Clock,
		Logger:    r.deps.Logger,
	})

	s.unsub = append(s.unsub,
		s.completed.Subscribe(s.seedChat),
		s.completed.Subscribe(func(e events.AnalysisCompleted) {
			r.deps.History.Add(history.Item{
				SessionID:     e.SessionID,
				Timestamp:     e.At,
				Label:         e.Label,
				Confidence:    e.Confidence,
				AdvisoryTitle: e.AdvisoryTitle,
			})
			r.deps.Observer.AnalysisCompleted()
		}),
		s.failed.Subscribe(func(events.AnalysisFailed) {
			r.deps.Observer.AnalysisFailed()
		}),
	)

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.deps.Observer.SessionOpened()
	s.log.Info().Msg("session opened")
	return s
}

// Get returns the session and marks it as seen.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(r.deps.Clock.Now())
	return s, nil
}

// Close unmounts the session and releases its preview.
func (r *Registry) Close(ctx context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.close(ctx)
	r.deps.Observer.SessionClosed()
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) History() *history.Store { return r.deps.History }

// Sweep closes sessions idle longer than IdleTTL. Sessions with an analysis
// in flight are kept. Returns how many were closed.
func (r *Registry) Sweep(ctx context.Context, now time.Time) int {
	r.mu.RLock()
	var stale []string
	for id, s := range r.sessions {
		if now.Sub(s.LastSeen()) > r.deps.IdleTTL && !s.wf.Snapshot().IsAnalyzing {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	closed := 0
	for _, id := range stale {
		if err := r.Close(ctx, id); err == nil {
			closed++
		}
	}
	if closed > 0 {
		r.deps.Logger.Info().Int("closed", closed).Int("open", r.Len()).Msg("idle sessions swept")
	}
	return closed
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx, r.deps.Clock.Now())
		}
	}
}

// CloseAll is the shutdown path.
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		_ = r.Close(ctx, id)
	}
}
