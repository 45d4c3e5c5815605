// Package assessment drives one assessment: file selection, the analyze call
// followed by the advisory call, and the ranked view over the result.
package assessment

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/melascope-dx/internal/application"
	"github.com/bryanwahyu/melascope-dx/internal/application/events"
	domain "github.com/bryanwahyu/melascope-dx/internal/domain/assessment"
)

// Deps are the collaborators of a Workflow.
type Deps struct {
	SessionID string
	Analyzer  domain.Analyzer
	Advisor   domain.Advisor
	Previews  domain.PreviewStore
	// Completed and Failed handlers run with the workflow locked and must not call back into it.
	Completed *events.Bus[events.AnalysisCompleted]
	Failed    *events.Bus[events.AnalysisFailed]
	Clock     application.Clock
	Logger    zerolog.Logger
}

// Workflow owns the State of a single assessment. All mutation goes through
// its methods; it is safe for concurrent use.
type Workflow struct {
	deps Deps

	mu      sync.Mutex
	state   domain.State
	preview *domain.Preview
	notice  string
	closed  bool
	// gen changes on every reset so a late analysis cannot write into a newer state
	gen uint64
}

// Snapshot is a read-only copy of the state for display.
type Snapshot struct {
	domain.State
	Ranked []domain.RankedProbability `json:"ranked_probabilities"`
	Notice string                     `json:"notice,omitempty"`
}

func New(deps Deps) *Workflow {
	if deps.Completed == nil {
		deps.Completed = events.NewBus[events.AnalysisCompleted]()
	}
	if deps.Failed == nil {
		deps.Failed = events.NewBus[events.AnalysisFailed]()
	}
	deps.Clock = application.OrSystem(deps.Clock)
	deps.Logger = deps.Logger.With().Str("session", deps.SessionID).Logger()
	return &Workflow{deps: deps}
}

// SelectFile replaces the file. The previous preview is released before the
// new one is created; result and advisory are cleared.
func (w *Workflow) SelectFile(ctx context.Context, file domain.File) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return domain.ErrClosed
	}
	if w.state.IsAnalyzing {
		return domain.ErrAnalysisInProgress
	}

	w.clearLocked(ctx)

	p, err := w.deps.Previews.Create(ctx, file)
	if err != nil {
		return fmt.Errorf("create preview: %w", err)
	}
	w.preview = &p
	f := file
	w.state.File = &f
	w.state.PreviewURL = p.URL

	w.deps.Logger.Debug().
		Str("file", file.Name).
		Int64("size", file.Size).
		Str("preview", p.Key).
		Msg("file selected")
	return nil
}

// StartAnalysis runs the analyze call and then the advisory call, once.
// When a precondition fails it returns the matching sentinel and leaves the state untouched.
func (w *Workflow) StartAnalysis(ctx context.Context) error {
	file, gen, err := w.begin()
	if err != nil {
		return err
	}
	return w.run(ctx, file, gen)
}

// StartAnalysisAsync checks preconditions synchronously and runs the calls in
// the background, detached from ctx cancellation. Failures surface as the notice.
func (w *Workflow) StartAnalysisAsync(ctx context.Context) error {
	file, gen, err := w.begin()
	if err != nil {
		return err
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		_ = w.run(bg, file, gen)
	}()
	return nil
}

// Reset releases the preview and clears every field.
func (w *Workflow) Reset(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return domain.ErrClosed
	}
	w.clearLocked(ctx)
	return nil
}

// Close is the unmount path: releases the preview and rejects further use.
func (w *Workflow) Close(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.clearLocked(ctx)
	w.closed = true
}

// RankedProbabilities returns the top classes as percentages, highest first.
func (w *Workflow) RankedProbabilities() []domain.RankedProbability {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rankedLocked()
}

func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Snapshot{
		State:  w.state,
		Ranked: w.rankedLocked(),
		Notice: w.notice,
	}
	if w.state.File != nil {
		f := *w.state.File
		s.File = &f
	}
	if w.state.Result != nil {
		r := *w.state.Result
		s.Result = &r
	}
	if w.state.Advisory != nil {
		a := *w.state.Advisory
		s.Advisory = &a
	}
	return s
}

func (w *Workflow) rankedLocked() []domain.RankedProbability {
	if w.state.Result == nil {
		return []domain.RankedProbability{}
	}
	return domain.Rank(w.state.Result.Probabilities, domain.TopRanked)
}

func (w *Workflow) begin() (domain.File, uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case w.closed:
		return domain.File{}, 0, domain.ErrClosed
	case w.state.File == nil:
		return domain.File{}, 0, domain.ErrNoFile
	case w.state.IsAnalyzing:
		return domain.File{}, 0, domain.ErrAnalysisInProgress
	case w.state.Result != nil:
		return domain.File{}, 0, domain.ErrAlreadyAnalyzed
	}

	w.state.IsAnalyzing = true
	w.notice = ""
	return *w.state.File, w.gen, nil
}

func (w *Workflow) run(ctx context.Context, file domain.File, gen uint64) error {
	defer func() {
		w.mu.Lock()
		if w.gen == gen {
			w.state.IsAnalyzing = false
		}
		w.mu.Unlock()
	}()

	log := w.deps.Logger.With().Str("file", file.Name).Logger()

	// 1. analyze image
	pred, err := w.deps.Analyzer.Analyze(ctx, file)
	if err != nil {
		log.Error().Err(err).Msg("analyze call failed")
		at := w.deps.Clock.Now()
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.gen != gen {
			return fmt.Errorf("%w: %w", domain.ErrAnalysisFailed, err)
		}
		w.notice = domain.FailureNotice
		w.state.IsAnalyzing = false
		w.deps.Failed.Publish(events.AnalysisFailed{
			SessionID: w.deps.SessionID,
			Err:       err,
			At:        at,
		})
		return fmt.Errorf("%w: %w", domain.ErrAnalysisFailed, err)
	}

	w.mu.Lock()
	if w.gen != gen {
		w.mu.Unlock()
		return domain.ErrReset
	}
	r := pred
	w.state.Result = &r
	w.mu.Unlock()

	// 2. advisory; kalau gagal, prediction tetap tampil tanpa advisory
	adv, err := w.deps.Advisor.GetAdvisory(ctx, pred.Label, pred.Confidence)
	if err != nil {
		log.Warn().Err(err).Str("label", pred.Label).Msg("advisory unavailable, showing prediction only")
	}

	at := w.deps.Clock.Now()

	// publish under mu: a reset either lands before (and the event is dropped)
	// or waits until subscribers have seen the result it clears
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen {
		return domain.ErrReset
	}
	if err == nil {
		a := adv
		w.state.Advisory = &a
	}
	w.state.IsAnalyzing = false

	log.Info().
		Str("label", pred.Label).
		Float64("confidence", pred.Confidence).
		Bool("advisory", err == nil).
		Msg("analysis complete")

	w.deps.Completed.Publish(events.AnalysisCompleted{
		SessionID:     w.deps.SessionID,
		Label:         pred.Label,
		Confidence:    pred.Confidence,
		Summary:       adv.Summary,
		AdvisoryTitle: adv.Title,
		At:            at,
	})
	return nil
}

// clearLocked releases the preview and resets the record. Caller holds mu.
func (w *Workflow) clearLocked(ctx context.Context) {
	if w.preview != nil {
		if err := w.deps.Previews.Release(ctx, *w.preview); err != nil {
			w.deps.Logger.Warn().Err(err).Str("preview", w.preview.Key).Msg("failed to release preview")
		}
		w.preview = nil
	}
	w.state = domain.State{}
	w.notice = ""
	w.gen++
}
