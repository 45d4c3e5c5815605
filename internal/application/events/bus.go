// Package events is a publish/subscribe channel scoped to one view session.
// Nothing here is process-global: whoever owns the assessment view owns its bus.
package events

import (
	"sync"
	"time"
)

// AnalysisCompleted is published after the analyze call (and the advisory call) resolved successfully.
type AnalysisCompleted struct {
	SessionID     string
	Label         string
	Confidence    float64
	Summary       string
	AdvisoryTitle string
	At            time.Time
}

// AnalysisFailed is published when the analyze call fails.
type AnalysisFailed struct {
	SessionID string
	Err       error
	At        time.Time
}

type subscription[T any] struct {
	id int
	fn func(T)
}

// Bus delivers events of one type to its subscribers in subscription order.
// Handlers run synchronously on the publishing goroutine.
type Bus[T any] struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription[T]
}

func NewBus[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers fn and returns a func that removes it.
func (b *Bus[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription[T]{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (b *Bus[T]) Publish(e T) {
	b.mu.RLock()
	subs := make([]subscription[T], len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(e)
	}
}

func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
