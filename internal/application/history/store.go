// Package history keeps a capped in-memory log of completed assessments.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultCapacity = 50

type Item struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	Timestamp     time.Time `json:"timestamp"`
	Label         string    `json:"label"`
	Confidence    float64   `json:"confidence"`
	AdvisoryTitle string    `json:"advisory_title,omitempty"`
}

// Store is a ring buffer; the oldest item is dropped once capacity is reached.
type Store struct {
	mu    sync.RWMutex
	items []Item
	head  int // next write position
	count int
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{items: make([]Item, capacity)}
}

// Add records it, assigning an id when empty, and returns the stored item.
func (s *Store) Add(it Item) Item {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[s.head] = it
	s.head = (s.head + 1) % len(s.items)
	if s.count < len(s.items) {
		s.count++
	}
	return it
}

// Recent returns up to limit items, newest first. limit <= 0 returns all.
func (s *Store) Recent(limit int) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Item, 0, n)
	for i := 1; i <= n; i++ {
		idx := (s.head - i + len(s.items)) % len(s.items)
		out = append(out, s.items[idx])
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}
