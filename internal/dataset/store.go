package dataset

import (
	"sync"
	"sync/atomic"
)

// Store holds the current Table. Readers take a snapshot with Current and
// keep using it even if a reload swaps in a newer table meanwhile.
type Store struct {
	current atomic.Pointer[Table]

	mu          sync.Mutex
	subscribers []func(*Table)
}

// NewStore creates a store holding t, which may be nil
func NewStore(t *Table) *Store {
	s := &Store{}
	if t != nil {
		s.current.Store(t)
	}
	return s
}

// Current returns the current table or nil if none was loaded
func (s *Store) Current() *Table {
	return s.current.Load()
}

// Swap installs t as the current table, notifies subscribers and returns the previous table.
func (s *Store) Swap(t *Table) *Table {
	prev := s.current.Swap(t)

	s.mu.Lock()
	subs := make([]func(*Table), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(t)
	}
	return prev
}

// OnSwap registers fn to be called after every Swap
func (s *Store) OnSwap(fn func(*Table)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}
