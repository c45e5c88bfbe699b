// In-memory Store implementation for single-instance deployments.
//
// States live in a mutex-guarded map keyed by chat ID. Expired entries are
// evicted opportunistically every cleanupEvery operations, bounding memory
// without a background sweeper.
package session

import (
	"sync"
	"time"
)

// DefaultTTL is how long an untouched conversation state stays alive.
const DefaultTTL = 24 * time.Hour

// cleanupEvery controls how often Get/Set/Start sweep expired entries.
const cleanupEvery = 256

// MemoryStore is a process-local Store. Safe for concurrent use.
type MemoryStore struct {
	mu   sync.Mutex
	m    map[int64]*State
	ttl  time.Duration
	ops  uint64
	now  func() time.Time
}

// NewMemoryStore constructs a MemoryStore. A non-positive ttl falls back
// to DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		m:   make(map[int64]*State),
		ttl: ttl,
		now: time.Now,
	}
}

// Start begins a flow for the chat, discarding any active flow.
func (s *MemoryStore) Start(chatID int64, flow string) *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeCleanupLocked()

	st := &State{
		Flow:      flow,
		Fields:    make(map[string]string),
		UpdatedAt: s.now(),
	}
	s.m[chatID] = st
	return st
}

// Get returns the chat's active, unexpired state.
func (s *MemoryStore) Get(chatID int64) (*State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeCleanupLocked()

	st, ok := s.m[chatID]
	if !ok {
		return nil, false
	}
	if s.now().Sub(st.UpdatedAt) > s.ttl {
		delete(s.m, chatID)
		return nil, false
	}
	return st, true
}

// Set stores an updated state and refreshes its timestamp.
func (s *MemoryStore) Set(chatID int64, st *State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeCleanupLocked()

	st.UpdatedAt = s.now()
	s.m[chatID] = st
}

// Clear removes the chat's state.
func (s *MemoryStore) Clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, chatID)
}

// maybeCleanupLocked sweeps expired entries every cleanupEvery operations.
// Caller must hold mu.
func (s *MemoryStore) maybeCleanupLocked() {
	s.ops++
	if s.ops%cleanupEvery != 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	for id, st := range s.m {
		if st.UpdatedAt.Before(cutoff) {
			delete(s.m, id)
		}
	}
}
