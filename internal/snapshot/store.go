package snapshot

import (
	"sync"

	"github.com/Maciej1407/Energy-Data-Visualisation/internal/models"
)

// Store holds the single most-recently-accepted snapshot. The scheduler owns
// all writes; concurrent readers (e.g. a status endpoint) go through Last,
// which hands out a copy rather than a reference into mutable state.
type Store struct {
	mu   sync.RWMutex
	last models.Snapshot
	ok   bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Last returns a copy of the last accepted snapshot, and false when no
// snapshot has been accepted yet.
func (s *Store) Last() (models.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ok {
		return models.Snapshot{}, false
	}
	cp := s.last
	cp.Records = append([]models.Record(nil), s.last.Records...)
	return cp, true
}

// Replace installs a new accepted snapshot.
func (s *Store) Replace(snap models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = snap
	s.ok = true
}
