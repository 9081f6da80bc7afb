package requestlog

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is a bounded FIFO of Entry values. Append is the hot write on
// the dispatch path; Snapshot is a rare admin read. The exclusive hold
// covers only the in-memory copy and never spans I/O.
type Store struct {
	mu         sync.RWMutex
	entries    []*Entry
	maxEntries int
}

// NewStore creates a Store with the given capacity. A non-positive
// capacity falls back to MaxEntries.
func NewStore(maxEntries int) *Store {
	if maxEntries <= 0 {
		maxEntries = MaxEntries
	}
	return &Store{
		entries:    make([]*Entry, 0, maxEntries),
		maxEntries: maxEntries,
	}
}

// Append enqueues an entry, evicting the oldest when at capacity. A
// missing ID or timestamp is filled in.
func (s *Store) Append(entry *Entry) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) >= s.maxEntries {
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, entry)
}

// Snapshot returns a copy of the log in insertion order, oldest first.
func (s *Store) Snapshot() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Clear empties the log.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make([]*Entry, 0, s.maxEntries)
}

// Count returns the number of entries currently held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
