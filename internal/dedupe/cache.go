package dedupe

import (
	"sync"
	"time"
)

type mark struct {
	id string
	at time.Time
}

// Set remembers recently ingested record IDs, bounded by size and age.
type Set struct {
	mu       sync.Mutex
	seen     map[string]time.Time
	fifo     []mark
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewSet creates a set holding at most capacity IDs for ttl each.
func NewSet(capacity int, ttl time.Duration) *Set {
	return newSet(capacity, ttl, time.Now)
}

func newSet(capacity int, ttl time.Duration, now func() time.Time) *Set {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Set{
		seen:     make(map[string]time.Time, capacity),
		fifo:     make([]mark, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      now,
	}
}

// Seen reports whether id was marked within the ttl window.
// Records are only marked after they were indexed, so a failed index is retried.
func (s *Set) Seen(id string) bool {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	at, ok := s.seen[id]
	return ok && now.Sub(at) <= s.ttl
}

// Mark records id as ingested.
func (s *Set) Mark(id string) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen[id] = now
	s.fifo = append(s.fifo, mark{id: id, at: now})
	s.evict(now)
}

// Len is the number of tracked IDs.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func (s *Set) evict(now time.Time) {
	cutoff := now.Add(-s.ttl)

	for len(s.fifo) > 0 && (len(s.seen) > s.capacity || s.fifo[0].at.Before(cutoff)) {
		oldest := s.fifo[0]
		s.fifo = s.fifo[1:]

		// a re-marked id has a newer entry further back in fifo
		if at, ok := s.seen[oldest.id]; ok && at.Equal(oldest.at) {
			delete(s.seen, oldest.id)
		}
	}
}
