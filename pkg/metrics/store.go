package metrics

import (
	"sync"

	"github.com/pario-ai/quelldemo/pkg/models"
)

// Store accumulates submission metrics. All mutation goes through its
// methods, each of which applies fully under one lock: the two series
// always have the same length, and every recorded success bumps exactly
// one counter.
type Store struct {
	mu     sync.RWMutex
	times  []float64
	labels []string
	hits   int
	misses int
	errors []string
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// RecordSuccess appends one timing sample and counts it as a hit or miss.
func (s *Store) RecordSuccess(elapsedMs float64, typeLabel string, wasHit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.times = append(s.times, elapsedMs)
	s.labels = append(s.labels, typeLabel)
	if wasHit {
		s.hits++
	} else {
		s.misses++
	}
}

// RecordError appends a message to the error log.
func (s *Store) RecordError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, message)
}

// Reset empties both series and zeroes the counters. The error log is kept.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// ResetAfter runs fn and then resets, holding the lock across both so no
// record or snapshot lands in between. The reset happens even when fn
// fails; fn's error is returned.
func (s *Store) ResetAfter(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if fn != nil {
		err = fn()
	}
	s.reset()
	return err
}

func (s *Store) reset() {
	s.times = nil
	s.labels = nil
	s.hits = 0
	s.misses = 0
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.Snapshot{
		ResponseTimesMs: append([]float64{}, s.times...),
		QueryTypeLabels: append([]string{}, s.labels...),
		CacheHitCount:   s.hits,
		CacheMissCount:  s.misses,
		ErrorLog:        append([]string{}, s.errors...),
	}
}
