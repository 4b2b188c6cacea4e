// Package latest keeps the most recent normalized reading per sensor.
package latest

import (
	"sync"
	"time"

	"vehicle-telemetry/internal/domain"
)

type Entry struct {
	Reading  domain.NormalizedReading
	StoredAt time.Time
}

// Store is last-write-wins by arrival order: the embedded timestamp of a
// reading is never compared against the stored one.
type Store struct {
	mu      sync.RWMutex
	entries map[domain.SensorID]Entry
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		entries: make(map[domain.SensorID]Entry),
		now:     time.Now,
	}
}

func (s *Store) Update(r domain.NormalizedReading) {
	storedAt := s.now()

	s.mu.Lock()
	s.entries[r.SensorID] = Entry{Reading: r, StoredAt: storedAt}
	s.mu.Unlock()
}

func (s *Store) Get(id domain.SensorID) (domain.NormalizedReading, bool) {
	e, ok := s.Entry(id)
	return e.Reading, ok
}

func (s *Store) Entry(id domain.SensorID) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// GetAll returns a point-in-time copy of every stored reading.
func (s *Store) GetAll() map[domain.SensorID]domain.NormalizedReading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[domain.SensorID]domain.NormalizedReading, len(s.entries))
	for id, e := range s.entries {
		out[id] = e.Reading
	}
	return out
}

// Snapshot is GetAll including the time each reading was stored.
func (s *Store) Snapshot() map[domain.SensorID]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[domain.SensorID]Entry, len(s.entries))
	for id, e := range s.entries {
		out[id] = e
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
