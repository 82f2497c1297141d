package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore drží kolekce v paměti procesu. Hodí se pro testy a demo bez databáze.
type MemoryStore struct {
	mu       sync.RWMutex
	readings map[string][]Reading
}

// NewMemoryStore vrací prázdný store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{readings: make(map[string][]Reading)}
}

// Append nikdy neselže.
func (s *MemoryStore) Append(_ context.Context, sensorID string, r Reading) error {
	r.SensorID = sensorID

	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings[sensorID] = append(s.readings[sensorID], r)
	return nil
}

// QueryRange spoléhá na to, že pořadí vložení je zároveň pořadím času příjmu
// (jediný zapisovatel, monotónní hodiny).
func (s *MemoryStore) QueryRange(_ context.Context, sensorID string, start, end time.Time) ([]Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Reading, 0)
	for _, r := range s.readings[sensorID] {
		if InRange(r.ReceiptTime, start, end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) Latest(_ context.Context, sensorID string) (*Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs := s.readings[sensorID]
	if len(rs) == 0 {
		return nil, nil
	}
	latest := rs[len(rs)-1]
	return &latest, nil
}

func (s *MemoryStore) Close() error { return nil }
