package store

import (
	"context"
	"sync"
	"time"
)

// MemoryMarkerStore keeps markers in process. Used when Redis is not
// configured and in tests.
type MemoryMarkerStore struct {
	mu      sync.RWMutex
	markers map[string]time.Time
}

func NewMemoryMarkerStore() *MemoryMarkerStore {
	return &MemoryMarkerStore{markers: make(map[string]time.Time)}
}

func (s *MemoryMarkerStore) LastSeen(_ context.Context, baseID string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.markers[baseID]
	return at, ok, nil
}

func (s *MemoryMarkerStore) MarkSeen(_ context.Context, baseID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.markers[baseID]; ok && !at.After(cur) {
		return nil
	}
	s.markers[baseID] = at
	return nil
}

type MemoryChargedSet struct {
	mu     sync.RWMutex
	events map[string]map[string]struct{}
}

func NewMemoryChargedSet() *MemoryChargedSet {
	return &MemoryChargedSet{events: make(map[string]map[string]struct{})}
}

func (s *MemoryChargedSet) IsCharged(_ context.Context, userID, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.events[userID][eventID]
	return ok, nil
}

func (s *MemoryChargedSet) MarkCharged(_ context.Context, userID, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.events[userID]
	if !ok {
		set = make(map[string]struct{})
		s.events[userID] = set
	}
	set[eventID] = struct{}{}
	return nil
}
