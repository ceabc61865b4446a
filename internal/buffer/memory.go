package buffer

import (
	"context"
	"sync"
	"time"
)

// implements Store in process memory; state does not survive restarts
type MemoryStore struct {
	mu     sync.RWMutex
	rooms  map[string]*Snapshot
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]*Snapshot)}
}

func (s *MemoryStore) Load(_ context.Context, roomKey string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	snap, ok := s.rooms[roomKey]
	if !ok {
		return &Snapshot{}, nil
	}

	return &Snapshot{
		DocumentID: snap.DocumentID,
		Updates:    cloneEvents(snap.Updates),
		AlarmAt:    snap.AlarmAt,
	}, nil
}

func (s *MemoryStore) BindDocument(_ context.Context, roomKey, documentID string) error {
	return s.update(roomKey, func(snap *Snapshot) {
		snap.DocumentID = documentID
	})
}

func (s *MemoryStore) SaveUpdates(_ context.Context, roomKey string, updates []Event) error {
	return s.update(roomKey, func(snap *Snapshot) {
		snap.Updates = cloneEvents(updates)
	})
}

func (s *MemoryStore) SetAlarm(_ context.Context, roomKey string, at time.Time) error {
	return s.update(roomKey, func(snap *Snapshot) {
		snap.AlarmAt = at
	})
}

func (s *MemoryStore) ClearAlarm(_ context.Context, roomKey string) error {
	return s.update(roomKey, func(snap *Snapshot) {
		snap.AlarmAt = time.Time{}
	})
}

func (s *MemoryStore) PendingAlarms(_ context.Context) (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	alarms := make(map[string]time.Time)

	for key, snap := range s.rooms {
		if !snap.AlarmAt.IsZero() {
			alarms[key] = snap.AlarmAt
		}
	}

	return alarms, nil
}

func (s *MemoryStore) PersistedRooms(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	keys := make([]string, 0, len(s.rooms))
	for key := range s.rooms {
		keys = append(keys, key)
	}

	return keys, nil
}

func (s *MemoryStore) Purge(_ context.Context, roomKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	delete(s.rooms, roomKey)
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func (s *MemoryStore) update(roomKey string, fn func(snap *Snapshot)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	snap, ok := s.rooms[roomKey]
	if !ok {
		snap = &Snapshot{}
		s.rooms[roomKey] = snap
	}

	fn(snap)

	if snap.Empty() {
		delete(s.rooms, roomKey)
	}

	return nil
}

func cloneEvents(events []Event) []Event {
	if len(events) == 0 {
		return nil
	}

	out := make([]Event, len(events))
	copy(out, events)
	return out
}
