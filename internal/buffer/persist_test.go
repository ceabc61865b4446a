package buffer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fails the first n writes, then delegates
type flakyStore struct {
	*MemoryStore
	failures int
	calls    int
}

func (s *flakyStore) SaveUpdates(ctx context.Context, roomKey string, updates []Event) error {
	s.calls++
	if s.failures > 0 {
		s.failures--
		return errors.New("connection reset")
	}

	return s.MemoryStore.SaveUpdates(ctx, roomKey, updates)
}

func TestPersister_RetriesOnce(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore(), failures: 1}
	p := NewPersister(store, "room", 0)

	require.NoError(t, p.SaveUpdates([]Event{update(1)}))
	assert.Equal(t, 2, store.calls)

	snap, err := p.Load()
	require.NoError(t, err)
	assert.Len(t, snap.Updates, 1)
}

func TestPersister_GivesUpAfterRetry(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore(), failures: 5}
	p := NewPersister(store, "room", 0)

	err := p.SaveUpdates([]Event{update(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save updates failed after retry")
	assert.Equal(t, 2, store.calls)
}
