package buffer

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func update(n int) Event {
	return Event{
		Kind:      "update",
		UserID:    "user-1",
		Data:      json.RawMessage(fmt.Sprintf(`{"n":%d}`, n)),
		Timestamp: int64(1000 + n),
	}
}

func TestReplayBuffer_AppendBelowCapacity(t *testing.T) {
	b := NewReplayBuffer(MaxUpdates)

	for i := 0; i < 10; i++ {
		assert.False(t, b.Append(update(i)))
	}

	assert.Equal(t, 10, b.Len())

	events := b.Snapshot()
	require.Len(t, events, 10)
	assert.Equal(t, update(0), events[0])
	assert.Equal(t, update(9), events[9])
}

func TestReplayBuffer_EvictsOldestAtCapacity(t *testing.T) {
	b := NewReplayBuffer(MaxUpdates)

	for i := 0; i < MaxUpdates; i++ {
		assert.False(t, b.Append(update(i)))
	}

	// the 51st append drops the first
	assert.True(t, b.Append(update(MaxUpdates)))
	assert.Equal(t, MaxUpdates, b.Len())

	events := b.Snapshot()
	assert.Equal(t, update(1), events[0])
	assert.Equal(t, update(MaxUpdates), events[MaxUpdates-1])

	for i, e := range events {
		assert.Equal(t, update(i+1), e, "position %d", i)
	}
}

func TestReplayBuffer_SnapshotIsCopy(t *testing.T) {
	b := NewReplayBuffer(3)
	b.Append(update(1))

	events := b.Snapshot()
	events[0].UserID = "changed"

	assert.Equal(t, "user-1", b.Snapshot()[0].UserID)
}

func TestReplayBuffer_RestoreKeepsNewest(t *testing.T) {
	b := NewReplayBuffer(3)

	b.Restore([]Event{update(1), update(2), update(3), update(4), update(5)})

	assert.Equal(t, []Event{update(3), update(4), update(5)}, b.Snapshot())
}

func TestReplayBuffer_Reset(t *testing.T) {
	b := NewReplayBuffer(3)
	b.Append(update(1))
	b.Append(update(2))

	b.Reset()

	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Snapshot())
	assert.Equal(t, 3, b.Cap())
}

func TestNewReplayBuffer_DefaultsCapacity(t *testing.T) {
	assert.Equal(t, MaxUpdates, NewReplayBuffer(0).Cap())
}
