package buffer

// bounded FIFO of recent update events. Not safe for concurrent use; a room
// owns its buffer and touches it only from its own goroutine.
type ReplayBuffer struct {
	events   []Event
	capacity int
}

// creates a replay buffer holding at most capacity events
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = MaxUpdates
	}

	return &ReplayBuffer{
		events:   make([]Event, 0, capacity),
		capacity: capacity,
	}
}

// appends an event, evicting the oldest one when full
func (b *ReplayBuffer) Append(e Event) (evicted bool) {
	if len(b.events) == b.capacity {
		copy(b.events, b.events[1:])
		b.events[len(b.events)-1] = e
		return true
	}

	b.events = append(b.events, e)
	return false
}

// returns a copy of the buffered events, oldest first
func (b *ReplayBuffer) Snapshot() []Event {
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// replaces the contents, keeping only the newest capacity events
func (b *ReplayBuffer) Restore(events []Event) {
	if len(events) > b.capacity {
		events = events[len(events)-b.capacity:]
	}

	b.events = b.events[:0]
	b.events = append(b.events, events...)
}

func (b *ReplayBuffer) Reset() {
	b.events = b.events[:0]
}

func (b *ReplayBuffer) Len() int {
	return len(b.events)
}

func (b *ReplayBuffer) Cap() int {
	return b.capacity
}
