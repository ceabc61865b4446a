package buffer

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// maximum number of update events kept per room for late joiners
const MaxUpdates = 50

var (
	ErrStoreClosed      = errors.New("replay store closed")
	ErrUnsupportedStore = errors.New("unsupported replay store")
)

// one relayed collaboration signal; only updates are ever persisted
type Event struct {
	Kind      string          `json:"type"`
	UserID    string          `json:"userId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds
}

// the persisted state of one room
type Snapshot struct {
	DocumentID string
	Updates    []Event
	AlarmAt    time.Time // zero when no idle alarm is armed
}

// reports whether nothing is persisted for the room
func (s *Snapshot) Empty() bool {
	return s == nil || (s.DocumentID == "" && len(s.Updates) == 0 && s.AlarmAt.IsZero())
}

// persistence for room replay state. Implementations must be safe for use
// from many room goroutines at once; each room key is written by one room only.
type Store interface {
	// returns the persisted state, or an empty snapshot when nothing is stored
	Load(ctx context.Context, roomKey string) (*Snapshot, error)

	BindDocument(ctx context.Context, roomKey, documentID string) error

	// replaces the stored replay log with updates (already bounded by the caller)
	SaveUpdates(ctx context.Context, roomKey string, updates []Event) error

	SetAlarm(ctx context.Context, roomKey string, at time.Time) error
	ClearAlarm(ctx context.Context, roomKey string) error

	// returns every armed alarm keyed by room
	PendingAlarms(ctx context.Context) (map[string]time.Time, error)

	// returns the key of every room with any persisted state
	PersistedRooms(ctx context.Context) ([]string, error)

	// removes the document binding, replay log and alarm together
	Purge(ctx context.Context, roomKey string) error

	Close() error
}

// redis key patterns
const (
	// collab:room:{roomKey}:document - bound document ID
	keyRoomDocument = "collab:room:%s:document"

	// collab:room:{roomKey}:updates - replay log as JSON list
	keyRoomUpdates = "collab:room:%s:updates"

	// SCAN pattern and prefix matching both per-room keys
	keyRoomPattern = "collab:room:*"
	keyRoomPrefix  = "collab:room:"

	// collab:alarms - sorted set of room keys scored by alarm time (unix ms)
	keyRoomAlarms = "collab:alarms"
)
