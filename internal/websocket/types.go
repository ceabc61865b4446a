package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"codeberg.org/algopatterns/collab/internal/buffer"
	"codeberg.org/algopatterns/collab/internal/metrics"
)

// message type constants for websocket communication
const (
	// is sent by a client when it edits the document structure
	TypeUpdate = "update"

	// is sent by a client when its cursor moves
	TypeCursor = "cursor"

	// is sent by a client when its selection changes
	TypeSelection = "selection"

	// is sent by clients to keep the connection alive
	TypePing = "ping"

	// is sent by server in response to ping
	TypePong = "pong"

	// is sent to a connecting client with the room roster
	TypeInit = "init"

	// is sent to a connecting client right after init with buffered updates
	TypeSync = "sync"

	// is sent when the participant list changes
	TypePresence = "presence"

	// is sent when an error occurs
	TypeError = "error"

	// is sent by server before shutdown
	TypeServerShutdown = "server_shutdown"
)

// client connection constants
const (
	// time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// defaults used when Options leaves a field unset
	defaultMaxMessageSize    = 512 * 1024 // 512 KB
	defaultSendBufferSize    = 256
	defaultMessageBurst      = 120
	defaultIdleThreshold     = 30 * time.Minute
	defaultStoreTimeout      = 5 * time.Second

	// room inbox depth before senders block
	roomInboxSize = 256
)

// errors
var (
	ErrMissingIdentity   = errors.New("userId and documentId are required")
	ErrIdentityMismatch  = errors.New("room is bound to a different document")
	ErrConnectionClosed  = errors.New("connection closed")
	ErrRoomNotFound      = errors.New("room not found")
	ErrHubClosed         = errors.New("hub is shutting down")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// client to room envelope
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// room to client envelope; unused fields are omitted per message type
type Outbound struct {
	Type      string `json:"type"`
	UserID    string `json:"userId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// one entry of a room roster
type Participant struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// contains the room roster sent to a connecting client
type InitPayload struct {
	DocumentID   string        `json:"documentId"`
	Participants []Participant `json:"participants"`
	SessionCount int           `json:"sessionCount"`
}

// contains buffered updates for a late joiner, oldest first
type SyncPayload struct {
	Updates []buffer.Event `json:"updates"`
}

// contains the current roster
type PresencePayload struct {
	Participants []Participant `json:"participants"`
	SessionCount int           `json:"sessionCount"`
}

// contains information about server shutdown
type ServerShutdownPayload struct {
	Reason string `json:"reason"`
}

// read-only diagnostic view of a room
type Status struct {
	DocumentID            string        `json:"documentId"`
	SessionCount          int           `json:"sessionCount"`
	Participants          []Participant `json:"participants"`
	LastActivityTimestamp int64         `json:"lastActivityTimestamp"` // unix milliseconds
	BufferedUpdates       int           `json:"bufferedUpdates"`
	IdleAlarmAt           int64         `json:"idleAlarmAt,omitempty"` // unix milliseconds
	Reaper                string        `json:"reaper"`
	Live                  bool          `json:"live"`
}

// live room entry returned by Hub.Rooms
type RoomSummary struct {
	DocumentID   string `json:"documentId"`
	SessionCount int    `json:"sessionCount"`
}

// tunables for a Hub; zero values fall back to defaults
type Options struct {
	Store             buffer.Store
	Metrics           *metrics.Metrics
	IdleThreshold     time.Duration
	StoreTimeout      time.Duration
	MaxMessageSize    int64
	SendBufferSize    int
	// zero disables inbound frame limiting
	MessagesPerSecond float64
	MessageBurst      int
}

// represents a websocket client connection (one session in a room)
type Client struct {
	// unique identifier for this client, used as the connection handle
	ID string

	// document this client is collaborating on
	DocumentID string

	// user ID resolved before the connection reached the hub
	UserID string

	// display name for this client
	DisplayName string

	// IP address of the client (for logging)
	IPAddress string

	// websocket connection
	conn *websocket.Conn

	// hub reference for routing inbound frames
	hub *Hub

	// buffered channel of outbound messages
	send chan []byte

	// inbound frame limiter; nil disables limiting
	limiter *rate.Limiter

	// mutex for thread-safe operations
	mu sync.RWMutex

	// flag indicating if client is closed
	closed bool
}

// maintains one room actor per document and routes events to it
type Hub struct {
	opts Options

	// live rooms by room key
	rooms map[string]*Room

	// guards rooms, closed and every Room.pending counter
	mu sync.Mutex

	// flag indicating the hub no longer accepts events
	closed bool

	// tracks running room goroutines
	wg sync.WaitGroup
}
