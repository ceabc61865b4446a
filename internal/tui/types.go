package tui

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/gorilla/websocket"

	"codeberg.org/algopatterns/collab/internal/config"
)

const (
	typeUpdate         = "update"
	typeCursor         = "cursor"
	typeSelection      = "selection"
	typePing           = "ping"
	typePong           = "pong"
	typeInit           = "init"
	typeSync           = "sync"
	typePresence       = "presence"
	typeError          = "error"
	typeServerShutdown = "server_shutdown"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	dialTimeout  = 10 * time.Second
	frameBacklog = 64
	maxLogLines  = 500
)

// one server frame as seen by the client
type Frame struct {
	Type      string          `json:"type"`
	UserID    string          `json:"userId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Code      string          `json:"code,omitempty"`
	Message   string          `json:"message,omitempty"`
}

type participant struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type initData struct {
	DocumentID   string        `json:"documentId"`
	Participants []participant `json:"participants"`
	SessionCount int           `json:"sessionCount"`
}

type syncData struct {
	Updates []Frame `json:"updates"`
}

type presenceData struct {
	Participants []participant `json:"participants"`
}

type shutdownData struct {
	Reason string `json:"reason"`
}

// websocket connection to one room
type WSClient struct {
	flags  config.WatchFlags
	conn   *websocket.Conn
	frames chan Frame
	done   chan struct{}

	// gorilla connections support one concurrent writer
	writeMu sync.Mutex

	mu        sync.Mutex
	connected bool
	err       error
}

// roomwatch application model
type Model struct {
	client       *WSClient
	input        textinput.Model
	viewport     viewport.Model
	lines        []string
	participants []participant
	documentID   string
	width        int
	height       int
	ready        bool
	connected    bool
	err          error
}

// sent once the websocket handshake succeeds
type WSConnectedMsg struct{}

// sent when the handshake fails
type WSConnectErrorMsg struct {
	err error
}

// carries one frame read from the room
type FrameMsg struct {
	frame Frame
}

// sent when the read loop ends
type WSDisconnectedMsg struct {
	err error
}

// sent after a local send attempt fails
type SendErrorMsg struct {
	err error
}
