package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"codeberg.org/algopatterns/collab/internal/config"
)

// creates a client for the room named by flags
func NewWSClient(flags config.WatchFlags) *WSClient {
	return &WSClient{
		flags:  flags,
		frames: make(chan Frame, frameBacklog),
		done:   make(chan struct{}),
	}
}

// builds the handshake URL with identity in the query string
func (c *WSClient) handshakeURL() (string, error) {
	u, err := url.Parse(c.flags.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}

	q := u.Query()
	q.Set("documentId", c.flags.DocumentID)

	if c.flags.UserID != "" {
		q.Set("userId", c.flags.UserID)
	}

	if c.flags.DisplayName != "" {
		q.Set("displayName", c.flags.DisplayName)
	}

	if c.flags.Token != "" {
		q.Set("token", c.flags.Token)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// establishes the websocket connection and starts the pumps
func (c *WSClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	endpoint, err := c.handshakeURL()
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}

	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to connect (HTTP %d): %w", resp.StatusCode, err)
		}

		return fmt.Errorf("failed to connect: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.conn = conn
	c.connected = true

	go c.readPump()
	go c.pingPump()

	return nil
}

// reads frames into the backlog until the connection ends
func (c *WSClient) readPump() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()

		c.conn.Close() //nolint:errcheck,gosec
		close(c.frames)
	}()

	for {
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck,gosec

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}

		select {
		case c.frames <- frame:
		case <-c.done:
			return
		}
	}
}

// keeps the connection alive with both control pings and protocol pings
func (c *WSClient) pingPump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}

			if err := c.send(Frame{Type: typePing}); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck,gosec
	return c.conn.WriteMessage(messageType, data)
}

func (c *WSClient) send(frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	return c.write(websocket.TextMessage, data)
}

// relays a text edit to the room
func (c *WSClient) SendUpdate(text string) error {
	data, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal update: %w", err)
	}

	return c.send(Frame{Type: typeUpdate, Data: data})
}

// returns whether the client is connected
func (c *WSClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// closes the websocket connection
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}

	if c.conn != nil {
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage, //nolint:errcheck,gosec
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()

		c.conn.Close() //nolint:errcheck,gosec
	}

	c.connected = false
}

// returns a tea.Cmd that connects to the room
func (c *WSClient) ConnectCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()

		if err := c.Connect(ctx); err != nil {
			return WSConnectErrorMsg{err: err}
		}

		return WSConnectedMsg{}
	}
}

// returns a tea.Cmd that waits for the next frame
func (c *WSClient) NextFrameCmd() tea.Cmd {
	return func() tea.Msg {
		frame, ok := <-c.frames
		if !ok {
			c.mu.Lock()
			err := c.err
			c.mu.Unlock()

			return WSDisconnectedMsg{err: err}
		}

		return FrameMsg{frame: frame}
	}
}

// returns a tea.Cmd that sends an update
func (c *WSClient) SendUpdateCmd(text string) tea.Cmd {
	return func() tea.Msg {
		if err := c.SendUpdate(text); err != nil {
			return SendErrorMsg{err: err}
		}

		return nil
	}
}
