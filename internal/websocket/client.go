package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"codeberg.org/algopatterns/collab/internal/errors"
	"codeberg.org/algopatterns/collab/internal/logger"
)

// creates a new webSocket client connection for documentID
func NewClient(id, documentID, userID, displayName, ipAddress string, conn *websocket.Conn, hub *Hub) *Client {
	opts := hub.opts

	if displayName == "" {
		displayName = userID
	}

	c := &Client{
		ID:          id,
		DocumentID:  documentID,
		UserID:      userID,
		DisplayName: displayName,
		IPAddress:   ipAddress,
		conn:        conn,
		hub:         hub,
		send:        make(chan []byte, opts.SendBufferSize),
	}

	if opts.MessagesPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.MessagesPerSecond), opts.MessageBurst)
	}

	return c
}

// reads frames from the webSocket connection and hands them to the room
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Leave(c)
		c.conn.Close() //nolint:errcheck,gosec // G104: defer cleanup
	}()

	c.conn.SetReadLimit(c.hub.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck,gosec // G104: websocket setup
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck,gosec // G104: pong handler
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket error",
					"client_id", c.ID,
					"document_id", c.DocumentID,
					"error", err,
				)
			}

			break
		}

		if !c.allowMessage() {
			c.SendError(errors.CodeTooManyRequests, ErrRateLimitExceeded.Error())
			continue
		}

		c.hub.Deliver(c, frame)
	}
}

// writes queued messages to the webSocket connection, one frame each
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck,gosec // G104: defer cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck,gosec // G104: websocket timing

			if !ok {
				// room closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck,gosec // G104: close message
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck,gosec // G104: websocket ping timing

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// encodes and queues a message for the client
func (c *Client) Send(msg *Outbound) error {
	frame, err := Encode(msg)
	if err != nil {
		return err
	}

	return c.SendRaw(frame)
}

// queues an encoded frame; a full queue closes the client
func (c *Client) SendRaw(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.send <- frame:
		return nil
	default:
	}

	// channel is full, drop the client
	go c.sendBufferOverflowError()

	return ErrConnectionClosed
}

// tells the peer why it is being dropped; control frames may be written
// concurrently with the write pump
func (c *Client) sendBufferOverflowError() {
	c.Close()

	if c.conn == nil {
		return
	}

	deadline := time.Now().Add(2 * time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "message buffer full, please reconnect")
	c.conn.WriteControl(websocket.CloseMessage, msg, deadline) //nolint:errcheck,gosec
}

// sends an error message to the client
func (c *Client) SendError(code, message string) {
	if err := c.Send(NewError(code, errors.SanitizeString(message))); err != nil {
		logger.Debug("failed to deliver error message",
			"client_id", c.ID,
			"document_id", c.DocumentID,
			"error_code", code,
		)
	}
}

// closes the client's outbound channel; the write pump then closes the socket
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// checks if the client is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.closed
}

// sends a close frame with code and reason, then closes the socket
func (c *Client) Reject(code int, reason string) {
	c.Close()

	if c.conn == nil {
		return
	}

	deadline := time.Now().Add(writeWait)
	c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline) //nolint:errcheck,gosec
	c.conn.Close()                                                                                  //nolint:errcheck,gosec
}

// checks the inbound frame limiter
func (c *Client) allowMessage() bool {
	if c.limiter == nil {
		return true
	}

	return c.limiter.Allow()
}
