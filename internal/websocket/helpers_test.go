package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"codeberg.org/algopatterns/collab/internal/buffer"
)

// decoded outbound frame as a client sees it
type frame struct {
	Type      string          `json:"type"`
	UserID    string          `json:"userId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	Code      string          `json:"code"`
	Message   string          `json:"message"`
}

func newTestHub(t *testing.T, opts Options) *Hub {
	t.Helper()

	if opts.Store == nil {
		opts.Store = buffer.NewMemoryStore()
	}

	hub := NewHub(opts)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		hub.Shutdown(ctx) //nolint:errcheck,gosec
	})

	return hub
}

func newTestClient(id, documentID, userID string) *Client {
	return &Client{
		ID:          id,
		DocumentID:  documentID,
		UserID:      userID,
		DisplayName: "User " + userID,
		send:        make(chan []byte, 256),
	}
}

func join(t *testing.T, hub *Hub, c *Client) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, hub.Join(ctx, c))
}

// waits for the next frame queued for c
func readFrame(t *testing.T, c *Client) frame {
	t.Helper()

	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "send channel closed")

		var f frame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f

	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for frame for %s", c.ID)
		return frame{}
	}
}

func expectNoFrame(t *testing.T, c *Client) {
	t.Helper()

	select {
	case raw, ok := <-c.send:
		if ok {
			t.Fatalf("unexpected frame for %s: %s", c.ID, raw)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

// consumes the init and sync frames every joiner receives
func drainJoin(t *testing.T, c *Client) (InitPayload, SyncPayload) {
	t.Helper()

	initFrame := readFrame(t, c)
	require.Equal(t, TypeInit, initFrame.Type)

	var init InitPayload
	require.NoError(t, json.Unmarshal(initFrame.Data, &init))

	syncFrame := readFrame(t, c)
	require.Equal(t, TypeSync, syncFrame.Type)

	var sync SyncPayload
	require.NoError(t, json.Unmarshal(syncFrame.Data, &sync))

	return init, sync
}

func presenceOf(t *testing.T, f frame) PresencePayload {
	t.Helper()

	require.Equal(t, TypePresence, f.Type)

	var p PresencePayload
	require.NoError(t, json.Unmarshal(f.Data, &p))
	return p
}

func status(t *testing.T, hub *Hub, documentID string) Status {
	t.Helper()

	s, err := hub.Status(context.Background(), documentID)
	require.NoError(t, err)
	return s
}
