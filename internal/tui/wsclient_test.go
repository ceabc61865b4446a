package tui

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiws "codeberg.org/algopatterns/collab/api/websocket"
	"codeberg.org/algopatterns/collab/internal/auth"
	"codeberg.org/algopatterns/collab/internal/config"
	ws "codeberg.org/algopatterns/collab/internal/websocket"
)

func startRoomServer(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := ws.NewHub(ws.Options{})
	router := gin.New()
	apiws.RegisterRoutes(router.Group("/api/v1"), hub, auth.NewResolver(""), apiws.NewUpgrader(ws.NewOriginChecker(nil, false)))

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		hub.Shutdown(ctx) //nolint:errcheck,gosec
		server.Close()
	})

	return "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws"
}

func nextFrame(t *testing.T, c *WSClient) Frame {
	t.Helper()

	select {
	case f, ok := <-c.frames:
		require.True(t, ok, "connection closed")
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return Frame{}
	}
}

func TestHandshakeURL(t *testing.T) {
	c := NewWSClient(config.WatchFlags{
		Endpoint:    "ws://localhost:8080/api/v1/ws",
		DocumentID:  "doc 1",
		UserID:      "A",
		DisplayName: "Ann",
	})

	u, err := c.handshakeURL()
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/api/v1/ws?displayName=Ann&documentId=doc+1&userId=A", u)
}

func TestWSClient_RelaysUpdates(t *testing.T) {
	endpoint := startRoomServer(t)
	ctx := context.Background()

	a := NewWSClient(config.WatchFlags{Endpoint: endpoint, DocumentID: "doc-1", UserID: "A"})
	require.NoError(t, a.Connect(ctx))
	t.Cleanup(a.Close)

	assert.Equal(t, typeInit, nextFrame(t, a).Type)
	assert.Equal(t, typeSync, nextFrame(t, a).Type)
	assert.True(t, a.IsConnected())

	b := NewWSClient(config.WatchFlags{Endpoint: endpoint, DocumentID: "doc-1", UserID: "B"})
	require.NoError(t, b.Connect(ctx))
	t.Cleanup(b.Close)

	nextFrame(t, b)
	nextFrame(t, b)
	assert.Equal(t, typePresence, nextFrame(t, a).Type)

	require.NoError(t, a.SendUpdate("hello"))

	f := nextFrame(t, b)
	assert.Equal(t, typeUpdate, f.Type)
	assert.Equal(t, "A", f.UserID)
	assert.Equal(t, "hello", updateText(f.Data))

	var body map[string]string
	require.NoError(t, json.Unmarshal(f.Data, &body))
	assert.Equal(t, map[string]string{"text": "hello"}, body)
}

func TestWSClient_ConnectFailure(t *testing.T) {
	endpoint := startRoomServer(t)

	c := NewWSClient(config.WatchFlags{Endpoint: endpoint, UserID: "A"})
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 400")
	assert.False(t, c.IsConnected())
}
