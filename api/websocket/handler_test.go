package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/algopatterns/collab/internal/auth"
	"codeberg.org/algopatterns/collab/internal/buffer"
	ws "codeberg.org/algopatterns/collab/internal/websocket"
)

func newTestServer(t *testing.T, secret string, opts ws.Options) (*httptest.Server, *ws.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := ws.NewHub(opts)
	router := gin.New()
	RegisterRoutes(router.Group("/api/v1"), hub, auth.NewResolver(secret), NewUpgrader(ws.NewOriginChecker(nil, false)))

	server := httptest.NewServer(router)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		hub.Shutdown(ctx) //nolint:errcheck,gosec
		server.Close()
	})

	return server, hub
}

func wsURL(server *httptest.Server, query url.Values) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws?" + query.Encode()
}

func dial(t *testing.T, server *httptest.Server, query url.Values) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(server, query), nil)
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck,gosec

	t.Cleanup(func() { conn.Close() }) //nolint:errcheck,gosec
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck,gosec

	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketHandler_JoinAndRelay(t *testing.T) {
	server, _ := newTestServer(t, "", ws.Options{})

	a := dial(t, server, url.Values{"documentId": {"doc-1"}, "userId": {"A"}, "displayName": {"Ann"}})

	init := readJSON(t, a)
	assert.Equal(t, "init", init["type"])
	data := init["data"].(map[string]any)
	assert.Equal(t, "doc-1", data["documentId"])
	assert.Equal(t, float64(1), data["sessionCount"])

	assert.Equal(t, "sync", readJSON(t, a)["type"])

	b := dial(t, server, url.Values{"documentId": {"doc-1"}, "userId": {"B"}})
	assert.Equal(t, "init", readJSON(t, b)["type"])
	assert.Equal(t, "sync", readJSON(t, b)["type"])
	assert.Equal(t, "presence", readJSON(t, a)["type"])

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"type":"update","data":{"x":1}}`)))

	update := readJSON(t, b)
	assert.Equal(t, "update", update["type"])
	assert.Equal(t, "A", update["userId"])
	assert.Equal(t, map[string]any{"x": float64(1)}, update["data"])
	assert.NotZero(t, update["timestamp"])

	require.NoError(t, b.WriteMessage(websocket.TextMessage, []byte(`not-json`)))

	errMsg := readJSON(t, b)
	assert.Equal(t, "error", errMsg["type"])
	assert.NotEmpty(t, errMsg["message"])
}

func TestWebSocketHandler_MissingFieldsRefusedBeforeUpgrade(t *testing.T) {
	server, hub := newTestServer(t, "", ws.Options{})

	for _, query := range []url.Values{
		{"userId": {"A"}},
		{"documentId": {"doc-1"}},
		{},
	} {
		resp, err := http.Get(server.URL + "/api/v1/ws?" + query.Encode())
		require.NoError(t, err)
		resp.Body.Close() //nolint:errcheck,gosec

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query.Encode())
	}

	assert.Equal(t, 0, hub.RoomCount())
}

func TestWebSocketHandler_TokenIdentity(t *testing.T) {
	const secret = "handler-test-secret"
	server, _ := newTestServer(t, secret, ws.Options{})

	token, err := auth.GenerateJWT(secret, "verified", "Verified User", time.Hour)
	require.NoError(t, err)

	conn := dial(t, server, url.Values{"documentId": {"doc-1"}, "token": {token}})

	init := readJSON(t, conn)
	participants := init["data"].(map[string]any)["participants"].([]any)
	require.Len(t, participants, 1)

	p := participants[0].(map[string]any)
	assert.Equal(t, "verified", p["userId"])
	assert.Equal(t, "Verified User", p["displayName"])
}

func TestWebSocketHandler_InvalidToken(t *testing.T) {
	server, _ := newTestServer(t, "handler-test-secret", ws.Options{})

	resp, err := http.Get(server.URL + "/api/v1/ws?documentId=doc-1&userId=A&token=bogus")
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck,gosec

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketHandler_IdentityMismatchClosesConnection(t *testing.T) {
	store := buffer.NewMemoryStore()
	require.NoError(t, store.BindDocument(context.Background(), "doc-1", "another-doc"))

	server, hub := newTestServer(t, "", ws.Options{Store: store})

	b := dial(t, server, url.Values{"documentId": {"doc-1"}, "userId": {"B"}})
	b.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck,gosec

	_, _, err := b.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)

	s, err := hub.Status(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 0, s.SessionCount)
}

func TestWebSocketHandler_CaseDistinctDocuments(t *testing.T) {
	server, hub := newTestServer(t, "", ws.Options{})

	upper := dial(t, server, url.Values{"documentId": {"Doc-1"}, "userId": {"A"}})
	assert.Equal(t, "init", readJSON(t, upper)["type"])
	readJSON(t, upper)

	lower := dial(t, server, url.Values{"documentId": {"doc-1"}, "userId": {"B"}})
	init := readJSON(t, lower)
	assert.Equal(t, "init", init["type"])
	assert.Equal(t, "doc-1", init["data"].(map[string]any)["documentId"])
	readJSON(t, lower)

	assert.Equal(t, 2, hub.RoomCount())
}

func TestCloseCode(t *testing.T) {
	assert.Equal(t, websocket.ClosePolicyViolation, closeCode(ws.ErrIdentityMismatch))
	assert.Equal(t, websocket.CloseServiceRestart, closeCode(ws.ErrHubClosed))
	assert.Equal(t, websocket.CloseTryAgainLater, closeCode(context.DeadlineExceeded))
	assert.Equal(t, websocket.CloseInternalServerErr, closeCode(json.Unmarshal([]byte("x"), &struct{}{})))
}
