package rooms

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/algopatterns/collab/internal/auth"
	"codeberg.org/algopatterns/collab/internal/buffer"
	ws "codeberg.org/algopatterns/collab/internal/websocket"
)

func newRouter(t *testing.T, store buffer.Store) (*gin.Engine, *ws.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := ws.NewHub(ws.Options{Store: store})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		hub.Shutdown(ctx) //nolint:errcheck,gosec
	})

	router := gin.New()
	RegisterRoutes(router.Group("/api/v1"), hub, auth.NewResolver(""))

	return router, hub
}

func TestListRoomsHandler_Empty(t *testing.T) {
	router, _ := newRouter(t, buffer.NewMemoryStore())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"rooms":[],"count":0}`, w.Body.String())
}

func TestGetRoomHandler_FromStore(t *testing.T) {
	ctx := context.Background()
	store := buffer.NewMemoryStore()
	require.NoError(t, store.BindDocument(ctx, "doc-1", "doc-1"))
	require.NoError(t, store.SaveUpdates(ctx, "doc-1", []buffer.Event{
		{Kind: "update", UserID: "A", Data: json.RawMessage(`{"x":1}`), Timestamp: 42},
	}))

	router, _ := newRouter(t, store)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/rooms/doc-1", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var status ws.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "doc-1", status.DocumentID)
	assert.Equal(t, 0, status.SessionCount)
	assert.Equal(t, 1, status.BufferedUpdates)
	assert.Equal(t, int64(42), status.LastActivityTimestamp)
	assert.False(t, status.Live)
}

func TestGetRoomHandler_UnknownRoom(t *testing.T) {
	router, _ := newRouter(t, buffer.NewMemoryStore())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/rooms/nobody-here", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "room not found")
}

// fails every read
type unreachableStore struct {
	*buffer.MemoryStore
}

func (s *unreachableStore) Load(context.Context, string) (*buffer.Snapshot, error) {
	return nil, stderrors.New("dial tcp: connection refused")
}

func TestGetRoomHandler_StoreUnavailable(t *testing.T) {
	router, _ := newRouter(t, &unreachableStore{buffer.NewMemoryStore()})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/rooms/doc-1", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unavailable")
}

func TestGetRoomHandler_RequiresTokenWhenSecretSet(t *testing.T) {
	const secret = "rooms-test-secret"
	gin.SetMode(gin.TestMode)

	ctx := context.Background()
	store := buffer.NewMemoryStore()
	require.NoError(t, store.BindDocument(ctx, "doc-1", "doc-1"))

	hub := ws.NewHub(ws.Options{Store: store})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		hub.Shutdown(ctx) //nolint:errcheck,gosec
	})

	router := gin.New()
	RegisterRoutes(router.Group("/api/v1"), hub, auth.NewResolver(secret))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/rooms/doc-1", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := auth.GenerateJWT(secret, "ops", "Ops", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms/doc-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
