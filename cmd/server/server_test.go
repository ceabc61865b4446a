package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/algopatterns/collab/internal/buffer"
)

func TestNewConnectLimiter_InvalidRate(t *testing.T) {
	_, err := newConnectLimiter("lots", buffer.NewMemoryStore())
	require.Error(t, err)
}

func TestConnectRateLimit_RejectsBeyondRate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	l, err := newConnectLimiter("2-M", buffer.NewMemoryStore())
	require.NoError(t, err)

	router := gin.New()
	router.GET("/ws", ConnectRateLimit(l, nil), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestConnectLimiter_SeparateClients(t *testing.T) {
	l, err := newConnectLimiter("1-H", buffer.NewMemoryStore())
	require.NoError(t, err)

	ctx := context.Background()

	first, err := l.Get(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, first.Reached)

	other, err := l.Get(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.False(t, other.Reached)

	again, err := l.Get(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, again.Reached)

}

func TestCORSMiddleware_AllowsConfiguredOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(CORSMiddleware([]string{"https://collab.example"}))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://collab.example")
	router.ServeHTTP(w, req)

	assert.Equal(t, "https://collab.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
