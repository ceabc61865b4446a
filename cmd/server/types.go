package main

import (
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	"codeberg.org/algopatterns/collab/internal/auth"
	"codeberg.org/algopatterns/collab/internal/buffer"
	"codeberg.org/algopatterns/collab/internal/config"
	"codeberg.org/algopatterns/collab/internal/metrics"
	ws "codeberg.org/algopatterns/collab/internal/websocket"
)

// holds all dependencies and state for the collab server
type Server struct {
	config   *config.Config
	store    buffer.Store
	metrics  *metrics.Metrics
	resolver *auth.Resolver
	hub      *ws.Hub
	router   *gin.Engine

	// counts websocket handshakes per client IP
	connectLimiter *limiter.Limiter
}
