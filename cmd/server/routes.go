package main

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"codeberg.org/algopatterns/collab/api/rest/health"
	"codeberg.org/algopatterns/collab/api/rest/rooms"
	"codeberg.org/algopatterns/collab/api/websocket"
	ws "codeberg.org/algopatterns/collab/internal/websocket"
)

// sets up all API routes and middleware
func RegisterRoutes(router *gin.Engine, server *Server) {
	router.Use(CORSMiddleware(server.config.AllowedOrigins))
	router.GET("/health", health.Handler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")

	{
		v1.GET("/ping", health.PingHandler)

		rooms.RegisterRoutes(v1, server.hub, server.resolver)

		upgrader := websocket.NewUpgrader(ws.NewOriginChecker(server.config.AllowedOrigins, server.config.IsProduction()))
		websocket.RegisterRoutes(v1, server.hub, server.resolver, upgrader,
			ConnectRateLimit(server.connectLimiter, server.metrics))
	}
}
