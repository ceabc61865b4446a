package websocket

import (
	"github.com/gin-gonic/gin"

	"codeberg.org/algopatterns/collab/internal/auth"
	ws "codeberg.org/algopatterns/collab/internal/websocket"
)

// mounts the collaboration endpoint; middleware runs before the upgrade (e.g. connect rate limit)
func RegisterRoutes(router *gin.RouterGroup, hub *ws.Hub, resolver *auth.Resolver, upgrader *Upgrader, middleware ...gin.HandlerFunc) {
	handlers := append([]gin.HandlerFunc{}, middleware...)
	handlers = append(handlers, WebSocketHandler(hub, resolver, upgrader))
	router.GET("/ws", handlers...)
}
