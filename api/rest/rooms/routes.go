package rooms

import (
	"github.com/gin-gonic/gin"

	"codeberg.org/algopatterns/collab/internal/auth"
	ws "codeberg.org/algopatterns/collab/internal/websocket"
)

func RegisterRoutes(router *gin.RouterGroup, hub *ws.Hub, resolver *auth.Resolver) {
	rooms := router.Group("/rooms", resolver.Middleware())
	rooms.GET("", ListRoomsHandler(hub))
	rooms.GET("/:documentId", GetRoomHandler(hub))
}
