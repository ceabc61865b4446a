package rooms

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"codeberg.org/algopatterns/collab/internal/auth"
	"codeberg.org/algopatterns/collab/internal/errors"
	"codeberg.org/algopatterns/collab/internal/logger"
	ws "codeberg.org/algopatterns/collab/internal/websocket"
)

const statusTimeout = 5 * time.Second

// lists rooms that currently have a running actor
func ListRoomsHandler(hub *ws.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		rooms := hub.Rooms()

		c.JSON(http.StatusOK, ListResponse{
			Rooms: rooms,
			Count: len(rooms),
		})
	}
}

// returns the read-only diagnostic view of one room
func GetRoomHandler(hub *ws.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		documentID := c.Param("documentId")
		if strings.TrimSpace(documentID) == "" {
			errors.BadRequest(c, "documentId is required", nil)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), statusTimeout)
		defer cancel()

		status, err := hub.Status(ctx, documentID)
		if err != nil {
			logger.ErrorErr(err, "failed to load room status", "document_id", documentID)
			errors.Unavailable(c, "room status is temporarily unavailable")
			return
		}

		if !status.Live && status.DocumentID == "" && status.BufferedUpdates == 0 {
			errors.NotFound(c, "room")
			return
		}

		if userID, ok := auth.GetUserID(c); ok {
			logger.Debug("room status requested", "document_id", documentID, "user_id", userID)
		}

		c.JSON(http.StatusOK, status)
	}
}
