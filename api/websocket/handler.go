package websocket

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"codeberg.org/algopatterns/collab/internal/auth"
	"codeberg.org/algopatterns/collab/internal/errors"
	"codeberg.org/algopatterns/collab/internal/logger"
	ws "codeberg.org/algopatterns/collab/internal/websocket"
)

// time allowed for a room to accept a new session
const joinTimeout = 10 * time.Second

type Upgrader = websocket.Upgrader

// builds the upgrader used for collaboration connections
func NewUpgrader(checkOrigin func(r *http.Request) bool) *Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}
}

// handles WebSocket connections for real-time collaboration on one document
func WebSocketHandler(hub *ws.Hub, resolver *auth.Resolver, upgrader *Upgrader) gin.HandlerFunc {
	return func(c *gin.Context) {
		var params ConnectParams
		if err := c.ShouldBindQuery(&params); err != nil {
			errors.BadRequest(c, "documentId and userId are required", err)
			return
		}

		identity, err := resolver.Resolve(auth.Handshake{
			DocumentID:  params.DocumentID,
			UserID:      params.UserID,
			DisplayName: params.DisplayName,
			Token:       params.Token,
		})

		switch {
		case stderrors.Is(err, auth.ErrInvalidToken):
			errors.Unauthorized(c, "invalid or expired token")
			return
		case err != nil:
			errors.BadRequest(c, "documentId and userId are required", err)
			return
		}

		clientID, err := ws.GenerateClientID()
		if err != nil {
			errors.InternalError(c, "failed to generate client ID", err)
			return
		}

		ipAddress := c.ClientIP()

		// upgrade HTTP connection to WebSocket
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.ErrorErr(err, "failed to upgrade connection",
				"document_id", params.DocumentID,
				"ip", ipAddress,
			)

			return
		}

		client := ws.NewClient(clientID, params.DocumentID, identity.UserID, identity.DisplayName, ipAddress, conn, hub)

		log := logger.With(
			"client_id", clientID,
			"document_id", params.DocumentID,
			"user_id", identity.UserID,
		)

		ctx, cancel := context.WithTimeout(logger.WithContext(context.Background(), log), joinTimeout)
		defer cancel()

		if err := hub.Join(ctx, client); err != nil {
			log.Warn("websocket connection refused by room", "error", err)

			// a join that timed out may still have registered the client
			hub.Leave(client)
			client.Reject(closeCode(err), err.Error())
			return
		}

		go client.WritePump()
		go client.ReadPump()

		log.Info("websocket connection established",
			"authenticated", identity.Authenticated,
			"ip", ipAddress,
		)
	}
}

// maps a join failure to a websocket close code
func closeCode(err error) int {
	switch {
	case stderrors.Is(err, ws.ErrIdentityMismatch), stderrors.Is(err, ws.ErrMissingIdentity):
		return websocket.ClosePolicyViolation
	case stderrors.Is(err, ws.ErrHubClosed):
		return websocket.CloseServiceRestart
	case stderrors.Is(err, context.DeadlineExceeded):
		return websocket.CloseTryAgainLater
	default:
		return websocket.CloseInternalServerErr
	}
}
