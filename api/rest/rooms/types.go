package rooms

import ws "codeberg.org/algopatterns/collab/internal/websocket"

type ListResponse struct {
	Rooms []ws.RoomSummary `json:"rooms"`
	Count int              `json:"count"`
}
