package websocket

import (
	"context"
	"fmt"
	"sort"

	"codeberg.org/algopatterns/collab/internal/buffer"
	"codeberg.org/algopatterns/collab/internal/logger"
)

func NewHub(opts Options) *Hub {
	if opts.Store == nil {
		opts.Store = buffer.NewMemoryStore()
	}

	if opts.IdleThreshold <= 0 {
		opts.IdleThreshold = defaultIdleThreshold
	}

	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}

	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}

	if opts.SendBufferSize <= 0 {
		opts.SendBufferSize = defaultSendBufferSize
	}

	if opts.MessagesPerSecond < 0 {
		opts.MessagesPerSecond = 0
	}

	if opts.MessagesPerSecond > 0 && opts.MessageBurst <= 0 {
		opts.MessageBurst = defaultMessageBurst
	}

	return &Hub{
		opts:  opts,
		rooms: make(map[string]*Room),
	}
}

// registers client with the room for its document and waits for init to be queued
func (h *Hub) Join(ctx context.Context, client *Client) error {
	if client.UserID == "" || client.DocumentID == "" {
		return ErrMissingIdentity
	}

	reply := make(chan error, 1)

	room, err := h.dispatch(ctx, client.DocumentID, connectEvent{client: client, reply: reply}, true)
	if err != nil {
		return err
	}

	select {
	case err := <-reply:
		return err
	case <-room.done:
		return ErrHubClosed
	case <-ctx.Done():
		// the connect event may already be applied; undo it behind the connect
		logger.FromContext(ctx).Debug("join abandoned, removing client", "error", ctx.Err())
		h.Leave(client)
		return ctx.Err()
	}
}

// removes client from its room
func (h *Hub) Leave(client *Client) {
	_, err := h.dispatch(context.Background(), client.DocumentID, disconnectEvent{client: client}, false)
	if err != nil {
		logger.Debug("leave ignored", "client_id", client.ID, "document_id", client.DocumentID, "error", err)
	}
}

// hands an inbound frame to the client's room
func (h *Hub) Deliver(client *Client, raw []byte) {
	_, err := h.dispatch(context.Background(), client.DocumentID, messageEvent{client: client, raw: raw}, false)
	if err != nil {
		logger.Debug("message dropped", "client_id", client.ID, "document_id", client.DocumentID, "error", err)
	}
}

// returns the diagnostic view of a room, reading the store when no room is live
func (h *Hub) Status(ctx context.Context, documentID string) (Status, error) {
	key := documentID
	reply := make(chan Status, 1)

	room, err := h.dispatch(ctx, key, statusEvent{reply: reply}, false)
	if err == nil {
		select {
		case s := <-reply:
			return s, nil
		case <-room.done:
		case <-ctx.Done():
			return Status{}, ctx.Err()
		}
	}

	return h.storedStatus(ctx, key)
}

func (h *Hub) storedStatus(ctx context.Context, key string) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, h.opts.StoreTimeout)
	defer cancel()

	snap, err := h.opts.Store.Load(ctx, key)
	if err != nil {
		return Status{}, fmt.Errorf("failed to load room status: %w", err)
	}

	s := Status{
		DocumentID:      snap.DocumentID,
		Participants:    []Participant{},
		BufferedUpdates: len(snap.Updates),
		Reaper:          reaperDisarmed,
	}

	if n := len(snap.Updates); n > 0 {
		s.LastActivityTimestamp = snap.Updates[n-1].Timestamp
	}

	if !snap.AlarmAt.IsZero() {
		s.IdleAlarmAt = snap.AlarmAt.UnixMilli()
		s.Reaper = reaperArmed
		s.LastActivityTimestamp = snap.AlarmAt.Add(-h.opts.IdleThreshold).UnixMilli()
	}

	return s, nil
}

// lists live rooms sorted by key
func (h *Hub) Rooms() []RoomSummary {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms := make([]RoomSummary, 0, len(h.rooms))

	for key, room := range h.rooms {
		rooms = append(rooms, RoomSummary{
			DocumentID:   key,
			SessionCount: int(room.sessionCount.Load()),
		})
	}

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].DocumentID < rooms[j].DocumentID
	})

	return rooms
}

// starts a room for every room with persisted state so evictions survive
// restarts. Rooms that were live when the process stopped have no alarm; their
// reaper is armed from the moment they load.
func (h *Hub) RestoreAlarms(ctx context.Context) (int, error) {
	keys, err := h.opts.Store.PersistedRooms(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list persisted rooms: %w", err)
	}

	alarms, err := h.opts.Store.PendingAlarms(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending alarms: %w", err)
	}

	restored := 0

	for _, key := range keys {
		if _, armed := alarms[key]; !armed {
			logger.Debug("rescheduling room without idle alarm", "room", key)
		}

		if _, err := h.dispatch(ctx, key, restoreEvent{}, true); err != nil {
			return restored, fmt.Errorf("failed to restore room %s: %w", key, err)
		}
		restored++
	}

	return restored, nil
}

// stops accepting events, tells every session the server is going away and
// waits for rooms to stop
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()

	if h.closed {
		h.mu.Unlock()
		return nil
	}

	h.closed = true

	rooms := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		room.pending++
		rooms = append(rooms, room)
	}

	h.mu.Unlock()

	logger.Info("notifying rooms of server shutdown", "rooms", len(rooms))

	for _, room := range rooms {
		h.send(ctx, room, shutdownEvent{reason: "server is shutting down for maintenance"}) //nolint:errcheck,gosec // waited on below
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("rooms did not stop: %w", ctx.Err())
	}

	h.mu.Lock()
	h.rooms = make(map[string]*Room)
	h.mu.Unlock()

	return nil
}

// routes ev to the room for key, starting it when create is set
func (h *Hub) dispatch(ctx context.Context, key string, ev any, create bool) (*Room, error) {
	h.mu.Lock()

	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}

	room, exists := h.rooms[key]
	if !exists {
		if !create {
			h.mu.Unlock()
			return nil, ErrRoomNotFound
		}

		room = newRoom(h, key)
		h.rooms[key] = room
		h.wg.Add(1)
		go room.run()
	}

	room.pending++
	h.mu.Unlock()

	return room, h.send(ctx, room, ev)
}

// enqueues ev on a specific room instance if it is still live
func (h *Hub) enqueue(room *Room, ev any) error {
	h.mu.Lock()

	if h.closed || h.rooms[room.key] != room {
		h.mu.Unlock()
		return ErrRoomNotFound
	}

	room.pending++
	h.mu.Unlock()

	return h.send(context.Background(), room, ev)
}

// delivers ev to a room whose pending count the caller already raised
func (h *Hub) send(ctx context.Context, room *Room, ev any) error {
	defer func() {
		h.mu.Lock()
		room.pending--
		h.mu.Unlock()
	}()

	select {
	case room.inbox <- ev:
		return nil
	case <-room.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// removes an evicted room from the directory unless events are in flight for it
func (h *Hub) retire(room *Room) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room.pending > 0 || len(room.inbox) > 0 {
		return false
	}

	if h.rooms[room.key] == room {
		delete(h.rooms, room.key)
	}

	return true
}

// returns the number of live rooms
func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.rooms)
}
