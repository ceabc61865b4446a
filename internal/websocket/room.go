package websocket

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"codeberg.org/algopatterns/collab/internal/buffer"
	"codeberg.org/algopatterns/collab/internal/errors"
	"codeberg.org/algopatterns/collab/internal/logger"
	"codeberg.org/algopatterns/collab/internal/metrics"
)

// events accepted by a room's inbox
type (
	connectEvent struct {
		client *Client
		reply  chan error
	}

	messageEvent struct {
		client *Client
		raw    []byte
	}

	disconnectEvent struct {
		client *Client
	}

	alarmEvent struct {
		generation uint64
	}

	statusEvent struct {
		reply chan Status
	}

	// wakes a room so it reloads its persisted alarm
	restoreEvent struct{}

	shutdownEvent struct {
		reason string
	}
)

// coordinator for one document. All fields below inbox are owned by the
// room goroutine and touched nowhere else.
type Room struct {
	key     string
	hub     *Hub
	log     *slog.Logger
	metrics *metrics.Metrics
	persist *buffer.Persister

	inbox chan any
	done  chan struct{}

	// senders between lookup and enqueue; guarded by hub.mu
	pending int

	// mirrors sessions.Len() for lock-free listing
	sessionCount atomic.Int32

	documentID   string
	sessions     *Registry
	replay       *buffer.ReplayBuffer
	lastActivity time.Time
	reaper       *reaper
	alarmStored  bool
	stopped      bool
}

func newRoom(h *Hub, key string) *Room {
	r := &Room{
		key:      key,
		hub:      h,
		log:      logger.With("room", key),
		metrics:  h.opts.Metrics,
		persist:  buffer.NewPersister(h.opts.Store, key, h.opts.StoreTimeout),
		inbox:    make(chan any, roomInboxSize),
		done:     make(chan struct{}),
		sessions: NewRegistry(),
		replay:   buffer.NewReplayBuffer(buffer.MaxUpdates),
	}

	r.reaper = newReaper(h.opts.IdleThreshold, func(generation uint64) {
		h.enqueue(r, alarmEvent{generation: generation}) //nolint:errcheck,gosec // retired rooms drop their alarms
	})

	return r
}

// processes events one at a time until the room retires or shuts down
func (r *Room) run() {
	defer r.hub.wg.Done()
	defer close(r.done)

	r.metrics.RoomStarted()
	defer r.metrics.RoomStopped()

	r.load()
	r.settle()

	for !r.stopped {
		r.handle(<-r.inbox)

		if !r.stopped {
			r.settle()
		}
	}

	r.reaper.stopTimer()
}

// restores persisted state; a room that cannot load starts empty
func (r *Room) load() {
	r.lastActivity = time.Now()

	snap, err := r.persist.Load()
	if err != nil {
		r.log.Error("failed to load room state, starting empty", "error", err)
		return
	}

	r.documentID = snap.DocumentID
	r.replay.Restore(snap.Updates)

	if !snap.AlarmAt.IsZero() {
		// the alarm was armed at lastActivity + threshold
		r.lastActivity = snap.AlarmAt.Add(-r.reaper.threshold)
		r.reaper.arm(snap.AlarmAt)
		r.alarmStored = true
	}

	r.log.Debug("room loaded",
		"document_id", r.documentID,
		"buffered_updates", r.replay.Len(),
		"reaper", r.reaper.state(),
	)
}

func (r *Room) handle(ev any) {
	defer r.recoverEvent(ev)

	switch e := ev.(type) {
	case connectEvent:
		e.reply <- r.connect(e.client)

	case messageEvent:
		r.message(e.client, e.raw)

	case disconnectEvent:
		r.disconnect(e.client)

	case alarmEvent:
		r.alarm(e.generation)

	case statusEvent:
		e.reply <- r.status()

	case restoreEvent:
		r.log.Debug("room restored", "reaper", r.reaper.state())

	case shutdownEvent:
		r.shutdown(e.reason)

	default:
		r.log.Warn("room received unknown event", "event", fmt.Sprintf("%T", ev))
	}
}

// keeps a faulting handler from taking the room down
func (r *Room) recoverEvent(ev any) {
	rec := recover()
	if rec == nil {
		return
	}

	r.log.Error("room handler panicked",
		"event", fmt.Sprintf("%T", ev),
		"panic", rec,
		"stack", string(debug.Stack()),
	)

	switch e := ev.(type) {
	case connectEvent:
		select {
		case e.reply <- fmt.Errorf("connect failed: %v", rec):
		default:
		}

	case messageEvent:
		e.client.SendError(errors.CodeServerError, "failed to process message")

	case statusEvent:
		select {
		case e.reply <- r.status():
		default:
		}
	}
}

// an empty room always has its reaper armed
func (r *Room) settle() {
	r.sessionCount.Store(int32(r.sessions.Len())) //nolint:gosec // bounded by connection count

	if r.sessions.Len() == 0 && !r.reaper.armed() {
		r.armReaper()
	}
}

func (r *Room) connect(c *Client) error {
	if c.UserID == "" || c.DocumentID == "" {
		r.metrics.ConnectRejected("missing_identity")
		return ErrMissingIdentity
	}

	if r.documentID != "" && r.documentID != c.DocumentID {
		r.metrics.ConnectRejected("identity_mismatch")

		r.log.Warn("connection rejected, room bound to another document",
			"bound_document_id", r.documentID,
			"document_id", c.DocumentID,
			"client_id", c.ID,
		)

		return ErrIdentityMismatch
	}

	if !r.sessions.Add(c) {
		return fmt.Errorf("client %s already registered", c.ID)
	}

	if r.documentID == "" {
		r.documentID = c.DocumentID

		if err := r.persist.BindDocument(r.documentID); err != nil {
			r.metrics.PersistFailed("bind document")
			r.log.Error("failed to persist document binding", "error", err)
		}
	}

	r.disarmReaper()
	r.touch(time.Now())
	r.metrics.SessionJoined()

	r.log.Info("client joined room",
		"client_id", c.ID,
		"document_id", r.documentID,
		"user_id", c.UserID,
		"display_name", c.DisplayName,
		"session_count", r.sessions.Len(),
	)

	// init then sync, before the joiner can see any live broadcast
	if err := c.Send(NewInit(r.documentID, r.sessions.Participants())); err != nil {
		r.drop(c, "init delivery failed")
		return ErrConnectionClosed
	}

	if err := c.Send(NewSync(r.replay.Snapshot())); err != nil {
		r.drop(c, "sync delivery failed")
		return ErrConnectionClosed
	}

	r.announcePresence(c.ID)
	return nil
}

func (r *Room) message(c *Client, raw []byte) {
	if registered, ok := r.sessions.Get(c.ID); !ok || registered != c {
		r.log.Debug("dropping message from unregistered client",
			"client_id", c.ID,
		)
		return
	}

	msg, err := Decode(raw)
	if err != nil {
		r.metrics.Message("invalid")

		r.log.Warn("rejected client message",
			"client_id", c.ID,
			"document_id", r.documentID,
			"reason", err.Error(),
		)

		if sendErr := c.Send(NewError(errors.CodeBadRequest, err.Error())); sendErr != nil {
			r.drop(c, "error delivery failed")
		}
		return
	}

	now := time.Now()
	r.touch(now)
	r.metrics.Message(msg.Type)

	switch msg.Type {
	case TypeUpdate:
		event := NewEvent(msg.Type, c.UserID, msg.Data, now)

		if evicted := r.replay.Append(event); evicted {
			r.log.Debug("replay buffer full, evicted oldest update")
		}

		// delivery proceeds even when the replay log could not be written
		if err := r.persist.SaveUpdates(r.replay.Snapshot()); err != nil {
			r.metrics.PersistFailed("save updates")
			r.log.Error("failed to persist replay buffer", "error", err,
				"document_id", r.documentID,
			)
		}

		r.broadcast(NewBroadcast(event), c.ID)

	case TypeCursor, TypeSelection:
		r.broadcast(NewBroadcast(NewEvent(msg.Type, c.UserID, msg.Data, now)), c.ID)

	case TypePing:
		if err := c.Send(NewPong()); err != nil {
			r.drop(c, "pong delivery failed")
		}
	}
}

func (r *Room) disconnect(c *Client) {
	if registered, ok := r.sessions.Get(c.ID); !ok || registered != c {
		return
	}
	r.sessions.Remove(c.ID)

	c.Close()
	r.metrics.SessionLeft()
	r.touch(time.Now())

	r.log.Info("client left room",
		"client_id", c.ID,
		"document_id", r.documentID,
		"session_count", r.sessions.Len(),
	)

	r.announcePresence("")

	if r.sessions.Len() == 0 {
		r.armReaper()
	}
}

func (r *Room) alarm(generation uint64) {
	if !r.reaper.accept(generation) {
		return
	}

	now := time.Now()

	if r.sessions.Len() == 0 && r.reaper.expired(r.lastActivity, now) {
		r.evict()
		return
	}

	// activity moved the deadline; check again later
	if r.sessions.Len() == 0 {
		r.armReaper()
		return
	}

	r.clearStoredAlarm()
}

// purges persisted state and retires the room when nothing is queued for it
func (r *Room) evict() {
	if err := r.persist.Purge(); err != nil {
		r.metrics.PersistFailed("purge")
		r.log.Error("failed to purge idle room", "error", err)
	}

	documentID := r.documentID

	r.documentID = ""
	r.replay.Reset()
	r.alarmStored = false
	r.lastActivity = time.Now()
	r.metrics.RoomEvicted()

	r.log.Info("idle room evicted",
		"document_id", documentID,
	)

	if r.hub.retire(r) {
		r.stopped = true
	}
}

func (r *Room) status() Status {
	s := Status{
		DocumentID:            r.documentID,
		SessionCount:          r.sessions.Len(),
		Participants:          r.sessions.Participants(),
		LastActivityTimestamp: r.lastActivity.UnixMilli(),
		BufferedUpdates:       r.replay.Len(),
		Reaper:                r.reaper.state(),
		Live:                  true,
	}

	if at := r.reaper.scheduledAt(); !at.IsZero() {
		s.IdleAlarmAt = at.UnixMilli()
	}

	return s
}

// notifies sessions, closes them and leaves an alarm so eviction survives a restart
func (r *Room) shutdown(reason string) {
	clients := r.sessions.Clear()

	if frame, err := Encode(NewServerShutdown(reason)); err == nil {
		for _, c := range clients {
			c.SendRaw(frame) //nolint:errcheck,gosec // best effort before close
		}
	}

	for _, c := range clients {
		c.Close()
		r.metrics.SessionLeft()
	}

	if len(clients) > 0 {
		r.touch(time.Now())
	}

	if !r.reaper.armed() && (r.documentID != "" || r.replay.Len() > 0) {
		if err := r.persist.SetAlarm(r.lastActivity.Add(r.reaper.threshold)); err != nil {
			r.log.Error("failed to persist idle alarm on shutdown", "error", err)
		}
	}

	r.reaper.stopTimer()
	r.stopped = true

	r.log.Debug("room stopped",
		"closed_sessions", len(clients),
	)
}

// sends msg to every session except excludeID; failed sessions are removed in the same pass
func (r *Room) broadcast(msg *Outbound, excludeID string) {
	frame, err := Encode(msg)
	if err != nil {
		r.log.Error("failed to encode broadcast", "error", err, "message_type", msg.Type)
		return
	}

	r.metrics.Broadcast()

	var dead []*Client

	for _, c := range r.sessions.Clients() {
		if c.ID == excludeID {
			continue
		}

		if err := c.SendRaw(frame); err != nil {
			r.sessions.Remove(c.ID)
			dead = append(dead, c)
		}
	}

	if len(dead) > 0 {
		r.pruned(dead, "broadcast delivery failed")
	}
}

// removes a session whose direct reply could not be delivered
func (r *Room) drop(c *Client, reason string) {
	if registered, ok := r.sessions.Get(c.ID); !ok || registered != c {
		return
	}
	r.sessions.Remove(c.ID)

	r.pruned([]*Client{c}, reason)
}

func (r *Room) pruned(dead []*Client, reason string) {
	for _, c := range dead {
		c.Close()
		r.metrics.SessionPruned()
		r.metrics.SessionLeft()

		r.log.Info("session pruned",
			"client_id", c.ID,
			"document_id", r.documentID,
			"reason", reason,
		)
	}

	// survivors learn about the departure; this may prune further
	r.announcePresence("")

	if r.sessions.Len() == 0 {
		r.armReaper()
	}
}

func (r *Room) announcePresence(excludeID string) {
	if r.sessions.Len() == 0 {
		return
	}

	r.broadcast(NewPresence(r.sessions.Participants()), excludeID)
}

func (r *Room) armReaper() {
	at := r.lastActivity.Add(r.reaper.threshold)

	if r.reaper.armed() && r.reaper.scheduledAt().Equal(at) {
		return
	}

	r.reaper.arm(at)
	r.log.Debug("idle reaper armed", "fire_at", at)

	// a room with nothing persisted has nothing to restore after a restart
	if r.documentID == "" && r.replay.Len() == 0 {
		return
	}

	if err := r.persist.SetAlarm(at); err != nil {
		r.metrics.PersistFailed("set alarm")
		r.log.Error("failed to persist idle alarm", "error", err)
		return
	}

	r.alarmStored = true
}

func (r *Room) disarmReaper() {
	if r.reaper.disarm() {
		r.log.Debug("idle reaper disarmed")
	}

	r.clearStoredAlarm()
}

func (r *Room) clearStoredAlarm() {
	if !r.alarmStored {
		return
	}

	if err := r.persist.ClearAlarm(); err != nil {
		r.metrics.PersistFailed("clear alarm")
		r.log.Error("failed to clear idle alarm", "error", err)
		return
	}

	r.alarmStored = false
}

// lastActivity never moves backwards
func (r *Room) touch(now time.Time) {
	if now.After(r.lastActivity) {
		r.lastActivity = now
	}
}
