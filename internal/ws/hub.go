package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"church-portal/internal/logging"
	"church-portal/internal/models"
	"church-portal/internal/observability"
)

const (
	kindQueue   = "queue"
	kindSession = "session"

	writeWait = 10 * time.Second
)

// client serializes writes to one connection.
type client struct {
	conn *websocket.Conn
	info ConnInfo
	mu   sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(payload)
}

func (c *client) writeLocked(payload []byte) error {
	if c.conn == nil {
		return nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub maintains the admin queue subscribers and per-session subscribers.
type Hub struct {
	queue    map[*websocket.Conn]*client
	sessions map[string]map[*websocket.Conn]*client
	mu       sync.RWMutex
	log      *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		queue:    make(map[*websocket.Conn]*client),
		sessions: make(map[string]map[*websocket.Conn]*client),
		log:      log.With(logging.Module("ws")),
	}
}

// AddQueueClient registers a connection on the admin queue stream.
func (h *Hub) AddQueueClient(conn *websocket.Conn, info ConnInfo) *client {
	cl := &client{conn: conn, info: info}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queue[conn] = cl
	return cl
}

// RemoveQueueClient removes an admin queue connection.
func (h *Hub) RemoveQueueClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.queue, conn)
}

// AddSessionClient registers a connection on a session's stream.
func (h *Hub) AddSessionClient(sessionID string, conn *websocket.Conn, info ConnInfo) *client {
	cl := &client{conn: conn, info: info}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[sessionID]; !ok {
		h.sessions[sessionID] = make(map[*websocket.Conn]*client)
	}
	h.sessions[sessionID][conn] = cl
	return cl
}

// RemoveSessionClient removes a session stream connection.
func (h *Hub) RemoveSessionClient(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.sessions[sessionID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.sessions, sessionID)
		}
	}
}

// SubscribeQueue registers conn on the admin queue and writes the snapshot
// before any incremental event can reach it.
func (h *Hub) SubscribeQueue(conn *websocket.Conn, info ConnInfo, snapshot func() (models.ChatEvent, error)) error {
	return h.subscribe(
		func() *client { return h.AddQueueClient(conn, info) },
		func() { h.RemoveQueueClient(conn) },
		snapshot,
	)
}

// SubscribeSession registers conn on a session stream and writes the snapshot
// before any incremental event can reach it.
func (h *Hub) SubscribeSession(sessionID string, conn *websocket.Conn, info ConnInfo, snapshot func() (models.ChatEvent, error)) error {
	return h.subscribe(
		func() *client { return h.AddSessionClient(sessionID, conn, info) },
		func() { h.RemoveSessionClient(sessionID, conn) },
		snapshot,
	)
}

func (h *Hub) subscribe(add func() *client, remove func(), snapshot func() (models.ChatEvent, error)) error {
	cl := add()
	cl.mu.Lock()
	defer cl.mu.Unlock()

	event, err := snapshot()
	if err != nil {
		remove()
		return err
	}
	event.Type = models.EventSnapshot
	payload, err := json.Marshal(event)
	if err != nil {
		remove()
		return err
	}
	if err := cl.writeLocked(payload); err != nil {
		remove()
		return err
	}
	return nil
}

// Publish delivers an event to local subscribers. It lets the hub stand in
// for the broker in single-instance deployments.
func (h *Hub) Publish(_ context.Context, event models.ChatEvent) error {
	h.Dispatch(event)
	return nil
}

// Dispatch sends an event to every local subscriber interested in it.
// Session updates go to the admin queue and to the session stream; messages
// only to the session stream.
func (h *Hub) Dispatch(event models.ChatEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("marshal chat event", logging.Err(err))
		return
	}

	switch event.Type {
	case models.EventSession:
		h.broadcast(kindQueue, "", h.queueClients(), payload)
		h.broadcast(kindSession, event.SessionID, h.sessionClients(event.SessionID), payload)
	case models.EventMessage:
		h.broadcast(kindSession, event.SessionID, h.sessionClients(event.SessionID), payload)
	}
}

func (h *Hub) queueClients() []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*client, 0, len(h.queue))
	for _, cl := range h.queue {
		out = append(out, cl)
	}
	return out
}

func (h *Hub) sessionClients(sessionID string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := h.sessions[sessionID]
	out := make([]*client, 0, len(conns))
	for _, cl := range conns {
		out = append(out, cl)
	}
	return out
}

func (h *Hub) broadcast(kind, sessionID string, clients []*client, payload []byte) {
	for _, cl := range clients {
		if err := cl.write(payload); err != nil {
			h.log.Warn("websocket write error", slog.String("kind", kind), slog.String("session_id", sessionID), logging.Err(err))
			if kind == kindQueue {
				h.RemoveQueueClient(cl.conn)
			} else {
				h.RemoveSessionClient(sessionID, cl.conn)
			}
			if cl.conn != nil {
				cl.conn.Close()
			}
			h.publishWSError(kind, sessionID, cl.info, err)
		}
	}
}

func (h *Hub) publishWSError(kind, resourceID string, info ConnInfo, err error) {
	_ = observability.PublishEvent(context.Background(), wsRoutingKey(kind), wsEnvelope(kind, resourceID, "ws_error", info, err.Error()))
	observability.IncWSEvent(kind, "ws_error")
}

func wsRoutingKey(kind string) string {
	if kind == kindQueue {
		return "ws_events.chat_queue"
	}
	return "ws_events.chat_sessions"
}

func wsEnvelope(kind, resourceID, event string, info ConnInfo, reason string) observability.EventEnvelope {
	return observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		RequestID: info.RequestID,
		TraceID:   info.TraceID,
		Payload: map[string]any{
			"ws": map[string]any{
				"kind":        kind,
				"resource_id": resourceID,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]any{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}
}
