package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"church-portal/internal/chat"
	"church-portal/internal/logging"
	"church-portal/internal/middleware"
	"church-portal/internal/models"
	"church-portal/internal/observability"
)

// SessionReader loads the state a new subscriber starts from.
type SessionReader interface {
	GetSession(ctx context.Context, id string) (models.ChatSession, error)
	ListOpenSessions(ctx context.Context) ([]models.ChatSession, error)
	ListMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
}

// StreamHandler upgrades admin queue and session stream connections.
type StreamHandler struct {
	hub   *Hub
	chats SessionReader
	log   *slog.Logger
}

// NewStreamHandler constructs a StreamHandler.
func NewStreamHandler(hub *Hub, chats SessionReader, log *slog.Logger) *StreamHandler {
	if log == nil {
		log = slog.Default()
	}
	return &StreamHandler{hub: hub, chats: chats, log: log.With(logging.Module("ws"))}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleQueue streams the open session list to an authenticated admin.
func (h *StreamHandler) HandleQueue(c *gin.Context) {
	ctx, span := otel.Tracer("church-portal/ws").Start(c.Request.Context(), "ws.handshake.queue")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	info := h.connInfo(c, c.GetString(middleware.AdminIDKey), span.SpanContext().TraceID().String())

	err = h.hub.SubscribeQueue(conn, info, func() (models.ChatEvent, error) {
		sessions, err := h.chats.ListOpenSessions(ctx)
		if err != nil {
			return models.ChatEvent{}, err
		}
		return models.ChatEvent{Sessions: sessions}, nil
	})
	if err != nil {
		h.log.Warn("queue snapshot failed", slog.String("conn_id", info.ConnID), logging.Err(err))
		conn.Close()
		return
	}

	h.serve(kindQueue, "", conn, info, func() { h.hub.RemoveQueueClient(conn) })
}

// HandleSession streams one session's state and messages.
func (h *StreamHandler) HandleSession(c *gin.Context) {
	sessionID := c.Param("id")

	ctx, span := otel.Tracer("church-portal/ws").Start(c.Request.Context(), "ws.handshake.session")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	session, err := h.chats.GetSession(ctx, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		case errors.Is(err, chat.ErrUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		}
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	info := h.connInfo(c, session.VisitorEmail, span.SpanContext().TraceID().String())

	err = h.hub.SubscribeSession(sessionID, conn, info, func() (models.ChatEvent, error) {
		current, err := h.chats.GetSession(ctx, sessionID)
		if err != nil {
			return models.ChatEvent{}, err
		}
		messages, err := h.chats.ListMessages(ctx, sessionID)
		if err != nil {
			return models.ChatEvent{}, err
		}
		return models.ChatEvent{SessionID: sessionID, Session: &current, Messages: messages}, nil
	})
	if err != nil {
		h.log.Warn("session snapshot failed", slog.String("session_id", sessionID), logging.Err(err))
		conn.Close()
		return
	}

	h.serve(kindSession, sessionID, conn, info, func() { h.hub.RemoveSessionClient(sessionID, conn) })
}

func (h *StreamHandler) connInfo(c *gin.Context, userID, traceID string) ConnInfo {
	return ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
}

// serve reports the connection and drains client frames until it closes.
// Streams are push-only; inbound frames are discarded.
func (h *StreamHandler) serve(kind, resourceID string, conn *websocket.Conn, info ConnInfo, remove func()) {
	routingKey := wsRoutingKey(kind)
	observability.IncWSActive(kind)
	observability.IncWSEvent(kind, "ws_connect")
	_ = observability.PublishEvent(context.Background(), routingKey, wsEnvelope(kind, resourceID, "ws_connect", info, ""))

	go func() {
		var closeReason string
		defer func() {
			remove()
			observability.DecWSActive(kind)
			observability.IncWSEvent(kind, "ws_disconnect")
			_ = observability.PublishEvent(context.Background(), routingKey, wsEnvelope(kind, resourceID, "ws_disconnect", info, closeReason))
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent(kind, "ws_error")
					_ = observability.PublishEvent(context.Background(), routingKey, wsEnvelope(kind, resourceID, "ws_error", info, closeReason))
				}
				return
			}
		}
	}()
}
