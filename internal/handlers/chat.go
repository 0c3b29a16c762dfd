package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"church-portal/internal/chat"
	"church-portal/internal/logging"
	"church-portal/internal/middleware"
	"church-portal/internal/models"
)

// ChatHandler serves the visitor and admin chat endpoints.
type ChatHandler struct {
	chats *chat.Service
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chats *chat.Service) *ChatHandler {
	return &ChatHandler{chats: chats}
}

type startRequest struct {
	VisitorName  string `json:"visitor_name"`
	VisitorEmail string `json:"visitor_email"`
	Message      string `json:"message"`
}

type messageRequest struct {
	Message string `json:"message"`
}

// StartSession opens a session for a visitor, sending the opening message
// when one is given.
func (h *ChatHandler) StartSession(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if req.Message == "" {
		session, err := h.chats.Create(c.Request.Context(), req.VisitorName, req.VisitorEmail)
		if err != nil {
			writeChatError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"session": session})
		return
	}

	session, msg, err := h.chats.Start(c.Request.Context(), req.VisitorName, req.VisitorEmail, req.Message)
	if err != nil {
		if session.ID != "" {
			// The session exists; only the opening message failed.
			logging.FromContext(c.Request.Context()).Warn("opening message failed", logging.Err(err))
			c.JSON(http.StatusCreated, gin.H{"session": session, "warning": "opening message not delivered"})
			return
		}
		writeChatError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": session, "message": msg})
}

// GetSession returns one session.
func (h *ChatHandler) GetSession(c *gin.Context) {
	session, err := h.chats.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// ListMessages returns a session's messages oldest first.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	msgs, err := h.chats.ListMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeChatError(c, err)
		return
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostVisitorMessage sends a message as the session's visitor.
func (h *ChatHandler) PostVisitorMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	sessionID := c.Param("id")
	session, err := h.chats.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		writeChatError(c, err)
		return
	}

	msg, err := h.chats.SendMessage(c.Request.Context(), sessionID, req.Message, models.SenderVisitor, session.VisitorName)
	if err != nil {
		writeChatError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// MarkVisitorRead clears the visitor's unread counter.
func (h *ChatHandler) MarkVisitorRead(c *gin.Context) {
	h.markRead(c, models.SenderVisitor)
}

// CloseSession ends a session from either side.
func (h *ChatHandler) CloseSession(c *gin.Context) {
	session, err := h.chats.Close(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// ListQueue returns open sessions for the admin queue.
func (h *ChatHandler) ListQueue(c *gin.Context) {
	sessions, err := h.chats.ListOpenSessions(c.Request.Context())
	if err != nil {
		writeChatError(c, err)
		return
	}
	if sessions == nil {
		sessions = []models.ChatSession{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// JoinSession claims a waiting session for the authenticated admin.
func (h *ChatHandler) JoinSession(c *gin.Context) {
	session, err := h.chats.Join(c.Request.Context(), c.Param("id"), c.GetString(middleware.AdminIDKey), c.GetString(middleware.AdminNameKey))
	if err != nil {
		writeChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// PostAdminMessage sends a message as the authenticated admin.
func (h *ChatHandler) PostAdminMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	msg, err := h.chats.SendMessage(c.Request.Context(), c.Param("id"), req.Message, models.SenderAdmin, c.GetString(middleware.AdminNameKey))
	if err != nil {
		writeChatError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// MarkAdminRead clears the admin unread counter.
func (h *ChatHandler) MarkAdminRead(c *gin.Context) {
	h.markRead(c, models.SenderAdmin)
}

func (h *ChatHandler) markRead(c *gin.Context, reader models.SenderType) {
	session, err := h.chats.MarkRead(c.Request.Context(), c.Param("id"), reader)
	if err != nil {
		writeChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func writeChatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, chat.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "session is closed"})
	case errors.Is(err, chat.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "session already claimed"})
	case errors.Is(err, chat.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable, retry later"})
	default:
		logging.FromContext(c.Request.Context()).Error("chat request failed", logging.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
