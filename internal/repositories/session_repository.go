package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"church-portal/internal/models"
)

var (
	ErrSessionNotFound = errors.New("chat session not found")
	// ErrSessionStateChanged means a conditional write matched no row although
	// the session exists: its status no longer allows the change.
	ErrSessionStateChanged = errors.New("chat session state changed")
)

const (
	sessionColumns = `id, visitor_name, visitor_email, status, admin_id, admin_name, unread_by_admin, unread_by_visitor, created_at, last_message_at, closed_at`
	messageColumns = `id, session_id, message, sender_type, sender_name, sent_at, read`
)

// SessionRepository abstracts chat session persistence. Every mutation is a
// single conditional statement or a single transaction.
type SessionRepository interface {
	CreateSession(ctx context.Context, visitorName, visitorEmail string) (models.ChatSession, error)
	GetSession(ctx context.Context, sessionID string) (models.ChatSession, error)
	ListOpenSessions(ctx context.Context) ([]models.ChatSession, error)
	ClaimSession(ctx context.Context, sessionID, adminID, adminName string) (models.ChatSession, error)
	AppendMessage(ctx context.Context, sessionID string, sender models.SenderType, senderName, text string) (models.ChatMessage, models.ChatSession, error)
	MarkRead(ctx context.Context, sessionID string, reader models.SenderType) (models.ChatSession, error)
	CloseSession(ctx context.Context, sessionID string) (models.ChatSession, error)
	ListMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
}

// SessionRepo is a sqlx implementation of SessionRepository.
type SessionRepo struct {
	db *sqlx.DB
}

// NewSessionRepo constructs a SessionRepo.
func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// CreateSession stores a new waiting session with zeroed counters.
func (r *SessionRepo) CreateSession(ctx context.Context, visitorName, visitorEmail string) (models.ChatSession, error) {
	var session models.ChatSession
	err := r.db.GetContext(ctx, &session, `INSERT INTO chat_sessions (id, visitor_name, visitor_email, status)
        VALUES ($1, $2, $3, 'waiting') RETURNING `+sessionColumns, uuid.NewString(), visitorName, visitorEmail)
	if err != nil {
		return models.ChatSession{}, fmt.Errorf("insert chat session: %w", err)
	}
	return session, nil
}

// GetSession fetches a session by id.
func (r *SessionRepo) GetSession(ctx context.Context, sessionID string) (models.ChatSession, error) {
	var session models.ChatSession
	err := r.db.GetContext(ctx, &session, `SELECT `+sessionColumns+` FROM chat_sessions WHERE id = $1`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatSession{}, ErrSessionNotFound
	}
	return session, err
}

// ListOpenSessions returns non-closed sessions, most recent activity first.
func (r *SessionRepo) ListOpenSessions(ctx context.Context) ([]models.ChatSession, error) {
	sessions := []models.ChatSession{}
	err := r.db.SelectContext(ctx, &sessions, `SELECT `+sessionColumns+` FROM chat_sessions
        WHERE status <> 'closed'
        ORDER BY last_message_at DESC`)
	return sessions, err
}

// ClaimSession moves a waiting session to active for the given admin. The
// write only applies while the session is still waiting.
func (r *SessionRepo) ClaimSession(ctx context.Context, sessionID, adminID, adminName string) (models.ChatSession, error) {
	var session models.ChatSession
	err := r.db.GetContext(ctx, &session, `UPDATE chat_sessions
        SET status = 'active', admin_id = $2, admin_name = $3, unread_by_admin = 0
        WHERE id = $1 AND status = 'waiting'
        RETURNING `+sessionColumns, sessionID, adminID, adminName)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatSession{}, r.missReason(ctx, r.db, sessionID)
	}
	return session, err
}

// AppendMessage stores a message and bumps the other party's unread counter
// atomically, in one transaction. Closed sessions are left untouched.
func (r *SessionRepo) AppendMessage(ctx context.Context, sessionID string, sender models.SenderType, senderName, text string) (msg models.ChatMessage, session models.ChatSession, err error) {
	counter := unreadColumn(otherParty(sender))

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ChatMessage{}, models.ChatSession{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	err = tx.GetContext(ctx, &session, `UPDATE chat_sessions
        SET last_message_at = clock_timestamp(), `+counter+` = `+counter+` + 1
        WHERE id = $1 AND status <> 'closed'
        RETURNING `+sessionColumns, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		err = r.missReason(ctx, tx, sessionID)
	}
	if err != nil {
		return models.ChatMessage{}, models.ChatSession{}, err
	}

	if err = tx.GetContext(ctx, &msg, `INSERT INTO chat_messages (id, session_id, message, sender_type, sender_name, sent_at)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+messageColumns,
		uuid.NewString(), sessionID, text, sender, senderName, session.LastMessageAt); err != nil {
		return models.ChatMessage{}, models.ChatSession{}, fmt.Errorf("insert chat message: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return models.ChatMessage{}, models.ChatSession{}, err
	}
	return msg, session, nil
}

// MarkRead zeroes the reader's unread counter and flags every message from
// the other party as read, so the counter and the per-message flags agree.
func (r *SessionRepo) MarkRead(ctx context.Context, sessionID string, reader models.SenderType) (session models.ChatSession, err error) {
	counter := unreadColumn(reader)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ChatSession{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	err = tx.GetContext(ctx, &session, `UPDATE chat_sessions SET `+counter+` = 0
        WHERE id = $1 AND status <> 'closed'
        RETURNING `+sessionColumns, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		err = r.missReason(ctx, tx, sessionID)
	}
	if err != nil {
		return models.ChatSession{}, err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE chat_messages SET read = TRUE
        WHERE session_id = $1 AND sender_type <> $2 AND read = FALSE`, sessionID, reader); err != nil {
		return models.ChatSession{}, fmt.Errorf("mark messages read: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return models.ChatSession{}, err
	}
	return session, nil
}

// CloseSession closes a waiting or active session and stamps closed_at.
func (r *SessionRepo) CloseSession(ctx context.Context, sessionID string) (models.ChatSession, error) {
	var session models.ChatSession
	err := r.db.GetContext(ctx, &session, `UPDATE chat_sessions
        SET status = 'closed', closed_at = clock_timestamp()
        WHERE id = $1 AND status IN ('waiting', 'active')
        RETURNING `+sessionColumns, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatSession{}, r.missReason(ctx, r.db, sessionID)
	}
	return session, err
}

// ListMessages returns a session's messages in server timestamp order.
func (r *SessionRepo) ListMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	msgs := []models.ChatMessage{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM chat_messages
        WHERE session_id = $1
        ORDER BY sent_at ASC, seq ASC`, sessionID)
	return msgs, err
}

// missReason explains why a conditional write on a session matched nothing.
func (r *SessionRepo) missReason(ctx context.Context, q sqlx.QueryerContext, sessionID string) error {
	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, `SELECT EXISTS(SELECT 1 FROM chat_sessions WHERE id = $1)`, sessionID); err != nil {
		return err
	}
	if !exists {
		return ErrSessionNotFound
	}
	return ErrSessionStateChanged
}

func unreadColumn(party models.SenderType) string {
	if party == models.SenderAdmin {
		return "unread_by_admin"
	}
	return "unread_by_visitor"
}

func otherParty(sender models.SenderType) models.SenderType {
	if sender == models.SenderAdmin {
		return models.SenderVisitor
	}
	return models.SenderAdmin
}
