package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"church-portal/internal/logging"
	"church-portal/internal/models"
	"church-portal/internal/observability"
	"church-portal/internal/repositories"
)

// Broadcaster pushes lifecycle events to subscribers.
type Broadcaster interface {
	Publish(ctx context.Context, event models.ChatEvent) error
}

// Auditor records lifecycle transitions.
type Auditor interface {
	SessionEvent(ctx context.Context, action string, session models.ChatSession, actor string)
}

// Service drives the waiting -> active -> closed session lifecycle.
type Service struct {
	repo      repositories.SessionRepository
	broadcast Broadcaster
	audit     Auditor
	validate  *validator.Validate
	log       *slog.Logger
}

// NewService builds a Service. broadcast and audit may be nil.
func NewService(repo repositories.SessionRepository, broadcast Broadcaster, audit Auditor, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:      repo,
		broadcast: broadcast,
		audit:     audit,
		validate:  validator.New(),
		log:       log.With(logging.Module("chat")),
	}
}

type visitorInput struct {
	Name  string `validate:"required,max=120"`
	Email string `validate:"required,email,max=254"`
}

type messageInput struct {
	Text       string            `validate:"required,max=4000"`
	SenderType models.SenderType `validate:"oneof=visitor admin"`
	SenderName string            `validate:"required,max=120"`
}

type adminInput struct {
	ID   string `validate:"required"`
	Name string `validate:"required,max=120"`
}

// Create opens a waiting session for a visitor.
func (s *Service) Create(ctx context.Context, visitorName, visitorEmail string) (models.ChatSession, error) {
	in := visitorInput{Name: strings.TrimSpace(visitorName), Email: strings.TrimSpace(visitorEmail)}
	if err := s.check(in); err != nil {
		return models.ChatSession{}, err
	}

	session, err := s.repo.CreateSession(ctx, in.Name, in.Email)
	if err != nil {
		return models.ChatSession{}, classify("create session", err)
	}

	observability.IncChatTransition("create")
	s.log.Info("chat session created", slog.String("session_id", session.ID))
	s.sessionChanged(ctx, "session_created", session, in.Email)
	return session, nil
}

// Start creates a session and then sends the visitor's opening message.
// The two steps are sequential; a failed send leaves the session waiting.
func (s *Service) Start(ctx context.Context, visitorName, visitorEmail, firstMessage string) (models.ChatSession, models.ChatMessage, error) {
	if strings.TrimSpace(firstMessage) == "" {
		return models.ChatSession{}, models.ChatMessage{}, fmt.Errorf("%w: opening message is required", ErrInvalidInput)
	}

	session, err := s.Create(ctx, visitorName, visitorEmail)
	if err != nil {
		return models.ChatSession{}, models.ChatMessage{}, err
	}

	msg, updated, err := s.send(ctx, session.ID, firstMessage, models.SenderVisitor, session.VisitorName)
	if err != nil {
		return session, models.ChatMessage{}, err
	}
	return updated, msg, nil
}

// Join claims a waiting session for an admin. Joining again as the admin of
// record is a no-op; a session held by someone else yields ErrConflict.
func (s *Service) Join(ctx context.Context, sessionID, adminID, adminName string) (models.ChatSession, error) {
	if err := checkID(sessionID); err != nil {
		return models.ChatSession{}, err
	}
	in := adminInput{ID: strings.TrimSpace(adminID), Name: strings.TrimSpace(adminName)}
	if err := s.check(in); err != nil {
		return models.ChatSession{}, err
	}

	session, err := s.repo.ClaimSession(ctx, sessionID, in.ID, in.Name)
	if errors.Is(err, repositories.ErrSessionStateChanged) {
		return s.resolveClaim(ctx, sessionID, in.ID)
	}
	if err != nil {
		return models.ChatSession{}, classify("join session", err)
	}

	observability.IncChatTransition("join")
	s.log.Info("chat session joined", slog.String("session_id", sessionID), slog.String("admin_id", in.ID))
	s.sessionChanged(ctx, "session_joined", session, in.ID)
	return session, nil
}

func (s *Service) resolveClaim(ctx context.Context, sessionID, adminID string) (models.ChatSession, error) {
	current, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return models.ChatSession{}, classify("join session", err)
	}

	switch {
	case current.Status == models.StatusClosed:
		return models.ChatSession{}, fmt.Errorf("join session: %w: session is closed", ErrInvalidTransition)
	case current.Status == models.StatusActive && current.ClaimedBy(adminID):
		return current, nil
	default:
		observability.IncChatConflict()
		s.log.Warn("chat session claim lost", slog.String("session_id", sessionID), slog.String("admin_id", adminID))
		return models.ChatSession{}, fmt.Errorf("join session: %w", ErrConflict)
	}
}

// SendMessage appends a message and bumps the other party's unread counter.
func (s *Service) SendMessage(ctx context.Context, sessionID, text string, sender models.SenderType, senderName string) (models.ChatMessage, error) {
	msg, _, err := s.send(ctx, sessionID, text, sender, senderName)
	return msg, err
}

func (s *Service) send(ctx context.Context, sessionID, text string, sender models.SenderType, senderName string) (models.ChatMessage, models.ChatSession, error) {
	if err := checkID(sessionID); err != nil {
		return models.ChatMessage{}, models.ChatSession{}, err
	}
	in := messageInput{Text: strings.TrimSpace(text), SenderType: sender, SenderName: strings.TrimSpace(senderName)}
	if err := s.check(in); err != nil {
		return models.ChatMessage{}, models.ChatSession{}, err
	}

	msg, session, err := s.repo.AppendMessage(ctx, sessionID, in.SenderType, in.SenderName, in.Text)
	if err != nil {
		return models.ChatMessage{}, models.ChatSession{}, classify("send message", err)
	}

	observability.IncChatMessage(string(sender))
	s.log.Debug("chat message stored", slog.String("session_id", sessionID), slog.String("sender_type", string(sender)))
	s.publish(ctx, models.ChatEvent{Type: models.EventMessage, SessionID: sessionID, Message: &msg})
	s.publish(ctx, models.ChatEvent{Type: models.EventSession, SessionID: sessionID, Session: &session})
	return msg, session, nil
}

// MarkRead resets reader's unread counter and flags the other party's
// messages as read.
func (s *Service) MarkRead(ctx context.Context, sessionID string, reader models.SenderType) (models.ChatSession, error) {
	if err := checkID(sessionID); err != nil {
		return models.ChatSession{}, err
	}
	if !reader.Valid() {
		return models.ChatSession{}, fmt.Errorf("%w: unknown reader %q", ErrInvalidInput, reader)
	}

	session, err := s.repo.MarkRead(ctx, sessionID, reader)
	if err != nil {
		return models.ChatSession{}, classify("mark read", err)
	}

	s.publish(ctx, models.ChatEvent{Type: models.EventSession, SessionID: sessionID, Session: &session})
	return session, nil
}

// Close ends a waiting or active session. Closed is terminal.
func (s *Service) Close(ctx context.Context, sessionID string) (models.ChatSession, error) {
	if err := checkID(sessionID); err != nil {
		return models.ChatSession{}, err
	}

	session, err := s.repo.CloseSession(ctx, sessionID)
	if err != nil {
		return models.ChatSession{}, classify("close session", err)
	}

	observability.IncChatTransition("close")
	s.log.Info("chat session closed", slog.String("session_id", sessionID))
	s.sessionChanged(ctx, "session_closed", session, "")
	return session, nil
}

// GetSession returns a single session.
func (s *Service) GetSession(ctx context.Context, sessionID string) (models.ChatSession, error) {
	if err := checkID(sessionID); err != nil {
		return models.ChatSession{}, err
	}
	session, err := s.repo.GetSession(ctx, sessionID)
	return session, classify("get session", err)
}

// ListOpenSessions returns the admin queue, most recent activity first.
func (s *Service) ListOpenSessions(ctx context.Context) ([]models.ChatSession, error) {
	sessions, err := s.repo.ListOpenSessions(ctx)
	return sessions, classify("list sessions", err)
}

// ListMessages returns a session's messages, oldest first.
func (s *Service) ListMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	if err := checkID(sessionID); err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListMessages(ctx, sessionID)
	return msgs, classify("list messages", err)
}

func (s *Service) sessionChanged(ctx context.Context, action string, session models.ChatSession, actor string) {
	s.publish(ctx, models.ChatEvent{Type: models.EventSession, SessionID: session.ID, Session: &session})
	if s.audit != nil {
		s.audit.SessionEvent(ctx, action, session, actor)
	}
}

// publish never fails the operation: the write is already committed.
func (s *Service) publish(ctx context.Context, event models.ChatEvent) {
	if s.broadcast == nil {
		return
	}
	if err := s.broadcast.Publish(ctx, event); err != nil {
		s.log.Warn("chat event publish failed",
			slog.String("session_id", event.SessionID),
			slog.String("type", event.Type),
			logging.Err(err),
		)
	}
}

func (s *Service) check(in any) error {
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func checkID(sessionID string) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
	}
	return nil
}
