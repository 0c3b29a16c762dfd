package telemetry

import (
	"context"
	"log/slog"
	"time"

	"church-portal/internal/logging"
	"church-portal/internal/models"
	"church-portal/internal/observability"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditEmitter publishes audit envelopes for chat lifecycle transitions.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	log         *slog.Logger
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	Actor         string       `json:"actor,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level     string `json:"level"`
	Text      string `json:"text"`
	Action    string `json:"action,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, log *slog.Logger) *AuditEmitter {
	if log == nil {
		log = slog.Default()
	}
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		log:         log.With(logging.Module("audit")),
	}
}

// SessionEvent audits a chat session transition.
func (e *AuditEmitter) SessionEvent(ctx context.Context, action string, session models.ChatSession, actor string) {
	e.publish(ctx, actor, AuditPayload{
		Level:     "INFO",
		Text:      "chat " + action,
		Action:    action,
		SessionID: session.ID,
		Status:    string(session.Status),
	})
}

// Emit publishes a free-form audit line.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, actor string) {
	e.publish(ctx, actor, AuditPayload{Level: level, Text: text})
}

func (e *AuditEmitter) publish(ctx context.Context, actor string, payload AuditPayload) {
	if e == nil || e.publisher == nil {
		return
	}

	requestID := observability.RequestIDFromContext(ctx)
	e.log.Debug("audit emit",
		slog.String("level", payload.Level),
		slog.String("request_id", requestID),
		slog.String("text", payload.Text),
	)
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		Actor:         actor,
		Payload:       payload,
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		observability.IncAMQPPublishError()
		e.log.Warn("audit publish failed", logging.Err(err))
	}
}
