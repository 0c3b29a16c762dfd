package models

import "time"

// SenderType identifies which side of a session wrote a message.
type SenderType string

const (
	SenderVisitor SenderType = "visitor"
	SenderAdmin   SenderType = "admin"
)

// Valid reports whether t is a known sender type.
func (t SenderType) Valid() bool {
	return t == SenderVisitor || t == SenderAdmin
}

// ChatMessage is a single message in a session. Only Read ever changes.
type ChatMessage struct {
	ID         string     `db:"id" json:"id"`
	SessionID  string     `db:"session_id" json:"session_id"`
	Message    string     `db:"message" json:"message"`
	SenderType SenderType `db:"sender_type" json:"sender_type"`
	SenderName string     `db:"sender_name" json:"sender_name"`
	Timestamp  time.Time  `db:"sent_at" json:"timestamp"`
	Read       bool       `db:"read" json:"read"`
}

// Chat event types pushed to subscribers.
const (
	EventSession  = "session"
	EventMessage  = "message"
	EventSnapshot = "snapshot"
)

// ChatEvent is broadcast through websockets and the cross-instance broker.
type ChatEvent struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id,omitempty"`
	Session   *ChatSession  `json:"session,omitempty"`
	Message   *ChatMessage  `json:"message,omitempty"`
	Sessions  []ChatSession `json:"sessions,omitempty"`
	Messages  []ChatMessage `json:"messages,omitempty"`
}
