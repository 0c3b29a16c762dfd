package models

import "time"

// SessionStatus is the lifecycle state of a chat session.
type SessionStatus string

const (
	StatusWaiting SessionStatus = "waiting"
	StatusActive  SessionStatus = "active"
	StatusClosed  SessionStatus = "closed"
)

// CanTransitionTo reports whether moving from s to next is a legal lifecycle step.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case StatusWaiting:
		return next == StatusActive || next == StatusClosed
	case StatusActive:
		return next == StatusClosed
	default:
		return false
	}
}

// ChatSession is one visitor-to-admin conversation.
type ChatSession struct {
	ID              string        `db:"id" json:"id"`
	VisitorName     string        `db:"visitor_name" json:"visitor_name"`
	VisitorEmail    string        `db:"visitor_email" json:"visitor_email"`
	Status          SessionStatus `db:"status" json:"status"`
	AdminID         *string       `db:"admin_id" json:"admin_id,omitempty"`
	AdminName       *string       `db:"admin_name" json:"admin_name,omitempty"`
	UnreadByAdmin   int           `db:"unread_by_admin" json:"unread_by_admin"`
	UnreadByVisitor int           `db:"unread_by_visitor" json:"unread_by_visitor"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	LastMessageAt   time.Time     `db:"last_message_at" json:"last_message_at"`
	ClosedAt        *time.Time    `db:"closed_at" json:"closed_at,omitempty"`
}

// ClaimedBy reports whether adminID is the admin of record.
func (s ChatSession) ClaimedBy(adminID string) bool {
	return s.AdminID != nil && *s.AdminID == adminID
}
