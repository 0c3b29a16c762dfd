package ws

import "time"

// ConnInfo describes a subscriber for event reporting. UserID is the admin
// id for queue streams and the visitor email for session streams.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
