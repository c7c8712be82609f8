package model

import "time"

// Notification tells a user that an event concerns them. The
// (event_id, user_id) pair is unique, so regenerating notifications for a
// redelivered event is a no-op.
type Notification struct {
	ID        string     `json:"id"`
	AccountID string     `json:"account_id"`
	UserID    string     `json:"user_id"`
	EventID   string     `json:"event_id"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`

	// Event is attached by listing queries for display purposes.
	Event *Event `json:"event,omitempty"`
}
