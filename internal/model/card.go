package model

import "time"

// CardStatus represents the current state of a card.
type CardStatus string

const (
	StatusDraft     CardStatus = "draft"
	StatusOpen      CardStatus = "open"
	StatusClosed    CardStatus = "closed"
	StatusPostponed CardStatus = "postponed"
)

// String returns the string representation of the status.
func (s CardStatus) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s CardStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusOpen, StatusClosed, StatusPostponed:
		return true
	}
	return false
}

// Card is the core work-item record. Cards live on a board and belong to
// exactly one account.
type Card struct {
	ID             string     `json:"id"`
	AccountID      string     `json:"account_id"`
	BoardID        string     `json:"board_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Status         CardStatus `json:"status"`
	AssigneeID     string     `json:"assignee_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CreatedBy      string     `json:"created_by,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	ClosedBy       string     `json:"closed_by,omitempty"`
	PostponedUntil *time.Time `json:"postponed_until,omitempty"`
	LastActivityAt time.Time  `json:"last_activity_at"`

	// Relational data -- populated by queries, not stored in the cards table.
	Watchers []string   `json:"watchers,omitempty"`
	Comments []*Comment `json:"comments,omitempty"`
}

// Visible reports whether the card should be broadcast to live subscribers.
// Draft cards stay invisible until published.
func (c *Card) Visible() bool {
	return c.Status != StatusDraft
}

// Board groups cards inside an account.
type Board struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by,omitempty"`
}

// Account is the tenant isolation boundary. Every core entity belongs to
// exactly one account.
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a member of an account.
type User struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Handle    string    `json:"handle"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
