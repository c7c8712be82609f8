package model

import "time"

// Comment represents a comment on a card.
type Comment struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	CardID    string    `json:"card_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
