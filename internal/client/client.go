// Package client provides a transport-agnostic interface for the fizzy
// service and an HTTP/JSON implementation that talks to the fizzy REST API.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/fizzyhq/fizzy/internal/model"
)

// FizzyClient is the interface that all fizzy CLI commands use to
// communicate with the server.
type FizzyClient interface {
	// Accounts and users
	CreateAccount(ctx context.Context, name string) (*model.Account, error)
	CreateUser(ctx context.Context, handle, name string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)

	// Boards
	CreateBoard(ctx context.Context, name string) (*model.Board, error)
	ListBoards(ctx context.Context) ([]*model.Board, error)
	GetBoard(ctx context.Context, id string) (*model.Board, error)

	// Cards
	CreateCard(ctx context.Context, req *CreateCardRequest) (*model.Card, error)
	GetCard(ctx context.Context, id string) (*model.Card, error)
	ListCards(ctx context.Context, req *ListCardsRequest) (*ListCardsResponse, error)
	UpdateCard(ctx context.Context, id string, req *UpdateCardRequest) (*model.Card, error)
	CloseCard(ctx context.Context, id string) (*model.Card, error)
	ReopenCard(ctx context.Context, id string) (*model.Card, error)
	AssignCard(ctx context.Context, id, assigneeID string) (*model.Card, error)
	MoveCard(ctx context.Context, id, boardID string) (*model.Card, error)
	PostponeCard(ctx context.Context, id string, until *time.Time) (*model.Card, error)

	// Watchers and comments
	Watch(ctx context.Context, cardID, userID string) error
	Unwatch(ctx context.Context, cardID, userID string) error
	AddComment(ctx context.Context, cardID, body string, mentions []string) (*model.Comment, error)
	GetComments(ctx context.Context, cardID string) ([]*model.Comment, error)

	// Events
	GetEvents(ctx context.Context, cardID string) ([]*model.Event, error)

	// Notifications
	ListNotifications(ctx context.Context, unreadOnly bool) ([]*model.Notification, error)
	ReadNotification(ctx context.Context, id string) error
	DismissNotification(ctx context.Context, id string) error

	// Webhooks
	CreateWebhook(ctx context.Context, url string) (*CreateWebhookResponse, error)
	ListWebhooks(ctx context.Context) ([]*model.Webhook, error)
	DeactivateWebhook(ctx context.Context, id string) error
	ListDeliveries(ctx context.Context, webhookID string) ([]*model.WebhookDelivery, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// CreateCardRequest holds the fields for card creation.
type CreateCardRequest struct {
	BoardID     string   `json:"board_id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status,omitempty"`
	AssigneeID  string   `json:"assignee_id,omitempty"`
	Mentions    []string `json:"mentions,omitempty"`
}

// UpdateCardRequest holds the updatable card fields. Nil pointers leave
// the field unchanged.
type UpdateCardRequest struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Status      *string  `json:"status,omitempty"`
	Mentions    []string `json:"mentions,omitempty"`
}

// ListCardsRequest holds list filters.
type ListCardsRequest struct {
	BoardID  string
	Status   []string
	Assignee string
	Search   string
	Limit    int
	Offset   int
}

// ListCardsResponse is the card listing with its total match count.
type ListCardsResponse struct {
	Cards []*model.Card `json:"cards"`
	Total int           `json:"total"`
}

// CreateWebhookResponse carries the signing secret, which is only ever
// returned at creation time.
type CreateWebhookResponse struct {
	model.Webhook
	Secret string `json:"secret"`
}

// APIError is an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}
