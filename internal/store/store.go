package store

import (
	"context"
	"time"

	"github.com/fizzyhq/fizzy/internal/model"
)

// Store defines the persistence interface for fizzy. Every entity read or
// write is scoped to an account; cross-account access is a query miss, not
// an error, so a stolen ID never leaks another tenant's data.
type Store interface {
	// Accounts and users
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, accountID, id string) (*model.User, error)
	ListUsers(ctx context.Context, accountID string) ([]*model.User, error)

	// Boards
	CreateBoard(ctx context.Context, board *model.Board) error
	GetBoard(ctx context.Context, accountID, id string) (*model.Board, error)
	ListBoards(ctx context.Context, accountID string) ([]*model.Board, error)

	// Cards
	CreateCard(ctx context.Context, card *model.Card) error
	GetCard(ctx context.Context, accountID, id string) (*model.Card, error)
	ListCards(ctx context.Context, accountID string, filter model.CardFilter) ([]*model.Card, int, error) // returns cards, total count, error
	UpdateCard(ctx context.Context, card *model.Card) error
	ListStaleCards(ctx context.Context, idleBefore time.Time, limit int) ([]*model.Card, error)

	// Watchers
	AddWatcher(ctx context.Context, accountID, cardID, userID string) error
	RemoveWatcher(ctx context.Context, accountID, cardID, userID string) error
	GetWatchers(ctx context.Context, accountID, cardID string) ([]string, error)

	// Comments
	AddComment(ctx context.Context, comment *model.Comment) error
	GetComments(ctx context.Context, accountID, cardID string) ([]*model.Comment, error)

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	GetEvent(ctx context.Context, accountID, id string) (*model.Event, error)
	EventsForSubject(ctx context.Context, accountID, subjectType, subjectID string, limit, offset int) ([]*model.Event, error)
	ListEventsSince(ctx context.Context, sinceID string, limit int) ([]*model.Event, error)

	// Notifications
	CreateNotifications(ctx context.Context, notifications []*model.Notification) (int, error) // returns rows actually inserted
	ListNotifications(ctx context.Context, accountID, userID string, unreadOnly bool, limit, offset int) ([]*model.Notification, error)
	MarkNotificationRead(ctx context.Context, accountID, userID, id string) error
	DeleteNotification(ctx context.Context, accountID, userID, id string) error

	// Webhooks
	CreateWebhook(ctx context.Context, webhook *model.Webhook) error
	GetWebhook(ctx context.Context, accountID, id string) (*model.Webhook, error)
	ListWebhooks(ctx context.Context, accountID string, activeOnly bool) ([]*model.Webhook, error)
	DeactivateWebhook(ctx context.Context, accountID, id string) error
	RecordDelivery(ctx context.Context, delivery *model.WebhookDelivery) error
	ListDeliveries(ctx context.Context, accountID, webhookID string, limit, offset int) ([]*model.WebhookDelivery, error)
	HasSuccessfulDelivery(ctx context.Context, accountID, webhookID, eventID string) (bool, error)

	// Jobs
	EnqueueJob(ctx context.Context, job *model.Job) error
	ClaimJobs(ctx context.Context, limit int) ([]*model.Job, error)
	CompleteJob(ctx context.Context, id string) error
	RetryJob(ctx context.Context, id string, runAt time.Time, lastError string) error
	MarkJobDead(ctx context.Context, id string, lastError string) error
	RequeueStuckJobs(ctx context.Context, olderThan time.Duration) (int, error)
	CountJobs(ctx context.Context) (map[model.JobStatus]int, error)

	// Stats
	CountCardsByStatus(ctx context.Context, accountID string) (map[model.CardStatus]int, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
