// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateAccount(ctx context.Context, account *model.Account) error {
	return queryCreateAccount(ctx, s.db, account)
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return queryGetAccount(ctx, s.db, id)
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *model.User) error {
	return queryCreateUser(ctx, s.db, user)
}

func (s *PostgresStore) GetUser(ctx context.Context, accountID, id string) (*model.User, error) {
	return queryGetUser(ctx, s.db, accountID, id)
}

func (s *PostgresStore) ListUsers(ctx context.Context, accountID string) ([]*model.User, error) {
	return queryListUsers(ctx, s.db, accountID)
}

func (s *PostgresStore) CreateBoard(ctx context.Context, board *model.Board) error {
	return queryCreateBoard(ctx, s.db, board)
}

func (s *PostgresStore) GetBoard(ctx context.Context, accountID, id string) (*model.Board, error) {
	return queryGetBoard(ctx, s.db, accountID, id)
}

func (s *PostgresStore) ListBoards(ctx context.Context, accountID string) ([]*model.Board, error) {
	return queryListBoards(ctx, s.db, accountID)
}

func (s *PostgresStore) CreateCard(ctx context.Context, card *model.Card) error {
	return queryCreateCard(ctx, s.db, card)
}

func (s *PostgresStore) GetCard(ctx context.Context, accountID, id string) (*model.Card, error) {
	return queryGetCard(ctx, s.db, accountID, id)
}

func (s *PostgresStore) ListCards(ctx context.Context, accountID string, filter model.CardFilter) ([]*model.Card, int, error) {
	return queryListCards(ctx, s.db, accountID, filter)
}

func (s *PostgresStore) UpdateCard(ctx context.Context, card *model.Card) error {
	return queryUpdateCard(ctx, s.db, card)
}

func (s *PostgresStore) ListStaleCards(ctx context.Context, idleBefore time.Time, limit int) ([]*model.Card, error) {
	return queryListStaleCards(ctx, s.db, idleBefore, limit)
}

func (s *PostgresStore) AddWatcher(ctx context.Context, accountID, cardID, userID string) error {
	return queryAddWatcher(ctx, s.db, accountID, cardID, userID)
}

func (s *PostgresStore) RemoveWatcher(ctx context.Context, accountID, cardID, userID string) error {
	return queryRemoveWatcher(ctx, s.db, accountID, cardID, userID)
}

func (s *PostgresStore) GetWatchers(ctx context.Context, accountID, cardID string) ([]string, error) {
	return queryGetWatchers(ctx, s.db, accountID, cardID)
}

func (s *PostgresStore) AddComment(ctx context.Context, comment *model.Comment) error {
	return queryAddComment(ctx, s.db, comment)
}

func (s *PostgresStore) GetComments(ctx context.Context, accountID, cardID string) ([]*model.Comment, error) {
	return queryGetComments(ctx, s.db, accountID, cardID)
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.db, event)
}

func (s *PostgresStore) GetEvent(ctx context.Context, accountID, id string) (*model.Event, error) {
	return queryGetEvent(ctx, s.db, accountID, id)
}

func (s *PostgresStore) EventsForSubject(ctx context.Context, accountID, subjectType, subjectID string, limit, offset int) ([]*model.Event, error) {
	return queryEventsForSubject(ctx, s.db, accountID, subjectType, subjectID, limit, offset)
}

func (s *PostgresStore) ListEventsSince(ctx context.Context, sinceID string, limit int) ([]*model.Event, error) {
	return queryListEventsSince(ctx, s.db, sinceID, limit)
}

func (s *PostgresStore) CreateNotifications(ctx context.Context, notifications []*model.Notification) (int, error) {
	return queryCreateNotifications(ctx, s.db, notifications)
}

func (s *PostgresStore) ListNotifications(ctx context.Context, accountID, userID string, unreadOnly bool, limit, offset int) ([]*model.Notification, error) {
	return queryListNotifications(ctx, s.db, accountID, userID, unreadOnly, limit, offset)
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, accountID, userID, id string) error {
	return queryMarkNotificationRead(ctx, s.db, accountID, userID, id)
}

func (s *PostgresStore) DeleteNotification(ctx context.Context, accountID, userID, id string) error {
	return queryDeleteNotification(ctx, s.db, accountID, userID, id)
}

func (s *PostgresStore) CreateWebhook(ctx context.Context, webhook *model.Webhook) error {
	return queryCreateWebhook(ctx, s.db, webhook)
}

func (s *PostgresStore) GetWebhook(ctx context.Context, accountID, id string) (*model.Webhook, error) {
	return queryGetWebhook(ctx, s.db, accountID, id)
}

func (s *PostgresStore) ListWebhooks(ctx context.Context, accountID string, activeOnly bool) ([]*model.Webhook, error) {
	return queryListWebhooks(ctx, s.db, accountID, activeOnly)
}

func (s *PostgresStore) DeactivateWebhook(ctx context.Context, accountID, id string) error {
	return queryDeactivateWebhook(ctx, s.db, accountID, id)
}

func (s *PostgresStore) RecordDelivery(ctx context.Context, delivery *model.WebhookDelivery) error {
	return queryRecordDelivery(ctx, s.db, delivery)
}

func (s *PostgresStore) ListDeliveries(ctx context.Context, accountID, webhookID string, limit, offset int) ([]*model.WebhookDelivery, error) {
	return queryListDeliveries(ctx, s.db, accountID, webhookID, limit, offset)
}

func (s *PostgresStore) HasSuccessfulDelivery(ctx context.Context, accountID, webhookID, eventID string) (bool, error) {
	return queryHasSuccessfulDelivery(ctx, s.db, accountID, webhookID, eventID)
}

func (s *PostgresStore) EnqueueJob(ctx context.Context, job *model.Job) error {
	return queryEnqueueJob(ctx, s.db, job)
}

func (s *PostgresStore) ClaimJobs(ctx context.Context, limit int) ([]*model.Job, error) {
	return queryClaimJobs(ctx, s.db, limit)
}

func (s *PostgresStore) CompleteJob(ctx context.Context, id string) error {
	return queryCompleteJob(ctx, s.db, id)
}

func (s *PostgresStore) RetryJob(ctx context.Context, id string, runAt time.Time, lastError string) error {
	return queryRetryJob(ctx, s.db, id, runAt, lastError)
}

func (s *PostgresStore) MarkJobDead(ctx context.Context, id string, lastError string) error {
	return queryMarkJobDead(ctx, s.db, id, lastError)
}

func (s *PostgresStore) RequeueStuckJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	return queryRequeueStuckJobs(ctx, s.db, olderThan)
}

func (s *PostgresStore) CountJobs(ctx context.Context) (map[model.JobStatus]int, error) {
	return queryCountJobs(ctx, s.db)
}

func (s *PostgresStore) CountCardsByStatus(ctx context.Context, accountID string) (map[model.CardStatus]int, error) {
	return queryCountCardsByStatus(ctx, s.db, accountID)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateAccount(ctx context.Context, account *model.Account) error {
	return queryCreateAccount(ctx, s.tx, account)
}

func (s *txStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return queryGetAccount(ctx, s.tx, id)
}

func (s *txStore) CreateUser(ctx context.Context, user *model.User) error {
	return queryCreateUser(ctx, s.tx, user)
}

func (s *txStore) GetUser(ctx context.Context, accountID, id string) (*model.User, error) {
	return queryGetUser(ctx, s.tx, accountID, id)
}

func (s *txStore) ListUsers(ctx context.Context, accountID string) ([]*model.User, error) {
	return queryListUsers(ctx, s.tx, accountID)
}

func (s *txStore) CreateBoard(ctx context.Context, board *model.Board) error {
	return queryCreateBoard(ctx, s.tx, board)
}

func (s *txStore) GetBoard(ctx context.Context, accountID, id string) (*model.Board, error) {
	return queryGetBoard(ctx, s.tx, accountID, id)
}

func (s *txStore) ListBoards(ctx context.Context, accountID string) ([]*model.Board, error) {
	return queryListBoards(ctx, s.tx, accountID)
}

func (s *txStore) CreateCard(ctx context.Context, card *model.Card) error {
	return queryCreateCard(ctx, s.tx, card)
}

func (s *txStore) GetCard(ctx context.Context, accountID, id string) (*model.Card, error) {
	return queryGetCard(ctx, s.tx, accountID, id)
}

func (s *txStore) ListCards(ctx context.Context, accountID string, filter model.CardFilter) ([]*model.Card, int, error) {
	return queryListCards(ctx, s.tx, accountID, filter)
}

func (s *txStore) UpdateCard(ctx context.Context, card *model.Card) error {
	return queryUpdateCard(ctx, s.tx, card)
}

func (s *txStore) ListStaleCards(ctx context.Context, idleBefore time.Time, limit int) ([]*model.Card, error) {
	return queryListStaleCards(ctx, s.tx, idleBefore, limit)
}

func (s *txStore) AddWatcher(ctx context.Context, accountID, cardID, userID string) error {
	return queryAddWatcher(ctx, s.tx, accountID, cardID, userID)
}

func (s *txStore) RemoveWatcher(ctx context.Context, accountID, cardID, userID string) error {
	return queryRemoveWatcher(ctx, s.tx, accountID, cardID, userID)
}

func (s *txStore) GetWatchers(ctx context.Context, accountID, cardID string) ([]string, error) {
	return queryGetWatchers(ctx, s.tx, accountID, cardID)
}

func (s *txStore) AddComment(ctx context.Context, comment *model.Comment) error {
	return queryAddComment(ctx, s.tx, comment)
}

func (s *txStore) GetComments(ctx context.Context, accountID, cardID string) ([]*model.Comment, error) {
	return queryGetComments(ctx, s.tx, accountID, cardID)
}

func (s *txStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.tx, event)
}

func (s *txStore) GetEvent(ctx context.Context, accountID, id string) (*model.Event, error) {
	return queryGetEvent(ctx, s.tx, accountID, id)
}

func (s *txStore) EventsForSubject(ctx context.Context, accountID, subjectType, subjectID string, limit, offset int) ([]*model.Event, error) {
	return queryEventsForSubject(ctx, s.tx, accountID, subjectType, subjectID, limit, offset)
}

func (s *txStore) ListEventsSince(ctx context.Context, sinceID string, limit int) ([]*model.Event, error) {
	return queryListEventsSince(ctx, s.tx, sinceID, limit)
}

func (s *txStore) CreateNotifications(ctx context.Context, notifications []*model.Notification) (int, error) {
	return queryCreateNotifications(ctx, s.tx, notifications)
}

func (s *txStore) ListNotifications(ctx context.Context, accountID, userID string, unreadOnly bool, limit, offset int) ([]*model.Notification, error) {
	return queryListNotifications(ctx, s.tx, accountID, userID, unreadOnly, limit, offset)
}

func (s *txStore) MarkNotificationRead(ctx context.Context, accountID, userID, id string) error {
	return queryMarkNotificationRead(ctx, s.tx, accountID, userID, id)
}

func (s *txStore) DeleteNotification(ctx context.Context, accountID, userID, id string) error {
	return queryDeleteNotification(ctx, s.tx, accountID, userID, id)
}

func (s *txStore) CreateWebhook(ctx context.Context, webhook *model.Webhook) error {
	return queryCreateWebhook(ctx, s.tx, webhook)
}

func (s *txStore) GetWebhook(ctx context.Context, accountID, id string) (*model.Webhook, error) {
	return queryGetWebhook(ctx, s.tx, accountID, id)
}

func (s *txStore) ListWebhooks(ctx context.Context, accountID string, activeOnly bool) ([]*model.Webhook, error) {
	return queryListWebhooks(ctx, s.tx, accountID, activeOnly)
}

func (s *txStore) DeactivateWebhook(ctx context.Context, accountID, id string) error {
	return queryDeactivateWebhook(ctx, s.tx, accountID, id)
}

func (s *txStore) RecordDelivery(ctx context.Context, delivery *model.WebhookDelivery) error {
	return queryRecordDelivery(ctx, s.tx, delivery)
}

func (s *txStore) ListDeliveries(ctx context.Context, accountID, webhookID string, limit, offset int) ([]*model.WebhookDelivery, error) {
	return queryListDeliveries(ctx, s.tx, accountID, webhookID, limit, offset)
}

func (s *txStore) HasSuccessfulDelivery(ctx context.Context, accountID, webhookID, eventID string) (bool, error) {
	return queryHasSuccessfulDelivery(ctx, s.tx, accountID, webhookID, eventID)
}

func (s *txStore) EnqueueJob(ctx context.Context, job *model.Job) error {
	return queryEnqueueJob(ctx, s.tx, job)
}

func (s *txStore) ClaimJobs(ctx context.Context, limit int) ([]*model.Job, error) {
	return queryClaimJobs(ctx, s.tx, limit)
}

func (s *txStore) CompleteJob(ctx context.Context, id string) error {
	return queryCompleteJob(ctx, s.tx, id)
}

func (s *txStore) RetryJob(ctx context.Context, id string, runAt time.Time, lastError string) error {
	return queryRetryJob(ctx, s.tx, id, runAt, lastError)
}

func (s *txStore) MarkJobDead(ctx context.Context, id string, lastError string) error {
	return queryMarkJobDead(ctx, s.tx, id, lastError)
}

func (s *txStore) RequeueStuckJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	return queryRequeueStuckJobs(ctx, s.tx, olderThan)
}

func (s *txStore) CountJobs(ctx context.Context) (map[model.JobStatus]int, error) {
	return queryCountJobs(ctx, s.tx)
}

func (s *txStore) CountCardsByStatus(ctx context.Context, accountID string) (map[model.CardStatus]int, error) {
	return queryCountCardsByStatus(ctx, s.tx, accountID)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
