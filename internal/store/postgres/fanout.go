package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/fizzyhq/fizzy/internal/model"
)

// Queries for the fan-out tables: events, notifications, webhooks,
// webhook_deliveries, and jobs.

const eventColumns = `id, account_id, subject_type, subject_id, action, actor_id, particulars, created_at`

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID,
		e.AccountID,
		e.SubjectType,
		e.SubjectID,
		string(e.Action),
		e.ActorID,
		jsonbBytes(e.Particulars),
		e.CreatedAt,
	)
	return writeErr("record event", err)
}

func queryGetEvent(ctx context.Context, db executor, accountID, id string) (*model.Event, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE account_id = $1 AND id = $2`, accountID, id)
	return scanEvent(row)
}

func queryEventsForSubject(ctx context.Context, db executor, accountID, subjectType, subjectID string, limit, offset int) ([]*model.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE account_id = $1 AND subject_type = $2 AND subject_id = $3
		ORDER BY id DESC
		LIMIT $4 OFFSET $5`,
		accountID, subjectType, subjectID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func queryListEventsSince(ctx context.Context, db executor, sinceID string, limit int) ([]*model.Event, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE id > $1
		ORDER BY id
		LIMIT $2`, sinceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func queryCreateNotifications(ctx context.Context, db executor, notifications []*model.Notification) (int, error) {
	if len(notifications) == 0 {
		return 0, nil
	}

	var (
		values []string
		args   []any
	)
	for i, n := range notifications {
		base := i * 5
		values = append(values, placeholderRow(base, 5))
		args = append(args, n.ID, n.AccountID, n.UserID, n.EventID, n.CreatedAt)
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO notifications (id, account_id, user_id, event_id, created_at)
		VALUES `+strings.Join(values, ", ")+`
		ON CONFLICT (event_id, user_id) DO NOTHING`, args...)
	if err != nil {
		return 0, writeErr("create notifications", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, writeErr("create notifications", err)
	}
	return int(n), nil
}

func queryListNotifications(ctx context.Context, db executor, accountID, userID string, unreadOnly bool, limit, offset int) ([]*model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT n.id, n.account_id, n.user_id, n.event_id, n.created_at, n.read_at,
			e.id, e.account_id, e.subject_type, e.subject_id, e.action, e.actor_id, e.particulars, e.created_at
		FROM notifications n
		JOIN events e ON e.id = n.event_id
		WHERE n.account_id = $1 AND n.user_id = $2`
	if unreadOnly {
		query += ` AND n.read_at IS NULL`
	}
	query += ` ORDER BY n.id DESC LIMIT $3 OFFSET $4`

	rows, err := db.QueryContext(ctx, query, accountID, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*model.Notification
	for rows.Next() {
		n, err := scanNotificationWithEvent(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func queryMarkNotificationRead(ctx context.Context, db executor, accountID, userID, id string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE notifications SET read_at = now()
		WHERE account_id = $1 AND user_id = $2 AND id = $3 AND read_at IS NULL`,
		accountID, userID, id)
	if err != nil {
		return writeErr("mark notification read", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryDeleteNotification(ctx context.Context, db executor, accountID, userID, id string) error {
	res, err := db.ExecContext(ctx, `
		DELETE FROM notifications
		WHERE account_id = $1 AND user_id = $2 AND id = $3`,
		accountID, userID, id)
	if err != nil {
		return writeErr("delete notification", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const webhookColumns = `id, account_id, url, secret, active, created_at, created_by`

func queryCreateWebhook(ctx context.Context, db executor, w *model.Webhook) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO webhooks (`+webhookColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		w.ID, w.AccountID, w.URL, w.Secret, w.Active, w.CreatedAt, nullString(w.CreatedBy))
	return writeErr("create webhook", err)
}

func queryGetWebhook(ctx context.Context, db executor, accountID, id string) (*model.Webhook, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+webhookColumns+` FROM webhooks WHERE account_id = $1 AND id = $2`, accountID, id)
	return scanWebhook(row)
}

func queryListWebhooks(ctx context.Context, db executor, accountID string, activeOnly bool) ([]*model.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE account_id = $1`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY created_at`

	rows, err := db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var webhooks []*model.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

func queryDeactivateWebhook(ctx context.Context, db executor, accountID, id string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE webhooks SET active = FALSE WHERE account_id = $1 AND id = $2`,
		accountID, id)
	if err != nil {
		return writeErr("deactivate webhook", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const deliveryColumns = `id, account_id, webhook_id, event_id, payload, attempt, response_status, error, attempted_at, delivered_at`

func queryRecordDelivery(ctx context.Context, db executor, d *model.WebhookDelivery) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO webhook_deliveries (`+deliveryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID,
		d.AccountID,
		d.WebhookID,
		d.EventID,
		d.Payload,
		d.Attempt,
		nullIntPtr(d.ResponseStatus),
		nullString(d.Error),
		d.AttemptedAt,
		nullTimePtr(d.DeliveredAt),
	)
	return writeErr("record delivery", err)
}

func queryListDeliveries(ctx context.Context, db executor, accountID, webhookID string, limit, offset int) ([]*model.WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+deliveryColumns+` FROM webhook_deliveries
		WHERE account_id = $1 AND webhook_id = $2
		ORDER BY id DESC
		LIMIT $3 OFFSET $4`, accountID, webhookID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []*model.WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

func queryHasSuccessfulDelivery(ctx context.Context, db executor, accountID, webhookID, eventID string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM webhook_deliveries
			WHERE account_id = $1 AND webhook_id = $2 AND event_id = $3 AND delivered_at IS NOT NULL
		)`, accountID, webhookID, eventID).Scan(&exists)
	return exists, err
}

const jobColumns = `id, account_id, kind, payload, status, attempts, max_attempts, run_at, last_error, created_at, updated_at`

func queryEnqueueJob(ctx context.Context, db executor, j *model.Job) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		j.ID,
		j.AccountID,
		j.Kind,
		jsonbBytes(j.Payload),
		string(j.Status),
		j.Attempts,
		j.MaxAttempts,
		j.RunAt,
		nullString(j.LastError),
		j.CreatedAt,
		j.UpdatedAt,
	)
	return writeErr("enqueue job", err)
}

// queryClaimJobs atomically moves up to limit due pending jobs to running
// and returns them. SKIP LOCKED keeps concurrent pollers from claiming the
// same rows.
func queryClaimJobs(ctx context.Context, db executor, limit int) ([]*model.Job, error) {
	rows, err := db.QueryContext(ctx, `
		UPDATE jobs SET status = 'running', attempts = attempts + 1, updated_at = now()
		WHERE id IN (
			SELECT id FROM jobs
			WHERE status = 'pending' AND run_at <= now()
			ORDER BY run_at
			FOR UPDATE SKIP LOCKED
			LIMIT $1
		)
		RETURNING `+jobColumns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func queryCompleteJob(ctx context.Context, db executor, id string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE jobs SET status = 'done', updated_at = now() WHERE id = $1`, id)
	return writeErr("complete job", err)
}

func queryRetryJob(ctx context.Context, db executor, id string, runAt time.Time, lastError string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE jobs SET status = 'pending', run_at = $2, last_error = $3, updated_at = now()
		WHERE id = $1`, id, runAt, lastError)
	return writeErr("retry job", err)
}

func queryMarkJobDead(ctx context.Context, db executor, id string, lastError string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE jobs SET status = 'dead', last_error = $2, updated_at = now()
		WHERE id = $1`, id, lastError)
	return writeErr("mark job dead", err)
}

// queryRequeueStuckJobs returns running jobs to pending after a worker
// crash. Handlers are idempotent, so rerunning a job that actually finished
// is safe.
func queryRequeueStuckJobs(ctx context.Context, db executor, olderThan time.Duration) (int, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE jobs SET status = 'pending', updated_at = now()
		WHERE status = 'running' AND updated_at < now() - $1::interval`,
		olderThan.String())
	if err != nil {
		return 0, writeErr("requeue stuck jobs", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func queryCountJobs(ctx context.Context, db executor) (map[model.JobStatus]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.JobStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[model.JobStatus(status)] = n
	}
	return counts, rows.Err()
}
