package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fizzyhq/fizzy/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanUser(row scannable) (*model.User, error) {
	var u model.User
	var name sql.NullString
	if err := row.Scan(&u.ID, &u.AccountID, &u.Handle, &name, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Name = name.String
	return &u, nil
}

func scanBoard(row scannable) (*model.Board, error) {
	var b model.Board
	var createdBy sql.NullString
	if err := row.Scan(&b.ID, &b.AccountID, &b.Name, &b.CreatedAt, &createdBy); err != nil {
		return nil, err
	}
	b.CreatedBy = createdBy.String
	return &b, nil
}

// cardScanDests returns the scan destinations for cardColumns, plus a
// finish function that moves nullable values into the card.
func cardScanDests(c *model.Card) ([]any, func()) {
	var (
		description    sql.NullString
		assignee       sql.NullString
		createdBy      sql.NullString
		closedAt       sql.NullTime
		closedBy       sql.NullString
		postponedUntil sql.NullTime
	)
	dests := []any{
		&c.ID,
		&c.AccountID,
		&c.BoardID,
		&c.Title,
		&description,
		&c.Status,
		&assignee,
		&c.CreatedAt,
		&createdBy,
		&c.UpdatedAt,
		&closedAt,
		&closedBy,
		&postponedUntil,
		&c.LastActivityAt,
	}
	finish := func() {
		c.Description = description.String
		c.AssigneeID = assignee.String
		c.CreatedBy = createdBy.String
		c.ClosedBy = closedBy.String
		if closedAt.Valid {
			t := closedAt.Time
			c.ClosedAt = &t
		}
		if postponedUntil.Valid {
			t := postponedUntil.Time
			c.PostponedUntil = &t
		}
	}
	return dests, finish
}

// scanCard scans a single row into a model.Card.
// The row must contain columns in the order defined by cardColumns.
func scanCard(row scannable) (*model.Card, error) {
	var c model.Card
	dests, finish := cardScanDests(&c)
	if err := row.Scan(dests...); err != nil {
		return nil, err
	}
	finish()
	return &c, nil
}

// scanCardWithTotal scans a total_count column followed by cardColumns.
func scanCardWithTotal(row scannable) (*model.Card, int, error) {
	var c model.Card
	var total int
	dests, finish := cardScanDests(&c)
	if err := row.Scan(append([]any{&total}, dests...)...); err != nil {
		return nil, 0, err
	}
	finish()
	return &c, total, nil
}

func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	var particulars []byte
	err := row.Scan(
		&e.ID,
		&e.AccountID,
		&e.SubjectType,
		&e.SubjectID,
		&e.Action,
		&e.ActorID,
		&particulars,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(particulars) > 0 {
		e.Particulars = json.RawMessage(particulars)
	}
	return &e, nil
}

func collectEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanNotificationWithEvent(row scannable) (*model.Notification, error) {
	var (
		n           model.Notification
		e           model.Event
		readAt      sql.NullTime
		particulars []byte
	)
	err := row.Scan(
		&n.ID, &n.AccountID, &n.UserID, &n.EventID, &n.CreatedAt, &readAt,
		&e.ID, &e.AccountID, &e.SubjectType, &e.SubjectID, &e.Action, &e.ActorID, &particulars, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if readAt.Valid {
		t := readAt.Time
		n.ReadAt = &t
	}
	if len(particulars) > 0 {
		e.Particulars = json.RawMessage(particulars)
	}
	n.Event = &e
	return &n, nil
}

func scanWebhook(row scannable) (*model.Webhook, error) {
	var w model.Webhook
	var createdBy sql.NullString
	err := row.Scan(&w.ID, &w.AccountID, &w.URL, &w.Secret, &w.Active, &w.CreatedAt, &createdBy)
	if err != nil {
		return nil, err
	}
	w.CreatedBy = createdBy.String
	return &w, nil
}

func scanDelivery(row scannable) (*model.WebhookDelivery, error) {
	var (
		d              model.WebhookDelivery
		payload        []byte
		responseStatus sql.NullInt64
		errMsg         sql.NullString
		deliveredAt    sql.NullTime
	)
	err := row.Scan(
		&d.ID,
		&d.AccountID,
		&d.WebhookID,
		&d.EventID,
		&payload,
		&d.Attempt,
		&responseStatus,
		&errMsg,
		&d.AttemptedAt,
		&deliveredAt,
	)
	if err != nil {
		return nil, err
	}
	d.Payload = payload
	d.Error = errMsg.String
	if responseStatus.Valid {
		s := int(responseStatus.Int64)
		d.ResponseStatus = &s
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		d.DeliveredAt = &t
	}
	return &d, nil
}

func scanJob(row scannable) (*model.Job, error) {
	var (
		j         model.Job
		payload   []byte
		lastError sql.NullString
	)
	err := row.Scan(
		&j.ID,
		&j.AccountID,
		&j.Kind,
		&payload,
		&j.Status,
		&j.Attempts,
		&j.MaxAttempts,
		&j.RunAt,
		&lastError,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		j.Payload = json.RawMessage(payload)
	}
	j.LastError = lastError.String
	return &j, nil
}

// placeholderRow builds "($n, $n+1, ...)" for multi-row inserts.
func placeholderRow(base, width int) string {
	parts := make([]string, width)
	for i := range width {
		parts[i] = fmt.Sprintf("$%d", base+i+1)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// nullString converts an empty string to a SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullTimePtr converts a nil *time.Time to a SQL NULL.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullIntPtr converts a nil *int to a SQL NULL.
func nullIntPtr(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

// jsonbBytes converts an empty json.RawMessage to nil so empty payloads
// are stored as NULL rather than a zero-length JSONB value.
func jsonbBytes(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
