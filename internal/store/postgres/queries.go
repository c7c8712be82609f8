package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/store"
)

// cardColumns is the column list used for SELECT statements on the cards table.
const cardColumns = `id, account_id, board_id, title, description, status, assignee_id,
	created_at, created_by, updated_at, closed_at, closed_by, postponed_until, last_activity_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// writeErr wraps storage write failures in a store.PersistenceError.
func writeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &store.PersistenceError{Op: op, Err: err}
}

func queryCreateAccount(ctx context.Context, db executor, a *model.Account) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, created_at) VALUES ($1, $2, $3)`,
		a.ID, a.Name, a.CreatedAt)
	return writeErr("create account", err)
}

func queryGetAccount(ctx context.Context, db executor, id string) (*model.Account, error) {
	row := db.QueryRowContext(ctx, `SELECT id, name, created_at FROM accounts WHERE id = $1`, id)
	var a model.Account
	if err := row.Scan(&a.ID, &a.Name, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func queryCreateUser(ctx context.Context, db executor, u *model.User) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, account_id, handle, name, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.AccountID, u.Handle, nullString(u.Name), u.CreatedAt)
	return writeErr("create user", err)
}

func queryGetUser(ctx context.Context, db executor, accountID, id string) (*model.User, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, account_id, handle, name, created_at
		FROM users WHERE account_id = $1 AND id = $2`, accountID, id)
	return scanUser(row)
}

func queryListUsers(ctx context.Context, db executor, accountID string) ([]*model.User, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, account_id, handle, name, created_at
		FROM users WHERE account_id = $1 ORDER BY handle`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func queryCreateBoard(ctx context.Context, db executor, b *model.Board) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO boards (id, account_id, name, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5)`,
		b.ID, b.AccountID, b.Name, b.CreatedAt, nullString(b.CreatedBy))
	return writeErr("create board", err)
}

func queryGetBoard(ctx context.Context, db executor, accountID, id string) (*model.Board, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, account_id, name, created_at, created_by
		FROM boards WHERE account_id = $1 AND id = $2`, accountID, id)
	return scanBoard(row)
}

func queryListBoards(ctx context.Context, db executor, accountID string) ([]*model.Board, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, account_id, name, created_at, created_by
		FROM boards WHERE account_id = $1 ORDER BY created_at`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var boards []*model.Board
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

func queryCreateCard(ctx context.Context, db executor, c *model.Card) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO cards (
			id, account_id, board_id, title, description, status, assignee_id,
			created_at, created_by, updated_at, closed_at, closed_by, postponed_until, last_activity_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13, $14
		)`,
		c.ID,
		c.AccountID,
		c.BoardID,
		c.Title,
		nullString(c.Description),
		string(c.Status),
		nullString(c.AssigneeID),
		c.CreatedAt,
		nullString(c.CreatedBy),
		c.UpdatedAt,
		nullTimePtr(c.ClosedAt),
		nullString(c.ClosedBy),
		nullTimePtr(c.PostponedUntil),
		c.LastActivityAt,
	)
	return writeErr("create card", err)
}

func queryGetCard(ctx context.Context, db executor, accountID, id string) (*model.Card, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE account_id = $1 AND id = $2`, accountID, id)
	c, err := scanCard(row)
	if err != nil {
		return nil, err
	}

	watchers, err := queryGetWatchers(ctx, db, accountID, id)
	if err != nil {
		return nil, err
	}
	c.Watchers = watchers

	comments, err := queryGetComments(ctx, db, accountID, id)
	if err != nil {
		return nil, err
	}
	c.Comments = comments

	return c, nil
}

func queryListCards(ctx context.Context, db executor, accountID string, filter model.CardFilter) ([]*model.Card, int, error) {
	whereClauses := []string{"account_id = $1"}
	args := []any{accountID}
	argIdx := 1

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.BoardID != "" {
		whereClauses = append(whereClauses, "board_id = "+nextArg())
		args = append(args, filter.BoardID)
	}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = nextArg()
			args = append(args, string(s))
		}
		whereClauses = append(whereClauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	if filter.AssigneeID != "" {
		whereClauses = append(whereClauses, "assignee_id = "+nextArg())
		args = append(args, filter.AssigneeID)
	}

	if filter.Search != "" {
		p := nextArg()
		whereClauses = append(whereClauses,
			fmt.Sprintf("(title ILIKE '%%' || %s || '%%' OR description ILIKE '%%' || %s || '%%')", p, p))
		args = append(args, filter.Search)
	}

	where := "WHERE " + strings.Join(whereClauses, " AND ")

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT COUNT(*) OVER () AS total_count, ` + cardColumns + `
		FROM cards ` + where + `
		ORDER BY last_activity_at DESC
		LIMIT ` + nextArg()
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		cards []*model.Card
		total int
	)
	for rows.Next() {
		c, n, err := scanCardWithTotal(rows)
		if err != nil {
			return nil, 0, err
		}
		total = n
		cards = append(cards, c)
	}
	return cards, total, rows.Err()
}

func queryUpdateCard(ctx context.Context, db executor, c *model.Card) error {
	res, err := db.ExecContext(ctx, `
		UPDATE cards SET
			board_id = $3, title = $4, description = $5, status = $6, assignee_id = $7,
			updated_at = $8, closed_at = $9, closed_by = $10, postponed_until = $11, last_activity_at = $12
		WHERE account_id = $1 AND id = $2`,
		c.AccountID,
		c.ID,
		c.BoardID,
		c.Title,
		nullString(c.Description),
		string(c.Status),
		nullString(c.AssigneeID),
		c.UpdatedAt,
		nullTimePtr(c.ClosedAt),
		nullString(c.ClosedBy),
		nullTimePtr(c.PostponedUntil),
		c.LastActivityAt,
	)
	if err != nil {
		return writeErr("update card", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return writeErr("update card", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryListStaleCards(ctx context.Context, db executor, idleBefore time.Time, limit int) ([]*model.Card, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+cardColumns+` FROM cards
		WHERE status = 'open' AND last_activity_at < $1
		ORDER BY last_activity_at
		LIMIT $2`, idleBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []*model.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func queryAddWatcher(ctx context.Context, db executor, accountID, cardID, userID string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO card_watchers (account_id, card_id, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (card_id, user_id) DO NOTHING`,
		accountID, cardID, userID)
	return writeErr("add watcher", err)
}

func queryRemoveWatcher(ctx context.Context, db executor, accountID, cardID, userID string) error {
	_, err := db.ExecContext(ctx, `
		DELETE FROM card_watchers
		WHERE account_id = $1 AND card_id = $2 AND user_id = $3`,
		accountID, cardID, userID)
	return writeErr("remove watcher", err)
}

func queryGetWatchers(ctx context.Context, db executor, accountID, cardID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT user_id FROM card_watchers
		WHERE account_id = $1 AND card_id = $2 ORDER BY user_id`, accountID, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var watchers []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		watchers = append(watchers, id)
	}
	return watchers, rows.Err()
}

func queryAddComment(ctx context.Context, db executor, c *model.Comment) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO comments (id, account_id, card_id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.AccountID, c.CardID, c.AuthorID, c.Body, c.CreatedAt)
	return writeErr("add comment", err)
}

func queryGetComments(ctx context.Context, db executor, accountID, cardID string) ([]*model.Comment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, account_id, card_id, author_id, body, created_at
		FROM comments WHERE account_id = $1 AND card_id = $2 ORDER BY id`, accountID, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*model.Comment
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.AccountID, &c.CardID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

func queryCountCardsByStatus(ctx context.Context, db executor, accountID string) (map[model.CardStatus]int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM cards WHERE account_id = $1 GROUP BY status`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.CardStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[model.CardStatus(status)] = n
	}
	return counts, rows.Err()
}
