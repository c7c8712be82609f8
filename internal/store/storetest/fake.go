// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/store"
)

// Fake is an in-memory Store. It applies the same tenant scoping rules as
// the Postgres store: lookups outside the caller's account behave as
// missing rows. RunInTransaction runs the callback against the same fake,
// so there is no rollback; tests that need rollback semantics should use
// sqlmock against the real store instead.
type Fake struct {
	mu sync.Mutex

	Accounts      map[string]*model.Account
	Users         map[string]*model.User
	Boards        map[string]*model.Board
	Cards         map[string]*model.Card
	Watchers      map[string][]string // card ID -> user IDs
	Comments      map[string][]*model.Comment
	Events        map[string]*model.Event
	Notifications []*model.Notification
	Webhooks      map[string]*model.Webhook
	Deliveries    []*model.WebhookDelivery
	Jobs          map[string]*model.Job

	errs map[string]error
}

func NewFake() *Fake {
	return &Fake{
		Accounts: map[string]*model.Account{},
		Users:    map[string]*model.User{},
		Boards:   map[string]*model.Board{},
		Cards:    map[string]*model.Card{},
		Watchers: map[string][]string{},
		Comments: map[string][]*model.Comment{},
		Events:   map[string]*model.Event{},
		Webhooks: map[string]*model.Webhook{},
		Jobs:     map[string]*model.Job{},
		errs:     map[string]error{},
	}
}

var _ store.Store = (*Fake)(nil)

// ForceErr makes the named method (e.g. "RecordEvent") return err on every
// call until cleared with ForceErr(method, nil).
func (f *Fake) ForceErr(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, method)
		return
	}
	f.errs[method] = err
}

func (f *Fake) forced(method string) error {
	return f.errs[method]
}

// Accounts and users

func (f *Fake) CreateAccount(ctx context.Context, a *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("CreateAccount"); err != nil {
		return err
	}
	f.Accounts[a.ID] = a
	return nil
}

func (f *Fake) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("GetAccount"); err != nil {
		return nil, err
	}
	a, ok := f.Accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return a, nil
}

func (f *Fake) CreateUser(ctx context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Users[u.ID] = u
	return nil
}

func (f *Fake) GetUser(ctx context.Context, accountID, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.Users[id]
	if !ok || u.AccountID != accountID {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (f *Fake) ListUsers(ctx context.Context, accountID string) ([]*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var users []*model.User
	for _, u := range f.Users {
		if u.AccountID == accountID {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// Boards

func (f *Fake) CreateBoard(ctx context.Context, b *model.Board) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("CreateBoard"); err != nil {
		return err
	}
	f.Boards[b.ID] = b
	return nil
}

func (f *Fake) GetBoard(ctx context.Context, accountID, id string) (*model.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.Boards[id]
	if !ok || b.AccountID != accountID {
		return nil, store.ErrNotFound
	}
	return b, nil
}

func (f *Fake) ListBoards(ctx context.Context, accountID string) ([]*model.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var boards []*model.Board
	for _, b := range f.Boards {
		if b.AccountID == accountID {
			boards = append(boards, b)
		}
	}
	sort.Slice(boards, func(i, j int) bool { return boards[i].ID < boards[j].ID })
	return boards, nil
}

// Cards

func (f *Fake) CreateCard(ctx context.Context, c *model.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("CreateCard"); err != nil {
		return err
	}
	f.Cards[c.ID] = c
	return nil
}

func (f *Fake) GetCard(ctx context.Context, accountID, id string) (*model.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.Cards[id]
	if !ok || c.AccountID != accountID {
		return nil, store.ErrNotFound
	}
	cp := *c
	cp.Watchers = append([]string(nil), f.Watchers[id]...)
	cp.Comments = append([]*model.Comment(nil), f.Comments[id]...)
	return &cp, nil
}

func (f *Fake) ListCards(ctx context.Context, accountID string, filter model.CardFilter) ([]*model.Card, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var cards []*model.Card
	for _, c := range f.Cards {
		if c.AccountID != accountID {
			continue
		}
		if filter.BoardID != "" && c.BoardID != filter.BoardID {
			continue
		}
		if filter.AssigneeID != "" && c.AssigneeID != filter.AssigneeID {
			continue
		}
		if len(filter.Status) > 0 {
			match := false
			for _, s := range filter.Status {
				if c.Status == s {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(c.Title), strings.ToLower(filter.Search)) {
			continue
		}
		cards = append(cards, c)
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })
	total := len(cards)
	if filter.Offset > 0 {
		if filter.Offset >= len(cards) {
			cards = nil
		} else {
			cards = cards[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(cards) > filter.Limit {
		cards = cards[:filter.Limit]
	}
	return cards, total, nil
}

func (f *Fake) UpdateCard(ctx context.Context, c *model.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("UpdateCard"); err != nil {
		return err
	}
	existing, ok := f.Cards[c.ID]
	if !ok || existing.AccountID != c.AccountID {
		return store.ErrNotFound
	}
	f.Cards[c.ID] = c
	return nil
}

func (f *Fake) ListStaleCards(ctx context.Context, idleBefore time.Time, limit int) ([]*model.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("ListStaleCards"); err != nil {
		return nil, err
	}
	var cards []*model.Card
	for _, c := range f.Cards {
		if c.Status == model.StatusOpen && c.LastActivityAt.Before(idleBefore) {
			cards = append(cards, c)
		}
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })
	if limit > 0 && len(cards) > limit {
		cards = cards[:limit]
	}
	return cards, nil
}

// Watchers

func (f *Fake) AddWatcher(ctx context.Context, accountID, cardID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.Watchers[cardID] {
		if w == userID {
			return nil
		}
	}
	f.Watchers[cardID] = append(f.Watchers[cardID], userID)
	return nil
}

func (f *Fake) RemoveWatcher(ctx context.Context, accountID, cardID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	watchers := f.Watchers[cardID]
	for i, w := range watchers {
		if w == userID {
			f.Watchers[cardID] = append(watchers[:i], watchers[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *Fake) GetWatchers(ctx context.Context, accountID, cardID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("GetWatchers"); err != nil {
		return nil, err
	}
	c, ok := f.Cards[cardID]
	if !ok || c.AccountID != accountID {
		return nil, nil
	}
	return append([]string(nil), f.Watchers[cardID]...), nil
}

// Comments

func (f *Fake) AddComment(ctx context.Context, c *model.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Comments[c.CardID] = append(f.Comments[c.CardID], c)
	return nil
}

func (f *Fake) GetComments(ctx context.Context, accountID, cardID string) ([]*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.Comment(nil), f.Comments[cardID]...), nil
}

// Events

func (f *Fake) RecordEvent(ctx context.Context, e *model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("RecordEvent"); err != nil {
		return err
	}
	f.Events[e.ID] = e
	return nil
}

func (f *Fake) GetEvent(ctx context.Context, accountID, id string) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("GetEvent"); err != nil {
		return nil, err
	}
	e, ok := f.Events[id]
	if !ok || e.AccountID != accountID {
		return nil, store.ErrNotFound
	}
	return e, nil
}

func (f *Fake) EventsForSubject(ctx context.Context, accountID, subjectType, subjectID string, limit, offset int) ([]*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var events []*model.Event
	for _, e := range f.Events {
		if e.AccountID == accountID && e.SubjectType == subjectType && e.SubjectID == subjectID {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID > events[j].ID })
	return events, nil
}

func (f *Fake) ListEventsSince(ctx context.Context, sinceID string, limit int) ([]*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("ListEventsSince"); err != nil {
		return nil, err
	}
	var events []*model.Event
	for _, e := range f.Events {
		if e.ID > sinceID {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// Notifications

func (f *Fake) CreateNotifications(ctx context.Context, notifications []*model.Notification) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("CreateNotifications"); err != nil {
		return 0, err
	}
	inserted := 0
	for _, n := range notifications {
		if f.hasNotification(n.EventID, n.UserID) {
			continue
		}
		f.Notifications = append(f.Notifications, n)
		inserted++
	}
	return inserted, nil
}

func (f *Fake) hasNotification(eventID, userID string) bool {
	for _, n := range f.Notifications {
		if n.EventID == eventID && n.UserID == userID {
			return true
		}
	}
	return false
}

func (f *Fake) ListNotifications(ctx context.Context, accountID, userID string, unreadOnly bool, limit, offset int) ([]*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Notification
	for _, n := range f.Notifications {
		if n.AccountID != accountID || n.UserID != userID {
			continue
		}
		if unreadOnly && n.ReadAt != nil {
			continue
		}
		cp := *n
		cp.Event = f.Events[n.EventID]
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *Fake) MarkNotificationRead(ctx context.Context, accountID, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.Notifications {
		if n.ID == id && n.AccountID == accountID && n.UserID == userID {
			now := time.Now().UTC()
			n.ReadAt = &now
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *Fake) DeleteNotification(ctx context.Context, accountID, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.Notifications {
		if n.ID == id && n.AccountID == accountID && n.UserID == userID {
			f.Notifications = append(f.Notifications[:i], f.Notifications[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

// Webhooks

func (f *Fake) CreateWebhook(ctx context.Context, w *model.Webhook) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Webhooks[w.ID] = w
	return nil
}

func (f *Fake) GetWebhook(ctx context.Context, accountID, id string) (*model.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("GetWebhook"); err != nil {
		return nil, err
	}
	w, ok := f.Webhooks[id]
	if !ok || w.AccountID != accountID {
		return nil, store.ErrNotFound
	}
	return w, nil
}

func (f *Fake) ListWebhooks(ctx context.Context, accountID string, activeOnly bool) ([]*model.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("ListWebhooks"); err != nil {
		return nil, err
	}
	var hooks []*model.Webhook
	for _, w := range f.Webhooks {
		if w.AccountID != accountID {
			continue
		}
		if activeOnly && !w.Active {
			continue
		}
		hooks = append(hooks, w)
	}
	sort.Slice(hooks, func(i, j int) bool { return hooks[i].ID < hooks[j].ID })
	return hooks, nil
}

func (f *Fake) DeactivateWebhook(ctx context.Context, accountID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.Webhooks[id]
	if !ok || w.AccountID != accountID {
		return store.ErrNotFound
	}
	w.Active = false
	return nil
}

func (f *Fake) RecordDelivery(ctx context.Context, d *model.WebhookDelivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("RecordDelivery"); err != nil {
		return err
	}
	f.Deliveries = append(f.Deliveries, d)
	return nil
}

func (f *Fake) ListDeliveries(ctx context.Context, accountID, webhookID string, limit, offset int) ([]*model.WebhookDelivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.WebhookDelivery
	for _, d := range f.Deliveries {
		if d.AccountID == accountID && d.WebhookID == webhookID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *Fake) HasSuccessfulDelivery(ctx context.Context, accountID, webhookID, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("HasSuccessfulDelivery"); err != nil {
		return false, err
	}
	for _, d := range f.Deliveries {
		if d.AccountID == accountID && d.WebhookID == webhookID && d.EventID == eventID && d.Delivered() {
			return true, nil
		}
	}
	return false, nil
}

// Jobs

func (f *Fake) EnqueueJob(ctx context.Context, j *model.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("EnqueueJob"); err != nil {
		return err
	}
	f.Jobs[j.ID] = j
	return nil
}

func (f *Fake) ClaimJobs(ctx context.Context, limit int) ([]*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("ClaimJobs"); err != nil {
		return nil, err
	}
	now := time.Now()
	var claimed []*model.Job
	var ids []string
	for id := range f.Jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		j := f.Jobs[id]
		if j.Status != model.JobPending || j.RunAt.After(now) {
			continue
		}
		j.Status = model.JobRunning
		j.Attempts++
		j.UpdatedAt = now
		cp := *j
		claimed = append(claimed, &cp)
		if limit > 0 && len(claimed) >= limit {
			break
		}
	}
	return claimed, nil
}

func (f *Fake) CompleteJob(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.Jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	j.Status = model.JobDone
	return nil
}

func (f *Fake) RetryJob(ctx context.Context, id string, runAt time.Time, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.Jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	j.Status = model.JobPending
	j.RunAt = runAt
	j.LastError = lastError
	return nil
}

func (f *Fake) MarkJobDead(ctx context.Context, id string, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.Jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	j.Status = model.JobDead
	j.LastError = lastError
	return nil
}

func (f *Fake) RequeueStuckJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	n := 0
	for _, j := range f.Jobs {
		if j.Status == model.JobRunning && j.UpdatedAt.Before(cutoff) {
			j.Status = model.JobPending
			n++
		}
	}
	return n, nil
}

func (f *Fake) CountJobs(ctx context.Context) (map[model.JobStatus]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[model.JobStatus]int{}
	for _, j := range f.Jobs {
		counts[j.Status]++
	}
	return counts, nil
}

// Stats

func (f *Fake) CountCardsByStatus(ctx context.Context, accountID string) (map[model.CardStatus]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[model.CardStatus]int{}
	for _, c := range f.Cards {
		if c.AccountID == accountID {
			counts[c.Status]++
		}
	}
	return counts, nil
}

// RunInTransaction runs fn against the fake itself.
func (f *Fake) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	if err := f.forced("RunInTransaction"); err != nil {
		return err
	}
	return fn(f)
}

func (f *Fake) Close() error { return nil }
