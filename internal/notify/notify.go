// Package notify turns recorded events into per-user notifications.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/fizzyhq/fizzy/internal/idgen"
	"github.com/fizzyhq/fizzy/internal/metrics"
	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/store"
	"github.com/fizzyhq/fizzy/internal/tenant"
)

// Generator computes the recipient set for an event and inserts one
// notification per recipient. Inserts are keyed on (event, user), so a
// retried job converges on the same set instead of duplicating rows.
type Generator struct {
	store  store.Store
	logger *slog.Logger
}

func NewGenerator(s store.Store, logger *slog.Logger) *Generator {
	return &Generator{store: s, logger: logger}
}

// HandleJob processes a notification.generate job.
func (g *Generator) HandleJob(ctx context.Context, job *model.Job) error {
	var payload model.EventJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}

	accountID, err := tenant.AccountID(ctx)
	if err != nil {
		return err
	}
	event, err := g.store.GetEvent(ctx, accountID, payload.EventID)
	if err != nil {
		return fmt.Errorf("loading event %s: %w", payload.EventID, err)
	}
	return g.Generate(ctx, event)
}

// Generate inserts notifications for everyone interested in the event:
// watchers of the subject plus anyone mentioned in the change, minus the
// actor. Nobody is notified of their own action.
func (g *Generator) Generate(ctx context.Context, event *model.Event) error {
	if err := tenant.Check(ctx, event.AccountID); err != nil {
		return err
	}

	recipients, err := g.recipients(ctx, event)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	now := time.Now().UTC()
	notifications := make([]*model.Notification, 0, len(recipients))
	for _, userID := range recipients {
		id, err := idgen.NewRowKey()
		if err != nil {
			return err
		}
		notifications = append(notifications, &model.Notification{
			ID:        id,
			AccountID: event.AccountID,
			UserID:    userID,
			EventID:   event.ID,
			CreatedAt: now,
		})
	}

	inserted, err := g.store.CreateNotifications(ctx, notifications)
	if err != nil {
		return fmt.Errorf("inserting notifications: %w", err)
	}
	metrics.NotificationsCreated.Add(float64(inserted))
	g.logger.Debug("notifications generated",
		"event", event.ID, "recipients", len(recipients), "inserted", inserted)
	return nil
}

// recipients returns the sorted union of subject watchers and mentioned
// users, excluding the actor.
func (g *Generator) recipients(ctx context.Context, event *model.Event) ([]string, error) {
	set := map[string]struct{}{}

	if event.SubjectType == model.SubjectCard {
		watchers, err := g.store.GetWatchers(ctx, event.AccountID, event.SubjectID)
		if err != nil {
			return nil, fmt.Errorf("loading watchers: %w", err)
		}
		for _, w := range watchers {
			set[w] = struct{}{}
		}
	}

	particulars, err := event.DecodeParticulars()
	if err != nil {
		return nil, fmt.Errorf("decoding particulars: %w", err)
	}
	for _, m := range particulars.Mentions {
		set[m] = struct{}{}
	}

	delete(set, event.ActorID)

	out := make([]string, 0, len(set))
	for userID := range set {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out, nil
}
