package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fizzyhq/fizzy/internal/idgen"
	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/store"
	"github.com/fizzyhq/fizzy/internal/tenant"
)

// Recorder writes an event and its fan-out jobs inside the caller's
// transaction. Nothing is dispatched directly: workers pick the jobs up
// only after the transaction commits, so a rollback discards the event
// and every downstream side effect with it.
type Recorder struct {
	maxAttempts int
	mirrorBus   bool
}

// NewRecorder configures fan-out job creation. maxAttempts bounds retries
// for every enqueued job; mirrorBus controls whether recorded events are
// also published to the message bus.
func NewRecorder(maxAttempts int, mirrorBus bool) *Recorder {
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	return &Recorder{maxAttempts: maxAttempts, mirrorBus: mirrorBus}
}

// Record validates and persists the event, then enqueues the notification,
// webhook fan-out, broadcast, and bus publish jobs. The event's account must
// match the tenant on the context. Broadcast payloads are optional; pass
// none to suppress broadcasting (e.g. for subjects not yet visible).
func (r *Recorder) Record(ctx context.Context, tx store.Store, e *model.Event, broadcasts ...model.BroadcastJobPayload) error {
	if err := tenant.Check(ctx, e.AccountID); err != nil {
		return err
	}
	if e.ID == "" {
		id, err := idgen.NewRowKey()
		if err != nil {
			return err
		}
		e.ID = id
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if err := model.ValidateEvent(e); err != nil {
		return err
	}
	if err := tx.RecordEvent(ctx, e); err != nil {
		return err
	}

	payload, err := json.Marshal(model.EventJobPayload{EventID: e.ID})
	if err != nil {
		return fmt.Errorf("marshaling job payload: %w", err)
	}

	kinds := []string{model.JobKindNotify, model.JobKindWebhookFanOut}
	if r.mirrorBus {
		kinds = append(kinds, model.JobKindPublish)
	}
	for _, kind := range kinds {
		if err := r.enqueue(ctx, tx, e.AccountID, kind, payload); err != nil {
			return err
		}
	}

	for _, b := range broadcasts {
		bp, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("marshaling broadcast payload: %w", err)
		}
		if err := r.enqueue(ctx, tx, e.AccountID, model.JobKindBroadcast, bp); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) enqueue(ctx context.Context, tx store.Store, accountID, kind string, payload json.RawMessage) error {
	id, err := idgen.NewRowKey()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	return tx.EnqueueJob(ctx, &model.Job{
		ID:          id,
		AccountID:   accountID,
		Kind:        kind,
		Payload:     payload,
		Status:      model.JobPending,
		MaxAttempts: r.maxAttempts,
		RunAt:       now,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}
