package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/store"
	"github.com/fizzyhq/fizzy/internal/tenant"
)

// HandlePublish returns a job handler that mirrors recorded events onto
// the bus. Publishing is at-least-once: a crash between the publish and
// the job completion redelivers, so bus consumers must tolerate
// duplicates.
func HandlePublish(s store.Store, p Publisher) func(ctx context.Context, job *model.Job) error {
	return func(ctx context.Context, job *model.Job) error {
		var payload model.EventJobPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("decode publish payload: %w", err)
		}
		accountID, err := tenant.AccountID(ctx)
		if err != nil {
			return err
		}
		event, err := s.GetEvent(ctx, accountID, payload.EventID)
		if err != nil {
			return fmt.Errorf("load event %s: %w", payload.EventID, err)
		}
		return p.Publish(ctx, Topic(event), Message{Event: event})
	}
}
