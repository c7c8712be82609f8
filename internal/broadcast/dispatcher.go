package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/tenant"
)

// Dispatcher turns broadcast.send jobs into hub messages. It is the only
// place stream names are scoped: the account from the job's context is
// prefixed onto whatever stream the payload names, so a payload can never
// address another account's clients.
type Dispatcher struct {
	hub    *Hub
	logger *slog.Logger
}

func NewDispatcher(hub *Hub, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{hub: hub, logger: logger}
}

// HandleJob processes a broadcast.send job.
func (d *Dispatcher) HandleJob(ctx context.Context, job *model.Job) error {
	var payload model.BroadcastJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	return d.Dispatch(ctx, payload)
}

// Dispatch validates and sends one instruction. Unknown instructions are an
// error; a malformed payload should surface in the dead queue, not be
// silently skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, payload model.BroadcastJobPayload) error {
	accountID, err := tenant.AccountID(ctx)
	if err != nil {
		return err
	}

	instruction := Instruction(payload.Instruction)
	if !instruction.IsValid() {
		return fmt.Errorf("broadcast: unknown instruction %q", payload.Instruction)
	}
	stream := cleanStream(payload.Stream)
	if stream == "" {
		return fmt.Errorf("broadcast: empty stream name")
	}

	msg := &Message{
		Stream:      accountID + "/" + stream,
		Instruction: instruction,
		Target:      payload.Target,
		Content:     payload.Content,
	}
	d.hub.Send(accountID, stream, msg)
	d.logger.Debug("broadcast dispatched", "stream", msg.Stream, "instruction", instruction)
	return nil
}

// cleanStream strips leading slashes so a payload cannot smuggle in an
// absolute name that bypasses the account prefix.
func cleanStream(stream string) string {
	return strings.TrimLeft(stream, "/")
}
