package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/tenant"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatch_ScopesStreamToAccount(t *testing.T) {
	hub := NewHub()
	c := hub.Subscribe("acc-1", []string{"boards/*"})
	defer hub.Unsubscribe(c)

	d := NewDispatcher(hub, testLogger())
	ctx := tenant.WithAccount(context.Background(), "acc-1")

	err := d.Dispatch(ctx, model.BroadcastJobPayload{
		Stream: "boards/brd-1", Instruction: "replace", Target: "card_cd-1", Content: "<div>…</div>",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	select {
	case msg := <-c.Ch():
		if msg.Stream != "acc-1/boards/brd-1" {
			t.Errorf("stream = %q, want account-prefixed name", msg.Stream)
		}
		if msg.Instruction != InstructionReplace || msg.Target != "card_cd-1" {
			t.Errorf("unexpected message: %+v", msg)
		}
	default:
		t.Fatal("expected a message")
	}
}

func TestDispatch_AbsoluteStreamCannotEscapeAccount(t *testing.T) {
	hub := NewHub()
	other := hub.Subscribe("acc-2", nil)
	defer hub.Unsubscribe(other)

	d := NewDispatcher(hub, testLogger())
	ctx := tenant.WithAccount(context.Background(), "acc-1")

	// A payload trying to address another account still gets prefixed with
	// the job's own account.
	err := d.Dispatch(ctx, model.BroadcastJobPayload{
		Stream: "/acc-2/boards/brd-1", Instruction: "refresh",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	select {
	case msg := <-other.Ch():
		t.Fatalf("message leaked to another account: %+v", msg)
	default:
	}
}

func TestDispatch_UnknownInstruction(t *testing.T) {
	d := NewDispatcher(NewHub(), testLogger())
	ctx := tenant.WithAccount(context.Background(), "acc-1")

	err := d.Dispatch(ctx, model.BroadcastJobPayload{Stream: "boards/brd-1", Instruction: "explode"})
	if err == nil {
		t.Fatal("expected error for unknown instruction")
	}
}

func TestDispatch_EmptyStream(t *testing.T) {
	d := NewDispatcher(NewHub(), testLogger())
	ctx := tenant.WithAccount(context.Background(), "acc-1")

	if err := d.Dispatch(ctx, model.BroadcastJobPayload{Instruction: "refresh"}); err == nil {
		t.Fatal("expected error for empty stream")
	}
}

func TestDispatch_MissingTenant(t *testing.T) {
	d := NewDispatcher(NewHub(), testLogger())
	err := d.Dispatch(context.Background(), model.BroadcastJobPayload{Stream: "boards/brd-1", Instruction: "refresh"})
	if !errors.Is(err, tenant.ErrMissing) {
		t.Fatalf("got %v, want tenant.ErrMissing", err)
	}
}

func TestHandleJob(t *testing.T) {
	hub := NewHub()
	c := hub.Subscribe("acc-1", nil)
	defer hub.Unsubscribe(c)

	d := NewDispatcher(hub, testLogger())
	payload, _ := json.Marshal(model.BroadcastJobPayload{Stream: "cards/cd-1", Instruction: "prepend", Target: "comments", Content: "<li>hi</li>"})
	job := &model.Job{ID: "j-1", AccountID: "acc-1", Kind: model.JobKindBroadcast, Payload: payload}

	ctx := tenant.WithAccount(context.Background(), "acc-1")
	if err := d.HandleJob(ctx, job); err != nil {
		t.Fatalf("HandleJob: %v", err)
	}

	select {
	case msg := <-c.Ch():
		if msg.Instruction != InstructionPrepend || msg.Content != "<li>hi</li>" {
			t.Errorf("unexpected message: %+v", msg)
		}
	default:
		t.Fatal("expected a message")
	}
}
