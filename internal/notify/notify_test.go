package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/store/storetest"
	"github.com/fizzyhq/fizzy/internal/tenant"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedCardEvent(fake *storetest.Fake, actorID string, watchers []string, mentions []string) *model.Event {
	fake.Cards["cd-1"] = &model.Card{ID: "cd-1", AccountID: "acc-1", BoardID: "brd-1", Title: "Fix login", Status: model.StatusOpen}
	fake.Watchers["cd-1"] = watchers

	var particulars json.RawMessage
	if len(mentions) > 0 {
		particulars, _ = json.Marshal(model.Particulars{Mentions: mentions})
	}
	event := &model.Event{
		ID: "ev-1", AccountID: "acc-1", SubjectType: model.SubjectCard, SubjectID: "cd-1",
		Action: model.ActionUpdated, ActorID: actorID, Particulars: particulars,
		CreatedAt: time.Now().UTC(),
	}
	fake.Events["ev-1"] = event
	return event
}

func recipientsOf(fake *storetest.Fake) []string {
	var users []string
	for _, n := range fake.Notifications {
		users = append(users, n.UserID)
	}
	return users
}

func TestGenerate_WatchersMinusActor(t *testing.T) {
	fake := storetest.NewFake()
	event := seedCardEvent(fake, "usr-1", []string{"usr-1", "usr-2", "usr-3"}, nil)

	g := NewGenerator(fake, testLogger())
	ctx := tenant.WithAccount(context.Background(), "acc-1")
	if err := g.Generate(ctx, event); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	got := recipientsOf(fake)
	if len(got) != 2 {
		t.Fatalf("notified %v, want usr-2 and usr-3", got)
	}
	for _, userID := range got {
		if userID == "usr-1" {
			t.Error("actor must not be notified of their own action")
		}
	}
}

func TestGenerate_MentionsUnionWatchers(t *testing.T) {
	fake := storetest.NewFake()
	// usr-3 is both watching and mentioned; must be notified exactly once.
	event := seedCardEvent(fake, "usr-1", []string{"usr-2", "usr-3"}, []string{"usr-3", "usr-4"})

	g := NewGenerator(fake, testLogger())
	ctx := tenant.WithAccount(context.Background(), "acc-1")
	if err := g.Generate(ctx, event); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	got := recipientsOf(fake)
	if len(got) != 3 {
		t.Fatalf("notified %v, want exactly usr-2, usr-3, usr-4", got)
	}
	seen := map[string]int{}
	for _, userID := range got {
		seen[userID]++
	}
	if seen["usr-3"] != 1 {
		t.Errorf("usr-3 notified %d times, want 1", seen["usr-3"])
	}
}

func TestGenerate_MentionedActorStillExcluded(t *testing.T) {
	fake := storetest.NewFake()
	event := seedCardEvent(fake, "usr-1", nil, []string{"usr-1", "usr-2"})

	g := NewGenerator(fake, testLogger())
	ctx := tenant.WithAccount(context.Background(), "acc-1")
	if err := g.Generate(ctx, event); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	got := recipientsOf(fake)
	if len(got) != 1 || got[0] != "usr-2" {
		t.Fatalf("notified %v, want only usr-2", got)
	}
}

func TestGenerate_NoRecipients(t *testing.T) {
	fake := storetest.NewFake()
	event := seedCardEvent(fake, "usr-1", []string{"usr-1"}, nil)

	g := NewGenerator(fake, testLogger())
	ctx := tenant.WithAccount(context.Background(), "acc-1")
	if err := g.Generate(ctx, event); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(fake.Notifications) != 0 {
		t.Errorf("notified %v, want nobody", recipientsOf(fake))
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	fake := storetest.NewFake()
	event := seedCardEvent(fake, "usr-1", []string{"usr-2"}, nil)

	g := NewGenerator(fake, testLogger())
	ctx := tenant.WithAccount(context.Background(), "acc-1")
	if err := g.Generate(ctx, event); err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	if err := g.Generate(ctx, event); err != nil {
		t.Fatalf("second Generate: %v", err)
	}

	if len(fake.Notifications) != 1 {
		t.Errorf("got %d notifications after rerun, want 1", len(fake.Notifications))
	}
}

func TestGenerate_TenantMismatch(t *testing.T) {
	fake := storetest.NewFake()
	event := seedCardEvent(fake, "usr-1", []string{"usr-2"}, nil)

	g := NewGenerator(fake, testLogger())
	ctx := tenant.WithAccount(context.Background(), "acc-other")

	err := g.Generate(ctx, event)
	var mismatch *tenant.MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("got %v, want *tenant.MismatchError", err)
	}
	if len(fake.Notifications) != 0 {
		t.Error("no notifications should cross the account boundary")
	}
}

func TestHandleJob(t *testing.T) {
	fake := storetest.NewFake()
	seedCardEvent(fake, "usr-1", []string{"usr-2"}, nil)

	payload, _ := json.Marshal(model.EventJobPayload{EventID: "ev-1"})
	job := &model.Job{ID: "j-1", AccountID: "acc-1", Kind: model.JobKindNotify, Payload: payload}

	g := NewGenerator(fake, testLogger())
	ctx := tenant.WithAccount(context.Background(), "acc-1")
	if err := g.HandleJob(ctx, job); err != nil {
		t.Fatalf("HandleJob: %v", err)
	}
	if len(fake.Notifications) != 1 {
		t.Fatalf("got %d notifications, want 1", len(fake.Notifications))
	}
	n := fake.Notifications[0]
	if n.UserID != "usr-2" || n.EventID != "ev-1" || n.AccountID != "acc-1" {
		t.Errorf("unexpected notification: %+v", n)
	}
}

func TestHandleJob_EventMissing(t *testing.T) {
	fake := storetest.NewFake()
	payload, _ := json.Marshal(model.EventJobPayload{EventID: "ev-absent"})
	job := &model.Job{ID: "j-1", AccountID: "acc-1", Kind: model.JobKindNotify, Payload: payload}

	g := NewGenerator(fake, testLogger())
	ctx := tenant.WithAccount(context.Background(), "acc-1")
	if err := g.HandleJob(ctx, job); err == nil {
		t.Fatal("expected error for missing event")
	}
}
