package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/store/storetest"
	"github.com/fizzyhq/fizzy/internal/tenant"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedEvent(fake *storetest.Fake) *model.Event {
	event := &model.Event{
		ID: "ev-1", AccountID: "acc-1", SubjectType: model.SubjectCard, SubjectID: "cd-1",
		Action: model.ActionClosed, ActorID: "usr-1", CreatedAt: time.Now().UTC(),
	}
	fake.Events["ev-1"] = event
	return event
}

func seedWebhook(fake *storetest.Fake, id, url string, active bool) *model.Webhook {
	hook := &model.Webhook{
		ID: id, AccountID: "acc-1", URL: url, Secret: "s3cret", Active: active,
		CreatedAt: time.Now().UTC(), CreatedBy: "usr-1",
	}
	fake.Webhooks[id] = hook
	return hook
}

func deliverJob(webhookID string) *model.Job {
	payload, _ := json.Marshal(model.DeliverJobPayload{WebhookID: webhookID, EventID: "ev-1"})
	return &model.Job{
		ID: "j-1", AccountID: "acc-1", Kind: model.JobKindWebhookDeliver,
		Payload: payload, Attempts: 1, MaxAttempts: 8,
	}
}

func TestHandleFanOut(t *testing.T) {
	fake := storetest.NewFake()
	seedEvent(fake)
	seedWebhook(fake, "wh-1", "https://a.example/hook", true)
	seedWebhook(fake, "wh-2", "https://b.example/hook", true)
	seedWebhook(fake, "wh-3", "https://c.example/hook", false) // deactivated

	relay := NewRelay(fake, time.Second, 8, testLogger())
	payload, _ := json.Marshal(model.EventJobPayload{EventID: "ev-1"})
	job := &model.Job{ID: "j-1", AccountID: "acc-1", Kind: model.JobKindWebhookFanOut, Payload: payload}

	ctx := tenant.WithAccount(context.Background(), "acc-1")
	if err := relay.HandleFanOut(ctx, job); err != nil {
		t.Fatalf("HandleFanOut: %v", err)
	}

	targets := map[string]bool{}
	for _, j := range fake.Jobs {
		if j.Kind != model.JobKindWebhookDeliver {
			continue
		}
		var p model.DeliverJobPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			t.Fatalf("decoding delivery payload: %v", err)
		}
		if p.EventID != "ev-1" {
			t.Errorf("delivery payload event = %q", p.EventID)
		}
		targets[p.WebhookID] = true
	}
	if len(targets) != 2 || !targets["wh-1"] || !targets["wh-2"] || targets["wh-3"] {
		t.Errorf("fanned out to %v, want wh-1 and wh-2 only", targets)
	}
}

func TestHandleDeliver_Success(t *testing.T) {
	fake := storetest.NewFake()
	event := seedEvent(fake)

	var gotBody []byte
	var gotSignature string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotBody, _ = io.ReadAll(req.Body)
		gotSignature = req.Header.Get(SignatureHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hook := seedWebhook(fake, "wh-1", srv.URL, true)
	relay := NewRelay(fake, time.Second, 8, testLogger())
	ctx := tenant.WithAccount(context.Background(), "acc-1")

	if err := relay.HandleDeliver(ctx, deliverJob("wh-1")); err != nil {
		t.Fatalf("HandleDeliver: %v", err)
	}

	var posted model.Event
	if err := json.Unmarshal(gotBody, &posted); err != nil {
		t.Fatalf("decoding posted body: %v", err)
	}
	if posted.ID != event.ID || posted.Action != model.ActionClosed {
		t.Errorf("posted event %+v", posted)
	}
	if !Verify(hook.Secret, gotBody, gotSignature) {
		t.Error("signature does not verify against the webhook secret")
	}

	if len(fake.Deliveries) != 1 {
		t.Fatalf("recorded %d deliveries, want 1", len(fake.Deliveries))
	}
	d := fake.Deliveries[0]
	if !d.Delivered() || d.ResponseStatus == nil || *d.ResponseStatus != http.StatusNoContent {
		t.Errorf("unexpected delivery record: %+v", d)
	}
	if d.Attempt != 1 {
		t.Errorf("attempt = %d, want 1", d.Attempt)
	}
}

func TestHandleDeliver_EndpointFailure(t *testing.T) {
	fake := storetest.NewFake()
	seedEvent(fake)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	seedWebhook(fake, "wh-1", srv.URL, true)
	relay := NewRelay(fake, time.Second, 8, testLogger())
	ctx := tenant.WithAccount(context.Background(), "acc-1")

	err := relay.HandleDeliver(ctx, deliverJob("wh-1"))
	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("got %v, want *DeliveryError", err)
	}
	if de.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", de.StatusCode)
	}

	// The failed attempt is still part of the history.
	if len(fake.Deliveries) != 1 {
		t.Fatalf("recorded %d deliveries, want 1", len(fake.Deliveries))
	}
	d := fake.Deliveries[0]
	if d.Delivered() {
		t.Error("failed attempt must not be marked delivered")
	}
	if d.ResponseStatus == nil || *d.ResponseStatus != http.StatusBadGateway {
		t.Errorf("response status = %v", d.ResponseStatus)
	}
	if d.Error == "" {
		t.Error("failed attempt should record the error")
	}
}

func TestHandleDeliver_ConnectionError(t *testing.T) {
	fake := storetest.NewFake()
	seedEvent(fake)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {}))
	srv.Close() // refuse connections

	seedWebhook(fake, "wh-1", srv.URL, true)
	relay := NewRelay(fake, time.Second, 8, testLogger())
	ctx := tenant.WithAccount(context.Background(), "acc-1")

	err := relay.HandleDeliver(ctx, deliverJob("wh-1"))
	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("got %v, want *DeliveryError", err)
	}
	if de.StatusCode != 0 {
		t.Errorf("status = %d, want 0 for connection errors", de.StatusCode)
	}
	if len(fake.Deliveries) != 1 {
		t.Fatalf("recorded %d deliveries, want 1", len(fake.Deliveries))
	}
	if fake.Deliveries[0].ResponseStatus != nil {
		t.Error("connection errors have no response status")
	}
}

func TestHandleDeliver_SkipsAfterSuccess(t *testing.T) {
	fake := storetest.NewFake()
	seedEvent(fake)

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	seedWebhook(fake, "wh-1", srv.URL, true)
	relay := NewRelay(fake, time.Second, 8, testLogger())
	ctx := tenant.WithAccount(context.Background(), "acc-1")

	if err := relay.HandleDeliver(ctx, deliverJob("wh-1")); err != nil {
		t.Fatalf("first HandleDeliver: %v", err)
	}
	// Redelivered job (e.g. worker crashed before marking it done).
	if err := relay.HandleDeliver(ctx, deliverJob("wh-1")); err != nil {
		t.Fatalf("second HandleDeliver: %v", err)
	}

	if hits != 1 {
		t.Errorf("endpoint hit %d times, want 1", hits)
	}
	if len(fake.Deliveries) != 1 {
		t.Errorf("recorded %d deliveries, want 1", len(fake.Deliveries))
	}
}

func TestHandleDeliver_SkipsDeactivated(t *testing.T) {
	fake := storetest.NewFake()
	seedEvent(fake)
	seedWebhook(fake, "wh-1", "https://unused.example/hook", false)

	relay := NewRelay(fake, time.Second, 8, testLogger())
	ctx := tenant.WithAccount(context.Background(), "acc-1")

	if err := relay.HandleDeliver(ctx, deliverJob("wh-1")); err != nil {
		t.Fatalf("HandleDeliver: %v", err)
	}
	if len(fake.Deliveries) != 0 {
		t.Error("deactivated webhook must not be posted to")
	}
}

func TestHandleDeliver_WrongAccount(t *testing.T) {
	fake := storetest.NewFake()
	seedEvent(fake)
	seedWebhook(fake, "wh-1", "https://unused.example/hook", true)

	relay := NewRelay(fake, time.Second, 8, testLogger())
	ctx := tenant.WithAccount(context.Background(), "acc-other")

	// The webhook belongs to acc-1; the scoped lookup misses.
	if err := relay.HandleDeliver(ctx, deliverJob("wh-1")); err == nil {
		t.Fatal("expected error for cross-account webhook lookup")
	}
	if len(fake.Deliveries) != 0 {
		t.Error("nothing should be delivered across accounts")
	}
}

func TestSignAndVerify(t *testing.T) {
	body := []byte(`{"id":"ev-1"}`)
	sig := Sign("s3cret", body)
	if !Verify("s3cret", body, sig) {
		t.Error("signature should verify with the right secret")
	}
	if Verify("wrong", body, sig) {
		t.Error("signature must not verify with the wrong secret")
	}
	if Verify("s3cret", []byte(`{"id":"ev-2"}`), sig) {
		t.Error("signature must not verify for a different body")
	}
	if Verify("s3cret", body, "not-hex") {
		t.Error("malformed signatures must not verify")
	}
}
