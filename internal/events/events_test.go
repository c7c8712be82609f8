package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/nats-io/nats.go"
)

func TestTopic(t *testing.T) {
	for _, tc := range []struct {
		subject string
		action  model.Action
		want    string
	}{
		{model.SubjectCard, model.ActionCreated, TopicCardCreated},
		{model.SubjectCard, model.ActionClosed, TopicCardClosed},
		{model.SubjectCard, model.ActionCommented, TopicCommented},
		{model.SubjectBoard, model.ActionUpdated, TopicBoardUpdated},
	} {
		e := &model.Event{SubjectType: tc.subject, Action: tc.action}
		if got := Topic(e); got != tc.want {
			t.Errorf("Topic(%s, %s) = %q, want %q", tc.subject, tc.action, got, tc.want)
		}
	}
}

func TestNoopPublisher_Publish(t *testing.T) {
	pub := &NoopPublisher{}
	err := pub.Publish(context.Background(), TopicCardCreated, Message{})
	if err != nil {
		t.Fatalf("NoopPublisher.Publish returned unexpected error: %v", err)
	}
}

func TestNoopPublisher_Close(t *testing.T) {
	pub := &NoopPublisher{}
	if err := pub.Close(); err != nil {
		t.Fatalf("NoopPublisher.Close returned unexpected error: %v", err)
	}
}

func TestNoopPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NoopPublisher)(nil)
}

func TestNATSPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NATSPublisher)(nil)
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	// Subscribe to capture published messages.
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicCardClosed, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	event := &model.Event{
		ID: "ev-pub1", AccountID: "acc-1", SubjectType: model.SubjectCard,
		SubjectID: "cd-1", Action: model.ActionClosed, ActorID: "usr-1",
	}
	if err := pub.Publish(context.Background(), Topic(event), Message{Event: event}); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	pub.conn.Flush()

	select {
	case msg := <-ch:
		var got Message
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Event.ID != "ev-pub1" || got.Event.Action != model.ActionClosed {
			t.Errorf("got event %+v", got.Event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}

	if err := pub.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	// Publishing after close should fail.
	err = pub.Publish(context.Background(), TopicCardCreated, Message{})
	if err == nil {
		t.Error("expected error publishing after close")
	}
}
