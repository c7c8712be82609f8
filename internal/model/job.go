package model

import (
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle state of a queued job.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobDead    JobStatus = "dead"
)

// Job kinds handled by the worker pool. Each recorded event fans out into
// one job per downstream consumer.
const (
	JobKindNotify         = "notification.generate"
	JobKindWebhookFanOut  = "webhook.fanout"
	JobKindWebhookDeliver = "webhook.deliver"
	JobKindBroadcast      = "broadcast.send"
	JobKindPublish        = "event.publish"
)

// Job is a unit of deferred work. Jobs are inserted in the same database
// transaction as the mutation that produced them, so a rolled-back
// transaction never leaks a job, and workers only ever see committed ones.
type Job struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	Status      JobStatus       `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	RunAt       time.Time       `json:"run_at"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// EventJobPayload is the payload for jobs that fan out a single event
// (notification generation, webhook fan-out, bus publish).
type EventJobPayload struct {
	EventID string `json:"event_id"`
}

// DeliverJobPayload is the payload for a single webhook delivery job.
type DeliverJobPayload struct {
	WebhookID string `json:"webhook_id"`
	EventID   string `json:"event_id"`
}

// BroadcastJobPayload is the payload for a broadcast job. Stream is the
// un-scoped stream name; the dispatcher prefixes the account at send time.
type BroadcastJobPayload struct {
	Stream      string `json:"stream"`
	Instruction string `json:"instruction"` // refresh, replace, prepend, remove
	Target      string `json:"target,omitempty"`
	Content     string `json:"content,omitempty"`
}
