// Package webhook delivers recorded events to subscriber endpoints.
//
// Fan-out happens in two stages: a webhook.fanout job expands into one
// webhook.deliver job per active endpoint, and each delivery job posts the
// event to a single URL. Every attempt is recorded in webhook_deliveries,
// successful or not, so an endpoint's history is a complete audit trail.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fizzyhq/fizzy/internal/idgen"
	"github.com/fizzyhq/fizzy/internal/metrics"
	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/store"
	"github.com/fizzyhq/fizzy/internal/tenant"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body, keyed
// with the webhook's secret.
const SignatureHeader = "X-Fizzy-Signature"

// Relay posts events to webhook endpoints.
type Relay struct {
	store       store.Store
	client      *http.Client
	logger      *slog.Logger
	maxAttempts int
}

func NewRelay(s store.Store, timeout time.Duration, maxAttempts int, logger *slog.Logger) *Relay {
	return &Relay{
		store:       s,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// HandleFanOut expands a webhook.fanout job into one delivery job per
// active endpoint. Endpoints registered after the event was recorded do
// not receive it; the listing here is the cutoff.
func (r *Relay) HandleFanOut(ctx context.Context, job *model.Job) error {
	var payload model.EventJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}

	accountID, err := tenant.AccountID(ctx)
	if err != nil {
		return err
	}
	hooks, err := r.store.ListWebhooks(ctx, accountID, true)
	if err != nil {
		return fmt.Errorf("listing webhooks: %w", err)
	}

	now := time.Now().UTC()
	for _, hook := range hooks {
		deliverPayload, err := json.Marshal(model.DeliverJobPayload{WebhookID: hook.ID, EventID: payload.EventID})
		if err != nil {
			return fmt.Errorf("marshaling delivery payload: %w", err)
		}
		jobID, err := idgen.NewRowKey()
		if err != nil {
			return err
		}
		err = r.store.EnqueueJob(ctx, &model.Job{
			ID:          jobID,
			AccountID:   accountID,
			Kind:        model.JobKindWebhookDeliver,
			Payload:     deliverPayload,
			Status:      model.JobPending,
			MaxAttempts: r.maxAttempts,
			RunAt:       now,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("enqueueing delivery for %s: %w", hook.ID, err)
		}
	}
	return nil
}

// HandleDeliver posts the event to a single endpoint. A prior successful
// delivery short-circuits, so a redelivered job never double-posts.
func (r *Relay) HandleDeliver(ctx context.Context, job *model.Job) error {
	var payload model.DeliverJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}

	accountID, err := tenant.AccountID(ctx)
	if err != nil {
		return err
	}
	hook, err := r.store.GetWebhook(ctx, accountID, payload.WebhookID)
	if err != nil {
		return fmt.Errorf("loading webhook %s: %w", payload.WebhookID, err)
	}
	if err := tenant.Check(ctx, hook.AccountID); err != nil {
		return err
	}
	if !hook.Active {
		r.logger.Debug("skipping delivery to deactivated webhook", "webhook", hook.ID)
		return nil
	}

	delivered, err := r.store.HasSuccessfulDelivery(ctx, accountID, hook.ID, payload.EventID)
	if err != nil {
		return fmt.Errorf("checking delivery history: %w", err)
	}
	if delivered {
		return nil
	}

	event, err := r.store.GetEvent(ctx, accountID, payload.EventID)
	if err != nil {
		return fmt.Errorf("loading event %s: %w", payload.EventID, err)
	}
	return r.deliver(ctx, hook, event, job.Attempts)
}

// deliver performs one HTTP POST and records the attempt regardless of
// outcome.
func (r *Relay) deliver(ctx context.Context, hook *model.Webhook, event *model.Event, attempt int) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	recordID, err := idgen.NewRowKey()
	if err != nil {
		return err
	}
	record := &model.WebhookDelivery{
		ID:          recordID,
		AccountID:   hook.AccountID,
		WebhookID:   hook.ID,
		EventID:     event.ID,
		Payload:     body,
		Attempt:     attempt,
		AttemptedAt: time.Now().UTC(),
	}

	status, postErr := r.post(ctx, hook, body)
	if status != 0 {
		record.ResponseStatus = &status
	}
	if postErr == nil {
		now := time.Now().UTC()
		record.DeliveredAt = &now
		metrics.WebhookDeliveries.WithLabelValues("ok").Inc()
	} else {
		record.Error = postErr.Error()
		metrics.WebhookDeliveries.WithLabelValues("error").Inc()
	}

	if err := r.store.RecordDelivery(ctx, record); err != nil {
		r.logger.Error("recording delivery attempt", "webhook", hook.ID, "event", event.ID, "error", err)
	}
	return postErr
}

func (r *Relay) post(ctx context.Context, hook *model.Webhook, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return 0, &DeliveryError{WebhookID: hook.ID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(hook.Secret, body))

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return 0, &DeliveryError{WebhookID: hook.ID, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	metrics.WebhookDeliveryDuration.Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &DeliveryError{WebhookID: hook.ID, StatusCode: resp.StatusCode}
	}
	return resp.StatusCode, nil
}

// Sign computes the hex HMAC-SHA256 of body keyed with secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches Sign(secret, body). Receivers
// can use it to authenticate incoming posts.
func Verify(secret string, body []byte, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}
