package model

import "time"

// Webhook is a tenant-configured external HTTP endpoint notified of events.
type Webhook struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	URL       string    `json:"url"`
	Secret    string    `json:"-"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by,omitempty"`
}

// WebhookDelivery is one delivery attempt of an event to a webhook.
// Rows are append-only; retries append new rows rather than mutating
// earlier attempts.
type WebhookDelivery struct {
	ID             string     `json:"id"`
	AccountID      string     `json:"account_id"`
	WebhookID      string     `json:"webhook_id"`
	EventID        string     `json:"event_id"`
	Payload        []byte     `json:"payload,omitempty"`
	Attempt        int        `json:"attempt"`
	ResponseStatus *int       `json:"response_status,omitempty"`
	Error          string     `json:"error,omitempty"`
	AttemptedAt    time.Time  `json:"attempted_at"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
}

// Delivered reports whether this attempt succeeded.
func (d *WebhookDelivery) Delivered() bool {
	return d.DeliveredAt != nil
}
