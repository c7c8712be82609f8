package webhook

import "fmt"

// DeliveryError reports a failed delivery attempt. StatusCode is zero when
// the request never produced a response (timeout, connection refused).
type DeliveryError struct {
	WebhookID  string
	EventID    string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("webhook: delivering event %s to %s: endpoint returned %d", e.EventID, e.WebhookID, e.StatusCode)
	}
	return fmt.Sprintf("webhook: delivering event %s to %s: %v", e.EventID, e.WebhookID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
