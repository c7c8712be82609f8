package model

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateCard checks a Card for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the card is valid.
func ValidateCard(c *Card) error {
	var ve ValidationError

	title := strings.TrimSpace(c.Title)
	if title == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "title", Message: "is required"})
	} else if len([]rune(title)) > 500 {
		ve.Errors = append(ve.Errors, FieldError{Field: "title", Message: "must be 500 characters or fewer"})
	}

	if c.AccountID == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "account_id", Message: "is required"})
	}
	if c.BoardID == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "board_id", Message: "is required"})
	}

	if !c.Status.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "status",
			Message: fmt.Sprintf("invalid value %q", c.Status),
		})
	}

	// ClosedAt consistency with Status.
	if c.Status == StatusClosed && c.ClosedAt == nil {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "closed_at",
			Message: "is required when status is closed",
		})
	}
	if c.Status != StatusClosed && c.ClosedAt != nil {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "closed_at",
			Message: "must be nil when status is not closed",
		})
	}
	if c.Status == StatusPostponed && c.PostponedUntil == nil {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "postponed_until",
			Message: "is required when status is postponed",
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateEvent checks an Event before it is recorded.
func ValidateEvent(e *Event) error {
	var ve ValidationError

	if e.AccountID == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "account_id", Message: "is required"})
	}
	if e.SubjectType == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "subject_type", Message: "is required"})
	}
	if e.SubjectID == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "subject_id", Message: "is required"})
	}
	if e.ActorID == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "actor_id", Message: "is required"})
	}
	if !e.Action.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "action",
			Message: fmt.Sprintf("invalid value %q", e.Action),
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateWebhook checks a Webhook before it is created.
func ValidateWebhook(w *Webhook) error {
	var ve ValidationError

	if w.AccountID == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "account_id", Message: "is required"})
	}

	u, err := url.Parse(w.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "url",
			Message: "must be an absolute http or https URL",
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
