package model

import (
	"encoding/json"
	"time"
)

// SystemActor is the actor recorded for automated actions (entropy sweeps
// and other background transitions).
const SystemActor = "system"

// Action classifies what happened to an event's subject.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionClosed    Action = "closed"
	ActionReopened  Action = "reopened"
	ActionAssigned  Action = "assigned"
	ActionMoved     Action = "moved"
	ActionCommented Action = "commented"
	ActionPostponed Action = "postponed"
)

// String returns the string representation of the action.
func (a Action) String() string {
	return string(a)
}

// IsValid checks whether the action is a known value.
func (a Action) IsValid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionClosed, ActionReopened,
		ActionAssigned, ActionMoved, ActionCommented, ActionPostponed:
		return true
	}
	return false
}

// Subject types an event can reference.
const (
	SubjectCard    = "card"
	SubjectBoard   = "board"
	SubjectComment = "comment"
)

// Event is an immutable record of a domain action. It is written in the
// same transaction as the mutation it describes and never updated after.
type Event struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	SubjectType string          `json:"subject_type"`
	SubjectID   string          `json:"subject_id"`
	Action      Action          `json:"action"`
	ActorID     string          `json:"actor_id"`
	Particulars json.RawMessage `json:"particulars,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Particulars is the structured, action-specific payload attached to an
// event. Known keys are typed here; arbitrary keys are allowed.
type Particulars struct {
	Field    string   `json:"field,omitempty"`
	OldValue string   `json:"old_value,omitempty"`
	NewValue string   `json:"new_value,omitempty"`
	Mentions []string `json:"mentions,omitempty"` // user IDs mentioned in the change
	Body     string   `json:"body,omitempty"`     // comment body excerpt
}

// DecodeParticulars unmarshals the event's particulars payload.
// Missing or empty particulars decode to the zero value.
func (e *Event) DecodeParticulars() (Particulars, error) {
	var p Particulars
	if len(e.Particulars) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(e.Particulars, &p); err != nil {
		return p, err
	}
	return p, nil
}
