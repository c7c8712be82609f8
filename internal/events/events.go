package events

import (
	"context"

	"github.com/fizzyhq/fizzy/internal/model"
)

// Event topic constants
const (
	TopicCardCreated   = "fizzy.card.created"
	TopicCardUpdated   = "fizzy.card.updated"
	TopicCardClosed    = "fizzy.card.closed"
	TopicCardReopened  = "fizzy.card.reopened"
	TopicCardAssigned  = "fizzy.card.assigned"
	TopicCardMoved     = "fizzy.card.moved"
	TopicCardPostponed = "fizzy.card.postponed"
	TopicCommented     = "fizzy.card.commented"

	TopicBoardCreated = "fizzy.board.created"
	TopicBoardUpdated = "fizzy.board.updated"
)

// Topic derives the bus subject for a recorded event: fizzy.<subject>.<action>.
func Topic(e *model.Event) string {
	return "fizzy." + e.SubjectType + "." + string(e.Action)
}

// Message is the envelope published on the bus for a recorded event.
type Message struct {
	Event *model.Event `json:"event"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
