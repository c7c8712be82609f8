package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fizzyhq/fizzy/internal/broadcast"
	"github.com/fizzyhq/fizzy/internal/events"
	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/store"
	"github.com/fizzyhq/fizzy/internal/tenant"
)

// Request headers identifying the caller. The account header selects the
// tenant; the user header names the acting user within it.
const (
	AccountHeader = "X-Fizzy-Account"
	UserHeader    = "X-Fizzy-User"
)

// FizzyServer serves the HTTP API. Every mutation runs in a single
// transaction that writes the entity, the event, and the fan-out jobs
// together; nothing is dispatched from the request path itself.
type FizzyServer struct {
	store    store.Store
	recorder *events.Recorder
	hub      *broadcast.Hub
	logger   *slog.Logger
}

// NewFizzyServer returns a server backed by the given store and hub.
func NewFizzyServer(s store.Store, recorder *events.Recorder, hub *broadcast.Hub, logger *slog.Logger) *FizzyServer {
	return &FizzyServer{
		store:    s,
		recorder: recorder,
		hub:      hub,
		logger:   logger,
	}
}

// inputError indicates invalid user input.
// Transport layers map this to 400.
type inputError string

func (e inputError) Error() string { return string(e) }

// actor returns the acting user from the request headers.
func actor(r *http.Request) string {
	return r.Header.Get(UserHeader)
}

// mutate runs fn inside a transaction scoped to the request's account.
// fn receives the transaction store and records its event through the
// server's recorder.
func (s *FizzyServer) mutate(ctx context.Context, fn func(tx store.Store) error) error {
	if _, err := tenant.AccountID(ctx); err != nil {
		return err
	}
	return s.store.RunInTransaction(ctx, fn)
}

// record persists the event and its fan-out jobs inside tx.
func (s *FizzyServer) record(ctx context.Context, tx store.Store, e *model.Event, broadcasts ...model.BroadcastJobPayload) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return s.recorder.Record(ctx, tx, e, broadcasts...)
}

// cardBroadcasts returns the standard broadcast set for a card mutation:
// refresh the board view, refresh the card view.
func cardBroadcasts(card *model.Card) []model.BroadcastJobPayload {
	return []model.BroadcastJobPayload{
		{Stream: "boards/" + card.BoardID, Instruction: "refresh"},
		{Stream: "cards/" + card.ID, Instruction: "refresh"},
	}
}
