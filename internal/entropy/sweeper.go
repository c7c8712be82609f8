// Package entropy postpones cards that have gone quiet. A card with no
// activity past the idle threshold is moved to the postponed state by the
// system actor, so boards decay toward what is actually being worked on.
package entropy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fizzyhq/fizzy/internal/events"
	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/store"
	"github.com/fizzyhq/fizzy/internal/tenant"
)

// sweepBatchSize bounds how many cards a single sweep touches.
const sweepBatchSize = 100

// Sweeper periodically postpones idle open cards.
type Sweeper struct {
	store     store.Store
	recorder  *events.Recorder
	interval  time.Duration
	idleAfter time.Duration
	postpone  time.Duration
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper. idleAfter is how long a card may sit
// without activity; postpone is how far into the future swept cards are
// pushed.
func NewSweeper(s store.Store, recorder *events.Recorder, interval, idleAfter, postpone time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:     s,
		recorder:  recorder,
		interval:  interval,
		idleAfter: idleAfter,
		postpone:  postpone,
		logger:    logger,
	}
}

// Start begins periodic sweeping.
func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the sweeper and waits for the current sweep to finish.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("entropy sweep", "error", err)
			} else if n > 0 {
				s.logger.Info("entropy sweep postponed cards", "count", n)
			}
		}
	}
}

// SweepOnce postpones one batch of idle cards and returns how many were
// touched. Each card is handled in its own transaction; one failure does
// not stall the rest of the batch.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	idleBefore := time.Now().UTC().Add(-s.idleAfter)
	cards, err := s.store.ListStaleCards(ctx, idleBefore, sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("listing stale cards: %w", err)
	}

	swept := 0
	for _, card := range cards {
		postponed, err := s.sweepCard(ctx, card.AccountID, card.ID, idleBefore)
		if err != nil {
			s.logger.Error("postponing idle card", "card", card.ID, "error", err)
			continue
		}
		if postponed {
			swept++
		}
	}
	return swept, nil
}

// sweepCard re-reads the card inside a transaction and postpones it if it
// is still idle. A card touched between listing and here is left alone.
func (s *Sweeper) sweepCard(ctx context.Context, accountID, cardID string, idleBefore time.Time) (bool, error) {
	ctx = tenant.WithAccount(ctx, accountID)

	postponed := false
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		card, err := tx.GetCard(ctx, accountID, cardID)
		if err != nil {
			return err
		}
		if card.Status != model.StatusOpen || !card.LastActivityAt.Before(idleBefore) {
			return nil
		}

		now := time.Now().UTC()
		until := now.Add(s.postpone)
		card.Status = model.StatusPostponed
		card.PostponedUntil = &until
		card.UpdatedAt = now
		card.LastActivityAt = now
		if err := tx.UpdateCard(ctx, card); err != nil {
			return err
		}

		particulars, err := json.Marshal(model.Particulars{
			Field:    "status",
			OldValue: model.StatusOpen.String(),
			NewValue: model.StatusPostponed.String(),
		})
		if err != nil {
			return fmt.Errorf("marshaling particulars: %w", err)
		}

		postponed = true
		return s.recorder.Record(ctx, tx, &model.Event{
			AccountID:   accountID,
			SubjectType: model.SubjectCard,
			SubjectID:   card.ID,
			Action:      model.ActionPostponed,
			ActorID:     model.SystemActor,
			Particulars: particulars,
		},
			model.BroadcastJobPayload{Stream: "boards/" + card.BoardID, Instruction: "refresh"},
			model.BroadcastJobPayload{Stream: "cards/" + card.ID, Instruction: "refresh"},
		)
	})
	return postponed, err
}
