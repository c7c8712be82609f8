package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fizzyhq/fizzy/internal/idgen"
	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/store"
	"github.com/fizzyhq/fizzy/internal/tenant"
)

// defaultPostpone is how far a card is pushed when no explicit date is
// given.
const defaultPostpone = 7 * 24 * time.Hour

type createCardInput struct {
	BoardID     string   `json:"board_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"` // draft or open; defaults to open
	AssigneeID  string   `json:"assignee_id"`
	Mentions    []string `json:"mentions"`
}

// handleCreateCard handles POST /v1/cards.
func (s *FizzyServer) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	accountID, err := tenant.AccountID(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var in createCardInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	status := model.StatusOpen
	if in.Status != "" {
		status = model.CardStatus(in.Status)
		if status != model.StatusDraft && status != model.StatusOpen {
			writeError(w, http.StatusBadRequest, "status must be draft or open")
			return
		}
	}

	id, err := idgen.NewEntityID(idgen.PrefixCard)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate id")
		return
	}
	now := time.Now().UTC()
	card := &model.Card{
		ID:             id,
		AccountID:      accountID,
		BoardID:        in.BoardID,
		Title:          in.Title,
		Description:    in.Description,
		Status:         status,
		AssigneeID:     in.AssigneeID,
		CreatedAt:      now,
		CreatedBy:      actor(r),
		UpdatedAt:      now,
		LastActivityAt: now,
	}
	if err := model.ValidateCard(card); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	particulars, err := json.Marshal(model.Particulars{Mentions: in.Mentions})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode event")
		return
	}

	err = s.mutate(r.Context(), func(tx store.Store) error {
		if err := tx.CreateCard(r.Context(), card); err != nil {
			return err
		}
		// The creator watches their own card.
		if who := actor(r); who != "" {
			if err := tx.AddWatcher(r.Context(), accountID, card.ID, who); err != nil {
				return err
			}
		}
		event := &model.Event{
			AccountID:   accountID,
			SubjectType: model.SubjectCard,
			SubjectID:   card.ID,
			Action:      model.ActionCreated,
			ActorID:     actor(r),
			Particulars: particulars,
		}
		// Drafts are invisible; nothing to repaint until publication.
		if !card.Visible() {
			return s.record(r.Context(), tx, event)
		}
		return s.record(r.Context(), tx, event, cardBroadcasts(card)...)
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create card")
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

// handleListCards handles GET /v1/cards.
func (s *FizzyServer) handleListCards(w http.ResponseWriter, r *http.Request) {
	accountID, err := tenant.AccountID(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	filter := model.CardFilter{
		BoardID:    q.Get("board"),
		AssigneeID: q.Get("assignee"),
		Search:     q.Get("search"),
	}
	if v := q.Get("status"); v != "" {
		for _, st := range strings.Split(v, ",") {
			filter.Status = append(filter.Status, model.CardStatus(st))
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	cards, total, err := s.store.ListCards(r.Context(), accountID, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list cards")
		return
	}
	if cards == nil {
		cards = []*model.Card{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cards": cards,
		"total": total,
	})
}

// handleGetCard handles GET /v1/cards/{id}.
func (s *FizzyServer) handleGetCard(w http.ResponseWriter, r *http.Request) {
	accountID, err := tenant.AccountID(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	card, err := s.store.GetCard(r.Context(), accountID, r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "card not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get card")
		return
	}
	writeJSON(w, http.StatusOK, card)
}

type updateCardInput struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Status      *string  `json:"status"` // draft -> open publication only
	Mentions    []string `json:"mentions"`
}

// handleUpdateCard handles PATCH /v1/cards/{id}.
func (s *FizzyServer) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	var in updateCardInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.transitionCard(w, r, func(card *model.Card) (*model.Event, error) {
		var changed []string
		if in.Title != nil && *in.Title != card.Title {
			card.Title = *in.Title
			changed = append(changed, "title")
		}
		if in.Description != nil && *in.Description != card.Description {
			card.Description = *in.Description
			changed = append(changed, "description")
		}
		if in.Status != nil && model.CardStatus(*in.Status) != card.Status {
			if card.Status != model.StatusDraft || model.CardStatus(*in.Status) != model.StatusOpen {
				return nil, inputError("status can only change from draft to open here")
			}
			card.Status = model.StatusOpen
			changed = append(changed, "status")
		}
		if len(changed) == 0 && len(in.Mentions) == 0 {
			return nil, nil
		}

		particulars, err := json.Marshal(model.Particulars{
			Field:    strings.Join(changed, ","),
			Mentions: in.Mentions,
		})
		if err != nil {
			return nil, err
		}
		return &model.Event{Action: model.ActionUpdated, Particulars: particulars}, nil
	})
}

// handleCloseCard handles POST /v1/cards/{id}/close.
func (s *FizzyServer) handleCloseCard(w http.ResponseWriter, r *http.Request) {
	s.transitionCard(w, r, func(card *model.Card) (*model.Event, error) {
		if card.Status != model.StatusOpen && card.Status != model.StatusPostponed {
			return nil, inputError("only open or postponed cards can be closed")
		}
		now := time.Now().UTC()
		old := card.Status
		card.Status = model.StatusClosed
		card.ClosedAt = &now
		card.ClosedBy = actor(r)
		card.PostponedUntil = nil

		particulars, err := json.Marshal(model.Particulars{
			Field: "status", OldValue: old.String(), NewValue: model.StatusClosed.String(),
		})
		if err != nil {
			return nil, err
		}
		return &model.Event{Action: model.ActionClosed, Particulars: particulars}, nil
	})
}

// handleReopenCard handles POST /v1/cards/{id}/reopen.
func (s *FizzyServer) handleReopenCard(w http.ResponseWriter, r *http.Request) {
	s.transitionCard(w, r, func(card *model.Card) (*model.Event, error) {
		if card.Status != model.StatusClosed && card.Status != model.StatusPostponed {
			return nil, inputError("only closed or postponed cards can be reopened")
		}
		old := card.Status
		card.Status = model.StatusOpen
		card.ClosedAt = nil
		card.ClosedBy = ""
		card.PostponedUntil = nil

		particulars, err := json.Marshal(model.Particulars{
			Field: "status", OldValue: old.String(), NewValue: model.StatusOpen.String(),
		})
		if err != nil {
			return nil, err
		}
		return &model.Event{Action: model.ActionReopened, Particulars: particulars}, nil
	})
}

// handleAssignCard handles POST /v1/cards/{id}/assign.
func (s *FizzyServer) handleAssignCard(w http.ResponseWriter, r *http.Request) {
	var in struct {
		AssigneeID string `json:"assignee_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.transitionCard(w, r, func(card *model.Card) (*model.Event, error) {
		if card.Status == model.StatusClosed {
			return nil, inputError("closed cards cannot be assigned")
		}
		if card.AssigneeID == in.AssigneeID {
			return nil, nil
		}
		old := card.AssigneeID
		card.AssigneeID = in.AssigneeID

		particulars, err := json.Marshal(model.Particulars{
			Field: "assignee_id", OldValue: old, NewValue: in.AssigneeID,
			Mentions: mentionsFor(in.AssigneeID),
		})
		if err != nil {
			return nil, err
		}
		return &model.Event{Action: model.ActionAssigned, Particulars: particulars}, nil
	})
}

// mentionsFor treats the new assignee as mentioned so they are notified
// even when they are not yet watching.
func mentionsFor(assigneeID string) []string {
	if assigneeID == "" {
		return nil
	}
	return []string{assigneeID}
}

// handleMoveCard handles POST /v1/cards/{id}/move.
func (s *FizzyServer) handleMoveCard(w http.ResponseWriter, r *http.Request) {
	var in struct {
		BoardID string `json:"board_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.BoardID == "" {
		writeError(w, http.StatusBadRequest, "board_id is required")
		return
	}

	var oldBoard string
	s.transitionCard(w, r, func(card *model.Card) (*model.Event, error) {
		if card.BoardID == in.BoardID {
			return nil, nil
		}
		oldBoard = card.BoardID
		card.BoardID = in.BoardID

		particulars, err := json.Marshal(model.Particulars{
			Field: "board_id", OldValue: oldBoard, NewValue: in.BoardID,
		})
		if err != nil {
			return nil, err
		}
		return &model.Event{Action: model.ActionMoved, Particulars: particulars}, nil
	}, func(card *model.Card) []model.BroadcastJobPayload {
		// Both boards need a repaint after a move.
		return append(cardBroadcasts(card),
			model.BroadcastJobPayload{Stream: "boards/" + oldBoard, Instruction: "refresh"})
	})
}

// handlePostponeCard handles POST /v1/cards/{id}/postpone.
func (s *FizzyServer) handlePostponeCard(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Until *time.Time `json:"until"`
	}
	// An empty body means the default postpone window.
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.transitionCard(w, r, func(card *model.Card) (*model.Event, error) {
		if card.Status != model.StatusOpen {
			return nil, inputError("only open cards can be postponed")
		}
		until := time.Now().UTC().Add(defaultPostpone)
		if in.Until != nil {
			if in.Until.Before(time.Now()) {
				return nil, inputError("until must be in the future")
			}
			until = in.Until.UTC()
		}
		card.Status = model.StatusPostponed
		card.PostponedUntil = &until

		particulars, err := json.Marshal(model.Particulars{
			Field: "status", OldValue: model.StatusOpen.String(), NewValue: model.StatusPostponed.String(),
		})
		if err != nil {
			return nil, err
		}
		return &model.Event{Action: model.ActionPostponed, Particulars: particulars}, nil
	})
}

// transitionCard loads the card, applies fn, persists the result, and
// records the event fn returns; all inside one transaction. fn returning a
// nil event means nothing changed. An optional broadcasts func overrides
// the default board+card refresh set.
func (s *FizzyServer) transitionCard(
	w http.ResponseWriter, r *http.Request,
	fn func(card *model.Card) (*model.Event, error),
	broadcasts ...func(card *model.Card) []model.BroadcastJobPayload,
) {
	accountID, err := tenant.AccountID(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := r.PathValue("id")

	var card *model.Card
	err = s.mutate(r.Context(), func(tx store.Store) error {
		var err error
		card, err = tx.GetCard(r.Context(), accountID, id)
		if err != nil {
			return err
		}

		event, err := fn(card)
		if err != nil {
			return err
		}
		if event == nil {
			return nil
		}

		now := time.Now().UTC()
		card.UpdatedAt = now
		card.LastActivityAt = now
		if err := model.ValidateCard(card); err != nil {
			return err
		}
		if err := tx.UpdateCard(r.Context(), card); err != nil {
			return err
		}

		event.AccountID = accountID
		event.SubjectType = model.SubjectCard
		event.SubjectID = card.ID
		event.ActorID = actor(r)

		if !card.Visible() {
			return s.record(r.Context(), tx, event)
		}
		streams := cardBroadcasts(card)
		if len(broadcasts) > 0 {
			streams = broadcasts[0](card)
		}
		return s.record(r.Context(), tx, event, streams...)
	})

	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "card not found")
	case err != nil:
		var ie inputError
		var ve *model.ValidationError
		if errors.As(err, &ie) {
			writeError(w, http.StatusBadRequest, ie.Error())
		} else if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusInternalServerError, "failed to update card")
		}
	default:
		writeJSON(w, http.StatusOK, card)
	}
}
