package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fizzyhq/fizzy/internal/idgen"
	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/store"
	"github.com/fizzyhq/fizzy/internal/tenant"
)

// handleAddWatcher handles PUT /v1/cards/{id}/watchers/{user}.
// Watching is idempotent and records no event.
func (s *FizzyServer) handleAddWatcher(w http.ResponseWriter, r *http.Request) {
	s.setWatcher(w, r, true)
}

// handleRemoveWatcher handles DELETE /v1/cards/{id}/watchers/{user}.
func (s *FizzyServer) handleRemoveWatcher(w http.ResponseWriter, r *http.Request) {
	s.setWatcher(w, r, false)
}

func (s *FizzyServer) setWatcher(w http.ResponseWriter, r *http.Request, add bool) {
	accountID, err := tenant.AccountID(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cardID := r.PathValue("id")
	userID := r.PathValue("user")

	// Verify the card exists in this account before touching watchers.
	if _, err := s.store.GetCard(r.Context(), accountID, cardID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "card not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load card")
		return
	}

	if add {
		err = s.store.AddWatcher(r.Context(), accountID, cardID, userID)
	} else {
		err = s.store.RemoveWatcher(r.Context(), accountID, cardID, userID)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update watchers")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetComments handles GET /v1/cards/{id}/comments.
func (s *FizzyServer) handleGetComments(w http.ResponseWriter, r *http.Request) {
	accountID, err := tenant.AccountID(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comments, err := s.store.GetComments(r.Context(), accountID, r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list comments")
		return
	}
	if comments == nil {
		comments = []*model.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

type addCommentInput struct {
	Body     string   `json:"body"`
	Mentions []string `json:"mentions"`
}

// handleAddComment handles POST /v1/cards/{id}/comments. The comment, the
// commented event, and the fan-out jobs land in one transaction, and the
// comment bumps the card's activity clock.
func (s *FizzyServer) handleAddComment(w http.ResponseWriter, r *http.Request) {
	accountID, err := tenant.AccountID(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var in addCommentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Body == "" {
		writeError(w, http.StatusBadRequest, "body is required")
		return
	}

	id, err := idgen.NewEntityID(idgen.PrefixComment)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate id")
		return
	}

	comment := &model.Comment{
		ID:        id,
		AccountID: accountID,
		CardID:    r.PathValue("id"),
		AuthorID:  actor(r),
		Body:      in.Body,
		CreatedAt: time.Now().UTC(),
	}

	particulars, err := json.Marshal(model.Particulars{Body: in.Body, Mentions: in.Mentions})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode event")
		return
	}

	err = s.mutate(r.Context(), func(tx store.Store) error {
		card, err := tx.GetCard(r.Context(), accountID, comment.CardID)
		if err != nil {
			return err
		}
		if err := tx.AddComment(r.Context(), comment); err != nil {
			return err
		}

		now := comment.CreatedAt
		card.UpdatedAt = now
		card.LastActivityAt = now
		if err := tx.UpdateCard(r.Context(), card); err != nil {
			return err
		}

		// Commenting implies interest.
		if who := actor(r); who != "" {
			if err := tx.AddWatcher(r.Context(), accountID, card.ID, who); err != nil {
				return err
			}
		}

		event := &model.Event{
			AccountID:   accountID,
			SubjectType: model.SubjectCard,
			SubjectID:   card.ID,
			Action:      model.ActionCommented,
			ActorID:     actor(r),
			Particulars: particulars,
		}
		if !card.Visible() {
			return s.record(r.Context(), tx, event)
		}
		return s.record(r.Context(), tx, event, cardBroadcasts(card)...)
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "card not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to add comment")
	default:
		writeJSON(w, http.StatusCreated, comment)
	}
}
