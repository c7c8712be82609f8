package server

import (
	"net/http"
	"strconv"

	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/tenant"
)

// handleGetEvents handles GET /v1/cards/{id}/events, the card's audit
// trail in chronological order.
func (s *FizzyServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	accountID, err := tenant.AccountID(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	limit, offset := 100, 0
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	events, err := s.store.EventsForSubject(r.Context(), accountID, model.SubjectCard, r.PathValue("id"), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// handleGetStats handles GET /v1/stats.
func (s *FizzyServer) handleGetStats(w http.ResponseWriter, r *http.Request) {
	accountID, err := tenant.AccountID(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cards, err := s.store.CountCardsByStatus(r.Context(), accountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count cards")
		return
	}
	jobs, err := s.store.CountJobs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count jobs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cards":          cards,
		"jobs":           jobs,
		"stream_clients": s.hub.ClientCount(),
	})
}
