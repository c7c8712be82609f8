package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/store"
	"github.com/fizzyhq/fizzy/internal/tenant"
)

// handleListNotifications handles GET /v1/notifications. Notifications
// belong to the acting user; ?unread=true narrows to unread ones.
func (s *FizzyServer) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	accountID, err := tenant.AccountID(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID := actor(r)
	if userID == "" {
		writeError(w, http.StatusBadRequest, UserHeader+" header is required")
		return
	}

	q := r.URL.Query()
	unreadOnly := q.Get("unread") == "true"
	limit, offset := 50, 0
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

	notifications, err := s.store.ListNotifications(r.Context(), accountID, userID, unreadOnly, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	if notifications == nil {
		notifications = []*model.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

// handleReadNotification handles POST /v1/notifications/{id}/read.
func (s *FizzyServer) handleReadNotification(w http.ResponseWriter, r *http.Request) {
	accountID, err := tenant.AccountID(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID := actor(r)
	if userID == "" {
		writeError(w, http.StatusBadRequest, UserHeader+" header is required")
		return
	}

	err = s.store.MarkNotificationRead(r.Context(), accountID, userID, r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark notification read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDismissNotification handles DELETE /v1/notifications/{id}.
func (s *FizzyServer) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	accountID, err := tenant.AccountID(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID := actor(r)
	if userID == "" {
		writeError(w, http.StatusBadRequest, UserHeader+" header is required")
		return
	}

	err = s.store.DeleteNotification(r.Context(), accountID, userID, r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to dismiss notification")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
