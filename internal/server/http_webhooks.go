package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fizzyhq/fizzy/internal/idgen"
	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/store"
	"github.com/fizzyhq/fizzy/internal/tenant"
)

// webhookResponse is returned from creation only; it is the one place the
// signing secret ever leaves the server.
type webhookResponse struct {
	*model.Webhook
	Secret string `json:"secret"`
}

// handleCreateWebhook handles POST /v1/webhooks.
func (s *FizzyServer) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	accountID, err := tenant.AccountID(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var in struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	u, err := url.Parse(in.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeError(w, http.StatusBadRequest, "url must be a valid http or https URL")
		return
	}

	id, err := idgen.NewEntityID(idgen.PrefixWebhook)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate id")
		return
	}
	secret, err := idgen.NewSecret()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate secret")
		return
	}

	webhook := &model.Webhook{
		ID:        id,
		AccountID: accountID,
		URL:       in.URL,
		Secret:    secret,
		Active:    true,
		CreatedAt: time.Now().UTC(),
		CreatedBy: actor(r),
	}
	if err := s.store.CreateWebhook(r.Context(), webhook); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create webhook")
		return
	}
	writeJSON(w, http.StatusCreated, webhookResponse{Webhook: webhook, Secret: secret})
}

// handleListWebhooks handles GET /v1/webhooks.
func (s *FizzyServer) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	accountID, err := tenant.AccountID(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	webhooks, err := s.store.ListWebhooks(r.Context(), accountID, r.URL.Query().Get("active") == "true")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list webhooks")
		return
	}
	if webhooks == nil {
		webhooks = []*model.Webhook{}
	}
	writeJSON(w, http.StatusOK, webhooks)
}

// handleDeactivateWebhook handles DELETE /v1/webhooks/{id}. Webhooks are
// deactivated rather than removed so their delivery history survives.
func (s *FizzyServer) handleDeactivateWebhook(w http.ResponseWriter, r *http.Request) {
	accountID, err := tenant.AccountID(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = s.store.DeactivateWebhook(r.Context(), accountID, r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "webhook not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to deactivate webhook")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListDeliveries handles GET /v1/webhooks/{id}/deliveries.
func (s *FizzyServer) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	accountID, err := tenant.AccountID(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
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

	deliveries, err := s.store.ListDeliveries(r.Context(), accountID, r.PathValue("id"), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list deliveries")
		return
	}
	if deliveries == nil {
		deliveries = []*model.WebhookDelivery{}
	}
	writeJSON(w, http.StatusOK, deliveries)
}
