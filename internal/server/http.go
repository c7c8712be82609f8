package server

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health and
// /metrics) must include a valid Authorization: Bearer <token> header.
func (s *FizzyServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/accounts", s.handleCreateAccount)
	mux.HandleFunc("POST /v1/users", s.handleCreateUser)
	mux.HandleFunc("GET /v1/users", s.handleListUsers)

	mux.HandleFunc("POST /v1/boards", s.handleCreateBoard)
	mux.HandleFunc("GET /v1/boards", s.handleListBoards)
	mux.HandleFunc("GET /v1/boards/{id}", s.handleGetBoard)

	mux.HandleFunc("POST /v1/cards", s.handleCreateCard)
	mux.HandleFunc("GET /v1/cards", s.handleListCards)
	mux.HandleFunc("GET /v1/cards/{id}", s.handleGetCard)
	mux.HandleFunc("PATCH /v1/cards/{id}", s.handleUpdateCard)
	mux.HandleFunc("POST /v1/cards/{id}/close", s.handleCloseCard)
	mux.HandleFunc("POST /v1/cards/{id}/reopen", s.handleReopenCard)
	mux.HandleFunc("POST /v1/cards/{id}/assign", s.handleAssignCard)
	mux.HandleFunc("POST /v1/cards/{id}/move", s.handleMoveCard)
	mux.HandleFunc("POST /v1/cards/{id}/postpone", s.handlePostponeCard)
	mux.HandleFunc("PUT /v1/cards/{id}/watchers/{user}", s.handleAddWatcher)
	mux.HandleFunc("DELETE /v1/cards/{id}/watchers/{user}", s.handleRemoveWatcher)
	mux.HandleFunc("GET /v1/cards/{id}/comments", s.handleGetComments)
	mux.HandleFunc("POST /v1/cards/{id}/comments", s.handleAddComment)
	mux.HandleFunc("GET /v1/cards/{id}/events", s.handleGetEvents)

	mux.HandleFunc("GET /v1/notifications", s.handleListNotifications)
	mux.HandleFunc("POST /v1/notifications/{id}/read", s.handleReadNotification)
	mux.HandleFunc("DELETE /v1/notifications/{id}", s.handleDismissNotification)

	mux.HandleFunc("POST /v1/webhooks", s.handleCreateWebhook)
	mux.HandleFunc("GET /v1/webhooks", s.handleListWebhooks)
	mux.HandleFunc("DELETE /v1/webhooks/{id}", s.handleDeactivateWebhook)
	mux.HandleFunc("GET /v1/webhooks/{id}/deliveries", s.handleListDeliveries)

	mux.HandleFunc("GET /v1/stream", s.handleStream)
	mux.HandleFunc("GET /v1/stats", s.handleGetStats)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	var handler http.Handler = mux
	handler = TenantMiddleware(handler)
	handler = AuthMiddleware(authToken, handler)
	handler = LoggingMiddleware(s.logger, handler)
	handler = RecoveryMiddleware(s.logger, handler)
	return handler
}

// handleHealth handles GET /v1/health.
func (s *FizzyServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
