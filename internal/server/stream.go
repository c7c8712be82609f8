package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fizzyhq/fizzy/internal/broadcast"
	"github.com/fizzyhq/fizzy/internal/tenant"
)

// keepaliveInterval is how often keepalive comments are sent to prevent
// connection timeouts.
const keepaliveInterval = 15 * time.Second

// handleStream handles GET /v1/stream (SSE endpoint). Instructions are
// live-only: a client that reconnects sees what happens next, not what it
// missed, so there is no Last-Event-ID replay. The client is expected to
// refresh its views after connecting.
func (s *FizzyServer) handleStream(w http.ResponseWriter, r *http.Request) {
	accountID, err := tenant.AccountID(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Ensure response supports flushing (required for SSE).
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Parse optional stream filters from query params.
	var streams []string
	if q := r.URL.Query().Get("streams"); q != "" {
		for _, st := range strings.Split(q, ",") {
			st = strings.TrimSpace(st)
			if st != "" {
				streams = append(streams, st)
			}
		}
	}

	client := s.hub.Subscribe(accountID, streams)
	defer s.hub.Unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case msg, ok := <-client.Ch():
			if !ok {
				return
			}
			writeSSEMessage(w, msg)
			flusher.Flush()
		}
	}
}

// writeSSEMessage writes a single instruction in SSE wire format. The
// event name is the instruction so clients can attach per-instruction
// listeners.
func writeSSEMessage(w http.ResponseWriter, msg *broadcast.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\n", msg.Instruction)
	fmt.Fprintf(w, "data: %s\n\n", data)
}
