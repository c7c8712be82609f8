// Package export periodically writes the event log as JSONL to one or
// more destinations (local file, S3). The export is an operational
// backup of the audit trail, not a sync protocol.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/store"
)

// exportBatchSize is how many events are fetched per page while scanning
// the log.
const exportBatchSize = 500

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version    string    `json:"version"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	EventCount int       `json:"event_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes the full event log to w, oldest first. Event IDs are
// time-ordered, so paging on ID walks the log chronologically.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	var all []*model.Event
	sinceID := ""
	for {
		events, err := s.ListEventsSince(ctx, sinceID, exportBatchSize)
		if err != nil {
			return fmt.Errorf("listing events after %q: %w", sinceID, err)
		}
		if len(events) == 0 {
			break
		}
		all = append(all, events...)
		sinceID = events[len(events)-1].ID
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:    "1",
		Type:       "header",
		Timestamp:  time.Now().UTC(),
		EventCount: len(all),
	}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, e := range all {
		if err := enc.Encode(record{Type: "event", Data: e}); err != nil {
			return fmt.Errorf("write event %s: %w", e.ID, err)
		}
	}
	return nil
}
