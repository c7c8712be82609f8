package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fizzyhq/fizzy/internal/broadcast"
	"github.com/fizzyhq/fizzy/internal/events"
	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/store/storetest"
)

const (
	testAccount = "acc-1"
	testUser    = "usr-1"
)

func newTestServer() (*FizzyServer, *storetest.Fake, http.Handler) {
	fake := storetest.NewFake()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewFizzyServer(fake, events.NewRecorder(3, false), broadcast.NewHub(), logger)
	return s, fake, s.NewHTTPHandler("")
}

// doJSON issues a request as testUser in testAccount.
func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return doJSONAs(t, handler, method, path, body, testAccount, testUser)
}

func doJSONAs(t *testing.T, handler http.Handler, method, path string, body any, account, user string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if account != "" {
		req.Header.Set(AccountHeader, account)
	}
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// requireStatus asserts the recorder has the expected HTTP status code.
func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected status %d, got %d; body: %s", code, rec.Code, rec.Body.String())
	}
}

// decodeJSON decodes the recorder's response body into v.
func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

// seedCard puts an open card into the fake, bypassing the API.
func seedCard(fake *storetest.Fake, id, boardID string, status model.CardStatus) *model.Card {
	card := &model.Card{
		ID:             id,
		AccountID:      testAccount,
		BoardID:        boardID,
		Title:          "Seeded card",
		Status:         status,
		CreatedAt:      time.Now().UTC().Add(-time.Hour),
		UpdatedAt:      time.Now().UTC().Add(-time.Hour),
		LastActivityAt: time.Now().UTC().Add(-time.Hour),
	}
	fake.Cards[id] = card
	return card
}

// jobKinds tallies enqueued jobs by kind.
func jobKinds(fake *storetest.Fake) map[string]int {
	kinds := map[string]int{}
	for _, j := range fake.Jobs {
		kinds[j.Kind]++
	}
	return kinds
}

func TestHandleHTTPErrors(t *testing.T) {
	for _, tc := range []struct {
		name      string
		method    string
		path      string
		body      any
		code      int
		wantError string
	}{
		{"CreateAccount/MissingName", "POST", "/v1/accounts", map[string]any{}, 400, "name is required"},
		{"CreateUser/MissingHandle", "POST", "/v1/users", map[string]any{"name": "Frank"}, 400, "handle is required"},
		{"CreateBoard/MissingName", "POST", "/v1/boards", map[string]any{}, 400, "name is required"},
		{"GetBoard/NotFound", "GET", "/v1/boards/brd-missing", nil, 404, "board not found"},
		{"GetCard/NotFound", "GET", "/v1/cards/cd-missing", nil, 404, "card not found"},
		{"CloseCard/NotFound", "POST", "/v1/cards/cd-missing/close", nil, 404, "card not found"},
		{"CreateCard/BadStatus", "POST", "/v1/cards", map[string]any{"board_id": "brd-1", "title": "x", "status": "closed"}, 400, "status must be draft or open"},
		{"AddComment/MissingBody", "POST", "/v1/cards/cd-missing/comments", map[string]any{}, 400, "body is required"},
		{"MoveCard/MissingBoard", "POST", "/v1/cards/cd-missing/move", map[string]any{}, 400, "board_id is required"},
		{"CreateWebhook/BadURL", "POST", "/v1/webhooks", map[string]any{"url": "not a url"}, 400, "url must be a valid http or https URL"},
		{"DeactivateWebhook/NotFound", "DELETE", "/v1/webhooks/wh-missing", nil, 404, "webhook not found"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, _, h := newTestServer()
			rec := doJSON(t, h, tc.method, tc.path, tc.body)
			requireStatus(t, rec, tc.code)
			if tc.wantError != "" {
				var body map[string]string
				decodeJSON(t, rec, &body)
				if body["error"] != tc.wantError {
					t.Fatalf("expected error=%q, got %q", tc.wantError, body["error"])
				}
			}
		})
	}
}

func TestHandleHealth(t *testing.T) {
	_, _, h := newTestServer()
	rec := doJSONAs(t, h, "GET", "/v1/health", nil, "", "")
	requireStatus(t, rec, 200)
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["status"] != "ok" {
		t.Fatalf("expected status=ok, got %q", body["status"])
	}
}

func TestHandleCreateAccount_NoTenantRequired(t *testing.T) {
	_, fake, h := newTestServer()
	rec := doJSONAs(t, h, "POST", "/v1/accounts", map[string]any{"name": "Initech"}, "", "")
	requireStatus(t, rec, 201)
	var account model.Account
	decodeJSON(t, rec, &account)
	if account.ID == "" || account.Name != "Initech" {
		t.Fatalf("got account %+v", account)
	}
	if fake.Accounts[account.ID] == nil {
		t.Fatal("account not persisted")
	}
}

func TestMissingAccountHeader(t *testing.T) {
	_, _, h := newTestServer()
	rec := doJSONAs(t, h, "GET", "/v1/cards", nil, "", "")
	requireStatus(t, rec, 400)
}

func TestHandleCreateCard(t *testing.T) {
	_, fake, h := newTestServer()
	rec := doJSON(t, h, "POST", "/v1/cards", map[string]any{
		"board_id": "brd-1",
		"title":    "Fix login flow",
	})
	requireStatus(t, rec, 201)
	var card model.Card
	decodeJSON(t, rec, &card)
	if card.ID == "" || card.Status != model.StatusOpen || card.AccountID != testAccount {
		t.Fatalf("got card %+v", card)
	}

	// Creation writes the event and its fan-out jobs in the same mutation.
	if len(fake.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(fake.Events))
	}
	for _, e := range fake.Events {
		if e.Action != model.ActionCreated || e.SubjectID != card.ID || e.ActorID != testUser {
			t.Fatalf("got event %+v", e)
		}
	}
	kinds := jobKinds(fake)
	if kinds[model.JobKindNotify] != 1 || kinds[model.JobKindWebhookFanOut] != 1 {
		t.Fatalf("expected notify and fan-out jobs, got %v", kinds)
	}
	if kinds[model.JobKindBroadcast] != 2 {
		t.Fatalf("expected board and card broadcasts, got %v", kinds)
	}

	// The creator watches their own card.
	if ws := fake.Watchers[card.ID]; len(ws) != 1 || ws[0] != testUser {
		t.Fatalf("expected creator watching, got %v", ws)
	}
}

func TestHandleCreateCard_DraftSuppressesBroadcasts(t *testing.T) {
	_, fake, h := newTestServer()
	rec := doJSON(t, h, "POST", "/v1/cards", map[string]any{
		"board_id": "brd-1",
		"title":    "Work in progress",
		"status":   "draft",
	})
	requireStatus(t, rec, 201)

	kinds := jobKinds(fake)
	if kinds[model.JobKindBroadcast] != 0 {
		t.Fatalf("draft card should not broadcast, got %v", kinds)
	}
	// The event itself is still recorded.
	if len(fake.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(fake.Events))
	}
}

func TestHandleListCards_Filters(t *testing.T) {
	_, fake, h := newTestServer()
	seedCard(fake, "cd-a", "brd-1", model.StatusOpen)
	seedCard(fake, "cd-b", "brd-1", model.StatusClosed)
	seedCard(fake, "cd-c", "brd-2", model.StatusOpen)

	rec := doJSON(t, h, "GET", "/v1/cards?board=brd-1&status=open", nil)
	requireStatus(t, rec, 200)
	var body struct {
		Cards []*model.Card `json:"cards"`
		Total int           `json:"total"`
	}
	decodeJSON(t, rec, &body)
	if body.Total != 1 || len(body.Cards) != 1 || body.Cards[0].ID != "cd-a" {
		t.Fatalf("got %+v", body)
	}
}

func TestTenantIsolation_GetCard(t *testing.T) {
	_, fake, h := newTestServer()
	seedCard(fake, "cd-a", "brd-1", model.StatusOpen)

	// A caller from another account gets a 404, not the card.
	rec := doJSONAs(t, h, "GET", "/v1/cards/cd-a", nil, "acc-other", testUser)
	requireStatus(t, rec, 404)

	rec = doJSON(t, h, "GET", "/v1/cards/cd-a", nil)
	requireStatus(t, rec, 200)
}

func TestHandleCloseCard(t *testing.T) {
	_, fake, h := newTestServer()
	seedCard(fake, "cd-a", "brd-1", model.StatusOpen)

	rec := doJSON(t, h, "POST", "/v1/cards/cd-a/close", nil)
	requireStatus(t, rec, 200)
	var card model.Card
	decodeJSON(t, rec, &card)
	if card.Status != model.StatusClosed || card.ClosedAt == nil || card.ClosedBy != testUser {
		t.Fatalf("got card %+v", card)
	}

	// Closing a closed card is invalid.
	rec = doJSON(t, h, "POST", "/v1/cards/cd-a/close", nil)
	requireStatus(t, rec, 400)
}

func TestHandleReopenCard(t *testing.T) {
	_, fake, h := newTestServer()
	card := seedCard(fake, "cd-a", "brd-1", model.StatusClosed)
	now := time.Now().UTC()
	card.ClosedAt = &now
	card.ClosedBy = "usr-2"

	rec := doJSON(t, h, "POST", "/v1/cards/cd-a/reopen", nil)
	requireStatus(t, rec, 200)
	var got model.Card
	decodeJSON(t, rec, &got)
	if got.Status != model.StatusOpen || got.ClosedAt != nil || got.ClosedBy != "" {
		t.Fatalf("got card %+v", got)
	}

	// Reopening an open card is invalid.
	rec = doJSON(t, h, "POST", "/v1/cards/cd-a/reopen", nil)
	requireStatus(t, rec, 400)
}

func TestHandleAssignCard(t *testing.T) {
	_, fake, h := newTestServer()
	seedCard(fake, "cd-a", "brd-1", model.StatusOpen)

	rec := doJSON(t, h, "POST", "/v1/cards/cd-a/assign", map[string]any{"assignee_id": "usr-9"})
	requireStatus(t, rec, 200)
	var card model.Card
	decodeJSON(t, rec, &card)
	if card.AssigneeID != "usr-9" {
		t.Fatalf("got assignee %q", card.AssigneeID)
	}

	// The assignee lands in the event's mentions so they get notified.
	var assigned *model.Event
	for _, e := range fake.Events {
		if e.Action == model.ActionAssigned {
			assigned = e
		}
	}
	if assigned == nil {
		t.Fatal("expected an assigned event")
	}
	p, err := assigned.DecodeParticulars()
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Mentions) != 1 || p.Mentions[0] != "usr-9" {
		t.Fatalf("got mentions %v", p.Mentions)
	}
}

func TestHandleAssignCard_Closed(t *testing.T) {
	_, fake, h := newTestServer()
	seedCard(fake, "cd-a", "brd-1", model.StatusClosed)
	rec := doJSON(t, h, "POST", "/v1/cards/cd-a/assign", map[string]any{"assignee_id": "usr-9"})
	requireStatus(t, rec, 400)
}

func TestHandleMoveCard_BroadcastsBothBoards(t *testing.T) {
	_, fake, h := newTestServer()
	seedCard(fake, "cd-a", "brd-1", model.StatusOpen)

	rec := doJSON(t, h, "POST", "/v1/cards/cd-a/move", map[string]any{"board_id": "brd-2"})
	requireStatus(t, rec, 200)
	var card model.Card
	decodeJSON(t, rec, &card)
	if card.BoardID != "brd-2" {
		t.Fatalf("got board %q", card.BoardID)
	}

	var streams []string
	for _, j := range fake.Jobs {
		if j.Kind != model.JobKindBroadcast {
			continue
		}
		var p model.BroadcastJobPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			t.Fatal(err)
		}
		streams = append(streams, p.Stream)
	}
	want := map[string]bool{"boards/brd-1": false, "boards/brd-2": false, "cards/cd-a": false}
	for _, st := range streams {
		if _, ok := want[st]; ok {
			want[st] = true
		}
	}
	for st, seen := range want {
		if !seen {
			t.Fatalf("missing broadcast for %s; got %v", st, streams)
		}
	}
}

func TestHandlePostponeCard(t *testing.T) {
	_, fake, h := newTestServer()
	seedCard(fake, "cd-a", "brd-1", model.StatusOpen)

	until := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
	rec := doJSON(t, h, "POST", "/v1/cards/cd-a/postpone", map[string]any{"until": until})
	requireStatus(t, rec, 200)
	var card model.Card
	decodeJSON(t, rec, &card)
	if card.Status != model.StatusPostponed || card.PostponedUntil == nil || !card.PostponedUntil.Equal(until) {
		t.Fatalf("got card %+v", card)
	}

	// Postponing a postponed card is invalid.
	rec = doJSON(t, h, "POST", "/v1/cards/cd-a/postpone", nil)
	requireStatus(t, rec, 400)
}

func TestHandlePostponeCard_PastDate(t *testing.T) {
	_, fake, h := newTestServer()
	seedCard(fake, "cd-a", "brd-1", model.StatusOpen)
	past := time.Now().UTC().Add(-time.Hour)
	rec := doJSON(t, h, "POST", "/v1/cards/cd-a/postpone", map[string]any{"until": past})
	requireStatus(t, rec, 400)
	if fake.Cards["cd-a"].Status != model.StatusOpen {
		t.Fatal("card should be untouched")
	}
}

func TestHandleUpdateCard_PublishDraft(t *testing.T) {
	_, fake, h := newTestServer()
	seedCard(fake, "cd-a", "brd-1", model.StatusDraft)

	rec := doJSON(t, h, "PATCH", "/v1/cards/cd-a", map[string]any{"status": "open"})
	requireStatus(t, rec, 200)
	var card model.Card
	decodeJSON(t, rec, &card)
	if card.Status != model.StatusOpen {
		t.Fatalf("got status %q", card.Status)
	}
	// Publication is the first visible moment, so it broadcasts.
	if jobKinds(fake)[model.JobKindBroadcast] != 2 {
		t.Fatalf("expected broadcasts on publish, got %v", jobKinds(fake))
	}
}

func TestHandleUpdateCard_NoChange(t *testing.T) {
	_, fake, h := newTestServer()
	seedCard(fake, "cd-a", "brd-1", model.StatusOpen)

	rec := doJSON(t, h, "PATCH", "/v1/cards/cd-a", map[string]any{})
	requireStatus(t, rec, 200)
	if len(fake.Events) != 0 {
		t.Fatalf("no-op update should record nothing, got %d events", len(fake.Events))
	}
}

func TestHandleWatchers(t *testing.T) {
	_, fake, h := newTestServer()
	seedCard(fake, "cd-a", "brd-1", model.StatusOpen)

	rec := doJSON(t, h, "PUT", "/v1/cards/cd-a/watchers/usr-5", nil)
	requireStatus(t, rec, 204)
	if ws := fake.Watchers["cd-a"]; len(ws) != 1 || ws[0] != "usr-5" {
		t.Fatalf("got watchers %v", ws)
	}

	// Watching records no event.
	if len(fake.Events) != 0 {
		t.Fatalf("expected no events, got %d", len(fake.Events))
	}

	rec = doJSON(t, h, "DELETE", "/v1/cards/cd-a/watchers/usr-5", nil)
	requireStatus(t, rec, 204)
	if ws := fake.Watchers["cd-a"]; len(ws) != 0 {
		t.Fatalf("got watchers %v", ws)
	}

	rec = doJSON(t, h, "PUT", "/v1/cards/cd-missing/watchers/usr-5", nil)
	requireStatus(t, rec, 404)
}

func TestHandleAddComment(t *testing.T) {
	_, fake, h := newTestServer()
	card := seedCard(fake, "cd-a", "brd-1", model.StatusOpen)
	before := card.LastActivityAt

	rec := doJSON(t, h, "POST", "/v1/cards/cd-a/comments", map[string]any{
		"body":     "Looks good to me",
		"mentions": []string{"usr-7"},
	})
	requireStatus(t, rec, 201)
	var comment model.Comment
	decodeJSON(t, rec, &comment)
	if comment.ID == "" || comment.AuthorID != testUser || comment.Body != "Looks good to me" {
		t.Fatalf("got comment %+v", comment)
	}

	// Commenting bumps the activity clock and records a commented event
	// carrying the body and mentions.
	if !fake.Cards["cd-a"].LastActivityAt.After(before) {
		t.Fatal("expected activity bump")
	}
	var commented *model.Event
	for _, e := range fake.Events {
		if e.Action == model.ActionCommented {
			commented = e
		}
	}
	if commented == nil {
		t.Fatal("expected a commented event")
	}
	p, err := commented.DecodeParticulars()
	if err != nil {
		t.Fatal(err)
	}
	if p.Body != "Looks good to me" || len(p.Mentions) != 1 || p.Mentions[0] != "usr-7" {
		t.Fatalf("got particulars %+v", p)
	}

	// The author now watches the card.
	if ws := fake.Watchers["cd-a"]; len(ws) != 1 || ws[0] != testUser {
		t.Fatalf("got watchers %v", ws)
	}
}

func TestHandleGetEvents(t *testing.T) {
	_, fake, h := newTestServer()
	seedCard(fake, "cd-a", "brd-1", model.StatusOpen)
	doJSON(t, h, "POST", "/v1/cards/cd-a/close", nil)
	doJSON(t, h, "POST", "/v1/cards/cd-a/reopen", nil)

	rec := doJSON(t, h, "GET", "/v1/cards/cd-a/events", nil)
	requireStatus(t, rec, 200)
	var events []*model.Event
	decodeJSON(t, rec, &events)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
}

func TestHandleNotifications(t *testing.T) {
	_, fake, h := newTestServer()
	fake.Notifications = []*model.Notification{
		{ID: "n-1", AccountID: testAccount, UserID: testUser, EventID: "ev-1"},
		{ID: "n-2", AccountID: testAccount, UserID: "usr-other", EventID: "ev-1"},
	}

	rec := doJSON(t, h, "GET", "/v1/notifications", nil)
	requireStatus(t, rec, 200)
	var list []*model.Notification
	decodeJSON(t, rec, &list)
	if len(list) != 1 || list[0].ID != "n-1" {
		t.Fatalf("got %+v", list)
	}

	rec = doJSON(t, h, "POST", "/v1/notifications/n-1/read", nil)
	requireStatus(t, rec, 204)
	if fake.Notifications[0].ReadAt == nil {
		t.Fatal("expected read_at to be set")
	}

	rec = doJSON(t, h, "GET", "/v1/notifications?unread=true", nil)
	requireStatus(t, rec, 200)
	list = nil
	decodeJSON(t, rec, &list)
	if len(list) != 0 {
		t.Fatalf("expected no unread, got %+v", list)
	}

	rec = doJSON(t, h, "DELETE", "/v1/notifications/n-1", nil)
	requireStatus(t, rec, 204)
}

func TestHandleNotifications_RequiresUser(t *testing.T) {
	_, _, h := newTestServer()
	rec := doJSONAs(t, h, "GET", "/v1/notifications", nil, testAccount, "")
	requireStatus(t, rec, 400)
}

func TestHandleCreateWebhook_SecretReturnedOnce(t *testing.T) {
	_, fake, h := newTestServer()
	rec := doJSON(t, h, "POST", "/v1/webhooks", map[string]any{"url": "https://example.com/hook"})
	requireStatus(t, rec, 201)
	var created struct {
		ID     string `json:"id"`
		Secret string `json:"secret"`
		Active bool   `json:"active"`
	}
	decodeJSON(t, rec, &created)
	if created.ID == "" || created.Secret == "" || !created.Active {
		t.Fatalf("got %+v", created)
	}
	if fake.Webhooks[created.ID].Secret != created.Secret {
		t.Fatal("stored secret mismatch")
	}

	// Listing never exposes the secret again.
	rec = doJSON(t, h, "GET", "/v1/webhooks", nil)
	requireStatus(t, rec, 200)
	if bytes.Contains(rec.Body.Bytes(), []byte(created.Secret)) {
		t.Fatal("secret leaked in listing")
	}
}

func TestHandleDeactivateWebhook(t *testing.T) {
	_, fake, h := newTestServer()
	fake.Webhooks["wh-1"] = &model.Webhook{ID: "wh-1", AccountID: testAccount, URL: "https://example.com", Active: true}

	rec := doJSON(t, h, "DELETE", "/v1/webhooks/wh-1", nil)
	requireStatus(t, rec, 204)
	if fake.Webhooks["wh-1"].Active {
		t.Fatal("expected webhook deactivated")
	}

	// Another account cannot touch it.
	fake.Webhooks["wh-1"].Active = true
	rec = doJSONAs(t, h, "DELETE", "/v1/webhooks/wh-1", nil, "acc-other", testUser)
	requireStatus(t, rec, 404)
	if !fake.Webhooks["wh-1"].Active {
		t.Fatal("cross-account deactivation should not happen")
	}
}

func TestHandleListDeliveries(t *testing.T) {
	_, fake, h := newTestServer()
	fake.Webhooks["wh-1"] = &model.Webhook{ID: "wh-1", AccountID: testAccount, URL: "https://example.com", Active: true}
	fake.Deliveries = []*model.WebhookDelivery{
		{ID: "d-1", AccountID: testAccount, WebhookID: "wh-1", EventID: "ev-1", Attempt: 1},
		{ID: "d-2", AccountID: testAccount, WebhookID: "wh-other", EventID: "ev-1", Attempt: 1},
	}

	rec := doJSON(t, h, "GET", "/v1/webhooks/wh-1/deliveries", nil)
	requireStatus(t, rec, 200)
	var deliveries []*model.WebhookDelivery
	decodeJSON(t, rec, &deliveries)
	if len(deliveries) != 1 || deliveries[0].ID != "d-1" {
		t.Fatalf("got %+v", deliveries)
	}
}

func TestHandleGetStats(t *testing.T) {
	_, fake, h := newTestServer()
	seedCard(fake, "cd-a", "brd-1", model.StatusOpen)
	seedCard(fake, "cd-b", "brd-1", model.StatusClosed)

	rec := doJSON(t, h, "GET", "/v1/stats", nil)
	requireStatus(t, rec, 200)
	var body struct {
		Cards         map[string]int `json:"cards"`
		Jobs          map[string]int `json:"jobs"`
		StreamClients int            `json:"stream_clients"`
	}
	decodeJSON(t, rec, &body)
	if body.Cards["open"] != 1 || body.Cards["closed"] != 1 {
		t.Fatalf("got cards %v", body.Cards)
	}
	if body.StreamClients != 0 {
		t.Fatalf("got stream clients %d", body.StreamClients)
	}
}

func TestHandleEmptyLists(t *testing.T) {
	_, _, h := newTestServer()
	for _, path := range []string{
		"/v1/cards/cd-x/comments",
		"/v1/cards/cd-x/events",
		"/v1/notifications",
		"/v1/webhooks",
		"/v1/webhooks/wh-x/deliveries",
	} {
		rec := doJSON(t, h, "GET", path, nil)
		requireStatus(t, rec, 200)
		if body := rec.Body.String(); body == "null\n" {
			t.Fatalf("%s returned null instead of []", path)
		}
	}
}
