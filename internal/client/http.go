package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fizzyhq/fizzy/internal/model"
)

// Request headers identifying the caller. These mirror the server's
// expectations and must stay in sync with it.
const (
	accountHeader = "X-Fizzy-Account"
	userHeader    = "X-Fizzy-User"
)

// HTTPClient implements FizzyClient using the fizzy HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	account    string
	user       string
	httpClient *http.Client
}

// NewHTTPClient creates a client targeting the given base URL (e.g.
// "http://localhost:8080") acting as user within account. When token is
// non-empty, an Authorization header is set on every request.
func NewHTTPClient(baseURL, token, account, user string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		account:    account,
		user:       user,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Accounts and users ---

func (c *HTTPClient) CreateAccount(ctx context.Context, name string) (*model.Account, error) {
	var account model.Account
	if err := c.doJSON(ctx, http.MethodPost, "/v1/accounts", map[string]string{"name": name}, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *HTTPClient) CreateUser(ctx context.Context, handle, name string) (*model.User, error) {
	var user model.User
	body := map[string]string{"handle": handle, "name": name}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/users", body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *HTTPClient) ListUsers(ctx context.Context) ([]*model.User, error) {
	var resp struct {
		Users []*model.User `json:"users"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/users", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// --- Boards ---

func (c *HTTPClient) CreateBoard(ctx context.Context, name string) (*model.Board, error) {
	var board model.Board
	if err := c.doJSON(ctx, http.MethodPost, "/v1/boards", map[string]string{"name": name}, &board); err != nil {
		return nil, err
	}
	return &board, nil
}

func (c *HTTPClient) ListBoards(ctx context.Context) ([]*model.Board, error) {
	var resp struct {
		Boards []*model.Board `json:"boards"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/boards", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Boards, nil
}

func (c *HTTPClient) GetBoard(ctx context.Context, id string) (*model.Board, error) {
	var board model.Board
	if err := c.doJSON(ctx, http.MethodGet, "/v1/boards/"+url.PathEscape(id), nil, &board); err != nil {
		return nil, err
	}
	return &board, nil
}

// --- Cards ---

func (c *HTTPClient) CreateCard(ctx context.Context, req *CreateCardRequest) (*model.Card, error) {
	var card model.Card
	if err := c.doJSON(ctx, http.MethodPost, "/v1/cards", req, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (c *HTTPClient) GetCard(ctx context.Context, id string) (*model.Card, error) {
	var card model.Card
	if err := c.doJSON(ctx, http.MethodGet, "/v1/cards/"+url.PathEscape(id), nil, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (c *HTTPClient) ListCards(ctx context.Context, req *ListCardsRequest) (*ListCardsResponse, error) {
	q := url.Values{}
	if req.BoardID != "" {
		q.Set("board", req.BoardID)
	}
	if len(req.Status) > 0 {
		q.Set("status", strings.Join(req.Status, ","))
	}
	if req.Assignee != "" {
		q.Set("assignee", req.Assignee)
	}
	if req.Search != "" {
		q.Set("search", req.Search)
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Offset > 0 {
		q.Set("offset", strconv.Itoa(req.Offset))
	}

	path := "/v1/cards"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListCardsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) UpdateCard(ctx context.Context, id string, req *UpdateCardRequest) (*model.Card, error) {
	var card model.Card
	if err := c.doJSON(ctx, http.MethodPatch, "/v1/cards/"+url.PathEscape(id), req, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (c *HTTPClient) CloseCard(ctx context.Context, id string) (*model.Card, error) {
	return c.cardAction(ctx, id, "close", nil)
}

func (c *HTTPClient) ReopenCard(ctx context.Context, id string) (*model.Card, error) {
	return c.cardAction(ctx, id, "reopen", nil)
}

func (c *HTTPClient) AssignCard(ctx context.Context, id, assigneeID string) (*model.Card, error) {
	return c.cardAction(ctx, id, "assign", map[string]string{"assignee_id": assigneeID})
}

func (c *HTTPClient) MoveCard(ctx context.Context, id, boardID string) (*model.Card, error) {
	return c.cardAction(ctx, id, "move", map[string]string{"board_id": boardID})
}

func (c *HTTPClient) PostponeCard(ctx context.Context, id string, until *time.Time) (*model.Card, error) {
	var body any
	if until != nil {
		body = map[string]time.Time{"until": *until}
	}
	return c.cardAction(ctx, id, "postpone", body)
}

func (c *HTTPClient) cardAction(ctx context.Context, id, action string, body any) (*model.Card, error) {
	var card model.Card
	path := "/v1/cards/" + url.PathEscape(id) + "/" + action
	if err := c.doJSON(ctx, http.MethodPost, path, body, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// --- Watchers and comments ---

func (c *HTTPClient) Watch(ctx context.Context, cardID, userID string) error {
	path := "/v1/cards/" + url.PathEscape(cardID) + "/watchers/" + url.PathEscape(userID)
	return c.doJSON(ctx, http.MethodPut, path, nil, nil)
}

func (c *HTTPClient) Unwatch(ctx context.Context, cardID, userID string) error {
	path := "/v1/cards/" + url.PathEscape(cardID) + "/watchers/" + url.PathEscape(userID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *HTTPClient) AddComment(ctx context.Context, cardID, body string, mentions []string) (*model.Comment, error) {
	var comment model.Comment
	req := map[string]any{"body": body}
	if len(mentions) > 0 {
		req["mentions"] = mentions
	}
	path := "/v1/cards/" + url.PathEscape(cardID) + "/comments"
	if err := c.doJSON(ctx, http.MethodPost, path, req, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *HTTPClient) GetComments(ctx context.Context, cardID string) ([]*model.Comment, error) {
	var comments []*model.Comment
	path := "/v1/cards/" + url.PathEscape(cardID) + "/comments"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// --- Events ---

func (c *HTTPClient) GetEvents(ctx context.Context, cardID string) ([]*model.Event, error) {
	var events []*model.Event
	path := "/v1/cards/" + url.PathEscape(cardID) + "/events"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// --- Notifications ---

func (c *HTTPClient) ListNotifications(ctx context.Context, unreadOnly bool) ([]*model.Notification, error) {
	path := "/v1/notifications"
	if unreadOnly {
		path += "?unread=true"
	}
	var notifications []*model.Notification
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (c *HTTPClient) ReadNotification(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

func (c *HTTPClient) DismissNotification(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/notifications/"+url.PathEscape(id), nil, nil)
}

// --- Webhooks ---

func (c *HTTPClient) CreateWebhook(ctx context.Context, hookURL string) (*CreateWebhookResponse, error) {
	var resp CreateWebhookResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/webhooks", map[string]string{"url": hookURL}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ListWebhooks(ctx context.Context) ([]*model.Webhook, error) {
	var webhooks []*model.Webhook
	if err := c.doJSON(ctx, http.MethodGet, "/v1/webhooks", nil, &webhooks); err != nil {
		return nil, err
	}
	return webhooks, nil
}

func (c *HTTPClient) DeactivateWebhook(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/webhooks/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) ListDeliveries(ctx context.Context, webhookID string) ([]*model.WebhookDelivery, error) {
	var deliveries []*model.WebhookDelivery
	path := "/v1/webhooks/" + url.PathEscape(webhookID) + "/deliveries"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &deliveries); err != nil {
		return nil, err
	}
	return deliveries, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// doJSON performs a JSON request/response round trip against the API.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.account != "" {
		req.Header.Set(accountHeader, c.account)
	}
	if c.user != "" {
		req.Header.Set(userHeader, c.user)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content — success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
