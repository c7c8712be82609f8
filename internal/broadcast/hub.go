package broadcast

import (
	"strings"
	"sync"

	"github.com/fizzyhq/fizzy/internal/metrics"
)

// Hub fans out messages to connected clients. Clients are keyed by account;
// a message for one account is invisible to every other account's clients
// regardless of the stream patterns they asked for.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// Client is a single connected stream consumer.
type Client struct {
	account string
	streams []string // stream patterns to match (empty = all account streams)
	ch      chan *Message
}

// Ch returns the client's delivery channel.
func (c *Client) Ch() <-chan *Message {
	return c.ch
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// Subscribe registers a client for the account's streams. Call Unsubscribe
// when the connection closes.
func (h *Hub) Subscribe(accountID string, streams []string) *Client {
	c := &Client{
		account: accountID,
		streams: streams,
		ch:      make(chan *Message, 64),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.StreamClients.Inc()
	return c
}

// Unsubscribe removes a client from the hub.
func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		metrics.StreamClients.Dec()
	}
}

// Send fans a message out to the account's matching clients. Slow clients
// have the message dropped rather than blocking the sender.
func (h *Hub) Send(accountID, stream string, msg *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.account != accountID || !c.matches(stream) {
			continue
		}
		select {
		case c.ch <- msg:
			metrics.BroadcastsSent.Inc()
		default:
			metrics.BroadcastsDropped.Inc()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// matches checks the client's stream patterns against an un-scoped stream
// name. An empty pattern list matches everything in the account.
func (c *Client) matches(stream string) bool {
	if len(c.streams) == 0 {
		return true
	}
	for _, pattern := range c.streams {
		if matchStreamPattern(pattern, stream) {
			return true
		}
	}
	return false
}

// matchStreamPattern matches a slash-separated stream name against a
// pattern. "*" matches a single segment and ">" matches one or more
// trailing segments.
func matchStreamPattern(pattern, stream string) bool {
	if pattern == stream {
		return true
	}

	patParts := strings.Split(pattern, "/")
	strParts := strings.Split(stream, "/")

	for i, pp := range patParts {
		if pp == ">" {
			return i < len(strParts)
		}
		if i >= len(strParts) {
			return false
		}
		if pp != "*" && pp != strParts[i] {
			return false
		}
	}

	return len(patParts) == len(strParts)
}
