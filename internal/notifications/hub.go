package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"dreambook/internal/middleware"
	"dreambook/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const defaultMaxConns = 5000

// ErrHubFull is returned by Register when the connection limit is reached.
var ErrHubFull = errors.New("feed connection limit reached")

// FeedHub fans feed events out to every connected websocket client.
type FeedHub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	maxConns int
	closed   bool
}

// NewFeedHub creates a hub accepting up to maxConns clients (0 means the default).
func NewFeedHub(maxConns int) *FeedHub {
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	return &FeedHub{
		clients:  make(map[*Client]struct{}),
		maxConns: maxConns,
	}
}

// Name returns a human-readable identifier for this hub.
func (h *FeedHub) Name() string { return "feed hub" }

// Register adds a connection. subject labels the viewer in logs.
func (h *FeedHub) Register(conn *websocket.Conn, subject string) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || len(h.clients) >= h.maxConns {
		return nil, ErrHubFull
	}
	client := NewClient(h, conn, subject)
	h.clients[client] = struct{}{}
	observability.FeedConnections.Inc()
	return client, nil
}

// UnregisterClient removes client and closes its send channel.
func (h *FeedHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	observability.FeedConnections.Dec()
}

// Count returns the number of connected clients.
func (h *FeedHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastAll sends message to every connected client.
func (h *FeedHub) BroadcastAll(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for c := range h.clients {
		c.TrySend(data)
	}
}

// StartWiring connects n to the hub. With Redis the hub subscribes to the
// feed channel; without it n delivers to the hub directly.
func (h *FeedHub) StartWiring(ctx context.Context, n *Notifier) error {
	if n.rdb == nil {
		n.SetLocalSink(h.BroadcastAll)
		return nil
	}
	return n.StartFeedSubscriber(ctx, func(_, payload string) {
		h.BroadcastAll(payload)
	})
}

// Shutdown closes every connection with a going-away frame.
func (h *FeedHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true

	for client := range h.clients {
		if client.Conn != nil {
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				middleware.Logger.Debug("failed to write close message",
					slog.String("subject", client.Subject), slog.String("error", err.Error()))
			}
			_ = client.Conn.Close()
		}
		close(client.Send)
		observability.FeedConnections.Dec()
	}
	h.clients = make(map[*Client]struct{})
	return nil
}
