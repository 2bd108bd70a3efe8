package feed

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stijnvankasteren/insider-trading-app/internal/api"
	"github.com/stijnvankasteren/insider-trading-app/internal/model"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Event is one feed message: a trade that just landed.
type Event struct {
	Type  string           `json:"type"` // "inserted" or "updated"
	Trade api.TradePayload `json:"trade"`
}

// Hub fans committed trades out to WebSocket subscribers.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
	bufSize  int

	mu     sync.Mutex
	subs   map[*Queue[Event]]struct{}
	closed bool
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the logger for the hub.
func WithLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) { h.logger = logger }
}

// NewHub creates a hub whose subscribers each buffer up to bufSize events.
func NewHub(bufSize int, opts ...HubOption) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Same-origin policy is enforced upstream; the feed is public
			// read-only data.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  slog.Default(),
		bufSize: bufSize,
		subs:    make(map[*Queue[Event]]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish enqueues a committed trade for every subscriber. It satisfies
// ingest.Publisher and never blocks on slow readers.
func (h *Hub) Publish(op string, t *model.Trade) {
	ev := Event{Type: op, Trade: api.ToTradePayload(*t)}

	h.mu.Lock()
	defer h.mu.Unlock()
	for q := range h.subs {
		q.Push(ev)
	}
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) register() (*Queue[Event], bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	q := NewQueue[Event](h.bufSize)
	h.subs[q] = struct{}{}
	return q, true
}

func (h *Hub) unregister(q *Queue[Event]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, q)
	q.Close()
}

// ServeHTTP upgrades the request and streams events until the client
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.Debug("feed upgrade failed", "error", err)
		return
	}

	// Deadlines inherited from the server's read/write timeouts survive the
	// hijack and would cut long-lived connections; clear the read side and
	// manage write deadlines per message below.
	conn.SetReadDeadline(time.Time{})

	q, ok := h.register()
	if !ok {
		conn.Close()
		return
	}
	h.logger.Debug("feed subscriber connected", "subscribers", h.SubscriberCount())

	// The reader exists only to notice the client going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.unregister(q)
				return
			}
		}
	}()

	defer func() {
		h.unregister(q)
		conn.Close()
		h.logger.Debug("feed subscriber disconnected", "subscribers", h.SubscriberCount())
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	done := make(chan struct{})
	defer close(done)

	events := make(chan Event)
	go func() {
		defer close(events)
		for {
			ev, ok := q.Pop()
			if !ok {
				return
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for q := range h.subs {
		q.Close()
		delete(h.subs, q)
	}
}
