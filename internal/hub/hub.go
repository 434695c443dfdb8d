// internal/hub/hub.go
// Provides the Hub struct and its event loop as a package.
package hub

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"

	"github.com/matchlink/internal/logger"
)

type eventKind int

const (
	eventFrame eventKind = iota
	eventClose
)

type event struct {
	kind   eventKind
	client *Client
	data   []byte
}

// Hub owns the registry and both tracker tables. Every connection
// event flows through the events channel and is consumed by the single
// Run goroutine, so check-then-act sequences across the tables
// (invitation availability, disconnect cleanup) are atomic with
// respect to each other.
type Hub struct {
	registry *Registry
	invites  *InviteTable
	pairs    *PairTable

	events   chan event
	upgrader websocket.Upgrader

	nc     *nats.Conn
	logger *logger.Logger
}

// NewHub creates a Hub. nc may be nil; the hub then skips lifecycle
// event publishing. An empty allowedOrigin accepts any origin.
func NewHub(nc *nats.Conn, allowedOrigin string, log *logger.Logger) *Hub {
	return &Hub{
		registry: NewRegistry(),
		invites:  NewInviteTable(),
		pairs:    NewPairTable(),
		events:   make(chan event, 256),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
		nc:     nc,
		logger: log,
	}
}

// Run consumes connection events until the context is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-h.events:
			switch ev.kind {
			case eventFrame:
				h.dispatch(ev.client, ev.data)
			case eventClose:
				h.disconnect(ev.client)
			}
		}
	}
}

// ClientCount reports the number of registered users.
func (h *Hub) ClientCount() int {
	return h.registry.Len()
}
