package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"course-portal/internal/event"
)

// Hub relays bus events to the websocket clients of the browser session
// each event belongs to. Events without a session are not delivered.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	bus event.Bus

	origins []string
	count   atomic.Int64
	done    chan struct{}
}

func NewHub(bus event.Bus, origins []string) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		bus:        bus,
		origins:    origins,
		done:       make(chan struct{}),
	}
}

// Count reports the number of connected clients.
func (h *Hub) Count() int {
	return int(h.count.Load())
}

func (h *Hub) Run(ctx context.Context) {
	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()

	defer func() {
		close(h.done)
		for client := range h.clients {
			h.drop(client)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.clients[client] = true
			h.count.Add(1)
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			h.deliver(e)
		}
	}
}

func (h *Hub) deliver(e event.Event) {
	if e.SessionID == "" {
		return
	}

	message, err := json.Marshal(e)
	if err != nil {
		slog.Error("failed to marshal event", "error", err)
		return
	}

	for client := range h.clients {
		if client.sessionID != e.SessionID {
			continue
		}
		select {
		case client.send <- message:
		default:
			h.drop(client)
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.count.Add(-1)
}
