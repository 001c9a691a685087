// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sse

import (
	"sync"

	"github.com/samber/lo"
)

// client is a connected SSE subscriber with an optional event-type filter.
type client struct {
	ch    chan string
	types []string
}

func (c client) wants(eventType string) bool {
	return len(c.types) == 0 || lo.Contains(c.types, eventType)
}

// Hub manages SSE subscribers per stream.
// A stream is one operator connection (identified by its request ID);
// reconnects reuse the stream ID and may register several channels.
type Hub struct {
	clients map[string][]client
	mu      sync.RWMutex
}

// NewHub creates a new SSE hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string][]client),
	}
}

// Register adds a new client channel for the given stream.
// An empty types list subscribes to every event type.
func (h *Hub) Register(streamID string, types ...string) chan string {
	ch := make(chan string, 10) // buffered to prevent blocking

	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[streamID] = append(h.clients[streamID], client{
		ch:    ch,
		types: lo.Uniq(lo.Compact(types)),
	})

	return ch
}

// Unregister removes a client channel for the given stream and closes it.
// Channels already released by Close are left alone.
func (h *Hub) Unregister(streamID string, ch chan string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[streamID]
	if !lo.ContainsBy(clients, func(c client) bool { return c.ch == ch }) {
		return
	}

	h.clients[streamID] = lo.Filter(clients, func(c client, _ int) bool {
		return c.ch != ch
	})
	if len(h.clients[streamID]) == 0 {
		delete(h.clients, streamID)
	}

	close(ch)
}

// Close disconnects every client. Pending messages are still delivered
// before the channels report closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for _, c := range clients {
			close(c.ch)
		}
	}
	clear(h.clients)
}

// Publish sends a message to every client subscribed to eventType.
func (h *Hub) Publish(eventType, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, clients := range h.clients {
		for _, c := range clients {
			if !c.wants(eventType) {
				continue
			}
			select {
			case c.ch <- message:
			default:
				// Channel full, skip
			}
		}
	}
}

// Broadcast sends a message to all connected clients regardless of filter.
func (h *Hub) Broadcast(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, clients := range h.clients {
		for _, c := range clients {
			select {
			case c.ch <- message:
			default:
				// Channel full, skip
			}
		}
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return lo.SumBy(lo.Values(h.clients), func(clients []client) int {
		return len(clients)
	})
}

// StreamCount returns the number of streams with active connections.
func (h *Hub) StreamCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
