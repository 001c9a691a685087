// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"strings"
	"time"

	"codeberg.org/oliverandrich/idp-registration/internal/sse"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// heartbeatInterval keeps idle streams alive through proxies.
var heartbeatInterval = 30 * time.Second

// EventsHandler streams lifecycle events over Server-Sent Events.
type EventsHandler struct {
	hub *sse.Hub
}

// NewEvents creates a new events handler.
func NewEvents(hub *sse.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Events handles the SSE endpoint. The optional "types" query parameter is
// a comma-separated list of event types to receive.
func (h *EventsHandler) Events(c echo.Context) error {
	ctx := c.Request().Context()
	w := c.Response()

	streamID := w.Header().Get(echo.HeaderXRequestID)
	if streamID == "" {
		streamID = uuid.NewString()
	}

	var types []string
	if raw := c.QueryParam("types"); raw != "" {
		for t := range strings.SplitSeq(raw, ",") {
			types = append(types, strings.TrimSpace(t))
		}
	}

	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	ch := h.hub.Register(streamID, types...)
	defer h.hub.Unregister(streamID, ch)

	if _, err := w.Write([]byte(sse.FormatEvent("connected", streamID))); err != nil {
		return nil
	}
	w.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.Write([]byte(sse.Heartbeat)); err != nil {
				return nil // Client disconnected
			}
			w.Flush()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := w.Write([]byte(msg)); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
