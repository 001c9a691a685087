// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package events carries fire-and-forget lifecycle notifications
// from the registration pipeline to logs and live SSE subscribers.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"codeberg.org/oliverandrich/idp-registration/internal/sse"
	"github.com/google/uuid"
)

// Type names a lifecycle event.
type Type string

const (
	VerificationEmailSent Type = "verification_email_sent"
	UserRegistered        Type = "user_registered"
)

// Event is a single lifecycle notification.
type Event struct {
	OccurredAt time.Time         `json:"occurredAt"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Type       Type              `json:"type"`
}

// New creates an event stamped with the current time.
func New(t Type, metadata map[string]string) Event {
	return Event{Type: t, Metadata: metadata, OccurredAt: time.Now().UTC()}
}

// Sink receives lifecycle events. Emit must not block for long and
// never reports failure to the caller.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, e Event)

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, e Event) { f(ctx, e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) {})

// LogSink writes events to a slog logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Emit logs the event at info level with its metadata as attributes.
func (s *LogSink) Emit(ctx context.Context, e Event) {
	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys)+1)
	attrs = append(attrs, slog.String("event", string(e.Type)))
	for _, k := range keys {
		attrs = append(attrs, slog.String(k, e.Metadata[k]))
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "lifecycle_event", attrs...)
}

// HubSink publishes events to SSE subscribers.
type HubSink struct {
	hub *sse.Hub
}

// NewHubSink creates a HubSink for hub.
func NewHubSink(hub *sse.Hub) *HubSink {
	return &HubSink{hub: hub}
}

// Emit publishes the event as JSON under its type name.
func (s *HubSink) Emit(ctx context.Context, e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.WarnContext(ctx, "event_encode_failed", "event", e.Type, "error", err)
		return
	}
	s.hub.Publish(string(e.Type), sse.FormatEventWithID(uuid.NewString(), string(e.Type), string(data)))
}

// Multi fans an event out to several sinks. A panicking sink is logged
// and does not stop delivery to the others.
type Multi []Sink

// Emit delivers e to every sink in order.
func (m Multi) Emit(ctx context.Context, e Event) {
	for _, s := range m {
		if s == nil {
			continue
		}
		emitSafe(ctx, s, e)
	}
}

func emitSafe(ctx context.Context, s Sink, e Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "event_sink_panic", "event", e.Type, "panic", r)
		}
	}()
	s.Emit(ctx, e)
}
