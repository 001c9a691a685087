// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sse

import (
	"fmt"
	"strings"
)

// FormatEvent formats a message as an SSE event with optional event name and id.
// Multiline content is properly prefixed with "data:".
func FormatEvent(eventName, data string) string {
	return FormatEventWithID("", eventName, data)
}

// FormatEventWithID is FormatEvent with an "id:" line so clients can resume.
func FormatEventWithID(id, eventName, data string) string {
	var sb strings.Builder

	if id != "" {
		fmt.Fprintf(&sb, "id: %s\n", id)
	}
	if eventName != "" {
		fmt.Fprintf(&sb, "event: %s\n", eventName)
	}

	for line := range strings.SplitSeq(data, "\n") {
		fmt.Fprintf(&sb, "data: %s\n", line)
	}

	sb.WriteString("\n") // Empty line marks end of event
	return sb.String()
}

// Heartbeat is an SSE comment that keeps the connection alive.
// Comments (lines starting with :) are ignored by SSE clients.
const Heartbeat = ": heartbeat\n\n"
