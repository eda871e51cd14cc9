// Package testutil holds helpers shared by package tests.
package testutil

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/emergent-company/testmind/pkg/sse"
)

// SSEFrame is one raw Server-Sent Event.
type SSEFrame struct {
	Event string
	Data  string
}

// ParseSSE splits an SSE body into frames. Comment lines are skipped.
func ParseSSE(body string) ([]SSEFrame, error) {
	var (
		frames    []SSEFrame
		current   SSEFrame
		dataLines []string
	)
	flush := func() {
		if len(dataLines) > 0 || current.Event != "" {
			current.Data = strings.Join(dataLines, "\n")
			frames = append(frames, current)
		}
		current = SSEFrame{}
		dataLines = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "event:"):
			current.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	flush()
	return frames, scanner.Err()
}

// ParseUIStream decodes a UI message stream body. The [DONE] marker becomes
// an event of type sse.DoneMarker.
func ParseUIStream(body string) ([]sse.Event, error) {
	frames, err := ParseSSE(body)
	if err != nil {
		return nil, err
	}
	events := make([]sse.Event, 0, len(frames))
	for _, f := range frames {
		if f.Data == sse.DoneMarker {
			events = append(events, sse.Event{Type: sse.DoneMarker})
			continue
		}
		var ev sse.Event
		if err := json.Unmarshal([]byte(f.Data), &ev); err != nil {
			return nil, fmt.Errorf("decode frame %q: %w", f.Data, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// EventTypes lists the Type of each event.
func EventTypes(events []sse.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

// Recorder is an in-memory sse.Sink.
type Recorder struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *Recorder) Write(ev sse.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Events() []sse.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sse.Event(nil), r.events...)
}

func (r *Recorder) Types() []string {
	return EventTypes(r.Events())
}
