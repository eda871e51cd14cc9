// Package sse streams Server-Sent Events and the UI message frames carried over them.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("SSE writer is closed")

// Writer writes SSE frames to an HTTP response, flushing after each one.
// It is safe for concurrent use.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
	started bool
	closed  bool
}

// NewWriter wraps w. Nothing is written until Start.
func NewWriter(w http.ResponseWriter) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{
		w:       w,
		flusher: flusher,
	}
}

// Start commits the SSE headers. Call it only after request validation,
// since no HTTP error status can be sent afterwards.
func (s *Writer) Start(extraHeaders map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.closed {
		return ErrClosed
	}

	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	for k, v := range extraHeaders {
		h.Set(k, v)
	}
	s.w.WriteHeader(http.StatusOK)
	s.flush()

	s.started = true
	return nil
}

// Started reports whether headers have been committed.
func (s *Writer) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// WriteEvent writes a named event with a JSON payload.
func (s *Writer) WriteEvent(eventName string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal SSE data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if eventName != "" {
		return s.write("event: %s\ndata: %s\n\n", eventName, payload)
	}
	return s.write("data: %s\n\n", payload)
}

// WriteData writes a JSON payload without an event name.
func (s *Writer) WriteData(data any) error {
	return s.WriteEvent("", data)
}

// WriteRaw writes data verbatim as the frame payload.
func (s *Writer) WriteRaw(data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write("data: %s\n\n", data)
}

// WriteComment writes a comment frame, used as keep-alive.
func (s *Writer) WriteComment(comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(": %s\n\n", comment)
}

// Close rejects all further writes.
func (s *Writer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Writer) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// write must be called with mu held.
func (s *Writer) write(format string, args ...any) error {
	if s.closed {
		return ErrClosed
	}
	if _, err := fmt.Fprintf(s.w, format, args...); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *Writer) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
