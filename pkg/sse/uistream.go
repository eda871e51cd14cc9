package sse

import (
	"sync"

	"github.com/google/uuid"
)

// Sink receives UI stream events. UIStream is the HTTP implementation.
type Sink interface {
	Write(ev Event) error
}

// UIStream writes the UI message stream protocol over an SSE Writer:
// a start frame, any number of text, tool and data frames, then a single
// finish frame followed by the [DONE] marker. Frames written after Finish
// are dropped.
type UIStream struct {
	w *Writer

	mu       sync.Mutex
	started  bool
	finished bool
	textID   string
}

func NewUIStream(w *Writer) *UIStream {
	return &UIStream{w: w}
}

// Start commits headers and writes the start frame.
func (s *UIStream) Start(messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if err := s.w.Start(map[string]string{"X-Vercel-AI-UI-Message-Stream": "v1"}); err != nil {
		return err
	}
	s.started = true
	return s.w.WriteData(Event{Type: TypeStart, MessageID: messageID})
}

// Write sends one frame. It is a no-op once the stream has finished.
func (s *UIStream) Write(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(ev)
}

func (s *UIStream) writeLocked(ev Event) error {
	if s.finished {
		return nil
	}
	return s.w.WriteData(ev)
}

// TextDelta appends model text, opening a text block when none is open.
func (s *UIStream) TextDelta(delta string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.textID == "" {
		s.textID = uuid.NewString()
		if err := s.writeLocked(Event{Type: TypeTextStart, ID: s.textID}); err != nil {
			return err
		}
	}
	return s.writeLocked(Event{Type: TypeTextDelta, ID: s.textID, Delta: delta})
}

// EndText closes the open text block, if any.
func (s *UIStream) EndText() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endTextLocked()
}

func (s *UIStream) endTextLocked() error {
	if s.textID == "" {
		return nil
	}
	id := s.textID
	s.textID = ""
	return s.writeLocked(Event{Type: TypeTextEnd, ID: id})
}

func (s *UIStream) ToolInput(callID, toolName string, input any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.endTextLocked(); err != nil {
		return err
	}
	return s.writeLocked(Event{Type: TypeToolInputAvailable, ToolCallID: callID, ToolName: toolName, Input: input})
}

func (s *UIStream) ToolOutput(callID string, output any) error {
	return s.Write(Event{Type: TypeToolOutputAvailable, ToolCallID: callID, Output: output})
}

func (s *UIStream) ToolError(callID, errText string) error {
	return s.Write(Event{Type: TypeToolOutputError, ToolCallID: callID, ErrorText: errText})
}

// Data writes a transient data-* frame.
func (s *UIStream) Data(typ string, data any) error {
	return s.Write(Event{Type: typ, Data: data, Transient: true})
}

// Error writes an error frame. The stream stays open; call Finish after.
func (s *UIStream) Error(text string) error {
	return s.Write(Event{Type: TypeError, ErrorText: text})
}

// Finish closes any open text block, writes finish and [DONE], and closes
// the writer. Calling it again does nothing.
func (s *UIStream) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return nil
	}
	if !s.started {
		s.finished = true
		return nil
	}

	err := s.endTextLocked()
	if werr := s.w.WriteData(Event{Type: TypeFinish}); err == nil {
		err = werr
	}
	if werr := s.w.WriteRaw(DoneMarker); err == nil {
		err = werr
	}
	s.finished = true
	s.w.Close()
	return err
}

func (s *UIStream) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}
