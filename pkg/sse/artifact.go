package sse

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Artifact statuses as seen by the client.
const (
	StatusStreaming = "streaming"
	StatusIdle      = "idle"
)

// ArtifactState is the client-side view of one artifact rebuilt from data-*
// frames. Delta frames carry the full current content and replace the buffer.
// Missing or repeated frames are tolerated.
type ArtifactState struct {
	ID      string
	Title   string
	Kind    string
	Content string
	Status  string
}

func NewArtifactState() *ArtifactState {
	return &ArtifactState{Status: StatusStreaming}
}

// Apply folds one event into the state. Non-artifact frames are ignored.
func (a *ArtifactState) Apply(ev Event) {
	switch {
	case ev.Type == TypeDataID:
		a.ID = dataString(ev.Data)
	case ev.Type == TypeDataTitle:
		a.Title = dataString(ev.Data)
	case ev.Type == TypeDataKind:
		a.Kind = dataString(ev.Data)
	case ev.Type == TypeDataClear:
		a.Content = ""
	case ev.Type == TypeDataFinish:
		a.Status = StatusIdle
	case IsDeltaType(ev.Type):
		a.Content = dataString(ev.Data)
	}
}

func dataString(v any) string {
	switch d := v.(type) {
	case nil:
		return ""
	case string:
		return d
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return fmt.Sprint(d)
		}
		return string(b)
	}
}

// artifact frame ranks; a frame may not follow one of a higher rank.
const (
	rankID = iota
	rankKind
	rankTitle
	rankDelta
	rankClear
	rankFinish
)

// ArtifactWriter emits the data-* frames of a single artifact in the order
// id, kind, title, delta..., clear, finish. Frames that would break that
// order are dropped, so data-finish is always the last frame written for
// the artifact. It mirrors everything it writes into an ArtifactState so the
// caller can persist exactly what the client was shown.
type ArtifactWriter struct {
	sink Sink

	mu    sync.Mutex
	rank  int
	wrote bool
	state *ArtifactState
}

func NewArtifactWriter(sink Sink) *ArtifactWriter {
	return &ArtifactWriter{sink: sink, state: NewArtifactState()}
}

// Begin writes the identity frames.
func (w *ArtifactWriter) Begin(id, kind, title string) error {
	if err := w.emit(rankID, Event{Type: TypeDataID, Data: id}); err != nil {
		return err
	}
	if err := w.emit(rankKind, Event{Type: TypeDataKind, Data: kind}); err != nil {
		return err
	}
	return w.emit(rankTitle, Event{Type: TypeDataTitle, Data: title})
}

// Delta replaces the artifact content with content.
func (w *ArtifactWriter) Delta(content string) error {
	w.mu.Lock()
	kind := w.state.Kind
	w.mu.Unlock()
	if kind == "" {
		kind = "text"
	}
	return w.emit(rankDelta, Event{Type: DeltaType(kind), Data: content})
}

func (w *ArtifactWriter) Clear() error {
	return w.emit(rankClear, Event{Type: TypeDataClear, Data: nil})
}

// Finish writes data-finish once; later calls and frames are dropped.
func (w *ArtifactWriter) Finish() error {
	return w.emit(rankFinish, Event{Type: TypeDataFinish, Data: nil})
}

// Fail reports err in-band as an error-shaped delta followed by data-finish.
func (w *ArtifactWriter) Fail(err error) error {
	payload, _ := json.Marshal(map[string]any{
		"success": false,
		"error":   err.Error(),
	})
	derr := w.Delta(string(payload))
	if ferr := w.Finish(); derr == nil {
		derr = ferr
	}
	return derr
}

// State returns a copy of what has been written so far.
func (w *ArtifactWriter) State() ArtifactState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.state
}

func (w *ArtifactWriter) Finished() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Status == StatusIdle
}

func (w *ArtifactWriter) emit(rank int, ev Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.wrote && (rank < w.rank || (rank == w.rank && rank != rankDelta)) {
		return nil
	}
	w.rank = rank
	w.wrote = true
	ev.Transient = true
	w.state.Apply(ev)
	return w.sink.Write(ev)
}
