package sse

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeFrames splits an SSE body into events; the [DONE] marker is
// returned as an Event with Type DoneMarker.
func decodeFrames(t *testing.T, body string) []Event {
	t.Helper()
	var events []Event
	for _, frame := range strings.Split(strings.TrimSpace(body), "\n\n") {
		payload := strings.TrimPrefix(frame, "data: ")
		if payload == DoneMarker {
			events = append(events, Event{Type: DoneMarker})
			continue
		}
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(payload), &ev), "frame %q", frame)
		events = append(events, ev)
	}
	return events
}

func eventTypes(events []Event) []string {
	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func TestUIStream_FullTurn(t *testing.T) {
	w := newMockFlusher()
	s := NewUIStream(NewWriter(w))

	require.NoError(t, s.Start("msg-1"))
	require.NoError(t, s.TextDelta("Hel"))
	require.NoError(t, s.TextDelta("lo"))
	require.NoError(t, s.ToolInput("call-1", "createTestCase", map[string]any{"name": "Login"}))
	require.NoError(t, s.ToolOutput("call-1", map[string]any{"id": "tc-1"}))
	require.NoError(t, s.TextDelta("Done"))
	require.NoError(t, s.Finish())

	assert.Equal(t, "v1", w.Header().Get("X-Vercel-AI-UI-Message-Stream"))

	events := decodeFrames(t, w.Body.String())
	assert.Equal(t, []string{
		TypeStart,
		TypeTextStart, TypeTextDelta, TypeTextDelta, TypeTextEnd,
		TypeToolInputAvailable, TypeToolOutputAvailable,
		TypeTextStart, TypeTextDelta, TypeTextEnd,
		TypeFinish, DoneMarker,
	}, eventTypes(events))

	assert.Equal(t, "msg-1", events[0].MessageID)
	assert.Equal(t, events[1].ID, events[2].ID, "deltas belong to the opened text block")
	assert.Equal(t, "lo", events[3].Delta)
	assert.Equal(t, "createTestCase", events[5].ToolName)
	assert.NotEqual(t, events[1].ID, events[7].ID, "a new text block gets a new id")
}

func TestUIStream_DropsAfterFinish(t *testing.T) {
	w := newMockFlusher()
	s := NewUIStream(NewWriter(w))

	require.NoError(t, s.Start("m"))
	require.NoError(t, s.Finish())
	require.NoError(t, s.Finish())
	require.NoError(t, s.Data(TypeDataID, "late"))
	require.NoError(t, s.Error("late"))

	assert.True(t, s.Finished())
	assert.Equal(t, []string{TypeStart, TypeFinish, DoneMarker}, eventTypes(decodeFrames(t, w.Body.String())))
}

func TestUIStream_ErrorThenFinish(t *testing.T) {
	w := newMockFlusher()
	s := NewUIStream(NewWriter(w))

	require.NoError(t, s.Start("m"))
	require.NoError(t, s.Error("model unavailable"))
	require.NoError(t, s.Finish())

	events := decodeFrames(t, w.Body.String())
	require.Len(t, events, 4)
	assert.Equal(t, TypeError, events[1].Type)
	assert.Equal(t, "model unavailable", events[1].ErrorText)
	assert.Equal(t, TypeFinish, events[2].Type)
}

func TestUIStream_FinishWithoutStart(t *testing.T) {
	w := newMockFlusher()
	s := NewUIStream(NewWriter(w))

	require.NoError(t, s.Finish())
	assert.Empty(t, w.Body.String())
	assert.True(t, s.Finished())
}

func TestUIStream_DataFramesAreTransient(t *testing.T) {
	w := newMockFlusher()
	s := NewUIStream(NewWriter(w))

	require.NoError(t, s.Start("m"))
	require.NoError(t, s.Data(TypeDataKind, "code"))

	events := decodeFrames(t, w.Body.String())
	require.Len(t, events, 2)
	assert.True(t, events[1].Transient)
	assert.Equal(t, "code", events[1].Data)
}

func TestDeltaType(t *testing.T) {
	assert.Equal(t, "data-text-delta", DeltaType("text"))
	assert.True(t, IsDeltaType("data-midscene_report-delta"))
	assert.False(t, IsDeltaType("data--delta"))
	assert.False(t, IsDeltaType("data-finish"))
	assert.False(t, IsDeltaType("text-delta"))
}
