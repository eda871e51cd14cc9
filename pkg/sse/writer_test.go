package sse

import (
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockFlusher is an http.ResponseWriter that also implements http.Flusher
type mockFlusher struct {
	*httptest.ResponseRecorder
	flushCalled int
}

func (m *mockFlusher) Flush() {
	m.flushCalled++
}

func newMockFlusher() *mockFlusher {
	return &mockFlusher{ResponseRecorder: httptest.NewRecorder()}
}

func TestWriterStart(t *testing.T) {
	w := newMockFlusher()
	sw := NewWriter(w)
	assert.False(t, sw.Started())

	require.NoError(t, sw.Start(map[string]string{"X-Test": "1"}))

	assert.True(t, sw.Started())
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", w.Header().Get("Connection"))
	assert.Equal(t, "1", w.Header().Get("X-Test"))
	assert.Equal(t, 1, w.flushCalled)

	require.NoError(t, sw.Start(nil))
	assert.Equal(t, 1, w.flushCalled, "second Start must not flush again")
}

func TestWriterStart_AfterClose(t *testing.T) {
	sw := NewWriter(newMockFlusher())
	sw.Close()
	assert.ErrorIs(t, sw.Start(nil), ErrClosed)
}

func TestWriterWriteEvent(t *testing.T) {
	tests := []struct {
		name       string
		eventName  string
		data       any
		wantOutput string
	}{
		{"named event with string", "message", "hello", "event: message\ndata: \"hello\"\n\n"},
		{"named event with object", "update", map[string]string{"key": "value"}, "event: update\ndata: {\"key\":\"value\"}\n\n"},
		{"data only", "", map[string]int{"count": 42}, "data: {\"count\":42}\n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newMockFlusher()
			sw := NewWriter(w)

			require.NoError(t, sw.WriteEvent(tt.eventName, tt.data))
			assert.Equal(t, tt.wantOutput, w.Body.String())
			assert.Equal(t, 1, w.flushCalled)
		})
	}
}

func TestWriterWriteEvent_MarshalError(t *testing.T) {
	sw := NewWriter(newMockFlusher())
	err := sw.WriteData(map[string]any{"bad": make(chan int)})
	assert.ErrorContains(t, err, "marshal SSE data")
}

func TestWriterWriteRawAndComment(t *testing.T) {
	w := newMockFlusher()
	sw := NewWriter(w)

	require.NoError(t, sw.WriteRaw("[DONE]"))
	require.NoError(t, sw.WriteComment("keep-alive"))

	assert.Equal(t, "data: [DONE]\n\n: keep-alive\n\n", w.Body.String())
}

func TestWriterClosed(t *testing.T) {
	sw := NewWriter(newMockFlusher())
	sw.Close()

	assert.True(t, sw.IsClosed())
	assert.ErrorIs(t, sw.WriteData("x"), ErrClosed)
	assert.ErrorIs(t, sw.WriteRaw("x"), ErrClosed)
	assert.ErrorIs(t, sw.WriteComment("x"), ErrClosed)
}

func TestWriterConcurrentWrites(t *testing.T) {
	w := newMockFlusher()
	sw := NewWriter(w)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sw.WriteRaw("x")
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, w.flushCalled)
	assert.Len(t, w.Body.String(), 50*len("data: x\n\n"))
}
