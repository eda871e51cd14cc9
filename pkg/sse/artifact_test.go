package sse

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	events []Event
}

func (r *recordingSink) Write(ev Event) error {
	r.events = append(r.events, ev)
	return nil
}

func TestArtifactState_Apply(t *testing.T) {
	st := NewArtifactState()
	assert.Equal(t, StatusStreaming, st.Status)

	st.Apply(Event{Type: TypeDataID, Data: "doc-1"})
	st.Apply(Event{Type: TypeDataKind, Data: "code"})
	st.Apply(Event{Type: TypeDataTitle, Data: "Login script"})
	assert.Equal(t, StatusStreaming, st.Status, "metadata does not change status")

	st.Apply(Event{Type: "data-code-delta", Data: "a"})
	st.Apply(Event{Type: "data-code-delta", Data: "ab"})
	assert.Equal(t, "ab", st.Content, "delta replaces instead of appending")

	st.Apply(Event{Type: TypeDataClear})
	assert.Empty(t, st.Content)

	st.Apply(Event{Type: TypeTextDelta, Delta: "ignored"})
	st.Apply(Event{Type: TypeDataFinish})

	assert.Equal(t, ArtifactState{
		ID: "doc-1", Kind: "code", Title: "Login script", Content: "", Status: StatusIdle,
	}, *st)
}

func TestArtifactState_ToleratesMissingAndDuplicateFrames(t *testing.T) {
	st := NewArtifactState()
	st.Apply(Event{Type: "data-sheet-delta", Data: map[string]any{"rows": 1}})
	st.Apply(Event{Type: TypeDataFinish})
	st.Apply(Event{Type: TypeDataFinish})

	assert.Equal(t, `{"rows":1}`, st.Content)
	assert.Equal(t, StatusIdle, st.Status)
	assert.Empty(t, st.ID)
}

func TestArtifactWriter_HappyPath(t *testing.T) {
	sink := &recordingSink{}
	aw := NewArtifactWriter(sink)

	require.NoError(t, aw.Begin("doc-1", "text", "Plan"))
	require.NoError(t, aw.Delta("# Plan"))
	require.NoError(t, aw.Delta("# Plan\n- step"))
	require.NoError(t, aw.Finish())

	assert.Equal(t, []string{
		TypeDataID, TypeDataKind, TypeDataTitle, "data-text-delta", "data-text-delta", TypeDataFinish,
	}, eventTypes(sink.events))

	st := aw.State()
	assert.Equal(t, "# Plan\n- step", st.Content)
	assert.Equal(t, StatusIdle, st.Status)
	assert.True(t, aw.Finished())
}

func TestArtifactWriter_DropsOutOfOrderFrames(t *testing.T) {
	sink := &recordingSink{}
	aw := NewArtifactWriter(sink)

	require.NoError(t, aw.Begin("r-1", "midscene_report", "Run"))
	require.NoError(t, aw.Finish())
	require.NoError(t, aw.Delta("late"))
	require.NoError(t, aw.Clear())
	require.NoError(t, aw.Begin("r-2", "text", "again"))
	require.NoError(t, aw.Finish())

	types := eventTypes(sink.events)
	assert.Equal(t, TypeDataFinish, types[len(types)-1])
	assert.Len(t, types, 4)
	assert.Equal(t, "r-1", aw.State().ID)
}

func TestArtifactWriter_Fail(t *testing.T) {
	sink := &recordingSink{}
	aw := NewArtifactWriter(sink)

	require.NoError(t, aw.Begin("r-1", "midscene_report", "Run"))
	require.NoError(t, aw.Fail(errors.New("runner unreachable")))

	require.Len(t, sink.events, 5)
	assert.Equal(t, "data-midscene_report-delta", sink.events[3].Type)
	assert.JSONEq(t, `{"success":false,"error":"runner unreachable"}`, sink.events[3].Data.(string))
	assert.Equal(t, TypeDataFinish, sink.events[4].Type)
}

// Whatever order a tool calls the writer in, the frames that reach the client
// form a subsequence of id, kind, title, delta*, clear?, finish.
func TestArtifactWriter_OrderingProperty(t *testing.T) {
	canonical := map[string]int{
		TypeDataID: rankID, TypeDataKind: rankKind, TypeDataTitle: rankTitle,
		"data-code-delta": rankDelta, TypeDataClear: rankClear, TypeDataFinish: rankFinish,
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		sink := &recordingSink{}
		aw := NewArtifactWriter(sink)
		_ = aw.Begin("d", "code", "t")

		for n := rng.Intn(12); n > 0; n-- {
			switch rng.Intn(5) {
			case 0, 1:
				_ = aw.Delta("x")
			case 2:
				_ = aw.Clear()
			case 3:
				_ = aw.Finish()
			case 4:
				_ = aw.Begin("d2", "code", "t2")
			}
		}

		last := -1
		finished := false
		for _, ev := range sink.events {
			rank, ok := canonical[ev.Type]
			require.True(t, ok, "unexpected frame %s", ev.Type)
			require.False(t, finished, "frame after finish")
			if rank == rankDelta {
				require.LessOrEqual(t, last, rankDelta)
			} else {
				require.Less(t, last, rank)
			}
			last = rank
			finished = rank == rankFinish
		}
	}
}
