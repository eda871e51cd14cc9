package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParts_JSON(t *testing.T) {
	in := Parts{
		TextPart{Text: "hello"},
		FilePart{URL: "https://files.example.com/a.png", MediaType: "image/png", Name: "a.png"},
		ToolInvocationPart{
			ToolCallID: "call-1",
			ToolName:   "createDocument",
			State:      ToolStateResult,
			Args:       map[string]any{"title": "Plan"},
			Result:     map[string]any{"documentId": "d1"},
		},
	}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `{"type":"text","text":"hello"}`)
	assert.Contains(t, string(raw), `"type":"file"`)
	assert.Contains(t, string(raw), `"type":"tool-invocation"`)

	var out Parts
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)
}

func TestParts_UnmarshalRejectsUnknownTypes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "unknown type", raw: `[{"type":"reasoning","text":"thinking"}]`},
		{name: "missing type", raw: `[{"text":"hi"}]`},
		{name: "not an array", raw: `{"type":"text","text":"hi"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Parts
			assert.Error(t, json.Unmarshal([]byte(tt.raw), &p))
		})
	}
}

func TestParts_EmptyMarshalsAsArray(t *testing.T) {
	raw, err := json.Marshal(Parts{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestMessage_Text(t *testing.T) {
	m := Message{Parts: Parts{
		TextPart{Text: "first"},
		ToolInvocationPart{ToolCallID: "c", ToolName: "searchTestCases", State: ToolStateCall},
		TextPart{Text: "second"},
	}}
	assert.Equal(t, "first\nsecond", m.Text())
}
