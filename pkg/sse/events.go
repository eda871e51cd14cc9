package sse

import "strings"

// Frame types of the UI message stream.
const (
	TypeStart               = "start"
	TypeStartStep           = "start-step"
	TypeFinishStep          = "finish-step"
	TypeTextStart           = "text-start"
	TypeTextDelta           = "text-delta"
	TypeTextEnd             = "text-end"
	TypeToolInputAvailable  = "tool-input-available"
	TypeToolOutputAvailable = "tool-output-available"
	TypeToolOutputError     = "tool-output-error"
	TypeError               = "error"
	TypeFinish              = "finish"

	TypeDataID     = "data-id"
	TypeDataTitle  = "data-title"
	TypeDataKind   = "data-kind"
	TypeDataClear  = "data-clear"
	TypeDataFinish = "data-finish"
)

// DoneMarker terminates the stream after the finish frame.
const DoneMarker = "[DONE]"

// DeltaType returns the delta frame type for an artifact kind,
// e.g. "data-text-delta" or "data-midscene_report-delta".
func DeltaType(kind string) string {
	return "data-" + kind + "-delta"
}

// IsDeltaType reports whether t is a data-<kind>-delta frame.
func IsDeltaType(t string) bool {
	return strings.HasPrefix(t, "data-") && strings.HasSuffix(t, "-delta") && len(t) > len("data--delta")
}

// Event is one JSON frame of the UI message stream. Only the fields
// relevant to Type are set.
type Event struct {
	Type       string `json:"type"`
	ID         string `json:"id,omitempty"`
	MessageID  string `json:"messageId,omitempty"`
	Delta      string `json:"delta,omitempty"`
	ToolCallID string `json:"toolCallId,omitempty"`
	ToolName   string `json:"toolName,omitempty"`
	Input      any    `json:"input,omitempty"`
	Output     any    `json:"output,omitempty"`
	ErrorText  string `json:"errorText,omitempty"`
	Data       any    `json:"data,omitempty"`
	Transient  bool   `json:"transient,omitempty"`
}
