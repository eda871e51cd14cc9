package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"

	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Chat is one conversation. TestCaseID is set for sidebar chats, which are
// bound to a single test case.
type Chat struct {
	bun.BaseModel `bun:"table:chat,alias:c"`

	ID         string    `bun:"id,pk,type:uuid" json:"id"`
	UserID     string    `bun:"user_id,notnull" json:"userId"`
	ProjectID  *string   `bun:"project_id,type:uuid" json:"projectId"`
	TestCaseID *string   `bun:"test_case_id,type:uuid" json:"testCaseId"`
	Title      string    `bun:"title,notnull" json:"title"`
	Visibility string    `bun:"visibility,notnull" json:"visibility"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
}

// Message is one user or assistant message of a chat.
type Message struct {
	bun.BaseModel `bun:"table:message,alias:m"`

	ID        string    `bun:"id,pk,type:uuid" json:"id"`
	ChatID    string    `bun:"chat_id,notnull,type:uuid" json:"chatId"`
	Role      string    `bun:"role,notnull" json:"role"`
	Parts     Parts     `bun:"parts,type:jsonb,notnull" json:"parts"`
	CreatedAt time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
}

// Text joins the text parts of the message.
func (m *Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if t, ok := p.(TextPart); ok {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// Part type discriminators.
const (
	PartText           = "text"
	PartFile           = "file"
	PartToolInvocation = "tool-invocation"
)

// Tool invocation states.
const (
	ToolStateCall   = "call"
	ToolStateResult = "result"
	ToolStateError  = "error"
)

// Part is one element of a message. The concrete types are TextPart,
// FilePart and ToolInvocationPart.
type Part interface {
	PartType() string
}

type TextPart struct {
	Text string `json:"text"`
}

func (TextPart) PartType() string { return PartText }

type FilePart struct {
	URL       string `json:"url"`
	MediaType string `json:"mediaType"`
	Name      string `json:"name,omitempty"`
}

func (FilePart) PartType() string { return PartFile }

type ToolInvocationPart struct {
	ToolCallID string         `json:"toolCallId"`
	ToolName   string         `json:"toolName"`
	State      string         `json:"state"`
	Args       map[string]any `json:"args,omitempty"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
}

func (ToolInvocationPart) PartType() string { return PartToolInvocation }

// Parts is a list of message parts serialized as objects carrying a
// "type" discriminator.
type Parts []Part

func (p Parts) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(p))
	for i, part := range p {
		var (
			raw []byte
			err error
		)
		switch v := part.(type) {
		case TextPart:
			raw, err = json.Marshal(struct {
				Type string `json:"type"`
				TextPart
			}{PartText, v})
		case FilePart:
			raw, err = json.Marshal(struct {
				Type string `json:"type"`
				FilePart
			}{PartFile, v})
		case ToolInvocationPart:
			raw, err = json.Marshal(struct {
				Type string `json:"type"`
				ToolInvocationPart
			}{PartToolInvocation, v})
		default:
			return nil, fmt.Errorf("part %d: unsupported type %T", i, part)
		}
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

func (p *Parts) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}

	parts := make(Parts, 0, len(raws))
	for i, raw := range raws {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}

		var (
			part Part
			err  error
		)
		switch head.Type {
		case PartText:
			var v TextPart
			err = json.Unmarshal(raw, &v)
			part = v
		case PartFile:
			var v FilePart
			err = json.Unmarshal(raw, &v)
			part = v
		case PartToolInvocation:
			var v ToolInvocationPart
			err = json.Unmarshal(raw, &v)
			part = v
		default:
			return fmt.Errorf("part %d: unknown part type %q", i, head.Type)
		}
		if err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
		parts = append(parts, part)
	}
	*p = parts
	return nil
}

// IncomingMessage is the user message of a chat request.
type IncomingMessage struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	Parts Parts  `json:"parts"`
}

// PostRequest is the body of POST /api/chat and /api/testcase-chat.
type PostRequest struct {
	ID                     string          `json:"id"`
	Message                IncomingMessage `json:"message"`
	SelectedChatModel      string          `json:"selectedChatModel"`
	SelectedVisibilityType string          `json:"selectedVisibilityType"`
	ProjectID              string          `json:"projectId"`
	TestCaseID             string          `json:"testCaseId"`
	Locale                 string          `json:"locale"`
}

// HistoryPage is the response of GET /api/chat/history.
type HistoryPage struct {
	Chats   []Chat `json:"chats"`
	HasMore bool   `json:"hasMore"`
}
