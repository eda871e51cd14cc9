package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"
	"google.golang.org/genai"

	"github.com/emergent-company/testmind/internal/config"
	"github.com/emergent-company/testmind/pkg/adk"
	"github.com/emergent-company/testmind/pkg/logger"
	"github.com/emergent-company/testmind/pkg/metrics"
	"github.com/emergent-company/testmind/pkg/sse"
	"github.com/emergent-company/testmind/pkg/tracing"
)

const (
	appName   = "testmind"
	agentName = "testmind_assistant"

	// maxHistory is how many prior messages are replayed into a turn.
	maxHistory = 20

	stepLimitText = "I stopped here because this turn reached its step limit. Ask me to continue if more work is needed."
)

// ModelResolver resolves the chat model of a turn.
type ModelResolver interface {
	Resolve(ctx context.Context, requested string, usage config.UsageType) (*adk.Resolution, error)
}

// HistoryEntry is one prior message of the conversation.
type HistoryEntry struct {
	Role string
	Text string
}

// TurnRequest is one user message to answer.
type TurnRequest struct {
	Scope   *Scope
	System  string
	Message string
	History []HistoryEntry
	// Model is the requested chat model; empty uses the chat default.
	Model string
}

// ToolCall is one tool invocation of a turn.
type ToolCall struct {
	ID     string         `json:"toolCallId"`
	Name   string         `json:"toolName"`
	Args   map[string]any `json:"args"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// TurnResult is what a turn produced, for persistence. Err is set when the
// turn ended early; Text and ToolCalls then hold the partial output.
type TurnResult struct {
	Text      string
	ToolCalls []ToolCall
	Steps     int
	Model     string
	Err       error
}

// Runner answers chat turns with an ADK agent.
type Runner struct {
	registry *Registry
	resolver ModelResolver
	sessions session.Service
	cfg      *config.Config
	log      *slog.Logger
}

func NewRunner(registry *Registry, resolver ModelResolver, cfg *config.Config, log *slog.Logger) *Runner {
	return &Runner{
		registry: registry,
		resolver: resolver,
		sessions: session.InMemoryService(),
		cfg:      cfg,
		log:      log.With(logger.Scope("assistant.runner")),
	}
}

// turnState collects tool calls from the callbacks.
type turnState struct {
	mu    sync.Mutex
	calls []ToolCall
	index map[string]int
}

func (s *turnState) begin(id, name string, args map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		s.index = map[string]int{}
	}
	s.index[id] = len(s.calls)
	s.calls = append(s.calls, ToolCall{ID: id, Name: name, Args: args})
}

func (s *turnState) end(id string, result map[string]any, errText string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[id]; ok {
		s.calls[i].Result = result
		s.calls[i].Error = errText
	}
}

func (s *turnState) snapshot() []ToolCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ToolCall(nil), s.calls...)
}

// stepTracker counts model invocations of a turn.
type stepTracker struct {
	mu       sync.Mutex
	steps    int
	maxSteps int
}

func newStepTracker(maxSteps int) *stepTracker {
	return &stepTracker{maxSteps: maxSteps}
}

func (st *stepTracker) increment() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.steps++
	return st.steps
}

func (st *stepTracker) current() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.steps
}

func (st *stepTracker) exceeded() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.steps > st.maxSteps
}

// Run answers req, streaming text, tool and artifact frames to ui. It does
// not finish ui; the caller persists the result first.
func (r *Runner) Run(ctx context.Context, req TurnRequest, ui *sse.UIStream) *TurnResult {
	scope := req.Scope
	if scope.Sink == nil {
		scope.Sink = ui
	}

	ctx, span := tracing.Start(ctx, "assistant.turn",
		attribute.String("testmind.assistant.mode", string(scope.Mode)),
		attribute.String("testmind.project.id", scope.ProjectID),
	)
	defer span.End()

	result := &TurnResult{}
	tracker := newStepTracker(r.cfg.LLM.StepLimit())
	state := &turnState{}

	fail := func(err error) *TurnResult {
		tracing.Fail(span, err)
		result.Err = err
		result.Steps = tracker.current()
		result.ToolCalls = state.snapshot()
		_ = ui.Error(err.Error())
		r.record(scope.Mode, result)
		return result
	}

	res, err := r.resolver.Resolve(ctx, req.Model, config.UsageChat)
	if err != nil {
		return fail(err)
	}
	result.Model = res.Model

	tools, err := r.registry.Tools(scope)
	if err != nil {
		return fail(err)
	}

	beforeModelCb := func(cbCtx agent.CallbackContext, llmReq *model.LLMRequest) (*model.LLMResponse, error) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("turn stopped: %w", err)
		}
		step := tracker.increment()
		if tracker.exceeded() {
			r.log.Warn("step limit reached, ending turn",
				slog.Int("step", step),
				slog.Int("max_steps", tracker.maxSteps))
			return &model.LLMResponse{
				Content: genai.NewContentFromText(stepLimitText, genai.RoleModel),
			}, nil
		}
		return nil, nil
	}

	beforeToolCb := func(tCtx tool.Context, t tool.Tool, args map[string]any) (map[string]any, error) {
		id := tCtx.FunctionCallID()
		state.begin(id, t.Name(), args)
		_ = ui.ToolInput(id, t.Name(), args)
		return nil, nil
	}

	// Tool failures are handed back to the model as {"error": ...} so it
	// can recover within the step budget.
	afterToolCb := func(tCtx tool.Context, t tool.Tool, args, toolResult map[string]any, toolErr error) (map[string]any, error) {
		id := tCtx.FunctionCallID()
		if toolErr != nil {
			r.log.Warn("tool failed", slog.String("tool", t.Name()), logger.Error(toolErr))
			metrics.ToolCalls.WithLabelValues(t.Name(), "error").Inc()
			state.end(id, nil, toolErr.Error())
			_ = ui.ToolError(id, toolErr.Error())
			return map[string]any{"error": toolErr.Error()}, nil
		}
		metrics.ToolCalls.WithLabelValues(t.Name(), "ok").Inc()
		state.end(id, toolResult, "")
		_ = ui.ToolOutput(id, toolResult)
		return toolResult, nil
	}

	llmAgent, err := llmagent.New(llmagent.Config{
		Name:                  agentName,
		Description:           "Test engineering assistant",
		Model:                 res.LLM,
		Tools:                 tools,
		GenerateContentConfig: adk.GenerateConfig(&r.cfg.LLM),
		BeforeModelCallbacks:  []llmagent.BeforeModelCallback{beforeModelCb},
		BeforeToolCallbacks:   []llmagent.BeforeToolCallback{beforeToolCb},
		AfterToolCallbacks:    []llmagent.AfterToolCallback{afterToolCb},

		// InstructionProvider skips {state} templating so braces in test
		// case content reach the model verbatim.
		InstructionProvider: func(agent.ReadonlyContext) (string, error) {
			return req.System, nil
		},
	})
	if err != nil {
		return fail(fmt.Errorf("create agent: %w", err))
	}

	userID := scope.userID()
	if userID == "" {
		userID = "anonymous"
	}
	created, err := r.sessions.Create(ctx, &session.CreateRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: uuid.NewString(),
	})
	if err != nil {
		return fail(fmt.Errorf("create session: %w", err))
	}
	sessionID := created.Session.ID()
	defer func() {
		_ = r.sessions.Delete(context.WithoutCancel(ctx), &session.DeleteRequest{
			AppName:   appName,
			UserID:    userID,
			SessionID: sessionID,
		})
	}()

	rn, err := runner.New(runner.Config{
		Agent:          llmAgent,
		SessionService: r.sessions,
		AppName:        appName,
	})
	if err != nil {
		return fail(fmt.Errorf("create runner: %w", err))
	}

	content := genai.NewContentFromText(withHistory(req.History, req.Message), genai.RoleUser)
	runCfg := agent.RunConfig{StreamingMode: agent.StreamingModeSSE}

	// pending holds the partials of the response in flight; the closing
	// response repeats them and replaces pending in text.
	var text, pending strings.Builder
	keepPartial := func() {
		text.WriteString(pending.String())
		result.Text = text.String()
	}
	for ev, evErr := range rn.Run(ctx, userID, sessionID, content, runCfg) {
		if evErr != nil {
			keepPartial()
			return fail(evErr)
		}
		if ev == nil || ev.Content == nil || ev.Author == "user" {
			continue
		}

		chunk := eventText(ev.Content)
		if ev.Partial {
			if chunk != "" {
				pending.WriteString(chunk)
				_ = ui.TextDelta(chunk)
			}
			continue
		}
		if chunk != "" {
			if pending.Len() == 0 {
				_ = ui.TextDelta(chunk)
			}
			text.WriteString(chunk)
		}
		pending.Reset()
	}

	if err := ctx.Err(); err != nil {
		keepPartial()
		return fail(err)
	}
	result.Text = text.String()

	_ = ui.EndText()
	result.Steps = tracker.current()
	result.ToolCalls = state.snapshot()
	r.record(scope.Mode, result)
	return result
}

func (r *Runner) record(mode Mode, res *TurnResult) {
	outcome := "ok"
	switch {
	case errors.Is(res.Err, context.Canceled):
		outcome = "aborted"
	case res.Err != nil:
		outcome = "error"
	}
	metrics.ChatTurns.WithLabelValues(string(mode), outcome).Inc()
	metrics.ChatTurnSteps.WithLabelValues(string(mode)).Observe(float64(res.Steps))
	r.log.Info("assistant turn finished",
		slog.String("mode", string(mode)),
		slog.String("outcome", outcome),
		slog.String("model", res.Model),
		slog.Int("steps", res.Steps),
		slog.Int("tool_calls", len(res.ToolCalls)))
}

func eventText(c *genai.Content) string {
	var sb strings.Builder
	for _, p := range c.Parts {
		if p != nil && p.Text != "" && !p.Thought {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// withHistory prefixes message with the tail of the prior conversation.
func withHistory(history []HistoryEntry, message string) string {
	if len(history) == 0 {
		return message
	}
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	var sb strings.Builder
	sb.WriteString("Prior conversation:\n")
	for _, h := range history {
		if strings.TrimSpace(h.Text) == "" {
			continue
		}
		fmt.Fprintf(&sb, "%s: %s\n", h.Role, h.Text)
	}
	sb.WriteString("\nCurrent message:\n")
	sb.WriteString(message)
	return sb.String()
}
