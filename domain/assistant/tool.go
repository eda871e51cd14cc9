package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"

	"github.com/emergent-company/testmind/domain/automation"
	"github.com/emergent-company/testmind/domain/documents"
	"github.com/emergent-company/testmind/domain/testcases"
	"github.com/emergent-company/testmind/internal/config"
	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/auth"
	"github.com/emergent-company/testmind/pkg/logger"
	"github.com/emergent-company/testmind/pkg/sse"
)

// Tool names as seen by the model.
const (
	ToolCreateDocument         = "createDocument"
	ToolUpdateDocument         = "updateDocument"
	ToolCreateTestCase         = "createTestCase"
	ToolUpdateTestCase         = "updateTestCase"
	ToolGenerateTestSteps      = "generateTestSteps"
	ToolCreateAutomationConfig = "createAutomationConfig"
	ToolExecuteAutomation      = "executeAutomation"
	ToolSearchTestCases        = "searchTestCases"
)

var modeTools = map[Mode][]string{
	ModeChat: {
		ToolCreateDocument,
		ToolUpdateDocument,
		ToolCreateTestCase,
		ToolUpdateTestCase,
		ToolGenerateTestSteps,
		ToolCreateAutomationConfig,
		ToolExecuteAutomation,
		ToolSearchTestCases,
	},
	ModeSidebar: {
		ToolUpdateTestCase,
		ToolGenerateTestSteps,
		ToolCreateAutomationConfig,
		ToolExecuteAutomation,
		ToolCreateDocument,
	},
}

// ToolNames returns the tools offered in mode.
func ToolNames(mode Mode) []string {
	return slices.Clone(modeTools[mode])
}

// Tool is a typed tool. The model-facing input schema is derived from Args.
type Tool[Args, Result any] struct {
	Name        string
	Description string
	Execute     func(ctx context.Context, args Args) (Result, error)
}

// Build adapts the tool to the ADK tool interface.
func (t Tool[Args, Result]) Build() (tool.Tool, error) {
	schema, err := jsonschema.For[Args](nil)
	if err != nil {
		return nil, fmt.Errorf("input schema of %s: %w", t.Name, err)
	}
	return functiontool.New(functiontool.Config{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}, func(ctx tool.Context, args Args) (Result, error) {
		return t.Execute(ctx, args)
	})
}

type buildable interface {
	Build() (tool.Tool, error)
}

// TestCaseService is the test case surface the tools use.
type TestCaseService interface {
	Create(ctx context.Context, userID string, req testcases.CreateTestCaseRequest) (*testcases.TestCase, error)
	Get(ctx context.Context, id string) (*testcases.TestCase, error)
	Update(ctx context.Context, userID, id string, req testcases.UpdateTestCaseRequest) (*testcases.TestCase, error)
	ReplaceSteps(ctx context.Context, id string, inputs []testcases.StepInput) ([]testcases.TestStep, error)
	List(ctx context.Context, f testcases.ListFilter) ([]testcases.TestCase, error)
}

// DocumentService is the document surface the tools use.
type DocumentService interface {
	Create(ctx context.Context, userID string, req documents.CreateRequest) (*documents.Document, error)
	Get(ctx context.Context, id string) (*documents.Document, error)
	Update(ctx context.Context, id, title, content string) (*documents.Document, error)
}

// AutomationService generates and runs automation scripts.
type AutomationService interface {
	Generate(ctx context.Context, tc *testcases.TestCase, req automation.GenerateRequest, sink sse.Sink, onText func(string)) (*automation.Generation, error)
	PrepareExecute(ctx context.Context, req automation.ExecuteRequest) (*testcases.TestCase, *automation.Config, error)
	Execute(ctx context.Context, userID string, tc *testcases.TestCase, cfg *automation.Config, sink sse.Sink) (*automation.Execution, error)
}

// Scope is what a turn's tools act on behalf of.
type Scope struct {
	Mode      Mode
	User      *auth.AuthUser
	ProjectID string
	// TestCaseID binds every test case tool in sidebar mode.
	TestCaseID string
	// Sink receives artifact frames.
	Sink sse.Sink
}

func (s *Scope) userID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// Registry builds the tool set of a turn.
type Registry struct {
	cases    TestCaseService
	docs     DocumentService
	auto     AutomationService
	resolver ModelResolver
	cfg      *config.Config
	log      *slog.Logger
}

func NewRegistry(
	cases TestCaseService,
	docs DocumentService,
	auto AutomationService,
	resolver ModelResolver,
	cfg *config.Config,
	log *slog.Logger,
) *Registry {
	return &Registry{
		cases:    cases,
		docs:     docs,
		auto:     auto,
		resolver: resolver,
		cfg:      cfg,
		log:      log.With(logger.Scope("assistant.tools")),
	}
}

func (r *Registry) definitions(s *Scope) map[string]buildable {
	return map[string]buildable{
		ToolCreateDocument:         r.createDocument(s),
		ToolUpdateDocument:         r.updateDocument(s),
		ToolCreateTestCase:         r.createTestCase(s),
		ToolUpdateTestCase:         r.updateTestCase(s),
		ToolGenerateTestSteps:      r.generateTestSteps(s),
		ToolCreateAutomationConfig: r.createAutomationConfig(s),
		ToolExecuteAutomation:      r.executeAutomation(s),
		ToolSearchTestCases:        r.searchTestCases(s),
	}
}

// Tools returns the ADK tools of s.Mode bound to s.
func (r *Registry) Tools(s *Scope) ([]tool.Tool, error) {
	names, ok := modeTools[s.Mode]
	if !ok {
		return nil, fmt.Errorf("unknown assistant mode %q", s.Mode)
	}
	defs := r.definitions(s)
	out := make([]tool.Tool, 0, len(names))
	for _, name := range names {
		t, err := defs[name].Build()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// loadCase loads a test case the scope may touch. In sidebar mode the bound
// id wins over whatever the model passed.
func (r *Registry) loadCase(ctx context.Context, s *Scope, id string) (*testcases.TestCase, error) {
	if s.TestCaseID != "" {
		if id != "" && id != s.TestCaseID {
			r.log.Debug("ignoring test case id from model in bound scope",
				slog.String("requested", id), slog.String("bound", s.TestCaseID))
		}
		id = s.TestCaseID
	}
	if id == "" {
		return nil, apperror.NewBadRequest("testCaseId is required")
	}
	tc, err := r.cases.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.ProjectID != "" && tc.ProjectID != s.ProjectID {
		return nil, apperror.NewForbidden("test case belongs to another project")
	}
	if s.User != nil && !s.User.CanAccess(tc.ProjectID) {
		return nil, apperror.NewForbidden("no access to project " + tc.ProjectID)
	}
	return tc, nil
}

// writeArtifact emits a complete artifact in one go.
func writeArtifact(sink sse.Sink, id, kind, title, content string) {
	if sink == nil {
		return
	}
	art := sse.NewArtifactWriter(sink)
	_ = art.Begin(id, kind, title)
	_ = art.Delta(content)
	_ = art.Finish()
}
