package assistant

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"

	"github.com/emergent-company/testmind/domain/automation"
	"github.com/emergent-company/testmind/domain/documents"
	"github.com/emergent-company/testmind/domain/folders"
	"github.com/emergent-company/testmind/domain/testcases"
	"github.com/emergent-company/testmind/internal/config"
	"github.com/emergent-company/testmind/internal/testutil"
	"github.com/emergent-company/testmind/pkg/adk"
	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/auth"
	"github.com/emergent-company/testmind/pkg/sse"
)

type fakeAutomation struct {
	generated []automation.GenerateRequest
	executed  []string
	execErr   error
}

func (f *fakeAutomation) Generate(_ context.Context, tc *testcases.TestCase, req automation.GenerateRequest, sink sse.Sink, _ func(string)) (*automation.Generation, error) {
	f.generated = append(f.generated, req)
	writeArtifact(sink, "cfg-1", documents.KindCode, tc.Name, "web: {}")
	return &automation.Generation{Config: &automation.Config{ID: "cfg-1", TestCaseID: tc.ID, Framework: req.Framework}}, nil
}

func (f *fakeAutomation) PrepareExecute(_ context.Context, req automation.ExecuteRequest) (*testcases.TestCase, *automation.Config, error) {
	return nil, &automation.Config{ID: "cfg-1", TestCaseID: req.TestCaseID, Framework: req.Framework}, nil
}

func (f *fakeAutomation) Execute(_ context.Context, _ string, tc *testcases.TestCase, _ *automation.Config, _ sse.Sink) (*automation.Execution, error) {
	f.executed = append(f.executed, tc.ID)
	if f.execErr != nil {
		return nil, f.execErr
	}
	return &automation.Execution{
		Run: &automation.TestRun{ID: "run-1", Status: automation.RunPassed},
		Result: &automation.RunResult{Success: true, Steps: []automation.StepResult{
			{Name: "a", Status: automation.RunPassed},
			{Name: "b", Status: automation.RunPassed},
		}},
		Document: &documents.Document{ID: "doc-run"},
	}, nil
}

type toolFixture struct {
	reg      *Registry
	cases    *testcases.Service
	docs     *documents.Service
	auto     *fakeAutomation
	provider *testutil.FakeProvider
	rec      *testutil.Recorder
	tc       *testcases.TestCase
}

func newToolFixture(t *testing.T) *toolFixture {
	t.Helper()
	cfg := &config.Config{LLM: config.LLMConfig{ChatModel: "chat-model", StaticFallbackModel: "artifact-model", MaxSteps: 5}}
	f := &toolFixture{
		cases:    testcases.NewService(testcases.NewMemoryStore(), folders.NewService(folders.NewMemoryStore(), slog.Default()), slog.Default()),
		docs:     documents.NewService(documents.NewMemoryStore(), nil, slog.Default()),
		auto:     &fakeAutomation{},
		provider: &testutil.FakeProvider{Models: map[string]model.LLM{}},
		rec:      &testutil.Recorder{},
	}
	resolver := adk.NewResolver(&cfg.LLM, f.provider, slog.Default())
	f.reg = NewRegistry(f.cases, f.docs, f.auto, resolver, cfg, slog.Default())

	tc, err := f.cases.Create(context.Background(), "u1", testcases.CreateTestCaseRequest{
		ProjectID: "p1",
		Name:      "Login Test",
		Steps:     []testcases.StepInput{{Action: "Open login page"}},
	})
	require.NoError(t, err)
	f.tc = tc
	return f
}

func (f *toolFixture) scope(mode Mode) *Scope {
	s := &Scope{Mode: mode, User: &auth.AuthUser{ID: "u1"}, ProjectID: "p1", Sink: f.rec}
	if mode == ModeSidebar {
		s.TestCaseID = f.tc.ID
	}
	return s
}

func lastFrame(rec *testutil.Recorder) string {
	types := rec.Types()
	if len(types) == 0 {
		return ""
	}
	return types[len(types)-1]
}

func TestToolNames(t *testing.T) {
	assert.Len(t, ToolNames(ModeChat), 8)
	assert.ElementsMatch(t, []string{
		ToolUpdateTestCase, ToolGenerateTestSteps, ToolCreateAutomationConfig, ToolExecuteAutomation, ToolCreateDocument,
	}, ToolNames(ModeSidebar))
	assert.NotContains(t, ToolNames(ModeSidebar), ToolSearchTestCases)
}

func TestRegistry_ToolsBuildForEveryMode(t *testing.T) {
	f := newToolFixture(t)
	for _, mode := range []Mode{ModeChat, ModeSidebar} {
		tools, err := f.reg.Tools(f.scope(mode))
		require.NoError(t, err)
		var names []string
		for _, tl := range tools {
			names = append(names, tl.Name())
		}
		assert.Equal(t, ToolNames(mode), names)
	}

	_, err := f.reg.Tools(&Scope{Mode: "other"})
	assert.Error(t, err)
}

func TestCreateTestCaseTool(t *testing.T) {
	f := newToolFixture(t)
	ctx := context.Background()

	res, err := f.reg.createTestCase(f.scope(ModeChat)).Execute(ctx, CreateTestCaseArgs{
		Name:  "Checkout",
		Steps: []StepArgs{{Action: "Add item", Expected: "Cart shows 1"}, {Action: " "}, {Action: "Pay"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Checkout", res.Name)
	assert.Equal(t, 2, res.StepCount)

	stored, err := f.cases.Get(ctx, res.TestCaseID)
	require.NoError(t, err)
	assert.Equal(t, "p1", stored.ProjectID)
	assert.Equal(t, sse.TypeDataFinish, lastFrame(f.rec))
	assert.Contains(t, f.rec.Types(), sse.DeltaType(KindTestCase))

	noProject := f.scope(ModeChat)
	noProject.ProjectID = ""
	_, err = f.reg.createTestCase(noProject).Execute(ctx, CreateTestCaseArgs{Name: "x"})
	assert.Error(t, err)
}

func TestUpdateTestCaseTool_SidebarBinding(t *testing.T) {
	f := newToolFixture(t)
	ctx := context.Background()

	other, err := f.cases.Create(ctx, "u1", testcases.CreateTestCaseRequest{ProjectID: "p1", Name: "Other"})
	require.NoError(t, err)

	res, err := f.reg.updateTestCase(f.scope(ModeSidebar)).Execute(ctx, UpdateTestCaseArgs{
		TestCaseID: other.ID,
		Priority:   "high",
	})
	require.NoError(t, err)
	assert.Equal(t, f.tc.ID, res.TestCaseID, "the bound test case wins")
	assert.Equal(t, 1, res.StepCount)

	got, err := f.cases.Get(ctx, f.tc.ID)
	require.NoError(t, err)
	assert.Equal(t, "high", got.Priority)
	assert.Equal(t, "Login Test", got.Name, "empty fields are left unchanged")

	untouched, err := f.cases.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "high", untouched.Priority)
}

func TestLoadCase_ProjectScope(t *testing.T) {
	f := newToolFixture(t)
	ctx := context.Background()

	foreign, err := f.cases.Create(ctx, "u2", testcases.CreateTestCaseRequest{ProjectID: "p2", Name: "Foreign"})
	require.NoError(t, err)

	_, err = f.reg.loadCase(ctx, f.scope(ModeChat), foreign.ID)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, appErr.HTTPStatus)

	_, err = f.reg.loadCase(ctx, f.scope(ModeChat), "")
	assert.Error(t, err)
}

func TestGenerateTestStepsTool(t *testing.T) {
	f := newToolFixture(t)
	f.provider.Models["artifact-model"] = &testutil.FakeLLM{ModelName: "artifact-model", Replies: [][]string{{
		"```json\n[{\"action\":\"Open login page\",\"expected\":\"Form shown\"},{\"action\":\"Submit\",\"expected\":\"Dashboard\"},{\"action\":\"Log out\"}]\n```",
	}}}

	res, err := f.reg.generateTestSteps(f.scope(ModeSidebar)).Execute(context.Background(), GenerateTestStepsArgs{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.StepCount)

	got, err := f.cases.Get(context.Background(), f.tc.ID)
	require.NoError(t, err)
	require.Len(t, got.Steps, 3)
	assert.Equal(t, 3, got.Steps[2].StepNumber)
	assert.Equal(t, "Log out", got.Steps[2].Action)
}

func TestGenerateTestStepsTool_BadOutputKeepsSteps(t *testing.T) {
	f := newToolFixture(t)
	f.provider.Models["artifact-model"] = &testutil.FakeLLM{Replies: [][]string{{"Sorry, I cannot help."}}}

	_, err := f.reg.generateTestSteps(f.scope(ModeSidebar)).Execute(context.Background(), GenerateTestStepsArgs{})
	require.Error(t, err)

	got, err := f.cases.Get(context.Background(), f.tc.ID)
	require.NoError(t, err)
	assert.Len(t, got.Steps, 1)
}

func TestParseSteps(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{name: "bare array", raw: `[{"action":"a"},{"action":"b"}]`, want: 2},
		{name: "wrapped", raw: "```json\n{\"steps\":[{\"action\":\"a\"}]}\n```", want: 1},
		{name: "blank actions dropped", raw: `[{"action":""},{"action":"b"}]`, want: 1},
		{name: "empty", raw: `[]`, wantErr: true},
		{name: "prose", raw: "no steps", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSteps(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestCreateDocumentTool(t *testing.T) {
	f := newToolFixture(t)
	f.provider.Models["artifact-model"] = &testutil.FakeLLM{ModelName: "artifact-model", Replies: [][]string{{"# Plan", "\n\nCover login."}}}

	res, err := f.reg.createDocument(f.scope(ModeChat)).Execute(context.Background(), CreateDocumentArgs{Title: "Test plan", Kind: "text"})
	require.NoError(t, err)
	assert.Equal(t, documents.KindText, res.Kind)

	doc, err := f.docs.Get(context.Background(), res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "# Plan\n\nCover login.", doc.Content)

	events := f.rec.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, sse.TypeDataID, events[0].Type)
	assert.Equal(t, res.DocumentID, events[0].Data)
	assert.Equal(t, sse.TypeDataFinish, lastFrame(f.rec))
}

func TestCreateDocumentTool_Errors(t *testing.T) {
	f := newToolFixture(t)
	_, err := f.reg.createDocument(f.scope(ModeChat)).Execute(context.Background(), CreateDocumentArgs{Title: "x", Kind: documents.KindMidsceneReport})
	assert.Error(t, err)

	f.provider.Fail = map[string]error{"artifact-model": errors.New("quota")}
	_, err = f.reg.createDocument(f.scope(ModeChat)).Execute(context.Background(), CreateDocumentArgs{Title: "x"})
	require.Error(t, err)
	events := f.rec.Events()
	assert.Equal(t, sse.TypeDataFinish, lastFrame(f.rec))
	assert.Contains(t, events[len(events)-2].Data, `"success":false`)
}

func TestUpdateDocumentTool(t *testing.T) {
	f := newToolFixture(t)
	ctx := context.Background()
	f.provider.Models["artifact-model"] = &testutil.FakeLLM{Replies: [][]string{{"```python\nprint(2)\n```"}}}

	doc, err := f.docs.Create(ctx, "u1", documents.CreateRequest{Kind: documents.KindCode, Title: "script", Content: "print(1)"})
	require.NoError(t, err)

	res, err := f.reg.updateDocument(f.scope(ModeChat)).Execute(ctx, UpdateDocumentArgs{DocumentID: doc.ID, Description: "print 2"})
	require.NoError(t, err)
	assert.Equal(t, doc.ID, res.DocumentID)

	got, err := f.docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "print(2)", got.Content)

	stranger := f.scope(ModeChat)
	stranger.User = &auth.AuthUser{ID: "u2"}
	_, err = f.reg.updateDocument(stranger).Execute(ctx, UpdateDocumentArgs{DocumentID: doc.ID, Description: "x"})
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, appErr.HTTPStatus)
}

func TestSearchTestCasesTool(t *testing.T) {
	f := newToolFixture(t)
	res, err := f.reg.searchTestCases(f.scope(ModeChat)).Execute(context.Background(), SearchTestCasesArgs{Query: "login"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, f.tc.ID, res.TestCases[0].ID)

	res, err = f.reg.searchTestCases(f.scope(ModeChat)).Execute(context.Background(), SearchTestCasesArgs{Query: "payment"})
	require.NoError(t, err)
	assert.Zero(t, res.Count)
	assert.NotNil(t, res.TestCases)
}

func TestAutomationTools(t *testing.T) {
	f := newToolFixture(t)
	ctx := context.Background()

	gen, err := f.reg.createAutomationConfig(f.scope(ModeSidebar)).Execute(ctx, CreateAutomationConfigArgs{})
	require.NoError(t, err)
	assert.Equal(t, automation.FrameworkMidscene, gen.Framework)
	require.Len(t, f.auto.generated, 1)
	assert.Equal(t, f.tc.ID, f.auto.generated[0].TestCaseID)

	run, err := f.reg.executeAutomation(f.scope(ModeSidebar)).Execute(ctx, ExecuteAutomationArgs{Framework: automation.FrameworkPlaywright})
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.RunID)
	assert.Equal(t, 2, run.Passed)
	assert.Equal(t, "doc-run", run.DocumentID)

	f.auto.execErr = errors.New("runner down")
	_, err = f.reg.executeAutomation(f.scope(ModeSidebar)).Execute(ctx, ExecuteAutomationArgs{})
	assert.ErrorContains(t, err, "runner down")
}
