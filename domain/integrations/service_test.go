package integrations

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/testmind/domain/automation"
	"github.com/emergent-company/testmind/domain/folders"
	"github.com/emergent-company/testmind/domain/testcases"
	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/auth"
	"github.com/emergent-company/testmind/pkg/integrations/gitlab"
	"github.com/emergent-company/testmind/pkg/integrations/httpx"
	"github.com/emergent-company/testmind/pkg/integrations/jira"
)

type fakeGitLab struct {
	configured bool
	branchErr  error
	issueErr   error

	branches []string
	uploads  map[string]string
	issues   []gitlab.IssueInput
}

func (f *fakeGitLab) Configured() bool { return f.configured }

func (f *fakeGitLab) CreateBranch(_ context.Context, branch, _ string) (*gitlab.Branch, error) {
	if f.branchErr != nil {
		return nil, f.branchErr
	}
	f.branches = append(f.branches, branch)
	return &gitlab.Branch{Name: branch, WebURL: "https://gitlab.example.com/-/tree/" + branch}, nil
}

func (f *fakeGitLab) UploadFile(_ context.Context, branch, path, content, _ string) (*gitlab.File, error) {
	if f.uploads == nil {
		f.uploads = map[string]string{}
	}
	f.uploads[path] = content
	return &gitlab.File{FilePath: path, Branch: branch}, nil
}

func (f *fakeGitLab) CreateIssue(_ context.Context, in gitlab.IssueInput) (*gitlab.Issue, error) {
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	f.issues = append(f.issues, in)
	return &gitlab.Issue{IID: 42, Title: in.Title, WebURL: "https://gitlab.example.com/-/issues/42"}, nil
}

type fakeJira struct {
	configured bool
	err        error
	issues     []jira.IssueInput
}

func (f *fakeJira) Configured() bool { return f.configured }

func (f *fakeJira) CreateIssue(_ context.Context, in jira.IssueInput) (*jira.Issue, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.issues = append(f.issues, in)
	return &jira.Issue{ID: "1001", Key: "QA-7"}, nil
}

func (f *fakeJira) BrowseURL(key string) string { return "https://jira.example.com/browse/" + key }

type fakeAutomation struct {
	configs map[string]*automation.Config
	runs    map[string]*automation.TestRun
}

func (f *fakeAutomation) Active(_ context.Context, testCaseID, framework string) (*automation.Config, error) {
	if c, ok := f.configs[testCaseID+"/"+framework]; ok {
		return c, nil
	}
	return nil, apperror.NewNotFound("AutomationConfig", testCaseID+"/"+framework)
}

func (f *fakeAutomation) GetRun(_ context.Context, id string) (*automation.TestRun, error) {
	if r, ok := f.runs[id]; ok {
		return r, nil
	}
	return nil, apperror.NewNotFound("TestRun", id)
}

type fixture struct {
	svc    *Service
	gitlab *fakeGitLab
	jira   *fakeJira
	auto   *fakeAutomation
	tc     *testcases.TestCase
}

const midsceneScript = "web:\n  url: https://shop.example.com\ntasks:\n  - name: login\n    flow:\n      - ai: open the login page\n"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cases := testcases.NewService(testcases.NewMemoryStore(), folders.NewService(folders.NewMemoryStore(), slog.Default()), slog.Default())
	tc, err := cases.Create(context.Background(), "u1", testcases.CreateTestCaseRequest{
		ProjectID: "p1",
		Name:      "Login Test",
		Steps: []testcases.StepInput{
			{Action: "Open the login page", Expected: "The form is shown"},
			{Action: "Submit valid credentials", Expected: "The dashboard opens"},
		},
	})
	require.NoError(t, err)

	f := &fixture{
		gitlab: &fakeGitLab{configured: true},
		jira:   &fakeJira{configured: true},
		tc:     tc,
		auto: &fakeAutomation{
			configs: map[string]*automation.Config{
				tc.ID + "/midscene": {ID: "0a1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9", TestCaseID: tc.ID, Framework: "midscene", Parameters: midsceneScript, IsActive: true},
				tc.ID + "/playwright": {ID: "11111111-2222-3333-4444-555555555555", TestCaseID: tc.ID, Framework: "playwright",
					Parameters: `{"language":"typescript","code":"test('login', async () => {})"}`, IsActive: true},
				tc.ID + "/selenium": {ID: "99999999-2222-3333-4444-555555555555", TestCaseID: tc.ID, Framework: "selenium",
					Parameters: `{"language":"python","code":""}`, IsActive: true},
			},
			runs: map[string]*automation.TestRun{
				"run-failed": {
					ID: "run-failed", TestCaseID: tc.ID, Framework: "midscene", Status: automation.RunFailed,
					Error:     "assertion failed",
					StartedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
					Result: &automation.RunResult{Steps: []automation.StepResult{
						{Name: "open", Status: automation.RunPassed},
						{Name: "submit", Status: automation.RunFailed, Error: "button not found"},
					}},
				},
				"run-passed": {ID: "run-passed", TestCaseID: tc.ID, Framework: "midscene", Status: automation.RunPassed},
			},
		},
	}
	f.svc = NewService(f.gitlab, f.jira, cases, f.auto, slog.Default())
	return f
}

func requireStatus(t *testing.T, err error, status int) *apperror.Error {
	t.Helper()
	appErr, ok := apperror.As(err)
	require.True(t, ok, "expected apperror, got %v", err)
	assert.Equal(t, status, appErr.HTTPStatus)
	return appErr
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Login Test", want: "login-test"},
		{in: "  Checkout: pay with VISA!! ", want: "checkout-pay-with-visa"},
		{in: "登录测试", want: "test-case"},
		{in: strings.Repeat("ab ", 30), want: strings.TrimRight(strings.Repeat("ab-", 16), "-")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.in))
		})
	}
}

func TestScriptFile(t *testing.T) {
	tests := []struct {
		name      string
		framework string
		params    string
		want      string
		wantExt   string
		wantErr   bool
	}{
		{name: "midscene yaml as is", framework: "midscene", params: midsceneScript, want: midsceneScript, wantExt: "yaml"},
		{name: "playwright code", framework: "playwright", params: `{"language":"typescript","code":"x()"}`, want: "x()", wantExt: "spec.ts"},
		{name: "selenium python", framework: "selenium", params: `{"language":"python","code":"print(1)"}`, want: "print(1)", wantExt: "py"},
		{name: "selenium typescript", framework: "selenium", params: `{"language":"typescript","code":"y()"}`, want: "y()", wantExt: "ts"},
		{name: "empty code", framework: "playwright", params: `{"code":"  "}`, wantErr: true},
		{name: "not json", framework: "playwright", params: `code`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, ext, err := ScriptFile(tt.framework, tt.params)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, content)
			assert.Equal(t, tt.wantExt, ext)
		})
	}
}

func TestPushAutomation(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.PushAutomation(context.Background(), f.tc, PushRequest{TestCaseID: f.tc.ID})
	require.NoError(t, err)

	assert.Equal(t, "testmind/login-test-0a1b2c3d", res.Branch)
	assert.Equal(t, "tests/midscene/login-test.yaml", res.FilePath)
	assert.Equal(t, midsceneScript, f.gitlab.uploads[res.FilePath])
	assert.NotEmpty(t, res.BranchURL)
}

func TestPushAutomation_CustomTarget(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.PushAutomation(context.Background(), f.tc, PushRequest{
		Framework: "playwright", Branch: "qa/login", Path: "e2e/login.spec.ts",
	})
	require.NoError(t, err)
	assert.Equal(t, "qa/login", res.Branch)
	assert.Equal(t, "e2e/login.spec.ts", res.FilePath)
	assert.Equal(t, []string{"qa/login"}, f.gitlab.branches)
	assert.Equal(t, "test('login', async () => {})", f.gitlab.uploads["e2e/login.spec.ts"])
}

func TestPushAutomation_Errors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		f := newFixture(t)
		f.gitlab.configured = false
		_, err := f.svc.PushAutomation(context.Background(), f.tc, PushRequest{})
		requireStatus(t, err, http.StatusServiceUnavailable)
	})

	t.Run("no active config", func(t *testing.T) {
		f := newFixture(t)
		delete(f.auto.configs, f.tc.ID+"/midscene")
		_, err := f.svc.PushAutomation(context.Background(), f.tc, PushRequest{})
		requireStatus(t, err, http.StatusNotFound)
		assert.Empty(t, f.gitlab.branches)
	})

	t.Run("script without code", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.PushAutomation(context.Background(), f.tc, PushRequest{Framework: "selenium"})
		requireStatus(t, err, http.StatusBadRequest)
	})

	t.Run("gitlab rejects the branch", func(t *testing.T) {
		f := newFixture(t)
		f.gitlab.branchErr = &httpx.HTTPError{
			Service: "gitlab", Status: http.StatusBadRequest,
			Body:   `{"message":"Branch already exists"}`,
			Parsed: map[string]any{"message": "Branch already exists"},
		}
		_, err := f.svc.PushAutomation(context.Background(), f.tc, PushRequest{})
		appErr := requireStatus(t, err, http.StatusBadGateway)
		assert.Contains(t, appErr.Message, "Branch already exists")
		assert.Equal(t, http.StatusBadRequest, appErr.Details["status"])
	})
}

func TestIssueText(t *testing.T) {
	f := newFixture(t)
	run := f.auto.runs["run-failed"]

	summary, desc := IssueText(run, f.tc)
	assert.Equal(t, "[TestMind] Login Test failed (midscene)", summary)
	assert.Contains(t, desc, "Error: assertion failed")
	assert.Contains(t, desc, "2. submit: failed (button not found)")
	assert.Contains(t, desc, "1. Open the login page => The form is shown")
	assert.Contains(t, desc, "Started: 2026-03-01 10:00:00 UTC")
}

func TestFileJiraIssue(t *testing.T) {
	f := newFixture(t)
	run, tc, err := f.svc.LoadRun(context.Background(), "run-failed")
	require.NoError(t, err)

	res, err := f.svc.FileJiraIssue(context.Background(), run, tc, IssueRequest{Labels: []string{"regression"}})
	require.NoError(t, err)
	assert.Equal(t, &IssueResult{Service: "jira", Key: "QA-7", URL: "https://jira.example.com/browse/QA-7"}, res)
	require.Len(t, f.jira.issues, 1)
	assert.Equal(t, []string{"regression"}, f.jira.issues[0].Labels)
	assert.Contains(t, f.jira.issues[0].Summary, "Login Test")
}

func TestFileIssue_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	passed, tc, err := f.svc.LoadRun(ctx, "run-passed")
	require.NoError(t, err)
	_, err = f.svc.FileJiraIssue(ctx, passed, tc, IssueRequest{})
	requireStatus(t, err, http.StatusBadRequest)

	failed := f.auto.runs["run-failed"]
	f.jira.err = &httpx.HTTPError{
		Service: "jira", Status: http.StatusForbidden,
		Parsed: map[string]any{"errorMessages": []any{"You do not have permission"}},
	}
	_, err = f.svc.FileJiraIssue(ctx, failed, tc, IssueRequest{})
	appErr := requireStatus(t, err, http.StatusBadGateway)
	assert.Contains(t, appErr.Message, "You do not have permission")

	f.gitlab.issueErr = errors.New("connection reset")
	_, err = f.svc.FileGitLabIssue(ctx, failed, tc, IssueRequest{})
	requireStatus(t, err, http.StatusBadGateway)

	_, _, err = f.svc.LoadRun(ctx, "")
	requireStatus(t, err, http.StatusBadRequest)
}

func TestFileGitLabIssue(t *testing.T) {
	f := newFixture(t)
	run, tc, err := f.svc.LoadRun(context.Background(), "run-failed")
	require.NoError(t, err)

	res, err := f.svc.FileGitLabIssue(context.Background(), run, tc, IssueRequest{Summary: "Login is broken"})
	require.NoError(t, err)
	assert.Equal(t, "#42", res.Key)
	assert.Equal(t, "Login is broken", f.gitlab.issues[0].Title)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(&fakeGitLab{configured: true}, &fakeJira{})
	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "gitlab", list[0].Name)
	assert.True(t, list[0].Configured)
	assert.Equal(t, "jira", list[1].Name)
	assert.False(t, list[1].Configured)
}

func TestHandler_IssueChecksProjectAccess(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, NewRegistry(f.gitlab, f.jira))

	req := httptest.NewRequest(http.MethodPost, "/api/integrations/jira/issue", strings.NewReader(`{"runId":"run-failed"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.Set(string(auth.UserContextKey), &auth.AuthUser{ID: "u2", Projects: []string{"other"}})

	requireStatus(t, h.JiraIssue(c), http.StatusForbidden)
	assert.Empty(t, f.jira.issues)

	req = httptest.NewRequest(http.MethodPost, "/api/integrations/jira/issue", strings.NewReader(`{"runId":"run-failed"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	c = echo.New().NewContext(req, rec)
	c.Set(string(auth.UserContextKey), &auth.AuthUser{ID: "u1"})

	require.NoError(t, h.JiraIssue(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"key":"QA-7"`)
}
