package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/emergent-company/testmind/domain/automation"
	"github.com/emergent-company/testmind/domain/testcases"
	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/integrations/gitlab"
	"github.com/emergent-company/testmind/pkg/integrations/httpx"
	"github.com/emergent-company/testmind/pkg/integrations/jira"
	"github.com/emergent-company/testmind/pkg/logger"
)

// GitLab is the GitLab client surface used here.
type GitLab interface {
	Configured() bool
	CreateBranch(ctx context.Context, branch, ref string) (*gitlab.Branch, error)
	UploadFile(ctx context.Context, branch, path, content, message string) (*gitlab.File, error)
	CreateIssue(ctx context.Context, in gitlab.IssueInput) (*gitlab.Issue, error)
}

// Jira is the Jira client surface used here.
type Jira interface {
	Configured() bool
	CreateIssue(ctx context.Context, in jira.IssueInput) (*jira.Issue, error)
	BrowseURL(key string) string
}

// TestCaseReader loads test cases.
type TestCaseReader interface {
	Get(ctx context.Context, id string) (*testcases.TestCase, error)
}

// AutomationReader loads automation configs and runs.
type AutomationReader interface {
	Active(ctx context.Context, testCaseID, framework string) (*automation.Config, error)
	GetRun(ctx context.Context, id string) (*automation.TestRun, error)
}

// PushRequest is the body of POST /api/integrations/gitlab/push-automation
type PushRequest struct {
	TestCaseID string `json:"testCaseId"`
	Framework  string `json:"framework"`
	// Branch defaults to testmind/<test case slug>-<short id>.
	Branch string `json:"branch,omitempty"`
	// Path defaults to tests/<framework>/<slug>.<ext>.
	Path string `json:"path,omitempty"`
}

type PushResult struct {
	ConfigID  string `json:"configId"`
	Branch    string `json:"branch"`
	BranchURL string `json:"branchUrl,omitempty"`
	FilePath  string `json:"filePath"`
}

// IssueRequest is the body of the issue endpoints.
type IssueRequest struct {
	RunID   string   `json:"runId"`
	Summary string   `json:"summary,omitempty"`
	Labels  []string `json:"labels,omitempty"`
}

type IssueResult struct {
	Service string `json:"service"`
	Key     string `json:"key"`
	URL     string `json:"url"`
}

// Service pushes automation scripts and files failed runs as issues
type Service struct {
	gitlab GitLab
	jira   Jira
	cases  TestCaseReader
	auto   AutomationReader
	log    *slog.Logger
}

func NewService(gl GitLab, jr Jira, cases TestCaseReader, auto AutomationReader, log *slog.Logger) *Service {
	return &Service{
		gitlab: gl,
		jira:   jr,
		cases:  cases,
		auto:   auto,
		log:    log.With(logger.Scope("integrations.svc")),
	}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a test case name into a branch and file name fragment.
func Slug(name string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if len(s) > 48 {
		s = strings.TrimRight(s[:48], "-")
	}
	if s == "" {
		s = "test-case"
	}
	return s
}

// ScriptFile converts stored script parameters into the file content and
// extension pushed to the repository. Code frameworks store a JSON
// envelope; the file carries only the code.
func ScriptFile(framework, parameters string) (content, ext string, err error) {
	if framework == automation.FrameworkMidscene {
		return parameters, "yaml", nil
	}
	var script automation.CodeScript
	if err := json.Unmarshal([]byte(parameters), &script); err != nil {
		return "", "", fmt.Errorf("decode %s script: %w", framework, err)
	}
	if strings.TrimSpace(script.Code) == "" {
		return "", "", errors.New("script has no code")
	}
	switch {
	case script.Language == "python":
		return script.Code, "py", nil
	case framework == automation.FrameworkPlaywright:
		return script.Code, "spec.ts", nil
	default:
		return script.Code, "ts", nil
	}
}

// LoadCase returns the test case so callers can check project access.
func (s *Service) LoadCase(ctx context.Context, testCaseID string) (*testcases.TestCase, error) {
	if testCaseID == "" {
		return nil, apperror.NewBadRequest("testCaseId is required")
	}
	return s.cases.Get(ctx, testCaseID)
}

// LoadRun returns a run and its test case.
func (s *Service) LoadRun(ctx context.Context, runID string) (*automation.TestRun, *testcases.TestCase, error) {
	if runID == "" {
		return nil, nil, apperror.NewBadRequest("runId is required")
	}
	run, err := s.auto.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	tc, err := s.cases.Get(ctx, run.TestCaseID)
	if err != nil {
		return nil, nil, err
	}
	return run, tc, nil
}

// PushAutomation commits the active automation script of tc to a new
// branch.
func (s *Service) PushAutomation(ctx context.Context, tc *testcases.TestCase, req PushRequest) (*PushResult, error) {
	if !s.gitlab.Configured() {
		return nil, upstreamError("gitlab", gitlab.ErrNotConfigured)
	}
	if req.Framework == "" {
		req.Framework = automation.FrameworkMidscene
	}
	cfg, err := s.auto.Active(ctx, tc.ID, req.Framework)
	if err != nil {
		return nil, err
	}
	content, ext, err := ScriptFile(cfg.Framework, cfg.Parameters)
	if err != nil {
		return nil, apperror.NewBadRequest("the active automation config has no pushable script").WithInternal(err)
	}

	slug := Slug(tc.Name)
	branch := req.Branch
	if branch == "" {
		branch = fmt.Sprintf("testmind/%s-%s", slug, shortID(cfg.ID))
	}
	path := req.Path
	if path == "" {
		path = fmt.Sprintf("tests/%s/%s.%s", cfg.Framework, slug, ext)
	}

	b, err := s.gitlab.CreateBranch(ctx, branch, "")
	if err != nil {
		return nil, upstreamError("gitlab", err)
	}
	message := fmt.Sprintf("Add %s automation for %q", cfg.Framework, tc.Name)
	f, err := s.gitlab.UploadFile(ctx, b.Name, path, content, message)
	if err != nil {
		return nil, upstreamError("gitlab", err)
	}

	s.log.Info("automation pushed to gitlab",
		slog.String("testCaseID", tc.ID),
		slog.String("branch", b.Name),
		slog.String("path", f.FilePath))
	return &PushResult{ConfigID: cfg.ID, Branch: b.Name, BranchURL: b.WebURL, FilePath: f.FilePath}, nil
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// IssueText builds the summary and plain text description of a failed run.
func IssueText(run *automation.TestRun, tc *testcases.TestCase) (summary, description string) {
	summary = fmt.Sprintf("[TestMind] %s failed (%s)", tc.Name, run.Framework)

	var b strings.Builder
	fmt.Fprintf(&b, "Automated run %s of test case %q failed.\n", run.ID, tc.Name)
	fmt.Fprintf(&b, "Framework: %s\nStarted: %s", run.Framework, run.StartedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	if run.Error != "" {
		fmt.Fprintf(&b, "\n\nError: %s", run.Error)
	}
	if run.Result != nil && len(run.Result.Steps) > 0 {
		b.WriteString("\n\nSteps:")
		for i, st := range run.Result.Steps {
			fmt.Fprintf(&b, "\n%d. %s: %s", i+1, st.Name, st.Status)
			if st.Error != "" {
				fmt.Fprintf(&b, " (%s)", st.Error)
			}
		}
	}
	if len(tc.Steps) > 0 {
		b.WriteString("\n\nExpected behaviour:")
		for _, st := range tc.Steps {
			if st.Expected == "" {
				continue
			}
			fmt.Fprintf(&b, "\n%d. %s => %s", st.StepNumber, st.Action, st.Expected)
		}
	}
	return summary, b.String()
}

type issueFiler func(ctx context.Context, run *automation.TestRun, tc *testcases.TestCase, req IssueRequest) (*IssueResult, error)

func checkFailed(run *automation.TestRun) error {
	if run.Status != automation.RunFailed {
		return apperror.NewBadRequest(fmt.Sprintf("run %s is %s; only failed runs can be filed", run.ID, run.Status))
	}
	return nil
}

// FileJiraIssue files a failed run as a Jira issue.
func (s *Service) FileJiraIssue(ctx context.Context, run *automation.TestRun, tc *testcases.TestCase, req IssueRequest) (*IssueResult, error) {
	if err := checkFailed(run); err != nil {
		return nil, err
	}
	if !s.jira.Configured() {
		return nil, upstreamError("jira", jira.ErrNotConfigured)
	}
	summary, description := IssueText(run, tc)
	if req.Summary != "" {
		summary = req.Summary
	}

	issue, err := s.jira.CreateIssue(ctx, jira.IssueInput{Summary: summary, Description: description, Labels: req.Labels})
	if err != nil {
		return nil, upstreamError("jira", err)
	}
	s.log.Info("jira issue filed", slog.String("runID", run.ID), slog.String("key", issue.Key))
	return &IssueResult{Service: "jira", Key: issue.Key, URL: s.jira.BrowseURL(issue.Key)}, nil
}

// FileGitLabIssue files a failed run as a GitLab issue.
func (s *Service) FileGitLabIssue(ctx context.Context, run *automation.TestRun, tc *testcases.TestCase, req IssueRequest) (*IssueResult, error) {
	if err := checkFailed(run); err != nil {
		return nil, err
	}
	if !s.gitlab.Configured() {
		return nil, upstreamError("gitlab", gitlab.ErrNotConfigured)
	}
	summary, description := IssueText(run, tc)
	if req.Summary != "" {
		summary = req.Summary
	}

	issue, err := s.gitlab.CreateIssue(ctx, gitlab.IssueInput{Title: summary, Description: description, Labels: req.Labels})
	if err != nil {
		return nil, upstreamError("gitlab", err)
	}
	s.log.Info("gitlab issue filed", slog.String("runID", run.ID), slog.Int("iid", issue.IID))
	return &IssueResult{Service: "gitlab", Key: fmt.Sprintf("#%d", issue.IID), URL: issue.WebURL}, nil
}

// upstreamError maps client failures onto the error taxonomy: missing
// credentials are 503, HTTP failures keep the remote status and message.
func upstreamError(service string, err error) error {
	if errors.Is(err, gitlab.ErrNotConfigured) || errors.Is(err, jira.ErrNotConfigured) {
		return apperror.ErrNotAvailable.WithMessage(err.Error())
	}
	var httpErr *httpx.HTTPError
	if errors.As(err, &httpErr) {
		return apperror.NewUpstream(service, httpErr.Status, remoteMessage(httpErr), err)
	}
	return apperror.NewUpstream(service, 0, "request failed", err)
}

// remoteMessage picks the error message out of a GitLab or Jira error body.
func remoteMessage(e *httpx.HTTPError) string {
	if m, ok := e.Parsed.(map[string]any); ok {
		for _, key := range []string{"message", "error"} {
			if v, ok := m[key].(string); ok && v != "" {
				return v
			}
		}
		if msgs, ok := m["errorMessages"].([]any); ok && len(msgs) > 0 {
			if v, ok := msgs[0].(string); ok {
				return v
			}
		}
	}
	if msg := strings.TrimSpace(e.Body); msg != "" && len(msg) <= 200 {
		return msg
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}
