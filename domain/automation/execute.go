package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/emergent-company/testmind/domain/documents"
	"github.com/emergent-company/testmind/domain/testcases"
	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/integrations/httpx"
	"github.com/emergent-company/testmind/pkg/logger"
	"github.com/emergent-company/testmind/pkg/metrics"
	"github.com/emergent-company/testmind/pkg/sse"
	"github.com/emergent-company/testmind/pkg/tracing"
)

// Execution is the outcome of an execute call.
type Execution struct {
	Run      *TestRun            `json:"run"`
	Result   *RunResult          `json:"result,omitempty"`
	Document *documents.Document `json:"document,omitempty"`
}

// ReportSummary is the content of a midscene_report document.
type ReportSummary struct {
	RunID      string       `json:"runId"`
	TestCaseID string       `json:"testCaseId"`
	Framework  string       `json:"framework"`
	Success    bool         `json:"success"`
	Passed     int          `json:"passed"`
	Total      int          `json:"total"`
	Steps      []StepResult `json:"steps"`
	Error      string       `json:"error,omitempty"`
	DurationMs int64        `json:"durationMs,omitempty"`
	ReportKey  string       `json:"reportKey,omitempty"`
}

// PrepareExecute loads the test case and its active config. Handlers call
// it before the stream starts.
func (s *Service) PrepareExecute(ctx context.Context, req ExecuteRequest) (*testcases.TestCase, *Config, error) {
	tc, err := s.loadCase(ctx, req.TestCaseID, req.Framework)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := s.Active(ctx, tc.ID, req.Framework)
	if err != nil {
		return nil, nil, err
	}
	return tc, cfg, nil
}

// Execute runs cfg on the automation runner. Progress and the final report
// are written to sink as a midscene_report artifact; on failure the
// artifact gets an error-shaped delta, the run is marked failed and the
// error is returned along with the partial Execution.
func (s *Service) Execute(ctx context.Context, userID string, tc *testcases.TestCase, cfg *Config, sink sse.Sink) (*Execution, error) {
	ctx, span := tracing.Start(ctx, "automation.execute",
		attribute.String("testmind.test_case.id", tc.ID),
		attribute.String("testmind.framework", cfg.Framework),
	)
	defer span.End()

	// Run bookkeeping survives a client disconnect.
	persistCtx := context.WithoutCancel(ctx)

	cfgID := cfg.ID
	run := &TestRun{
		ID:                 uuid.NewString(),
		TestCaseID:         tc.ID,
		AutomationConfigID: &cfgID,
		Framework:          cfg.Framework,
		Status:             RunRunning,
		StartedAt:          time.Now(),
	}
	if err := s.store.CreateRun(persistCtx, run); err != nil {
		return nil, err
	}
	exec := &Execution{Run: run}

	art := sse.NewArtifactWriter(sink)
	_ = art.Begin(run.ID, documents.KindMidsceneReport, "Run: "+tc.Name)
	_ = art.Delta(mustJSON(map[string]any{"runId": run.ID, "status": RunRunning}))

	runCtx := ctx
	if timeout := s.cfg.Automation.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := s.runner.Run(runCtx, RunRequest{
		RunID:      run.ID,
		TestCaseID: tc.ID,
		Framework:  cfg.Framework,
		Script:     cfg.Parameters,
	})
	if err != nil {
		err = runnerError(err)
		s.finish(persistCtx, run, RunFailed, nil, err.Error())
		tracing.Fail(span, err)
		_ = art.Fail(err)
		return exec, err
	}
	exec.Result = result

	summary := ReportSummary{
		RunID:      run.ID,
		TestCaseID: tc.ID,
		Framework:  cfg.Framework,
		Success:    result.Success,
		Passed:     result.Passed(),
		Total:      len(result.Steps),
		Steps:      result.Steps,
		Error:      result.Error,
		DurationMs: result.DurationMs,
	}
	if summary.Steps == nil {
		summary.Steps = []StepResult{}
	}

	key, err := s.reports.StoreReport(persistCtx, tc.ProjectID, run.ID, []byte(result.ReportHTML))
	if err != nil {
		s.log.Warn("store run report failed", slog.String("runID", run.ID), logger.Error(err))
	}
	summary.ReportKey = key

	doc, err := s.reports.Create(persistCtx, userID, documents.CreateRequest{
		ProjectID:  tc.ProjectID,
		Kind:       documents.KindMidsceneReport,
		Title:      fmt.Sprintf("%s - %s run", tc.Name, cfg.Framework),
		Content:    mustJSON(summary),
		StorageKey: key,
	})
	if err != nil {
		s.finish(persistCtx, run, RunFailed, result, err.Error())
		_ = art.Fail(err)
		return exec, err
	}
	exec.Document = doc
	run.ReportDocumentID = &doc.ID

	status := RunPassed
	if !result.Success {
		status = RunFailed
	}
	s.finish(persistCtx, run, status, result, result.Error)

	_ = art.Delta(doc.Content)
	_ = art.Finish()
	return exec, nil
}

func (s *Service) finish(ctx context.Context, run *TestRun, status string, result *RunResult, errText string) {
	now := time.Now()
	run.Status = status
	run.Result = result
	run.Error = errText
	run.FinishedAt = &now
	if err := s.store.FinishRun(ctx, run); err != nil {
		s.log.Error("failed to record run result", slog.String("runID", run.ID), logger.Error(err))
	}
	metrics.TestRuns.WithLabelValues(run.Framework, status).Inc()
	s.log.Info("test run finished",
		slog.String("runID", run.ID),
		slog.String("testCaseID", run.TestCaseID),
		slog.String("status", status))
}

// runnerError wraps runner HTTP failures as upstream errors.
func runnerError(err error) error {
	var httpErr *httpx.HTTPError
	if errors.As(err, &httpErr) {
		return apperror.NewUpstream("automation-runner", httpErr.Status, "automation runner rejected the script", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("automation runner timed out: %w", err)
	}
	return err
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
