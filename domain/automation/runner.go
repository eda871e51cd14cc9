package automation

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/emergent-company/testmind/internal/config"
	"github.com/emergent-company/testmind/pkg/integrations/httpx"
)

// RunRequest is sent to the automation runner.
type RunRequest struct {
	RunID      string `json:"runId"`
	TestCaseID string `json:"testCaseId"`
	Framework  string `json:"framework"`
	Script     string `json:"script"`
}

// Runner executes a script and reports per-step results.
type Runner interface {
	Run(ctx context.Context, req RunRequest) (*RunResult, error)
}

// RunnerClient calls the external runner service over HTTP.
type RunnerClient struct {
	http *httpx.Client
}

func NewRunnerClient(cfg *config.Config, log *slog.Logger) *RunnerClient {
	return &RunnerClient{
		http: httpx.New(httpx.Options{
			Service:     "automation-runner",
			BaseURL:     cfg.Automation.RunnerURL,
			Timeout:     cfg.Automation.Timeout,
			MaxAttempts: 1,
		}, log),
	}
}

// Run posts the script to /run and waits for the result.
func (c *RunnerClient) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	var out RunResult
	if err := c.http.Do(ctx, httpx.Request{Method: http.MethodPost, Path: "/run", Body: req, Out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}
