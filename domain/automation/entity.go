package automation

import (
	"slices"
	"time"

	"github.com/uptrace/bun"
)

// Frameworks that can run a generated script.
const (
	FrameworkMidscene   = "midscene"
	FrameworkPlaywright = "playwright"
	FrameworkSelenium   = "selenium"
)

var Frameworks = []string{FrameworkMidscene, FrameworkPlaywright, FrameworkSelenium}

func ValidFramework(f string) bool {
	return slices.Contains(Frameworks, f)
}

// Config is the automation script of one test case for one framework. At
// most one active config exists per (TestCaseID, Framework).
type Config struct {
	bun.BaseModel `bun:"table:automation_config,alias:ac"`

	ID         string `bun:"id,pk,type:uuid" json:"id"`
	TestCaseID string `bun:"test_case_id,notnull,type:uuid" json:"testCaseId"`
	Framework  string `bun:"framework,notnull" json:"framework"`
	// Parameters holds the script: midscene YAML, or JSON for the code
	// frameworks.
	Parameters string    `bun:"parameters,notnull" json:"parameters"`
	IsActive   bool      `bun:"is_active,notnull" json:"isActive"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
}

// Run statuses.
const (
	RunRunning = "running"
	RunPassed  = "passed"
	RunFailed  = "failed"
)

// StepResult is the outcome of one executed step.
type StepResult struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Duration int64  `json:"durationMs,omitempty"`
}

// RunResult is what the runner reports for one execution.
type RunResult struct {
	Success    bool         `json:"success"`
	Steps      []StepResult `json:"steps"`
	Error      string       `json:"error,omitempty"`
	DurationMs int64        `json:"durationMs,omitempty"`
	ReportHTML string       `json:"reportHtml,omitempty"`
}

// Passed counts passed steps.
func (r *RunResult) Passed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == RunPassed {
			n++
		}
	}
	return n
}

// TestRun records one execution of an automation config.
type TestRun struct {
	bun.BaseModel `bun:"table:test_run,alias:tr"`

	ID                 string     `bun:"id,pk,type:uuid" json:"id"`
	TestCaseID         string     `bun:"test_case_id,notnull,type:uuid" json:"testCaseId"`
	AutomationConfigID *string    `bun:"automation_config_id,type:uuid" json:"automationConfigId"`
	Framework          string     `bun:"framework,notnull" json:"framework"`
	Status             string     `bun:"status,notnull" json:"status"`
	Result             *RunResult `bun:"result,type:jsonb" json:"result,omitempty"`
	ReportDocumentID   *string    `bun:"report_document_id,type:uuid" json:"reportDocumentId"`
	Error              string     `bun:"error,notnull" json:"error,omitempty"`
	StartedAt          time.Time  `bun:"started_at,notnull,default:now()" json:"startedAt"`
	FinishedAt         *time.Time `bun:"finished_at" json:"finishedAt"`
}

// GenerateRequest is the body of POST /api/automation-config/generate
type GenerateRequest struct {
	TestCaseID string `json:"testCaseId"`
	Framework  string `json:"framework"`
	// Model optionally names the model to try first.
	Model string `json:"selectedChatModel,omitempty"`
	// Instructions are extra user guidance appended to the prompt.
	Instructions string `json:"instructions,omitempty"`
}

// ExecuteRequest is the body of POST /api/automation-config/execute
type ExecuteRequest struct {
	TestCaseID string `json:"testCaseId"`
	Framework  string `json:"framework"`
}
