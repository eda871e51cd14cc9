package assistant

import (
	"context"

	"github.com/emergent-company/testmind/domain/automation"
)

type CreateAutomationConfigArgs struct {
	TestCaseID   string `json:"testCaseId,omitempty" jsonschema:"id of the test case to automate"`
	Framework    string `json:"framework,omitempty" jsonschema:"midscene, playwright or selenium; defaults to midscene"`
	Instructions string `json:"instructions,omitempty" jsonschema:"extra guidance for the script"`
}

type ExecuteAutomationArgs struct {
	TestCaseID string `json:"testCaseId,omitempty" jsonschema:"id of the test case to run"`
	Framework  string `json:"framework,omitempty" jsonschema:"midscene, playwright or selenium; defaults to midscene"`
}

type AutomationResult struct {
	ConfigID   string `json:"configId"`
	TestCaseID string `json:"testCaseId"`
	Framework  string `json:"framework"`
	Degraded   bool   `json:"degraded"`
	Message    string `json:"message"`
}

type ExecutionResult struct {
	RunID      string `json:"runId"`
	Status     string `json:"status"`
	Passed     int    `json:"passed"`
	Total      int    `json:"total"`
	DocumentID string `json:"documentId,omitempty"`
	Error      string `json:"error,omitempty"`
}

func frameworkOrDefault(f string) string {
	if f == "" {
		return automation.FrameworkMidscene
	}
	return f
}

func (r *Registry) createAutomationConfig(s *Scope) Tool[CreateAutomationConfigArgs, AutomationResult] {
	return Tool[CreateAutomationConfigArgs, AutomationResult]{
		Name:        ToolCreateAutomationConfig,
		Description: "Generate an automation script for a test case and store it as the active config of the framework.",
		Execute: func(ctx context.Context, a CreateAutomationConfigArgs) (AutomationResult, error) {
			tc, err := r.loadCase(ctx, s, a.TestCaseID)
			if err != nil {
				return AutomationResult{}, err
			}
			framework := frameworkOrDefault(a.Framework)
			gen, err := r.auto.Generate(ctx, tc, automation.GenerateRequest{
				TestCaseID:   tc.ID,
				Framework:    framework,
				Instructions: a.Instructions,
			}, s.Sink, nil)
			if err != nil {
				return AutomationResult{}, err
			}

			msg := "The script was generated and saved."
			if gen.Degraded {
				msg = "The model output could not be parsed; an empty default script was saved instead."
			}
			return AutomationResult{
				ConfigID:   gen.Config.ID,
				TestCaseID: tc.ID,
				Framework:  framework,
				Degraded:   gen.Degraded,
				Message:    msg,
			}, nil
		},
	}
}

func (r *Registry) executeAutomation(s *Scope) Tool[ExecuteAutomationArgs, ExecutionResult] {
	return Tool[ExecuteAutomationArgs, ExecutionResult]{
		Name:        ToolExecuteAutomation,
		Description: "Run the active automation script of a test case and report the per-step results.",
		Execute: func(ctx context.Context, a ExecuteAutomationArgs) (ExecutionResult, error) {
			tc, err := r.loadCase(ctx, s, a.TestCaseID)
			if err != nil {
				return ExecutionResult{}, err
			}
			_, cfg, err := r.auto.PrepareExecute(ctx, automation.ExecuteRequest{
				TestCaseID: tc.ID,
				Framework:  frameworkOrDefault(a.Framework),
			})
			if err != nil {
				return ExecutionResult{}, err
			}

			exec, err := r.auto.Execute(ctx, s.userID(), tc, cfg, s.Sink)
			if err != nil {
				return ExecutionResult{}, err
			}
			out := ExecutionResult{RunID: exec.Run.ID, Status: exec.Run.Status}
			if exec.Result != nil {
				out.Passed = exec.Result.Passed()
				out.Total = len(exec.Result.Steps)
				out.Error = exec.Result.Error
			}
			if exec.Document != nil {
				out.DocumentID = exec.Document.ID
			}
			return out, nil
		},
	}
}
