package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/emergent-company/testmind/domain/automation"
	"github.com/emergent-company/testmind/domain/testcases"
	"github.com/emergent-company/testmind/internal/config"
	"github.com/emergent-company/testmind/pkg/adk"
	"github.com/emergent-company/testmind/pkg/apperror"
)

// KindTestCase is the artifact kind of test case previews.
const KindTestCase = "testcase"

type StepArgs struct {
	Action   string `json:"action" jsonschema:"what the tester does"`
	Expected string `json:"expected,omitempty" jsonschema:"the expected result"`
}

type CreateTestCaseArgs struct {
	Name          string     `json:"name" jsonschema:"test case name, unique within the project"`
	Description   string     `json:"description,omitempty" jsonschema:"what the test covers"`
	Preconditions string     `json:"preconditions,omitempty" jsonschema:"state required before the first step"`
	Priority      string     `json:"priority,omitempty" jsonschema:"low, medium, high or critical"`
	Type          string     `json:"type,omitempty" jsonschema:"manual or automated"`
	FolderID      string     `json:"folderId,omitempty" jsonschema:"folder to create the test case in"`
	Steps         []StepArgs `json:"steps,omitempty" jsonschema:"ordered test steps"`
}

type UpdateTestCaseArgs struct {
	TestCaseID    string `json:"testCaseId,omitempty" jsonschema:"id of the test case to update"`
	Name          string `json:"name,omitempty"`
	Description   string `json:"description,omitempty"`
	Preconditions string `json:"preconditions,omitempty"`
	Priority      string `json:"priority,omitempty" jsonschema:"low, medium, high or critical"`
	Status        string `json:"status,omitempty" jsonschema:"draft, ready, approved or deprecated"`
	Type          string `json:"type,omitempty" jsonschema:"manual or automated"`
}

type GenerateTestStepsArgs struct {
	TestCaseID   string `json:"testCaseId,omitempty" jsonschema:"id of the test case"`
	Instructions string `json:"instructions,omitempty" jsonschema:"extra guidance for the steps"`
}

type SearchTestCasesArgs struct {
	Query  string `json:"query,omitempty" jsonschema:"text to match against test case names"`
	Status string `json:"status,omitempty" jsonschema:"only return test cases with this status"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 20"`
}

type TestCaseResult struct {
	TestCaseID string `json:"testCaseId"`
	Name       string `json:"name"`
	StepCount  int    `json:"stepCount"`
	Message    string `json:"message"`
}

type CaseSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

type SearchResult struct {
	TestCases []CaseSummary `json:"testCases"`
	Count     int           `json:"count"`
}

func (r *Registry) createTestCase(s *Scope) Tool[CreateTestCaseArgs, TestCaseResult] {
	return Tool[CreateTestCaseArgs, TestCaseResult]{
		Name:        ToolCreateTestCase,
		Description: "Create a test case with its steps in the current project.",
		Execute: func(ctx context.Context, a CreateTestCaseArgs) (TestCaseResult, error) {
			if s.ProjectID == "" {
				return TestCaseResult{}, apperror.NewBadRequest("no project selected")
			}
			req := testcases.CreateTestCaseRequest{
				ProjectID:     s.ProjectID,
				Name:          a.Name,
				Description:   a.Description,
				Preconditions: a.Preconditions,
				Priority:      a.Priority,
				Type:          a.Type,
				Steps:         stepInputs(a.Steps),
			}
			if a.FolderID != "" {
				req.FolderID = &a.FolderID
			}
			tc, err := r.cases.Create(ctx, s.userID(), req)
			if err != nil {
				return TestCaseResult{}, err
			}
			writeArtifact(s.Sink, tc.ID, KindTestCase, tc.Name, toJSON(tc))
			return TestCaseResult{
				TestCaseID: tc.ID,
				Name:       tc.Name,
				StepCount:  len(tc.Steps),
				Message:    "The test case was created.",
			}, nil
		},
	}
}

func (r *Registry) updateTestCase(s *Scope) Tool[UpdateTestCaseArgs, TestCaseResult] {
	return Tool[UpdateTestCaseArgs, TestCaseResult]{
		Name:        ToolUpdateTestCase,
		Description: "Update fields of a test case. Empty fields are left unchanged.",
		Execute: func(ctx context.Context, a UpdateTestCaseArgs) (TestCaseResult, error) {
			tc, err := r.loadCase(ctx, s, a.TestCaseID)
			if err != nil {
				return TestCaseResult{}, err
			}
			var req testcases.UpdateTestCaseRequest
			set := func(dst **string, v string) {
				if v = strings.TrimSpace(v); v != "" {
					*dst = &v
				}
			}
			set(&req.Name, a.Name)
			set(&req.Description, a.Description)
			set(&req.Preconditions, a.Preconditions)
			set(&req.Priority, a.Priority)
			set(&req.Status, a.Status)
			set(&req.Type, a.Type)

			updated, err := r.cases.Update(ctx, s.userID(), tc.ID, req)
			if err != nil {
				return TestCaseResult{}, err
			}
			updated.Steps = tc.Steps
			writeArtifact(s.Sink, updated.ID, KindTestCase, updated.Name, toJSON(updated))
			return TestCaseResult{
				TestCaseID: updated.ID,
				Name:       updated.Name,
				StepCount:  len(tc.Steps),
				Message:    "The test case was updated.",
			}, nil
		},
	}
}

const stepsSystemPrompt = `You write manual test steps. Reply with a JSON array only, in a ` + "```json" + ` block.
Each item is an object with "action" (what the tester does) and "expected" (the observable result).
Keep each step to one action.`

func (r *Registry) generateTestSteps(s *Scope) Tool[GenerateTestStepsArgs, TestCaseResult] {
	return Tool[GenerateTestStepsArgs, TestCaseResult]{
		Name:        ToolGenerateTestSteps,
		Description: "Generate the steps of a test case from its name and description, replacing the existing steps.",
		Execute: func(ctx context.Context, a GenerateTestStepsArgs) (TestCaseResult, error) {
			tc, err := r.loadCase(ctx, s, a.TestCaseID)
			if err != nil {
				return TestCaseResult{}, err
			}
			res, err := r.resolver.Resolve(ctx, "", config.UsageArtifact)
			if err != nil {
				return TestCaseResult{}, err
			}

			prompt := fmt.Sprintf("Test case: %s\nDescription: %s\nPreconditions: %s", tc.Name, tc.Description, tc.Preconditions)
			if a.Instructions != "" {
				prompt += "\n\n" + a.Instructions
			}
			cfg := adk.GenerateConfig(&r.cfg.LLM)
			cfg.SystemInstruction = genai.NewContentFromText(stepsSystemPrompt, genai.RoleUser)
			raw, err := adk.GenerateText(ctx, res.LLM, prompt, cfg)
			if err != nil {
				return TestCaseResult{}, fmt.Errorf("generate steps: %w", err)
			}
			inputs, err := ParseSteps(raw)
			if err != nil {
				return TestCaseResult{}, err
			}

			steps, err := r.cases.ReplaceSteps(context.WithoutCancel(ctx), tc.ID, inputs)
			if err != nil {
				return TestCaseResult{}, err
			}
			tc.Steps = steps
			writeArtifact(s.Sink, tc.ID, KindTestCase, tc.Name, toJSON(tc))
			return TestCaseResult{
				TestCaseID: tc.ID,
				Name:       tc.Name,
				StepCount:  len(steps),
				Message:    fmt.Sprintf("Generated %d steps.", len(steps)),
			}, nil
		},
	}
}

// ParseSteps reads the model's step list. It accepts a bare array or an
// object with a "steps" array, fenced or not.
func ParseSteps(raw string) ([]testcases.StepInput, error) {
	body := automation.ExtractScript(raw)

	var steps []StepArgs
	if err := json.Unmarshal([]byte(body), &steps); err != nil {
		var wrapped struct {
			Steps []StepArgs `json:"steps"`
		}
		if werr := json.Unmarshal([]byte(body), &wrapped); werr != nil {
			return nil, fmt.Errorf("steps are not valid JSON: %w", err)
		}
		steps = wrapped.Steps
	}
	out := stepInputs(steps)
	if len(out) == 0 {
		return nil, fmt.Errorf("no steps in model output")
	}
	return out, nil
}

func (r *Registry) searchTestCases(s *Scope) Tool[SearchTestCasesArgs, SearchResult] {
	return Tool[SearchTestCasesArgs, SearchResult]{
		Name:        ToolSearchTestCases,
		Description: "Search the test cases of the current project by name.",
		Execute: func(ctx context.Context, a SearchTestCasesArgs) (SearchResult, error) {
			if s.ProjectID == "" {
				return SearchResult{}, apperror.NewBadRequest("no project selected")
			}
			limit := a.Limit
			if limit <= 0 {
				limit = 20
			}
			list, err := r.cases.List(ctx, testcases.ListFilter{
				ProjectID: s.ProjectID,
				Query:     a.Query,
				Status:    a.Status,
				Limit:     limit,
			})
			if err != nil {
				return SearchResult{}, err
			}
			out := SearchResult{TestCases: make([]CaseSummary, 0, len(list)), Count: len(list)}
			for _, tc := range list {
				out.TestCases = append(out.TestCases, CaseSummary{
					ID:       tc.ID,
					Name:     tc.Name,
					Status:   tc.Status,
					Priority: tc.Priority,
				})
			}
			return out, nil
		},
	}
}

func stepInputs(in []StepArgs) []testcases.StepInput {
	out := make([]testcases.StepInput, 0, len(in))
	for _, st := range in {
		if strings.TrimSpace(st.Action) == "" {
			continue
		}
		out = append(out, testcases.StepInput{Action: st.Action, Expected: st.Expected})
	}
	return out
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
