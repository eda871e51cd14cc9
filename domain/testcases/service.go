package testcases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/emergent-company/testmind/domain/folders"
	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/logger"
)

const (
	DefaultLimit = 200
	MaxLimit     = 1000
)

// FolderReader loads folders so a test case cannot be filed under another
// project's folder.
type FolderReader interface {
	Get(ctx context.Context, id string) (*folders.Folder, error)
}

// Service handles business logic for test cases
type Service struct {
	store   Store
	folders FolderReader
	log     *slog.Logger
}

func NewService(store Store, folderReader FolderReader, log *slog.Logger) *Service {
	return &Service{store: store, folders: folderReader, log: log.With(logger.Scope("testcases.svc"))}
}

func (s *Service) checkFolder(ctx context.Context, projectID, folderID string) error {
	f, err := s.folders.Get(ctx, folderID)
	if err != nil {
		return err
	}
	if f.ProjectID != projectID {
		return apperror.NewBadRequest("folder belongs to another project")
	}
	return nil
}

// enumField validates *v against allowed, replacing an empty value with the
// default (first) entry.
func enumField(field string, allowed []string, v *string) error {
	*v = strings.ToLower(strings.TrimSpace(*v))
	if *v == "" {
		*v = allowed[0]
		return nil
	}
	if !validEnum(allowed, *v) {
		return apperror.NewBadRequest(fmt.Sprintf("invalid %s %q", field, *v)).
			WithDetails(map[string]any{"field": field, "allowed": allowed})
	}
	return nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// BuildSteps validates inputs and numbers them 1..n.
func BuildSteps(testCaseID string, inputs []StepInput) ([]TestStep, error) {
	steps := make([]TestStep, 0, len(inputs))
	for i, in := range inputs {
		action := strings.TrimSpace(in.Action)
		if action == "" {
			return nil, apperror.NewBadRequest(fmt.Sprintf("step %d: action is required", i+1))
		}
		typ := in.Type
		if err := enumField("step type", StepTypes, &typ); err != nil {
			return nil, err
		}
		steps = append(steps, TestStep{
			ID:         uuid.NewString(),
			TestCaseID: testCaseID,
			StepNumber: len(steps) + 1,
			Action:     action,
			Expected:   strings.TrimSpace(in.Expected),
			Type:       typ,
		})
	}
	return steps, nil
}

func validateCase(tc *TestCase) error {
	tc.Name = strings.TrimSpace(tc.Name)
	if tc.Name == "" {
		return apperror.NewBadRequest("name is required")
	}
	for _, f := range []struct {
		name    string
		allowed []string
		v       *string
	}{
		{"priority", Priorities, &tc.Priority},
		{"weight", Weights, &tc.Weight},
		{"status", Statuses, &tc.Status},
		{"nature", Natures, &tc.Nature},
		{"type", CaseTypes, &tc.Type},
	} {
		if err := enumField(f.name, f.allowed, f.v); err != nil {
			return err
		}
	}
	tc.Tags = normalizeTags(tc.Tags)
	return nil
}

// Create validates req and stores the test case with its steps.
func (s *Service) Create(ctx context.Context, userID string, req CreateTestCaseRequest) (*TestCase, error) {
	if req.ProjectID == "" {
		return nil, apperror.NewBadRequest("projectId is required")
	}
	if req.FolderID != nil && *req.FolderID == "" {
		req.FolderID = nil
	}
	if req.FolderID != nil {
		if err := s.checkFolder(ctx, req.ProjectID, *req.FolderID); err != nil {
			return nil, err
		}
	}

	tc := &TestCase{
		ID:            uuid.NewString(),
		ProjectID:     req.ProjectID,
		FolderID:      req.FolderID,
		Name:          req.Name,
		Description:   strings.TrimSpace(req.Description),
		Preconditions: strings.TrimSpace(req.Preconditions),
		Priority:      req.Priority,
		Weight:        req.Weight,
		Status:        req.Status,
		Nature:        req.Nature,
		Type:          req.Type,
		Tags:          req.Tags,
		CreatedBy:     userID,
		UpdatedBy:     userID,
	}
	if err := validateCase(tc); err != nil {
		return nil, err
	}

	steps, err := BuildSteps(tc.ID, req.Steps)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, tc, steps); err != nil {
		return nil, err
	}
	tc.Steps = steps

	s.log.Info("test case created",
		slog.String("testCaseID", tc.ID),
		slog.String("projectID", tc.ProjectID),
		slog.Int("steps", len(steps)))
	return tc, nil
}

func (s *Service) Get(ctx context.Context, id string) (*TestCase, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperror.NewBadRequest("id must be a valid UUID")
	}
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]TestCase, error) {
	if f.ProjectID == "" {
		return nil, apperror.NewBadRequest("projectId is required")
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	f.Limit = min(f.Limit, MaxLimit)

	out, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []TestCase{}
	}
	return out, nil
}

// Update applies the non-nil fields of req. Last writer wins.
func (s *Service) Update(ctx context.Context, userID, id string, req UpdateTestCaseRequest) (*TestCase, error) {
	tc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&tc.Name, req.Name)
	set(&tc.Description, req.Description)
	set(&tc.Preconditions, req.Preconditions)
	set(&tc.Priority, req.Priority)
	set(&tc.Weight, req.Weight)
	set(&tc.Status, req.Status)
	set(&tc.Nature, req.Nature)
	set(&tc.Type, req.Type)
	if req.Tags != nil {
		tc.Tags = *req.Tags
	}
	if req.FolderID != nil {
		if *req.FolderID == "" {
			tc.FolderID = nil
		} else {
			if err := s.checkFolder(ctx, tc.ProjectID, *req.FolderID); err != nil {
				return nil, err
			}
			tc.FolderID = req.FolderID
		}
	}
	tc.UpdatedBy = userID

	if err := validateCase(tc); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, tc); err != nil {
		return nil, err
	}
	return tc, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperror.NewBadRequest("id must be a valid UUID")
	}
	return s.store.Delete(ctx, id)
}

// ReplaceSteps swaps the steps of a test case, renumbering them 1..n.
func (s *Service) ReplaceSteps(ctx context.Context, id string, inputs []StepInput) ([]TestStep, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	steps, err := BuildSteps(id, inputs)
	if err != nil {
		return nil, err
	}
	if err := s.store.ReplaceSteps(ctx, id, steps); err != nil {
		return nil, err
	}
	return steps, nil
}

func (s *Service) AddComment(ctx context.Context, userID, testCaseID, content string) (*Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.NewBadRequest("content is required")
	}
	if _, err := s.Get(ctx, testCaseID); err != nil {
		return nil, err
	}

	c := &Comment{
		ID:         uuid.NewString(),
		TestCaseID: testCaseID,
		AuthorID:   userID,
		Content:    content,
	}
	if err := s.store.AddComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) ListComments(ctx context.Context, testCaseID string) ([]Comment, error) {
	out, err := s.store.ListComments(ctx, testCaseID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Comment{}
	}
	return out, nil
}
