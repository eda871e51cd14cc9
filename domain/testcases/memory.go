package testcases

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/emergent-company/testmind/pkg/apperror"
)

// MemoryStore is an in-process Store used by tests of dependent packages.
type MemoryStore struct {
	mu       sync.Mutex
	cases    map[string]TestCase
	steps    map[string][]TestStep
	comments []Comment
	order    []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cases: make(map[string]TestCase),
		steps: make(map[string][]TestStep),
	}
}

func (m *MemoryStore) Create(_ context.Context, tc *TestCase, steps []TestStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	tc.CreatedAt, tc.UpdatedAt = now, now
	stored := *tc
	stored.Steps = nil
	m.cases[tc.ID] = stored
	m.steps[tc.ID] = slices.Clone(steps)
	m.order = append(m.order, tc.ID)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*TestCase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tc, ok := m.cases[id]
	if !ok {
		return nil, apperror.NewNotFound("TestCase", id)
	}
	tc.Steps = slices.Clone(m.steps[id])
	if tc.Steps == nil {
		tc.Steps = []TestStep{}
	}
	return &tc, nil
}

func (m *MemoryStore) List(_ context.Context, f ListFilter) ([]TestCase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TestCase
	for _, id := range m.order {
		tc, ok := m.cases[id]
		if !ok || tc.ProjectID != f.ProjectID {
			continue
		}
		if f.FolderID != "" && (tc.FolderID == nil || *tc.FolderID != f.FolderID) {
			continue
		}
		if f.Status != "" && tc.Status != f.Status {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(tc.Name+" "+tc.Description), strings.ToLower(f.Query)) {
			continue
		}
		out = append(out, tc)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, tc *TestCase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cases[tc.ID]; !ok {
		return apperror.NewNotFound("TestCase", tc.ID)
	}
	tc.UpdatedAt = time.Now()
	stored := *tc
	stored.Steps = nil
	m.cases[tc.ID] = stored
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cases[id]; !ok {
		return apperror.NewNotFound("TestCase", id)
	}
	delete(m.cases, id)
	delete(m.steps, id)
	return nil
}

func (m *MemoryStore) ReplaceSteps(_ context.Context, testCaseID string, steps []TestStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cases[testCaseID]; !ok {
		return apperror.NewNotFound("TestCase", testCaseID)
	}
	m.steps[testCaseID] = slices.Clone(steps)
	return nil
}

func (m *MemoryStore) StepsFor(_ context.Context, ids []string) (map[string][]TestStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]TestStep, len(ids))
	for _, id := range ids {
		if s := m.steps[id]; len(s) > 0 {
			out[id] = slices.Clone(s)
		}
	}
	return out, nil
}

func (m *MemoryStore) ExistingNames(_ context.Context, projectID string, names []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found []string
	for _, tc := range m.cases {
		if tc.ProjectID == projectID && slices.Contains(names, tc.Name) && !slices.Contains(found, tc.Name) {
			found = append(found, tc.Name)
		}
	}
	return found, nil
}

func (m *MemoryStore) AddComment(_ context.Context, c *Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.CreatedAt = time.Now()
	m.comments = append(m.comments, *c)
	return nil
}

func (m *MemoryStore) ListComments(_ context.Context, testCaseID string) ([]Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Comment
	for _, c := range m.comments {
		if c.TestCaseID == testCaseID {
			out = append(out, c)
		}
	}
	return out, nil
}

// Count returns the number of stored test cases.
func (m *MemoryStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cases)
}
