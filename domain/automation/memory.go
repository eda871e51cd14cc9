package automation

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/emergent-company/testmind/pkg/apperror"
)

// MemoryStore is an in-process Store used by tests of dependent packages.
type MemoryStore struct {
	mu      sync.Mutex
	configs []Config
	runs    []TestRun
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) FindActive(_ context.Context, testCaseID, framework string) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.configs) - 1; i >= 0; i-- {
		c := m.configs[i]
		if c.TestCaseID == testCaseID && c.Framework == framework && c.IsActive {
			return &c, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) CreateConfig(_ context.Context, c *Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	m.configs = append(m.configs, *c)
	return nil
}

func (m *MemoryStore) UpdateConfig(_ context.Context, c *Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.configs, func(x Config) bool { return x.ID == c.ID })
	if i < 0 {
		return apperror.NewNotFound("AutomationConfig", c.ID)
	}
	m.configs[i] = *c
	return nil
}

func (m *MemoryStore) ListConfigs(_ context.Context, testCaseID string) ([]Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Config
	for _, c := range m.configs {
		if c.TestCaseID == testCaseID {
			out = append(out, c)
		}
	}
	return out, nil
}

// ActiveCount returns the number of active configs for the pair.
func (m *MemoryStore) ActiveCount(testCaseID, framework string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.configs {
		if c.TestCaseID == testCaseID && c.Framework == framework && c.IsActive {
			n++
		}
	}
	return n
}

func (m *MemoryStore) CreateRun(_ context.Context, r *TestRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	m.runs = append(m.runs, *r)
	return nil
}

func (m *MemoryStore) FinishRun(_ context.Context, r *TestRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.runs, func(x TestRun) bool { return x.ID == r.ID })
	if i < 0 {
		return apperror.NewNotFound("TestRun", r.ID)
	}
	m.runs[i] = *r
	return nil
}

func (m *MemoryStore) GetRun(_ context.Context, id string) (*TestRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.runs, func(x TestRun) bool { return x.ID == id })
	if i < 0 {
		return nil, apperror.NewNotFound("TestRun", id)
	}
	r := m.runs[i]
	return &r, nil
}

func (m *MemoryStore) ListRuns(_ context.Context, testCaseID string, limit int) ([]TestRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TestRun
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].TestCaseID == testCaseID {
			out = append(out, m.runs[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) FailStaleRuns(_ context.Context, cutoff time.Time, reason string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	n := 0
	for i := range m.runs {
		r := &m.runs[i]
		if r.Status == RunRunning && r.StartedAt.Before(cutoff) {
			r.Status = RunFailed
			r.Error = reason
			r.FinishedAt = &now
			n++
		}
	}
	return n, nil
}
