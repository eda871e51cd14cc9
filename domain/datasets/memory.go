package datasets

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests of dependent packages.
type MemoryStore struct {
	mu   sync.Mutex
	byTC map[string]Dataset
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byTC: make(map[string]Dataset)}
}

func (m *MemoryStore) GetByTestCase(_ context.Context, testCaseID string) (*Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byTC[testCaseID]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *MemoryStore) Create(_ context.Context, d *Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	d.CreatedAt, d.UpdatedAt = now, now
	m.byTC[d.TestCaseID] = *d
	return nil
}

func (m *MemoryStore) Update(_ context.Context, d *Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byTC[d.TestCaseID] = *d
	return nil
}

func (m *MemoryStore) DeleteByTestCase(_ context.Context, testCaseID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byTC[testCaseID]
	delete(m.byTC, testCaseID)
	return ok, nil
}
