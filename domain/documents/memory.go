package documents

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/emergent-company/testmind/pkg/apperror"
)

// MemoryStore is an in-process Store used by tests of dependent packages.
type MemoryStore struct {
	mu   sync.Mutex
	docs []Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Create(_ context.Context, d *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	d.CreatedAt, d.UpdatedAt = now, now
	m.docs = append(m.docs, *d)
	return nil
}

func (m *MemoryStore) find(id string) int {
	return slices.IndexFunc(m.docs, func(d Document) bool { return d.ID == id })
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(id)
	if i < 0 {
		return nil, apperror.NewNotFound("Document", id)
	}
	d := m.docs[i]
	return &d, nil
}

func (m *MemoryStore) UpdateContent(_ context.Context, id, title, content string) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(id)
	if i < 0 {
		return nil, apperror.NewNotFound("Document", id)
	}
	m.docs[i].Title = title
	m.docs[i].Content = content
	m.docs[i].UpdatedAt = time.Now()
	d := m.docs[i]
	return &d, nil
}

func (m *MemoryStore) List(_ context.Context, p ListParams) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Document
	for i := len(m.docs) - 1; i >= 0; i-- {
		d := m.docs[i]
		if d.ProjectID != p.ProjectID || (p.Kind != "" && d.Kind != p.Kind) {
			continue
		}
		out = append(out, d)
		if p.Limit > 0 && len(out) == p.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) ListByIDs(_ context.Context, ids []string) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Document
	for _, d := range m.docs {
		if slices.Contains(ids, d.ID) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(id)
	if i < 0 {
		return apperror.NewNotFound("Document", id)
	}
	m.docs = slices.Delete(m.docs, i, i+1)
	return nil
}
