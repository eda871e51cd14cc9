package folders

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/emergent-company/testmind/pkg/apperror"
)

// MemoryStore is an in-process Store used by tests of dependent packages.
type MemoryStore struct {
	mu      sync.Mutex
	folders []Folder
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Create(_ context.Context, f *Folder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.folders = append(m.folders, *f)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.folders {
		if f.ID == id {
			return &f, nil
		}
	}
	return nil, apperror.NewNotFound("Folder", id)
}

func (m *MemoryStore) FindChild(_ context.Context, projectID string, parentID *string, name string) (*Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.folders {
		if f.ProjectID != projectID || f.Name != name {
			continue
		}
		if (parentID == nil && f.ParentID == nil) ||
			(parentID != nil && f.ParentID != nil && *parentID == *f.ParentID) {
			return &f, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) ListByProject(_ context.Context, projectID string) ([]Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Folder
	for _, f := range m.folders {
		if f.ProjectID == projectID {
			out = append(out, f)
		}
	}
	slices.SortFunc(out, func(a, b Folder) int { return strings.Compare(a.Path, b.Path) })
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.folders, func(f Folder) bool { return f.ID == id })
	if i < 0 {
		return apperror.NewNotFound("Folder", id)
	}
	m.folders = slices.Delete(m.folders, i, i+1)
	return nil
}
