package projects

import (
	"context"
	"log/slog"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/auth"
)

type memStore struct {
	projects []Project
}

func (m *memStore) Create(_ context.Context, p *Project) error {
	m.projects = append(m.projects, *p)
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*Project, error) {
	for _, p := range m.projects {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, apperror.NewNotFound("Project", id)
}

func (m *memStore) List(_ context.Context, ids []string, limit int) ([]Project, error) {
	var out []Project
	for _, p := range m.projects {
		if ids == nil || slices.Contains(ids, p.ID) {
			out = append(out, p)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func TestService_Create(t *testing.T) {
	svc := NewService(&memStore{}, slog.Default())

	p, err := svc.Create(context.Background(), "u1", CreateProjectRequest{Name: "  Checkout  "})
	require.NoError(t, err)
	assert.Equal(t, "Checkout", p.Name)
	assert.Equal(t, "u1", p.OwnerID)
	assert.NotEmpty(t, p.ID)

	_, err = svc.Create(context.Background(), "u1", CreateProjectRequest{Name: " "})
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.ErrBadRequest.Code, appErr.Code)
}

func TestService_List_ScopedUser(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, slog.Default())
	ctx := context.Background()

	a, _ := svc.Create(ctx, "u1", CreateProjectRequest{Name: "A"})
	_, _ = svc.Create(ctx, "u1", CreateProjectRequest{Name: "B"})

	all, err := svc.List(ctx, &auth.AuthUser{ID: "u1"}, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := svc.List(ctx, &auth.AuthUser{ID: "u2", Projects: []string{a.ID}}, 0)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "A", scoped[0].Name)
}

func TestService_Get_InvalidID(t *testing.T) {
	svc := NewService(&memStore{}, slog.Default())

	_, err := svc.Get(context.Background(), "nope")
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.HTTPStatus)
}
