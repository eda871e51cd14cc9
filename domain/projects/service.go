package projects

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/auth"
	"github.com/emergent-company/testmind/pkg/logger"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Service handles business logic for projects
type Service struct {
	store Store
	log   *slog.Logger
}

// NewService creates a new project service
func NewService(store Store, log *slog.Logger) *Service {
	return &Service{
		store: store,
		log:   log.With(logger.Scope("projects.svc")),
	}
}

func (s *Service) Create(ctx context.Context, userID string, req CreateProjectRequest) (*Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.NewBadRequest("name is required")
	}

	p := &Project{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		OwnerID:     userID,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}

	s.log.Info("project created",
		slog.String("projectID", p.ID),
		slog.String("userID", userID))
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Project, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperror.NewBadRequest("id must be a valid UUID")
	}
	return s.store.Get(ctx, id)
}

// List returns the projects visible to user. Users whose token names
// projects only see those.
func (s *Service) List(ctx context.Context, user *auth.AuthUser, limit int) ([]Project, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	var ids []string
	if len(user.Projects) > 0 {
		ids = user.Projects
	}
	projects, err := s.store.List(ctx, ids, limit)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []Project{}
	}
	return projects, nil
}
