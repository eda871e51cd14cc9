package folders

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/logger"
)

// Service handles folder creation and the materialized path.
type Service struct {
	store Store
	log   *slog.Logger
}

func NewService(store Store, log *slog.Logger) *Service {
	return &Service{store: store, log: log.With(logger.Scope("folders.svc"))}
}

// ChildPath returns the path and level of a folder named name under parent.
// A nil parent yields a root folder.
func ChildPath(parent *Folder, name string) (string, int) {
	if parent == nil {
		return "/" + name, 0
	}
	return parent.Path + "/" + name, parent.Level + 1
}

// ValidateName trims name and rejects empty names and names containing '/'.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.NewBadRequest("folder name is required")
	}
	if strings.Contains(name, "/") {
		return "", apperror.NewBadRequest("folder name must not contain '/'")
	}
	return name, nil
}

// Create creates a folder under parentID (nil for a root folder).
func (s *Service) Create(ctx context.Context, projectID string, parentID *string, name string) (*Folder, error) {
	name, err := ValidateName(name)
	if err != nil {
		return nil, err
	}
	if projectID == "" {
		return nil, apperror.NewBadRequest("projectId is required")
	}

	var parent *Folder
	if parentID != nil && *parentID != "" {
		parent, err = s.store.Get(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if parent.ProjectID != projectID {
			return nil, apperror.NewBadRequest("parent folder belongs to another project")
		}
	}
	return s.create(ctx, projectID, parent, name)
}

func (s *Service) create(ctx context.Context, projectID string, parent *Folder, name string) (*Folder, error) {
	path, level := ChildPath(parent, name)
	f := &Folder{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      name,
		Path:      path,
		Level:     level,
	}
	if parent != nil {
		f.ParentID = &parent.ID
	}
	if err := s.store.Create(ctx, f); err != nil {
		return nil, err
	}

	s.log.Debug("folder created", slog.String("path", f.Path), slog.String("projectID", projectID))
	return f, nil
}

// EnsurePath walks segments below base, creating missing folders, and
// returns the deepest one. Empty segments are skipped.
func (s *Service) EnsurePath(ctx context.Context, projectID string, base *Folder, segments []string) (*Folder, error) {
	current := base
	for _, seg := range segments {
		name := strings.TrimSpace(seg)
		if name == "" {
			continue
		}

		var parentID *string
		if current != nil {
			parentID = &current.ID
		}
		existing, err := s.store.FindChild(ctx, projectID, parentID, name)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			current = existing
			continue
		}

		current, err = s.create(ctx, projectID, current, name)
		if err != nil {
			return nil, err
		}
	}
	return current, nil
}

func (s *Service) List(ctx context.Context, projectID string) ([]Folder, error) {
	out, err := s.store.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Folder{}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Folder, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}
