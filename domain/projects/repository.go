package projects

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/emergent-company/testmind/pkg/logger"
	"github.com/emergent-company/testmind/pkg/pgutils"
)

// Store is the persistence surface of the projects service.
type Store interface {
	Create(ctx context.Context, p *Project) error
	Get(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context, ids []string, limit int) ([]Project, error)
}

// Repository handles database operations for projects
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new project repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("projects.repo")),
	}
}

func (r *Repository) Create(ctx context.Context, p *Project) error {
	if _, err := r.db.NewInsert().Model(p).Returning("*").Exec(ctx); err != nil {
		r.log.Error("failed to create project", logger.Error(err))
		return pgutils.ToAppError(err, "Project", p.ID)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Project, error) {
	var p Project
	if err := r.db.NewSelect().Model(&p).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, pgutils.ToAppError(err, "Project", id)
	}
	return &p, nil
}

// List returns projects newest first. A nil ids slice lists every project.
func (r *Repository) List(ctx context.Context, ids []string, limit int) ([]Project, error) {
	var out []Project
	q := r.db.NewSelect().Model(&out).Order("p.created_at DESC").Limit(limit)
	if ids != nil {
		q = q.Where("p.id IN (?)", bun.In(ids))
	}
	if err := q.Scan(ctx); err != nil {
		r.log.Error("failed to list projects", logger.Error(err))
		return nil, pgutils.ToAppError(err, "Project", "")
	}
	return out, nil
}
