package folders

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/emergent-company/testmind/pkg/logger"
	"github.com/emergent-company/testmind/pkg/pgutils"
)

// Store is the persistence surface of the folders service.
type Store interface {
	Create(ctx context.Context, f *Folder) error
	Get(ctx context.Context, id string) (*Folder, error)
	// FindChild returns nil, nil when no child of that name exists.
	FindChild(ctx context.Context, projectID string, parentID *string, name string) (*Folder, error)
	ListByProject(ctx context.Context, projectID string) ([]Folder, error)
	Delete(ctx context.Context, id string) error
}

// Repository handles database operations for folders
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("folders.repo"))}
}

func (r *Repository) Create(ctx context.Context, f *Folder) error {
	if _, err := r.db.NewInsert().Model(f).Returning("*").Exec(ctx); err != nil {
		r.log.Error("failed to create folder", logger.Error(err), slog.String("path", f.Path))
		return pgutils.ToAppError(err, "Folder", f.ID)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Folder, error) {
	var f Folder
	if err := r.db.NewSelect().Model(&f).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, pgutils.ToAppError(err, "Folder", id)
	}
	return &f, nil
}

func (r *Repository) FindChild(ctx context.Context, projectID string, parentID *string, name string) (*Folder, error) {
	var f Folder
	q := r.db.NewSelect().Model(&f).
		Where("project_id = ?", projectID).
		Where("name = ?", name).
		Limit(1)
	if parentID == nil {
		q = q.Where("parent_id IS NULL")
	} else {
		q = q.Where("parent_id = ?", *parentID)
	}

	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, pgutils.ToAppError(err, "Folder", name)
	}
	return &f, nil
}

func (r *Repository) ListByProject(ctx context.Context, projectID string) ([]Folder, error) {
	var out []Folder
	err := r.db.NewSelect().Model(&out).
		Where("project_id = ?", projectID).
		Order("path ASC").
		Scan(ctx)
	if err != nil {
		return nil, pgutils.ToAppError(err, "Folder", "")
	}
	return out, nil
}

// Delete removes the folder. Subfolders cascade; test cases are detached.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().Model((*Folder)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return pgutils.ToAppError(err, "Folder", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pgutils.ToAppError(sql.ErrNoRows, "Folder", id)
	}
	return nil
}
