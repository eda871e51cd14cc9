package documents

import (
	"context"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/logger"
	"github.com/emergent-company/testmind/pkg/pgutils"
)

// Store is the persistence surface of the documents service.
type Store interface {
	Create(ctx context.Context, d *Document) error
	Get(ctx context.Context, id string) (*Document, error)
	UpdateContent(ctx context.Context, id, title, content string) (*Document, error)
	List(ctx context.Context, p ListParams) ([]Document, error)
	ListByIDs(ctx context.Context, ids []string) ([]Document, error)
	Delete(ctx context.Context, id string) error
}

// Repository handles database operations for documents
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("documents.repo"))}
}

func (r *Repository) Create(ctx context.Context, d *Document) error {
	if _, err := r.db.NewInsert().Model(d).Returning("*").Exec(ctx); err != nil {
		r.log.Error("failed to create document", logger.Error(err), slog.String("kind", d.Kind))
		return pgutils.ToAppError(err, "Document", d.ID)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Document, error) {
	var d Document
	if err := r.db.NewSelect().Model(&d).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, pgutils.ToAppError(err, "Document", id)
	}
	return &d, nil
}

// UpdateContent replaces title and content. Last writer wins.
func (r *Repository) UpdateContent(ctx context.Context, id, title, content string) (*Document, error) {
	d := &Document{ID: id, Title: title, Content: content, UpdatedAt: time.Now()}
	res, err := r.db.NewUpdate().Model(d).
		Column("title", "content", "updated_at").
		WherePK().
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, pgutils.ToAppError(err, "Document", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperror.NewNotFound("Document", id)
	}
	return d, nil
}

func (r *Repository) List(ctx context.Context, p ListParams) ([]Document, error) {
	var out []Document
	q := r.db.NewSelect().Model(&out).
		Where("project_id = ?", p.ProjectID).
		Order("created_at DESC").
		Limit(p.Limit)
	if p.Kind != "" {
		q = q.Where("kind = ?", p.Kind)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, pgutils.ToAppError(err, "Document", "")
	}
	return out, nil
}

func (r *Repository) ListByIDs(ctx context.Context, ids []string) ([]Document, error) {
	var out []Document
	if len(ids) == 0 {
		return out, nil
	}
	err := r.db.NewSelect().Model(&out).
		Where("id IN (?)", bun.In(ids)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, pgutils.ToAppError(err, "Document", "")
	}
	return out, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().Model((*Document)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return pgutils.ToAppError(err, "Document", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NewNotFound("Document", id)
	}
	return nil
}
