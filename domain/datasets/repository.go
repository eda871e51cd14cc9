package datasets

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/emergent-company/testmind/pkg/logger"
	"github.com/emergent-company/testmind/pkg/pgutils"
)

// Store is the persistence surface of the datasets service.
type Store interface {
	// GetByTestCase returns nil, nil when the test case has no dataset.
	GetByTestCase(ctx context.Context, testCaseID string) (*Dataset, error)
	Create(ctx context.Context, d *Dataset) error
	Update(ctx context.Context, d *Dataset) error
	DeleteByTestCase(ctx context.Context, testCaseID string) (bool, error)
}

type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("datasets.repo"))}
}

func (r *Repository) GetByTestCase(ctx context.Context, testCaseID string) (*Dataset, error) {
	var d Dataset
	err := r.db.NewSelect().Model(&d).
		Where("test_case_id = ?", testCaseID).
		Order("updated_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, pgutils.ToAppError(err, "Dataset", testCaseID)
	}
	return &d, nil
}

func (r *Repository) Create(ctx context.Context, d *Dataset) error {
	if _, err := r.db.NewInsert().Model(d).Returning("*").Exec(ctx); err != nil {
		r.log.Error("failed to create dataset", logger.Error(err), slog.String("testCaseID", d.TestCaseID))
		return pgutils.ToAppError(err, "Dataset", d.ID)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, d *Dataset) error {
	_, err := r.db.NewUpdate().Model(d).
		Column("name", "columns", "data", "updated_at").
		WherePK().
		Returning("*").
		Exec(ctx)
	if err != nil {
		return pgutils.ToAppError(err, "Dataset", d.ID)
	}
	return nil
}

func (r *Repository) DeleteByTestCase(ctx context.Context, testCaseID string) (bool, error) {
	res, err := r.db.NewDelete().Model((*Dataset)(nil)).Where("test_case_id = ?", testCaseID).Exec(ctx)
	if err != nil {
		return false, pgutils.ToAppError(err, "Dataset", testCaseID)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
