package testcases

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/emergent-company/testmind/internal/database"
	"github.com/emergent-company/testmind/pkg/logger"
	"github.com/emergent-company/testmind/pkg/pgutils"
)

// Store is the persistence surface of the test case service.
type Store interface {
	Create(ctx context.Context, tc *TestCase, steps []TestStep) error
	Get(ctx context.Context, id string) (*TestCase, error)
	List(ctx context.Context, f ListFilter) ([]TestCase, error)
	Update(ctx context.Context, tc *TestCase) error
	Delete(ctx context.Context, id string) error
	ReplaceSteps(ctx context.Context, testCaseID string, steps []TestStep) error
	StepsFor(ctx context.Context, testCaseIDs []string) (map[string][]TestStep, error)
	// ExistingNames returns which of names already exist in the project.
	ExistingNames(ctx context.Context, projectID string, names []string) ([]string, error)
	AddComment(ctx context.Context, c *Comment) error
	ListComments(ctx context.Context, testCaseID string) ([]Comment, error)
}

// Repository handles database operations for test cases
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("testcases.repo"))}
}

func (r *Repository) Create(ctx context.Context, tc *TestCase, steps []TestStep) error {
	err := database.InTx(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(tc).Returning("created_at, updated_at").Exec(ctx); err != nil {
			return err
		}
		if len(steps) == 0 {
			return nil
		}
		_, err := tx.NewInsert().Model(&steps).Exec(ctx)
		return err
	})
	if err != nil {
		r.log.Error("failed to create test case", logger.Error(err), slog.String("name", tc.Name))
		return pgutils.ToAppError(err, "TestCase", tc.Name)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*TestCase, error) {
	var tc TestCase
	if err := r.db.NewSelect().Model(&tc).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, pgutils.ToAppError(err, "TestCase", id)
	}

	err := r.db.NewSelect().Model(&tc.Steps).
		Where("test_case_id = ?", id).
		Order("step_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, pgutils.ToAppError(err, "TestStep", id)
	}
	return &tc, nil
}

func (r *Repository) List(ctx context.Context, f ListFilter) ([]TestCase, error) {
	var out []TestCase
	q := r.db.NewSelect().Model(&out).
		Where("tc.project_id = ?", f.ProjectID).
		Order("tc.updated_at DESC")

	if f.FolderID != "" {
		q = q.Where("tc.folder_id = ?", f.FolderID)
	}
	if f.Status != "" {
		q = q.Where("tc.status = ?", f.Status)
	}
	if f.Query != "" {
		like := "%" + f.Query + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("tc.name ILIKE ?", like).WhereOr("tc.description ILIKE ?", like)
		})
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	if err := q.Scan(ctx); err != nil {
		r.log.Error("failed to list test cases", logger.Error(err))
		return nil, pgutils.ToAppError(err, "TestCase", "")
	}
	return out, nil
}

func (r *Repository) Update(ctx context.Context, tc *TestCase) error {
	tc.UpdatedAt = time.Now()
	res, err := r.db.NewUpdate().Model(tc).
		WherePK().
		ExcludeColumn("id", "project_id", "created_by", "created_at").
		Exec(ctx)
	if err != nil {
		return pgutils.ToAppError(err, "TestCase", tc.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pgutils.ToAppError(sql.ErrNoRows, "TestCase", tc.ID)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().Model((*TestCase)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return pgutils.ToAppError(err, "TestCase", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pgutils.ToAppError(sql.ErrNoRows, "TestCase", id)
	}
	return nil
}

func (r *Repository) ReplaceSteps(ctx context.Context, testCaseID string, steps []TestStep) error {
	err := database.InTx(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*TestStep)(nil)).Where("test_case_id = ?", testCaseID).Exec(ctx); err != nil {
			return err
		}
		if len(steps) > 0 {
			if _, err := tx.NewInsert().Model(&steps).Exec(ctx); err != nil {
				return err
			}
		}
		_, err := tx.NewUpdate().Model((*TestCase)(nil)).
			Set("updated_at = now()").
			Where("id = ?", testCaseID).
			Exec(ctx)
		return err
	})
	if err != nil {
		return pgutils.ToAppError(err, "TestStep", testCaseID)
	}
	return nil
}

func (r *Repository) StepsFor(ctx context.Context, testCaseIDs []string) (map[string][]TestStep, error) {
	out := make(map[string][]TestStep, len(testCaseIDs))
	if len(testCaseIDs) == 0 {
		return out, nil
	}

	var steps []TestStep
	err := r.db.NewSelect().Model(&steps).
		Where("test_case_id IN (?)", bun.In(testCaseIDs)).
		Order("test_case_id", "step_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, pgutils.ToAppError(err, "TestStep", "")
	}
	for _, s := range steps {
		out[s.TestCaseID] = append(out[s.TestCaseID], s)
	}
	return out, nil
}

func (r *Repository) ExistingNames(ctx context.Context, projectID string, names []string) ([]string, error) {
	var found []string
	if len(names) == 0 {
		return found, nil
	}
	err := r.db.NewSelect().Model((*TestCase)(nil)).
		Column("name").
		Where("project_id = ?", projectID).
		Where("name IN (?)", bun.In(names)).
		Scan(ctx, &found)
	if err != nil {
		return nil, pgutils.ToAppError(err, "TestCase", "")
	}
	return found, nil
}

func (r *Repository) AddComment(ctx context.Context, c *Comment) error {
	if _, err := r.db.NewInsert().Model(c).Returning("created_at").Exec(ctx); err != nil {
		return pgutils.ToAppError(err, "Comment", c.ID)
	}
	return nil
}

func (r *Repository) ListComments(ctx context.Context, testCaseID string) ([]Comment, error) {
	var out []Comment
	err := r.db.NewSelect().Model(&out).
		Where("test_case_id = ?", testCaseID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, pgutils.ToAppError(err, "Comment", testCaseID)
	}
	return out, nil
}
