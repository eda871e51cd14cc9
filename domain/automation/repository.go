package automation

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/logger"
	"github.com/emergent-company/testmind/pkg/pgutils"
)

// Store is the persistence surface of the automation service.
type Store interface {
	// FindActive returns nil, nil when no active config exists.
	FindActive(ctx context.Context, testCaseID, framework string) (*Config, error)
	CreateConfig(ctx context.Context, c *Config) error
	UpdateConfig(ctx context.Context, c *Config) error
	ListConfigs(ctx context.Context, testCaseID string) ([]Config, error)

	CreateRun(ctx context.Context, r *TestRun) error
	FinishRun(ctx context.Context, r *TestRun) error
	GetRun(ctx context.Context, id string) (*TestRun, error)
	ListRuns(ctx context.Context, testCaseID string, limit int) ([]TestRun, error)
	// FailStaleRuns marks runs still running since before cutoff as failed.
	FailStaleRuns(ctx context.Context, cutoff time.Time, reason string) (int, error)
}

type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("automation.repo"))}
}

func (r *Repository) FindActive(ctx context.Context, testCaseID, framework string) (*Config, error) {
	var c Config
	err := r.db.NewSelect().Model(&c).
		Where("test_case_id = ?", testCaseID).
		Where("framework = ?", framework).
		Where("is_active").
		Order("updated_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, pgutils.ToAppError(err, "AutomationConfig", testCaseID)
	}
	return &c, nil
}

func (r *Repository) CreateConfig(ctx context.Context, c *Config) error {
	if _, err := r.db.NewInsert().Model(c).Returning("*").Exec(ctx); err != nil {
		r.log.Error("failed to create automation config", logger.Error(err), slog.String("testCaseID", c.TestCaseID))
		return pgutils.ToAppError(err, "AutomationConfig", c.ID)
	}
	return nil
}

func (r *Repository) UpdateConfig(ctx context.Context, c *Config) error {
	res, err := r.db.NewUpdate().Model(c).
		Column("parameters", "is_active", "updated_at").
		WherePK().
		Returning("*").
		Exec(ctx)
	if err != nil {
		return pgutils.ToAppError(err, "AutomationConfig", c.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NewNotFound("AutomationConfig", c.ID)
	}
	return nil
}

func (r *Repository) ListConfigs(ctx context.Context, testCaseID string) ([]Config, error) {
	var out []Config
	err := r.db.NewSelect().Model(&out).
		Where("test_case_id = ?", testCaseID).
		Order("framework ASC", "updated_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, pgutils.ToAppError(err, "AutomationConfig", testCaseID)
	}
	return out, nil
}

func (r *Repository) CreateRun(ctx context.Context, run *TestRun) error {
	if _, err := r.db.NewInsert().Model(run).Returning("*").Exec(ctx); err != nil {
		return pgutils.ToAppError(err, "TestRun", run.ID)
	}
	return nil
}

func (r *Repository) FinishRun(ctx context.Context, run *TestRun) error {
	_, err := r.db.NewUpdate().Model(run).
		Column("status", "result", "report_document_id", "error", "finished_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return pgutils.ToAppError(err, "TestRun", run.ID)
	}
	return nil
}

func (r *Repository) GetRun(ctx context.Context, id string) (*TestRun, error) {
	var run TestRun
	if err := r.db.NewSelect().Model(&run).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, pgutils.ToAppError(err, "TestRun", id)
	}
	return &run, nil
}

func (r *Repository) ListRuns(ctx context.Context, testCaseID string, limit int) ([]TestRun, error) {
	var out []TestRun
	err := r.db.NewSelect().Model(&out).
		Where("test_case_id = ?", testCaseID).
		Order("started_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, pgutils.ToAppError(err, "TestRun", testCaseID)
	}
	return out, nil
}

func (r *Repository) FailStaleRuns(ctx context.Context, cutoff time.Time, reason string) (int, error) {
	res, err := r.db.NewUpdate().Model((*TestRun)(nil)).
		Set("status = ?", RunFailed).
		Set("error = ?", reason).
		Set("finished_at = now()").
		Where("status = ?", RunRunning).
		Where("started_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, pgutils.ToAppError(err, "TestRun", "")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
