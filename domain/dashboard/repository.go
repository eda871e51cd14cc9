package dashboard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/emergent-company/testmind/pkg/logger"
)

// Store loads the raw counts of a project.
type Store interface {
	Counts(ctx context.Context, projectID string) (Counts, error)
}

type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("dashboard.repo"))}
}

type keyCount struct {
	Key   string `bun:"key"`
	Count int64  `bun:"count"`
}

func toMap(rows []keyCount) map[string]int64 {
	m := make(map[string]int64, len(rows))
	for _, r := range rows {
		m[r.Key] = r.Count
	}
	return m
}

func (r *Repository) Counts(ctx context.Context, projectID string) (Counts, error) {
	var c Counts

	var byStatus []keyCount
	err := r.db.NewSelect().
		TableExpr("test_case AS tc").
		ColumnExpr("tc.status AS key").
		ColumnExpr("COUNT(*) AS count").
		Where("tc.project_id = ?", projectID).
		GroupExpr("tc.status").
		Scan(ctx, &byStatus)
	if err != nil {
		return c, fmt.Errorf("count test cases by status: %w", err)
	}
	c.TestCases = toMap(byStatus)

	var byPriority []keyCount
	err = r.db.NewSelect().
		TableExpr("test_case AS tc").
		ColumnExpr("tc.priority AS key").
		ColumnExpr("COUNT(*) AS count").
		Where("tc.project_id = ?", projectID).
		GroupExpr("tc.priority").
		Scan(ctx, &byPriority)
	if err != nil {
		return c, fmt.Errorf("count test cases by priority: %w", err)
	}
	c.Priorities = toMap(byPriority)

	err = r.db.NewSelect().
		TableExpr("automation_config AS ac").
		Join("JOIN test_case AS tc ON tc.id = ac.test_case_id").
		ColumnExpr("COUNT(DISTINCT ac.test_case_id)").
		Where("tc.project_id = ?", projectID).
		Where("ac.is_active").
		Scan(ctx, &c.Automated)
	if err != nil {
		return c, fmt.Errorf("count automated test cases: %w", err)
	}

	var runs []keyCount
	err = r.db.NewSelect().
		TableExpr("test_run AS tr").
		Join("JOIN test_case AS tc ON tc.id = tr.test_case_id").
		ColumnExpr("tr.status AS key").
		ColumnExpr("COUNT(*) AS count").
		Where("tc.project_id = ?", projectID).
		GroupExpr("tr.status").
		Scan(ctx, &runs)
	if err != nil {
		return c, fmt.Errorf("count test runs: %w", err)
	}
	c.Runs = toMap(runs)

	return c, nil
}
