// Package migrate applies the embedded goose migrations.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/emergent-company/testmind/internal/config"
	"github.com/emergent-company/testmind/migrations"
)

var Module = fx.Module("migrate",
	fx.Provide(newZapLogger, NewMigrator),
	fx.Invoke(RunOnStart),
)

func newZapLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	var (
		log *zap.Logger
		err error
	)
	if cfg.Environment == "production" {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, fmt.Errorf("create migration logger: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		_ = log.Sync()
		return nil
	}})
	return log, nil
}

// goose keeps its dialect and base FS in package globals.
var gooseMu sync.Mutex

// Migrator runs goose migrations against the application database.
type Migrator struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewMigrator(db *bun.DB, logger *zap.Logger) *Migrator {
	return &Migrator{
		db:     db.DB,
		logger: logger.Named("migrator"),
	}
}

// RunOnStart applies pending migrations during startup when DB_AUTO_MIGRATE is set.
func RunOnStart(lc fx.Lifecycle, m *Migrator, cfg *config.Config) {
	if !cfg.Database.AutoMigrate {
		return
	}
	lc.Append(fx.Hook{OnStart: m.Up})
}

func (m *Migrator) Up(ctx context.Context) error {
	m.logger.Info("running database migrations")

	err := withGoose(func() error {
		return goose.UpContext(ctx, m.db, ".")
	})
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	m.logger.Info("migrations completed successfully")
	return nil
}

func (m *Migrator) Down(ctx context.Context) error {
	m.logger.Info("rolling back last migration")

	err := withGoose(func() error {
		return goose.DownContext(ctx, m.db, ".")
	})
	if err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	return nil
}

// Version returns the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	var version int64
	err := withGoose(func() error {
		var err error
		version, err = goose.GetDBVersionContext(ctx, m.db)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get version: %w", err)
	}
	m.logger.Debug("schema version", zap.Int64("version", version))
	return version, nil
}

func withGoose(fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return fn()
}
