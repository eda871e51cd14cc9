// Package main is the entry point of the testmind API server.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/emergent-company/testmind/domain/assistant"
	"github.com/emergent-company/testmind/domain/automation"
	"github.com/emergent-company/testmind/domain/chat"
	"github.com/emergent-company/testmind/domain/dashboard"
	"github.com/emergent-company/testmind/domain/datasets"
	"github.com/emergent-company/testmind/domain/documents"
	"github.com/emergent-company/testmind/domain/folders"
	"github.com/emergent-company/testmind/domain/health"
	"github.com/emergent-company/testmind/domain/integrations"
	"github.com/emergent-company/testmind/domain/projects"
	"github.com/emergent-company/testmind/domain/scheduler"
	"github.com/emergent-company/testmind/domain/testcases"
	"github.com/emergent-company/testmind/domain/tracing"
	"github.com/emergent-company/testmind/internal/config"
	"github.com/emergent-company/testmind/internal/database"
	"github.com/emergent-company/testmind/internal/migrate"
	"github.com/emergent-company/testmind/internal/server"
	"github.com/emergent-company/testmind/internal/storage"
	"github.com/emergent-company/testmind/pkg/adk"
	"github.com/emergent-company/testmind/pkg/auth"
	"github.com/emergent-company/testmind/pkg/logger"
)

func main() {
	// Load keeps variables that are already set; Overload lets .env.local win.
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,
		migrate.Module,
		server.Module,
		storage.Module,
		tracing.Module,

		auth.Module,

		// Model factory and resolver
		adk.Module,

		// Domain modules
		health.Module,
		projects.Module,
		folders.Module,
		testcases.Module,
		documents.Module,
		datasets.Module,
		automation.Module,
		dashboard.Module,
		assistant.Module,
		chat.Module,
		integrations.Module,

		// Scheduler (stale test run sweep)
		scheduler.Module,
	).Run()
}
