package health

import (
	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/emergent-company/testmind/internal/database"
)

var Module = fx.Module("health",
	fx.Provide(
		func(db *bun.DB) database.Pinger { return db },
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)
