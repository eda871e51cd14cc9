package projects

import (
	"go.uber.org/fx"
)

// Module provides the projects domain
var Module = fx.Module("projects",
	fx.Provide(
		NewRepository,
		func(r *Repository) Store { return r },
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)
