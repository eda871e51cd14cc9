package folders

import (
	"go.uber.org/fx"
)

var Module = fx.Module("folders",
	fx.Provide(
		NewRepository,
		func(r *Repository) Store { return r },
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)
