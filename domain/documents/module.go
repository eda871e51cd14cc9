package documents

import (
	"go.uber.org/fx"
)

// Module needs a ChatRefs, provided by the chat module.
var Module = fx.Module("documents",
	fx.Provide(
		NewRepository,
		func(r *Repository) Store { return r },
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)
