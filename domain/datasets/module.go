package datasets

import (
	"go.uber.org/fx"

	"github.com/emergent-company/testmind/domain/testcases"
)

var Module = fx.Module("datasets",
	fx.Provide(
		NewRepository,
		func(r *Repository) Store { return r },
		NewService,
		func(s *testcases.Service) TestCaseGetter { return s },
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)
