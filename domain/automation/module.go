package automation

import (
	"go.uber.org/fx"

	"github.com/emergent-company/testmind/domain/documents"
	"github.com/emergent-company/testmind/domain/scheduler"
	"github.com/emergent-company/testmind/domain/testcases"
	"github.com/emergent-company/testmind/pkg/adk"
)

var Module = fx.Module("automation",
	fx.Provide(
		NewRepository,
		func(r *Repository) Store { return r },
		NewRunnerClient,
		func(c *RunnerClient) Runner { return c },
		func(s *testcases.Service) TestCaseSource { return s },
		func(s *documents.Service) ReportStore { return s },
		func(r *adk.Resolver) ModelResolver { return r },
		NewService,
		func(s *Service) scheduler.RunSweeper { return s },
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)
