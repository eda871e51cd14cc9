package assistant

import (
	"go.uber.org/fx"

	"github.com/emergent-company/testmind/domain/automation"
	"github.com/emergent-company/testmind/domain/documents"
	"github.com/emergent-company/testmind/domain/testcases"
	"github.com/emergent-company/testmind/pkg/adk"
)

var Module = fx.Module("assistant",
	fx.Provide(
		func(s *testcases.Service) TestCaseService { return s },
		func(s *documents.Service) DocumentService { return s },
		func(s *automation.Service) AutomationService { return s },
		func(r *adk.Resolver) ModelResolver { return r },
		NewRegistry,
		NewRunner,
	),
)
