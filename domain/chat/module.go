package chat

import (
	"go.uber.org/fx"

	"github.com/emergent-company/testmind/domain/assistant"
	"github.com/emergent-company/testmind/domain/documents"
	"github.com/emergent-company/testmind/domain/projects"
	"github.com/emergent-company/testmind/domain/testcases"
	"github.com/emergent-company/testmind/pkg/adk"
)

// Module provides chat persistence, turns and documents.ChatRefs.
var Module = fx.Module("chat",
	fx.Provide(
		NewRepository,
		func(r *Repository) Store { return r },
		func(r *assistant.Runner) TurnRunner { return r },
		func(s *testcases.Service) TestCaseReader { return s },
		func(s *projects.Service) ProjectReader { return s },
		func(r *adk.Resolver) ModelResolver { return r },
		NewService,
		func(s *Service) documents.ChatRefs { return s },
		NewTurnLimiter,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)
