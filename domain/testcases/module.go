package testcases

import (
	"go.uber.org/fx"

	"github.com/emergent-company/testmind/domain/folders"
)

var Module = fx.Module("testcases",
	fx.Provide(
		NewRepository,
		func(r *Repository) Store { return r },
		NewService,
		func(s *folders.Service) FolderService { return s },
		func(s *folders.Service) FolderReader { return s },
		NewImporter,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)
