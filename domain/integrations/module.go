package integrations

import (
	"go.uber.org/fx"

	"github.com/emergent-company/testmind/domain/automation"
	"github.com/emergent-company/testmind/domain/testcases"
	"github.com/emergent-company/testmind/pkg/integrations/gitlab"
	"github.com/emergent-company/testmind/pkg/integrations/jira"
)

// Module provides the GitLab and Jira integrations
var Module = fx.Module("integrations",
	fx.Provide(
		gitlab.NewClient,
		jira.NewClient,
		func(c *gitlab.Client) GitLab { return c },
		func(c *jira.Client) Jira { return c },
		func(s *testcases.Service) TestCaseReader { return s },
		func(s *automation.Service) AutomationReader { return s },
		NewRegistry,
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)
