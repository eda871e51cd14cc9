package integrations

import (
	"github.com/labstack/echo/v4"

	"github.com/emergent-company/testmind/pkg/auth"
)

// RegisterRoutes registers integrations routes with Echo and auth middleware
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/integrations")
	g.Use(authMiddleware.RequireAuth())

	g.GET("/available", h.ListAvailable)
	g.POST("/gitlab/push-automation", h.PushAutomation)
	g.POST("/gitlab/issue", h.GitLabIssue)
	g.POST("/jira/issue", h.JiraIssue)
}
