package projects

import (
	"github.com/labstack/echo/v4"

	"github.com/emergent-company/testmind/pkg/auth"
)

// RegisterRoutes registers project routes
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/projects")
	g.Use(authMiddleware.RequireAuth())

	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("", h.Create)
}
