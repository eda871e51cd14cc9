package documents

import (
	"github.com/labstack/echo/v4"

	"github.com/emergent-company/testmind/pkg/auth"
)

func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/document")
	g.Use(authMiddleware.RequireAuth())

	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.GET("/:id/report", h.Report)
}
