package datasets

import (
	"github.com/labstack/echo/v4"

	"github.com/emergent-company/testmind/pkg/auth"
)

func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/dataset")
	g.Use(authMiddleware.RequireAuth())

	g.GET("", h.Get)
	g.PUT("", h.Upsert)
	g.DELETE("", h.Delete)
}
