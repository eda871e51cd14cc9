package dashboard

import (
	"github.com/labstack/echo/v4"

	"github.com/emergent-company/testmind/pkg/auth"
)

func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/dashboard")
	g.Use(authMiddleware.RequireAuth())

	g.GET("", h.Get)
}
