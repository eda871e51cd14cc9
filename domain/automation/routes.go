package automation

import (
	"github.com/labstack/echo/v4"

	"github.com/emergent-company/testmind/pkg/auth"
)

func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/automation-config")
	g.Use(authMiddleware.RequireAuth())

	g.GET("", h.Get)
	g.POST("", h.Save)
	g.POST("/generate", h.Generate)
	g.POST("/execute", h.Execute)
	g.GET("/runs", h.Runs)
	g.GET("/runs/:id", h.GetRun)
}
