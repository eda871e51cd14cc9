package testcases

import (
	"github.com/labstack/echo/v4"

	"github.com/emergent-company/testmind/pkg/auth"
)

func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/test-case")
	g.Use(authMiddleware.RequireAuth())

	g.GET("", h.List)
	g.POST("", h.Create)

	// Static paths before /:id
	g.POST("/import", h.Import)
	g.GET("/export", h.Export)
	g.GET("/template", h.Template)

	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.PUT("/:id/steps", h.ReplaceSteps)
	g.GET("/:id/comments", h.ListComments)
	g.POST("/:id/comments", h.AddComment)
}
