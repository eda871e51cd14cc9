package chat

import (
	"github.com/labstack/echo/v4"

	"github.com/emergent-company/testmind/pkg/auth"
)

// RegisterRoutes registers chat routes
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/chat")
	g.Use(authMiddleware.RequireAuth())
	g.POST("", h.Post)
	g.DELETE("", h.Delete)
	g.GET("/history", h.History)
	g.GET("/:id/messages", h.Messages)

	tc := e.Group("/api/testcase-chat")
	tc.Use(authMiddleware.RequireAuth())
	tc.POST("", h.PostTestCase)
	tc.DELETE("", h.DeleteTestCase)
}
