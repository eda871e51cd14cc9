package health

import (
	"github.com/labstack/echo/v4"

	"github.com/emergent-company/testmind/pkg/metrics"
)

// RegisterRoutes registers health check routes
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/health", h.Health)
	e.GET("/healthz", h.Healthz)
	e.GET("/ready", h.Ready)
	e.GET("/api/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}
