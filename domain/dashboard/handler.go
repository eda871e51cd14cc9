package dashboard

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Get GET /api/dashboard?projectId=
func (h *Handler) Get(c echo.Context) error {
	projectID := c.QueryParam("projectId")
	if projectID == "" {
		return apperror.NewBadRequest("projectId is required")
	}
	if _, err := auth.RequireProject(c, projectID); err != nil {
		return err
	}

	d, err := h.svc.Get(c.Request().Context(), projectID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}
