package folders

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

// List GET /api/folders?projectId=
func (h *Handler) List(c echo.Context) error {
	projectID := c.QueryParam("projectId")
	if projectID == "" {
		return apperror.NewBadRequest("projectId is required")
	}
	if _, err := auth.RequireProject(c, projectID); err != nil {
		return err
	}

	folders, err := h.svc.List(c.Request().Context(), projectID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, folders)
}

// Create POST /api/folders
func (h *Handler) Create(c echo.Context) error {
	var req CreateFolderRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if _, err := auth.RequireProject(c, req.ProjectID); err != nil {
		return err
	}

	f, err := h.svc.Create(c.Request().Context(), req.ProjectID, req.ParentID, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, f)
}

// Delete DELETE /api/folders/:id
func (h *Handler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	f, err := h.svc.Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if _, err := auth.RequireProject(c, f.ProjectID); err != nil {
		return err
	}
	if err := h.svc.Delete(ctx, f.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
