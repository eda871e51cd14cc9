package projects

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/auth"
)

// Handler handles HTTP requests for projects
type Handler struct {
	svc *Service
}

// NewHandler creates a new project handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List returns the projects of the authenticated user
// GET /api/projects?limit=
func (h *Handler) List(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	projects, err := h.svc.List(c.Request().Context(), user, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, projects)
}

// Get returns a single project
// GET /api/projects/:id
func (h *Handler) Get(c echo.Context) error {
	id := c.Param("id")
	if _, err := auth.RequireProject(c, id); err != nil {
		return err
	}

	project, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, project)
}

// Create creates a new project
// POST /api/projects
func (h *Handler) Create(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	var req CreateProjectRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	project, err := h.svc.Create(c.Request().Context(), user.ID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, project)
}
