package integrations

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/auth"
)

// Handler handles HTTP requests for integrations
type Handler struct {
	svc      *Service
	registry *Registry
}

func NewHandler(svc *Service, registry *Registry) *Handler {
	return &Handler{svc: svc, registry: registry}
}

// ListAvailable returns the integration types and whether each is configured
// GET /api/integrations/available
func (h *Handler) ListAvailable(c echo.Context) error {
	return c.JSON(http.StatusOK, h.registry.List())
}

// PushAutomation pushes the active automation script of a test case to GitLab
// POST /api/integrations/gitlab/push-automation
func (h *Handler) PushAutomation(c echo.Context) error {
	var req PushRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body").WithInternal(err)
	}

	ctx := c.Request().Context()
	tc, err := h.svc.LoadCase(ctx, req.TestCaseID)
	if err != nil {
		return err
	}
	if _, err := auth.RequireProject(c, tc.ProjectID); err != nil {
		return err
	}

	res, err := h.svc.PushAutomation(ctx, tc, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

// JiraIssue files a failed test run in Jira
// POST /api/integrations/jira/issue
func (h *Handler) JiraIssue(c echo.Context) error {
	return h.fileIssue(c, h.svc.FileJiraIssue)
}

// GitLabIssue files a failed test run in GitLab
// POST /api/integrations/gitlab/issue
func (h *Handler) GitLabIssue(c echo.Context) error {
	return h.fileIssue(c, h.svc.FileGitLabIssue)
}

func (h *Handler) fileIssue(c echo.Context, file issueFiler) error {
	var req IssueRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body").WithInternal(err)
	}

	ctx := c.Request().Context()
	run, tc, err := h.svc.LoadRun(ctx, req.RunID)
	if err != nil {
		return err
	}
	if _, err := auth.RequireProject(c, tc.ProjectID); err != nil {
		return err
	}

	res, err := file(ctx, run, tc, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}
