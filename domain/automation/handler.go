package automation

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/emergent-company/testmind/domain/testcases"
	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/auth"
	"github.com/emergent-company/testmind/pkg/sse"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) authorizeCase(c echo.Context, testCaseID string) (*testcases.TestCase, *auth.AuthUser, error) {
	if testCaseID == "" {
		return nil, nil, apperror.NewBadRequest("testCaseId is required")
	}
	tc, err := h.svc.cases.Get(c.Request().Context(), testCaseID)
	if err != nil {
		return nil, nil, err
	}
	user, err := auth.RequireProject(c, tc.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return tc, user, nil
}

// Get GET /api/automation-config?testCaseId=&framework=
// Without framework, every config of the test case is returned.
func (h *Handler) Get(c echo.Context) error {
	tc, _, err := h.authorizeCase(c, c.QueryParam("testCaseId"))
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	if framework := c.QueryParam("framework"); framework != "" {
		cfg, err := h.svc.Active(ctx, tc.ID, framework)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, cfg)
	}
	configs, err := h.svc.List(ctx, tc.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, configs)
}

// Save POST /api/automation-config stores a hand-edited script.
func (h *Handler) Save(c echo.Context) error {
	var body struct {
		TestCaseID string `json:"testCaseId"`
		Framework  string `json:"framework"`
		Parameters string `json:"parameters"`
	}
	if err := c.Bind(&body); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	tc, _, err := h.authorizeCase(c, body.TestCaseID)
	if err != nil {
		return err
	}
	cfg, err := h.svc.Upsert(c.Request().Context(), tc.ID, body.Framework, body.Parameters)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cfg)
}

// Generate POST /api/automation-config/generate streams a generated script.
func (h *Handler) Generate(c echo.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	ctx := c.Request().Context()

	tc, err := h.svc.PrepareGenerate(ctx, req)
	if err != nil {
		return err
	}
	if _, err := auth.RequireProject(c, tc.ProjectID); err != nil {
		return err
	}

	ui := sse.NewUIStream(sse.NewWriter(c.Response()))
	if err := ui.Start(uuid.NewString()); err != nil {
		return err
	}
	defer ui.Finish()

	if _, err := h.svc.Generate(ctx, tc, req, ui, func(chunk string) { _ = ui.TextDelta(chunk) }); err != nil {
		_ = ui.Error(err.Error())
	}
	return nil
}

// Execute POST /api/automation-config/execute runs the active script and
// streams the report.
func (h *Handler) Execute(c echo.Context) error {
	var req ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	ctx := c.Request().Context()

	tc, cfg, err := h.svc.PrepareExecute(ctx, req)
	if err != nil {
		return err
	}
	user, err := auth.RequireProject(c, tc.ProjectID)
	if err != nil {
		return err
	}

	ui := sse.NewUIStream(sse.NewWriter(c.Response()))
	if err := ui.Start(uuid.NewString()); err != nil {
		return err
	}
	defer ui.Finish()

	callID := uuid.NewString()
	_ = ui.ToolInput(callID, "executeAutomation", req)
	exec, err := h.svc.Execute(ctx, user.ID, tc, cfg, ui)
	if err != nil {
		_ = ui.ToolError(callID, err.Error())
		return nil
	}
	_ = ui.ToolOutput(callID, exec)
	return nil
}

// Runs GET /api/automation-config/runs?testCaseId=&limit=
func (h *Handler) Runs(c echo.Context) error {
	tc, _, err := h.authorizeCase(c, c.QueryParam("testCaseId"))
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	runs, err := h.svc.Runs(c.Request().Context(), tc.ID, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, runs)
}

// GetRun GET /api/automation-config/runs/:id
func (h *Handler) GetRun(c echo.Context) error {
	run, err := h.svc.GetRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if _, _, err := h.authorizeCase(c, run.TestCaseID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, run)
}
