package datasets

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/emergent-company/testmind/domain/testcases"
	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/auth"
)

// TestCaseGetter resolves the test case that owns a dataset.
type TestCaseGetter interface {
	Get(ctx context.Context, id string) (*testcases.TestCase, error)
}

type Handler struct {
	svc   *Service
	cases TestCaseGetter
}

func NewHandler(svc *Service, cases TestCaseGetter) *Handler {
	return &Handler{svc: svc, cases: cases}
}

func (h *Handler) authorize(c echo.Context, testCaseID string) error {
	if testCaseID == "" {
		return apperror.NewBadRequest("testCaseId is required")
	}
	tc, err := h.cases.Get(c.Request().Context(), testCaseID)
	if err != nil {
		return err
	}
	_, err = auth.RequireProject(c, tc.ProjectID)
	return err
}

// Get GET /api/dataset?testCaseId=
func (h *Handler) Get(c echo.Context) error {
	testCaseID := c.QueryParam("testCaseId")
	if err := h.authorize(c, testCaseID); err != nil {
		return err
	}
	d, err := h.svc.Get(c.Request().Context(), testCaseID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

// Upsert PUT /api/dataset
func (h *Handler) Upsert(c echo.Context) error {
	var req UpsertRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := h.authorize(c, req.TestCaseID); err != nil {
		return err
	}
	d, err := h.svc.Upsert(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

// Delete DELETE /api/dataset?testCaseId=
func (h *Handler) Delete(c echo.Context) error {
	testCaseID := c.QueryParam("testCaseId")
	if err := h.authorize(c, testCaseID); err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), testCaseID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
