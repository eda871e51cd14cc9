package testcases

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/auth"
)

// Handler handles HTTP requests for test cases
type Handler struct {
	svc      *Service
	importer *Importer
}

func NewHandler(svc *Service, importer *Importer) *Handler {
	return &Handler{svc: svc, importer: importer}
}

// load fetches the test case named by :id and checks project access.
func (h *Handler) load(c echo.Context) (*TestCase, *auth.AuthUser, error) {
	tc, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, nil, err
	}
	user, err := auth.RequireProject(c, tc.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return tc, user, nil
}

// List GET /api/test-case?projectId=&folderId=&q=&status=&limit=
func (h *Handler) List(c echo.Context) error {
	projectID := c.QueryParam("projectId")
	if projectID == "" {
		return apperror.NewBadRequest("projectId is required")
	}
	if _, err := auth.RequireProject(c, projectID); err != nil {
		return err
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	cases, err := h.svc.List(c.Request().Context(), ListFilter{
		ProjectID: projectID,
		FolderID:  c.QueryParam("folderId"),
		Query:     c.QueryParam("q"),
		Status:    c.QueryParam("status"),
		Limit:     limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cases)
}

// Create POST /api/test-case
func (h *Handler) Create(c echo.Context) error {
	var req CreateTestCaseRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	user, err := auth.RequireProject(c, req.ProjectID)
	if err != nil {
		return err
	}

	tc, err := h.svc.Create(c.Request().Context(), user.ID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, tc)
}

// Get GET /api/test-case/:id
func (h *Handler) Get(c echo.Context) error {
	tc, _, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tc)
}

// Update PUT /api/test-case/:id
func (h *Handler) Update(c echo.Context) error {
	tc, user, err := h.load(c)
	if err != nil {
		return err
	}
	var req UpdateTestCaseRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	updated, err := h.svc.Update(c.Request().Context(), user.ID, tc.ID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

// Delete DELETE /api/test-case/:id
func (h *Handler) Delete(c echo.Context) error {
	tc, _, err := h.load(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), tc.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ReplaceSteps PUT /api/test-case/:id/steps
func (h *Handler) ReplaceSteps(c echo.Context) error {
	tc, _, err := h.load(c)
	if err != nil {
		return err
	}
	var body struct {
		Steps []StepInput `json:"steps"`
	}
	if err := c.Bind(&body); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	steps, err := h.svc.ReplaceSteps(c.Request().Context(), tc.ID, body.Steps)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, steps)
}

// ListComments GET /api/test-case/:id/comments
func (h *Handler) ListComments(c echo.Context) error {
	tc, _, err := h.load(c)
	if err != nil {
		return err
	}
	comments, err := h.svc.ListComments(c.Request().Context(), tc.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, comments)
}

// AddComment POST /api/test-case/:id/comments
func (h *Handler) AddComment(c echo.Context) error {
	tc, user, err := h.load(c)
	if err != nil {
		return err
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&body); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	comment, err := h.svc.AddComment(c.Request().Context(), user.ID, tc.ID, body.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, comment)
}

// Import POST /api/test-case/import (multipart: file, projectId, parentFolderId)
func (h *Handler) Import(c echo.Context) error {
	projectID := c.FormValue("projectId")
	if projectID == "" {
		return apperror.NewBadRequest("projectId is required")
	}
	user, err := auth.RequireProject(c, projectID)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return apperror.NewBadRequest("file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return apperror.NewBadRequest("cannot read uploaded file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return apperror.NewBadRequest("cannot read uploaded file")
	}

	result, err := h.importer.Import(c.Request().Context(), ImportRequest{
		ProjectID:      projectID,
		ParentFolderID: c.FormValue("parentFolderId"),
		Filename:       fh.Filename,
		Data:           data,
		UserID:         user.ID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"results": result})
}

// Export GET /api/test-case/export?projectId=&locale=
func (h *Handler) Export(c echo.Context) error {
	projectID := c.QueryParam("projectId")
	if projectID == "" {
		return apperror.NewBadRequest("projectId is required")
	}
	if _, err := auth.RequireProject(c, projectID); err != nil {
		return err
	}

	data, err := h.importer.Export(c.Request().Context(), projectID, c.QueryParam("locale"))
	if err != nil {
		return err
	}
	name := fmt.Sprintf("test-cases-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	return attachment(c, name, data)
}

// Template GET /api/test-case/template?locale=
func (h *Handler) Template(c echo.Context) error {
	locale := c.QueryParam("locale")
	data, err := h.importer.Template(locale)
	if err != nil {
		return err
	}
	return attachment(c, "test-case-template-"+layoutFor(locale).Locale+".xlsx", data)
}

func attachment(c echo.Context, filename string, data []byte) error {
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s", filename, url.PathEscape(filename)))
	return c.Blob(http.StatusOK, xlsxContentType, data)
}
