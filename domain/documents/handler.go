package documents

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/auth"
)

type Handler struct {
	svc  *Service
	refs ChatRefs
}

func NewHandler(svc *Service, refs ChatRefs) *Handler {
	return &Handler{svc: svc, refs: refs}
}

// authorize checks that the user may read d. Project documents follow
// project access; documents without a project belong to their creator.
func authorize(c echo.Context, d *Document) error {
	if d.ProjectID != "" {
		_, err := auth.RequireProject(c, d.ProjectID)
		return err
	}
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}
	if d.CreatedBy != user.ID {
		return apperror.NewNotFound("Document", d.ID)
	}
	return nil
}

func (h *Handler) load(c echo.Context) (*Document, error) {
	d, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if err := authorize(c, d); err != nil {
		return nil, err
	}
	return d, nil
}

// List GET /api/document?projectId=&kind=&limit= or ?chatId=
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()

	if chatID := c.QueryParam("chatId"); chatID != "" {
		user := auth.GetUser(c)
		if user == nil {
			return apperror.ErrUnauthorized
		}
		docs, err := h.svc.ListForChat(ctx, h.refs, user.ID, chatID)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, docs)
	}

	projectID := c.QueryParam("projectId")
	if projectID == "" {
		return apperror.NewBadRequest("projectId or chatId is required")
	}
	if _, err := auth.RequireProject(c, projectID); err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	docs, err := h.svc.List(ctx, ListParams{ProjectID: projectID, Kind: c.QueryParam("kind"), Limit: limit})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, docs)
}

// Get GET /api/document/:id
func (h *Handler) Get(c echo.Context) error {
	d, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

// Update PUT /api/document/:id
func (h *Handler) Update(c echo.Context) error {
	d, err := h.load(c)
	if err != nil {
		return err
	}
	var body struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := c.Bind(&body); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	updated, err := h.svc.Update(c.Request().Context(), d.ID, body.Title, body.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

// Delete DELETE /api/document/:id
func (h *Handler) Delete(c echo.Context) error {
	d, err := h.load(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), d.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Report GET /api/document/:id/report serves a stored HTML report.
func (h *Handler) Report(c echo.Context) error {
	d, err := h.load(c)
	if err != nil {
		return err
	}
	data, err := h.svc.Report(c.Request().Context(), d)
	if err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, data)
}
