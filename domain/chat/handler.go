package chat

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/emergent-company/testmind/domain/assistant"
	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/auth"
	"github.com/emergent-company/testmind/pkg/logger"
	"github.com/emergent-company/testmind/pkg/sse"
)

// Handler handles HTTP requests for chats
type Handler struct {
	svc     *Service
	limiter *TurnLimiter
	log     *slog.Logger
}

func NewHandler(svc *Service, limiter *TurnLimiter, log *slog.Logger) *Handler {
	return &Handler{svc: svc, limiter: limiter, log: log.With(logger.Scope("chat.handler"))}
}

// Post answers a message in the full assistant
// POST /api/chat
func (h *Handler) Post(c echo.Context) error {
	return h.stream(c, assistant.ModeChat)
}

// PostTestCase answers a message in the sidebar of a test case
// POST /api/testcase-chat
func (h *Handler) PostTestCase(c echo.Context) error {
	return h.stream(c, assistant.ModeSidebar)
}

// stream validates the request, stores the user message and only then
// switches the response to a UI message stream. Errors before that point
// are plain JSON errors.
func (h *Handler) stream(c echo.Context, mode assistant.Mode) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	var req PostRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body").WithInternal(err)
	}
	if err := Validate(&req, mode); err != nil {
		return err
	}
	if !h.limiter.Allow(user.ID) {
		return apperror.ErrRateLimited.WithMessage("too many chat messages, try again shortly")
	}

	ctx := c.Request().Context()
	turn, err := h.svc.Begin(ctx, user, req, mode)
	if err != nil {
		return err
	}

	ui := sse.NewUIStream(sse.NewWriter(c.Response()))
	if err := ui.Start(turn.ReplyID); err != nil {
		return err
	}
	if turn.Created {
		_ = ui.Data("data-chat", map[string]any{"id": turn.Chat.ID, "title": turn.Chat.Title})
	}

	result := h.svc.Respond(ctx, turn, ui)
	if result.Err != nil {
		h.log.Warn("chat turn ended with error",
			logger.Error(result.Err),
			slog.String("chatID", turn.Chat.ID))
	}
	_ = ui.Finish()
	return nil
}

// Delete deletes a chat
// DELETE /api/chat?id=
func (h *Handler) Delete(c echo.Context) error {
	return h.delete(c, assistant.ModeChat)
}

// DeleteTestCase deletes a test case chat
// DELETE /api/testcase-chat?id=
func (h *Handler) DeleteTestCase(c echo.Context) error {
	return h.delete(c, assistant.ModeSidebar)
}

func (h *Handler) delete(c echo.Context, mode assistant.Mode) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}
	id := c.QueryParam("id")
	if id == "" {
		return apperror.NewBadRequest("id is required")
	}

	deleted, err := h.svc.Delete(c.Request().Context(), user.ID, id, mode)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, deleted)
}

// Messages returns the messages of a chat
// GET /api/chat/:id/messages
func (h *Handler) Messages(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}
	msgs, err := h.svc.Messages(c.Request().Context(), user.ID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msgs)
}

// History lists the chats of the user
// GET /api/chat/history?limit=
func (h *Handler) History(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	page, err := h.svc.History(c.Request().Context(), user.ID, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}
