package chat

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/emergent-company/testmind/domain/assistant"
	"github.com/emergent-company/testmind/domain/projects"
	"github.com/emergent-company/testmind/domain/testcases"
	"github.com/emergent-company/testmind/internal/config"
	"github.com/emergent-company/testmind/pkg/adk"
	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/auth"
	"github.com/emergent-company/testmind/pkg/logger"
	"github.com/emergent-company/testmind/pkg/sse"
)

const (
	MaxTitleRunes = 80
	MaxTextRunes  = 2000

	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100

	titlePrompt = "Write a short title (at most 80 characters) for a conversation that starts with the message below. " +
		"Reply with the title only, without quotes.\n\n"
)

var fileMediaTypes = []string{"image/jpeg", "image/png"}

// TurnRunner answers one chat turn.
type TurnRunner interface {
	Run(ctx context.Context, req assistant.TurnRequest, ui *sse.UIStream) *assistant.TurnResult
}

// TestCaseReader loads the test case a sidebar chat is bound to.
type TestCaseReader interface {
	Get(ctx context.Context, id string) (*testcases.TestCase, error)
}

// ProjectReader loads the project of a chat.
type ProjectReader interface {
	Get(ctx context.Context, id string) (*projects.Project, error)
}

// ModelResolver resolves the title model.
type ModelResolver interface {
	Resolve(ctx context.Context, requested string, usage config.UsageType) (*adk.Resolution, error)
}

// Service handles chat persistence and turns
type Service struct {
	store    Store
	runner   TurnRunner
	cases    TestCaseReader
	projects ProjectReader
	resolver ModelResolver
	cfg      *config.LLMConfig
	log      *slog.Logger
}

func NewService(store Store, runner TurnRunner, cases TestCaseReader, projects ProjectReader, resolver ModelResolver, cfg *config.Config, log *slog.Logger) *Service {
	return &Service{
		store:    store,
		runner:   runner,
		cases:    cases,
		projects: projects,
		resolver: resolver,
		cfg:      &cfg.LLM,
		log:      log.With(logger.Scope("chat.svc")),
	}
}

// Turn is a validated chat turn whose user message is already stored.
type Turn struct {
	Chat    *Chat
	User    *auth.AuthUser
	Mode    assistant.Mode
	Message Message
	// ReplyID is the id of the assistant message, streamed in the start frame.
	ReplyID string
	Model   string
	Locale  string
	// Created reports whether this turn created the chat.
	Created bool

	history []Message
}

// Validate checks a chat request before anything is streamed. It fills
// defaults for the visibility and the message id.
func Validate(req *PostRequest, mode assistant.Mode) error {
	if _, err := uuid.Parse(req.ID); err != nil {
		return apperror.NewBadRequest("id must be a valid UUID")
	}
	if req.Message.Role != RoleUser {
		return apperror.NewBadRequest("message.role must be user")
	}
	if req.Message.ID == "" {
		req.Message.ID = uuid.NewString()
	} else if _, err := uuid.Parse(req.Message.ID); err != nil {
		return apperror.NewBadRequest("message.id must be a valid UUID")
	}

	switch req.SelectedVisibilityType {
	case "":
		req.SelectedVisibilityType = VisibilityPrivate
	case VisibilityPublic, VisibilityPrivate:
	default:
		return apperror.NewBadRequest(fmt.Sprintf("invalid visibility %q", req.SelectedVisibilityType)).
			WithDetails(map[string]any{"allowed": []string{VisibilityPublic, VisibilityPrivate}})
	}

	if len(req.Message.Parts) == 0 {
		return apperror.NewBadRequest("message.parts is required")
	}
	hasText := false
	for i, p := range req.Message.Parts {
		switch v := p.(type) {
		case TextPart:
			if utf8.RuneCountInString(v.Text) > MaxTextRunes {
				return apperror.NewBadRequest(fmt.Sprintf("message.parts[%d].text exceeds %d characters", i, MaxTextRunes))
			}
			if strings.TrimSpace(v.Text) != "" {
				hasText = true
			}
		case FilePart:
			if v.URL == "" {
				return apperror.NewBadRequest(fmt.Sprintf("message.parts[%d].url is required", i))
			}
			if !slices.Contains(fileMediaTypes, v.MediaType) {
				return apperror.NewBadRequest(fmt.Sprintf("message.parts[%d].mediaType %q is not supported", i, v.MediaType)).
					WithDetails(map[string]any{"allowed": fileMediaTypes})
			}
		default:
			return apperror.NewBadRequest(fmt.Sprintf("message.parts[%d] of type %s is not accepted from clients", i, p.PartType()))
		}
	}
	if !hasText {
		return apperror.NewBadRequest("message must contain text")
	}

	switch mode {
	case assistant.ModeSidebar:
		if _, err := uuid.Parse(req.TestCaseID); err != nil {
			return apperror.NewBadRequest("testCaseId must be a valid UUID")
		}
	case assistant.ModeChat:
		if req.ProjectID != "" {
			if _, err := uuid.Parse(req.ProjectID); err != nil {
				return apperror.NewBadRequest("projectId must be a valid UUID")
			}
		}
	default:
		return apperror.NewBadRequest(fmt.Sprintf("invalid mode %q", mode))
	}
	return nil
}

func isNotFound(err error) bool {
	appErr, ok := apperror.As(err)
	return ok && appErr.HTTPStatus == http.StatusNotFound
}

// Begin loads or creates the chat of req and stores the user message. req
// must have passed Validate.
func (s *Service) Begin(ctx context.Context, user *auth.AuthUser, req PostRequest, mode assistant.Mode) (*Turn, error) {
	turn := &Turn{
		User:    user,
		Mode:    mode,
		ReplyID: uuid.NewString(),
		Model:   req.SelectedChatModel,
		Locale:  req.Locale,
		Message: Message{
			ID:     req.Message.ID,
			ChatID: req.ID,
			Role:   RoleUser,
			Parts:  req.Message.Parts,
		},
	}

	c, err := s.store.GetChat(ctx, req.ID)
	switch {
	case isNotFound(err):
		if c, err = s.newChat(ctx, user, req, mode, turn.Message.Text()); err != nil {
			return nil, err
		}
		turn.Created = true
	case err != nil:
		return nil, err
	default:
		if err := checkTurnAccess(c, user, req, mode); err != nil {
			return nil, err
		}
		if turn.history, err = s.store.ListMessages(ctx, c.ID); err != nil {
			return nil, err
		}
	}
	turn.Chat = c

	if err := s.store.SaveMessages(ctx, []Message{turn.Message}); err != nil {
		return nil, err
	}
	return turn, nil
}

func (s *Service) newChat(ctx context.Context, user *auth.AuthUser, req PostRequest, mode assistant.Mode, text string) (*Chat, error) {
	c := &Chat{
		ID:         req.ID,
		UserID:     user.ID,
		Visibility: req.SelectedVisibilityType,
	}

	projectID := req.ProjectID
	if mode == assistant.ModeSidebar {
		tc, err := s.cases.Get(ctx, req.TestCaseID)
		if err != nil {
			return nil, err
		}
		if projectID != "" && projectID != tc.ProjectID {
			return nil, apperror.NewBadRequest("test case belongs to another project")
		}
		projectID = tc.ProjectID
		c.TestCaseID = &tc.ID
	}
	if projectID != "" {
		if !user.CanAccess(projectID) {
			return nil, apperror.NewForbidden("no access to project " + projectID)
		}
		c.ProjectID = &projectID
	}

	c.Title = s.Title(ctx, text)
	if err := s.store.CreateChat(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info("chat created",
		slog.String("chatID", c.ID),
		slog.String("userID", user.ID),
		slog.String("mode", string(mode)))
	return c, nil
}

// checkTurnAccess rejects turns on chats of other users and turns that
// change the chat's binding.
func checkTurnAccess(c *Chat, user *auth.AuthUser, req PostRequest, mode assistant.Mode) error {
	if c.UserID != user.ID {
		return apperror.NewForbidden("chat belongs to another user")
	}
	if c.ProjectID != nil && !user.CanAccess(*c.ProjectID) {
		return apperror.NewForbidden("no access to project " + *c.ProjectID)
	}
	switch mode {
	case assistant.ModeSidebar:
		if c.TestCaseID == nil || *c.TestCaseID != req.TestCaseID {
			return apperror.NewBadRequest("chat is not bound to test case " + req.TestCaseID)
		}
	default:
		if c.TestCaseID != nil {
			return apperror.NewBadRequest("chat is bound to a test case; use /api/testcase-chat")
		}
	}
	return nil
}

// Title names a chat after its first message using the title model. It
// falls back to the message itself, truncated.
func (s *Service) Title(ctx context.Context, text string) string {
	fallback := truncateRunes(firstLine(text), MaxTitleRunes)

	res, err := s.resolver.Resolve(ctx, "", config.UsageTitle)
	if err != nil {
		s.log.Warn("title model unavailable", logger.Error(err))
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	title, err := adk.GenerateText(ctx, res.LLM, titlePrompt+text, adk.GenerateConfig(s.cfg))
	if err != nil {
		s.log.Warn("title generation failed", logger.Error(err), slog.String("model", res.Model))
		return fallback
	}
	title = strings.Trim(firstLine(title), " \t\"'`")
	if title == "" {
		return fallback
	}
	return truncateRunes(title, MaxTitleRunes)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Respond runs the turn against the assistant, streaming to ui, and stores
// the assistant message. Output produced before a failure or a client abort
// is stored too. ui is not finished.
func (s *Service) Respond(ctx context.Context, turn *Turn, ui *sse.UIStream) *assistant.TurnResult {
	scope := &assistant.Scope{Mode: turn.Mode, User: turn.User}
	if turn.Chat.ProjectID != nil {
		scope.ProjectID = *turn.Chat.ProjectID
	}
	if turn.Chat.TestCaseID != nil {
		scope.TestCaseID = *turn.Chat.TestCaseID
	}

	system, err := s.systemPrompt(ctx, turn, scope)
	if err != nil {
		s.log.Error("failed to build system prompt", logger.Error(err), slog.String("chatID", turn.Chat.ID))
		_ = ui.Error(err.Error())
		return &assistant.TurnResult{Err: err}
	}

	history := make([]assistant.HistoryEntry, 0, len(turn.history))
	for _, m := range turn.history {
		history = append(history, assistant.HistoryEntry{Role: m.Role, Text: m.Text()})
	}

	result := s.runner.Run(ctx, assistant.TurnRequest{
		Scope:   scope,
		System:  system,
		Message: turn.Message.Text(),
		History: history,
		Model:   turn.Model,
	}, ui)

	if err := s.saveReply(context.WithoutCancel(ctx), turn, result); err != nil {
		s.log.Error("failed to save assistant message", logger.Error(err), slog.String("chatID", turn.Chat.ID))
	}
	return result
}

func (s *Service) systemPrompt(ctx context.Context, turn *Turn, scope *assistant.Scope) (string, error) {
	in := assistant.PromptInput{Mode: turn.Mode, Locale: turn.Locale}
	if scope.ProjectID != "" {
		p, err := s.projects.Get(ctx, scope.ProjectID)
		if err != nil {
			return "", err
		}
		in.Project = p
	}
	if scope.TestCaseID != "" {
		tc, err := s.cases.Get(ctx, scope.TestCaseID)
		if err != nil {
			return "", err
		}
		in.TestCase = tc
	}
	return assistant.BuildSystemPrompt(in)
}

// ReplyParts converts a turn result into message parts: tool invocations
// in call order, then the text.
func ReplyParts(result *assistant.TurnResult) Parts {
	parts := Parts{}
	for _, call := range result.ToolCalls {
		p := ToolInvocationPart{
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Args:       call.Args,
			Result:     call.Result,
			Error:      call.Error,
			State:      ToolStateResult,
		}
		switch {
		case call.Error != "":
			p.State = ToolStateError
		case call.Result == nil:
			p.State = ToolStateCall
		}
		parts = append(parts, p)
	}
	if strings.TrimSpace(result.Text) != "" {
		parts = append(parts, TextPart{Text: result.Text})
	}
	return parts
}

func (s *Service) saveReply(ctx context.Context, turn *Turn, result *assistant.TurnResult) error {
	parts := ReplyParts(result)
	if len(parts) == 0 {
		return nil
	}
	return s.store.SaveMessages(ctx, []Message{{
		ID:     turn.ReplyID,
		ChatID: turn.Chat.ID,
		Role:   RoleAssistant,
		Parts:  parts,
	}})
}

// readable loads a chat user may read: their own, or a public one.
func (s *Service) readable(ctx context.Context, userID, chatID string) (*Chat, error) {
	if _, err := uuid.Parse(chatID); err != nil {
		return nil, apperror.NewBadRequest("id must be a valid UUID")
	}
	c, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID && c.Visibility != VisibilityPublic {
		return nil, apperror.NewNotFound("Chat", chatID)
	}
	return c, nil
}

// Messages returns the messages of a chat the user may read.
func (s *Service) Messages(ctx context.Context, userID, chatID string) ([]Message, error) {
	if _, err := s.readable(ctx, userID, chatID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, chatID)
}

// History pages the user's chats, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) (*HistoryPage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)

	chats, err := s.store.ListChats(ctx, userID, limit+1)
	if err != nil {
		return nil, err
	}
	page := &HistoryPage{Chats: chats}
	if len(chats) > limit {
		page.Chats = chats[:limit]
		page.HasMore = true
	}
	return page, nil
}

// Delete removes a chat owned by userID. sidebar selects the test case
// chat endpoint, which only deletes chats bound to a test case.
func (s *Service) Delete(ctx context.Context, userID, chatID string, mode assistant.Mode) (*Chat, error) {
	if _, err := uuid.Parse(chatID); err != nil {
		return nil, apperror.NewBadRequest("id must be a valid UUID")
	}
	c, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, apperror.NewForbidden("chat belongs to another user")
	}
	if (mode == assistant.ModeSidebar) != (c.TestCaseID != nil) {
		return nil, apperror.NewNotFound("Chat", chatID)
	}
	if err := s.store.DeleteChat(ctx, chatID); err != nil {
		return nil, err
	}
	s.log.Info("chat deleted", slog.String("chatID", chatID))
	return c, nil
}

// DocumentIDs lists the documents created or updated by the chat's tool
// calls, in first-seen order.
func (s *Service) DocumentIDs(ctx context.Context, userID, chatID string) ([]string, error) {
	msgs, err := s.Messages(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	ids := []string{}
	for _, m := range msgs {
		for _, p := range m.Parts {
			inv, ok := p.(ToolInvocationPart)
			if !ok || inv.Result == nil {
				continue
			}
			id, _ := inv.Result["documentId"].(string)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}
