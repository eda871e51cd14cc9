package documents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/emergent-company/testmind/internal/storage"
	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/logger"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// ChatRefs resolves the documents referenced by a chat's messages. It
// fails when userID may not read the chat.
type ChatRefs interface {
	DocumentIDs(ctx context.Context, userID, chatID string) ([]string, error)
}

// Service handles business logic for documents
type Service struct {
	store   Store
	objects storage.ObjectStore
	log     *slog.Logger
}

func NewService(store Store, objects storage.ObjectStore, log *slog.Logger) *Service {
	return &Service{store: store, objects: objects, log: log.With(logger.Scope("documents.svc"))}
}

func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (*Document, error) {
	if !ValidKind(req.Kind) {
		return nil, apperror.NewBadRequest(fmt.Sprintf("invalid document kind %q", req.Kind)).
			WithDetails(map[string]any{"allowed": Kinds})
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperror.NewBadRequest("title is required")
	}

	d := &Document{
		ID:         uuid.NewString(),
		ProjectID:  req.ProjectID,
		Kind:       req.Kind,
		Title:      title,
		Content:    req.Content,
		StorageKey: req.StorageKey,
		CreatedBy:  userID,
	}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, err
	}
	s.log.Debug("document created", slog.String("documentID", d.ID), slog.String("kind", d.Kind))
	return d, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperror.NewBadRequest("id must be a valid UUID")
	}
	return s.store.Get(ctx, id)
}

// Update replaces the content of a document, keeping the title when the
// new one is blank.
func (s *Service) Update(ctx context.Context, id, title, content string) (*Document, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if title = strings.TrimSpace(title); title == "" {
		title = current.Title
	}
	return s.store.UpdateContent(ctx, id, title, content)
}

func (s *Service) List(ctx context.Context, p ListParams) ([]Document, error) {
	if p.ProjectID == "" {
		return nil, apperror.NewBadRequest("projectId is required")
	}
	if p.Kind != "" && !ValidKind(p.Kind) {
		return nil, apperror.NewBadRequest(fmt.Sprintf("invalid document kind %q", p.Kind))
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	p.Limit = min(p.Limit, MaxLimit)

	out, err := s.store.List(ctx, p)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Document{}
	}
	return out, nil
}

// ListForChat returns the documents referenced from the chat's messages.
func (s *Service) ListForChat(ctx context.Context, refs ChatRefs, userID, chatID string) ([]Document, error) {
	ids, err := refs.DocumentIDs(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	out, err := s.store.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Document{}
	}
	return out, nil
}

// Delete removes the document and its stored blob, if any.
func (s *Service) Delete(ctx context.Context, id string) error {
	d, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if d.StorageKey != "" && s.objects != nil && s.objects.Enabled() {
		if err := s.objects.Delete(ctx, d.StorageKey); err != nil {
			s.log.Warn("delete document blob failed", slog.String("key", d.StorageKey), logger.Error(err))
		}
	}
	return nil
}

// StoreReport uploads an HTML report and returns its object key. It returns
// "" when object storage is not configured.
func (s *Service) StoreReport(ctx context.Context, projectID, name string, html []byte) (string, error) {
	if s.objects == nil || !s.objects.Enabled() || len(html) == 0 {
		return "", nil
	}
	key := storage.ObjectKey(projectID, "reports", name+".html")
	if _, err := s.objects.Put(ctx, key, html, "text/html; charset=utf-8"); err != nil {
		return "", fmt.Errorf("upload report: %w", err)
	}
	return key, nil
}

// Report returns the stored blob of a document.
func (s *Service) Report(ctx context.Context, d *Document) ([]byte, error) {
	if d.StorageKey == "" {
		return nil, apperror.NewNotFound("Report", d.ID)
	}
	if s.objects == nil || !s.objects.Enabled() {
		return nil, apperror.ErrNotAvailable.WithMessage("object storage is not configured")
	}
	data, err := s.objects.Get(ctx, d.StorageKey)
	if err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}
	return data, nil
}
