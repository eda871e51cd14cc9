package dashboard

import (
	"context"
	"log/slog"

	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/logger"
)

type Service struct {
	store Store
	log   *slog.Logger
}

func NewService(store Store, log *slog.Logger) *Service {
	return &Service{store: store, log: log.With(logger.Scope("dashboard.svc"))}
}

// Get returns the dashboard of projectID.
func (s *Service) Get(ctx context.Context, projectID string) (*Dashboard, error) {
	if projectID == "" {
		return nil, apperror.NewBadRequest("projectId is required")
	}
	counts, err := s.store.Counts(ctx, projectID)
	if err != nil {
		s.log.Error("failed to load dashboard counts", slog.String("projectID", projectID), logger.Error(err))
		return nil, apperror.ErrInternal.WithInternal(err)
	}
	return Summarize(projectID, counts), nil
}
