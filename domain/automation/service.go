package automation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emergent-company/testmind/domain/documents"
	"github.com/emergent-company/testmind/domain/testcases"
	"github.com/emergent-company/testmind/internal/config"
	"github.com/emergent-company/testmind/pkg/adk"
	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/logger"
)

// TestCaseSource loads a test case with its steps.
type TestCaseSource interface {
	Get(ctx context.Context, id string) (*testcases.TestCase, error)
}

// ReportStore keeps run reports as documents.
type ReportStore interface {
	Create(ctx context.Context, userID string, req documents.CreateRequest) (*documents.Document, error)
	StoreReport(ctx context.Context, projectID, name string, html []byte) (string, error)
}

// ModelResolver resolves the model used for script generation.
type ModelResolver interface {
	Resolve(ctx context.Context, requested string, usage config.UsageType) (*adk.Resolution, error)
}

// Service manages automation configs and their runs.
type Service struct {
	store    Store
	cases    TestCaseSource
	reports  ReportStore
	runner   Runner
	resolver ModelResolver
	cfg      *config.Config
	log      *slog.Logger

	// locks serializes upserts per (test case, framework).
	locks sync.Map
}

func NewService(
	store Store,
	cases TestCaseSource,
	reports ReportStore,
	runner Runner,
	resolver ModelResolver,
	cfg *config.Config,
	log *slog.Logger,
) *Service {
	return &Service{
		store:    store,
		cases:    cases,
		reports:  reports,
		runner:   runner,
		resolver: resolver,
		cfg:      cfg,
		log:      log.With(logger.Scope("automation.svc")),
	}
}

func validateFramework(framework string) error {
	if !ValidFramework(framework) {
		return apperror.NewBadRequest(fmt.Sprintf("invalid framework %q", framework)).
			WithDetails(map[string]any{"allowed": Frameworks})
	}
	return nil
}

func (s *Service) lock(testCaseID, framework string) func() {
	v, _ := s.locks.LoadOrStore(testCaseID+"\x00"+framework, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Upsert stores parameters as the active config of (testCaseID, framework):
// the active config is updated in place when one exists, otherwise a new
// one is inserted.
func (s *Service) Upsert(ctx context.Context, testCaseID, framework, parameters string) (*Config, error) {
	if testCaseID == "" {
		return nil, apperror.NewBadRequest("testCaseId is required")
	}
	if err := validateFramework(framework); err != nil {
		return nil, err
	}

	defer s.lock(testCaseID, framework)()

	existing, err := s.store.FindActive(ctx, testCaseID, framework)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		existing.Parameters = parameters
		existing.UpdatedAt = time.Now()
		if err := s.store.UpdateConfig(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	c := &Config{
		ID:         uuid.NewString(),
		TestCaseID: testCaseID,
		Framework:  framework,
		Parameters: parameters,
		IsActive:   true,
	}
	if err := s.store.CreateConfig(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info("automation config created",
		slog.String("testCaseID", testCaseID),
		slog.String("framework", framework))
	return c, nil
}

// Active returns the active config of (testCaseID, framework) or 404.
func (s *Service) Active(ctx context.Context, testCaseID, framework string) (*Config, error) {
	if err := validateFramework(framework); err != nil {
		return nil, err
	}
	c, err := s.store.FindActive(ctx, testCaseID, framework)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperror.NewNotFound("AutomationConfig", testCaseID+"/"+framework)
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, testCaseID string) ([]Config, error) {
	out, err := s.store.ListConfigs(ctx, testCaseID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Config{}
	}
	return out, nil
}

func (s *Service) Runs(ctx context.Context, testCaseID string, limit int) ([]TestRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	out, err := s.store.ListRuns(ctx, testCaseID, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []TestRun{}
	}
	return out, nil
}

func (s *Service) GetRun(ctx context.Context, id string) (*TestRun, error) {
	return s.store.GetRun(ctx, id)
}

// FailStaleRuns marks runs that have been running since before cutoff as
// failed. It backs the scheduler's stale run sweep.
func (s *Service) FailStaleRuns(ctx context.Context, cutoff time.Time, reason string) (int, error) {
	return s.store.FailStaleRuns(ctx, cutoff, reason)
}

// loadCase loads the test case and validates the framework.
func (s *Service) loadCase(ctx context.Context, testCaseID, framework string) (*testcases.TestCase, error) {
	if testCaseID == "" {
		return nil, apperror.NewBadRequest("testCaseId is required")
	}
	if err := validateFramework(framework); err != nil {
		return nil, err
	}
	return s.cases.Get(ctx, testCaseID)
}
