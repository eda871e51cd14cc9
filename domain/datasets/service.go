package datasets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/logger"
)

const MaxRows = 1000

type Service struct {
	store Store
	log   *slog.Logger
}

func NewService(store Store, log *slog.Logger) *Service {
	return &Service{store: store, log: log.With(logger.Scope("datasets.svc"))}
}

// Get returns the dataset of a test case, or 404 when it has none.
func (s *Service) Get(ctx context.Context, testCaseID string) (*Dataset, error) {
	d, err := s.store.GetByTestCase(ctx, testCaseID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, apperror.NewNotFound("Dataset", testCaseID)
	}
	return d, nil
}

// Upsert validates the columns and rows, then replaces the test case's
// dataset or creates one.
func (s *Service) Upsert(ctx context.Context, req UpsertRequest) (*Dataset, error) {
	if req.TestCaseID == "" {
		return nil, apperror.NewBadRequest("testCaseId is required")
	}
	columns, rows, err := Normalize(req.Columns, req.Data)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetByTestCase(ctx, req.TestCaseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		existing.Name = strings.TrimSpace(req.Name)
		existing.Columns = columns
		existing.Data = rows
		existing.UpdatedAt = time.Now()
		if err := s.store.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	d := &Dataset{
		ID:         uuid.NewString(),
		TestCaseID: req.TestCaseID,
		Name:       strings.TrimSpace(req.Name),
		Columns:    columns,
		Data:       rows,
	}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, err
	}
	s.log.Debug("dataset created", slog.String("testCaseID", d.TestCaseID), slog.Int("rows", len(rows)))
	return d, nil
}

func (s *Service) Delete(ctx context.Context, testCaseID string) error {
	ok, err := s.store.DeleteByTestCase(ctx, testCaseID)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NewNotFound("Dataset", testCaseID)
	}
	return nil
}

// Normalize checks columns and rows and returns them after a JSON round
// trip, so stored values are exactly what a client reads back. Every row key
// must name a column and every value must match the column type.
func Normalize(columns []Column, data []map[string]any) ([]Column, []map[string]any, error) {
	if len(data) > MaxRows {
		return nil, nil, apperror.NewBadRequest(fmt.Sprintf("dataset exceeds %d rows", MaxRows))
	}

	types := make(map[string]string, len(columns))
	out := make([]Column, 0, len(columns))
	for i, c := range columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, nil, apperror.NewBadRequest(fmt.Sprintf("column %d: name is required", i+1))
		}
		if _, dup := types[name]; dup {
			return nil, nil, apperror.NewBadRequest(fmt.Sprintf("duplicate column %q", name))
		}
		typ := strings.ToLower(strings.TrimSpace(c.Type))
		if typ == "" {
			typ = "string"
		}
		if !slices.Contains(ColumnTypes, typ) {
			return nil, nil, apperror.NewBadRequest(fmt.Sprintf("column %q: invalid type %q", name, c.Type))
		}
		types[name] = typ
		out = append(out, Column{Name: name, Type: typ})
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, nil, apperror.NewBadRequest("data is not valid JSON")
	}
	rows := []map[string]any{}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, nil, apperror.NewBadRequest("data must be an array of objects")
	}
	if rows == nil {
		rows = []map[string]any{}
	}

	for i, row := range rows {
		if row == nil {
			return nil, nil, apperror.NewBadRequest(fmt.Sprintf("row %d: must be an object", i+1))
		}
		for key, v := range row {
			typ, ok := types[key]
			if !ok {
				return nil, nil, apperror.NewBadRequest(fmt.Sprintf("row %d: unknown column %q", i+1, key))
			}
			if !matchesType(typ, v) {
				return nil, nil, apperror.NewBadRequest(fmt.Sprintf("row %d: column %q expects %s", i+1, key, typ))
			}
		}
	}
	return out, rows, nil
}

func matchesType(typ string, v any) bool {
	if v == nil {
		return true
	}
	switch typ {
	case "number":
		_, ok := v.(float64)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	default:
		_, ok := v.(string)
		return ok
	}
}
