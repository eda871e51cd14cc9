package datasets

import (
	"context"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cols := []Column{{Name: "user"}, {Name: "age", Type: "Number"}, {Name: "admin", Type: "boolean"}}

	tests := []struct {
		name    string
		columns []Column
		data    []map[string]any
		wantErr string
	}{
		{name: "valid", columns: cols, data: []map[string]any{{"user": "ann", "age": 31, "admin": true}, {"user": "bob", "age": nil}}},
		{name: "no rows", columns: cols},
		{name: "blank column", columns: []Column{{Name: " "}}, wantErr: "column 1: name is required"},
		{name: "duplicate column", columns: []Column{{Name: "a"}, {Name: "a"}}, wantErr: "duplicate column"},
		{name: "bad type", columns: []Column{{Name: "a", Type: "date"}}, wantErr: "invalid type"},
		{name: "unknown key", columns: cols, data: []map[string]any{{"email": "x"}}, wantErr: "unknown column \"email\""},
		{name: "type mismatch", columns: cols, data: []map[string]any{{"age": "old"}}, wantErr: "expects number"},
		{name: "not json", columns: []Column{{Name: "a", Type: "number"}}, data: []map[string]any{{"a": math.Inf(1)}}, wantErr: "not valid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotCols, rows, err := Normalize(tt.columns, tt.data)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, rows)
			assert.Len(t, rows, len(tt.data))
			assert.Equal(t, "number", gotCols[1].Type)
			assert.Equal(t, "string", gotCols[0].Type)
		})
	}
}

func TestNormalize_RoundTripsNumbers(t *testing.T) {
	_, rows, err := Normalize([]Column{{Name: "n", Type: "number"}}, []map[string]any{{"n": 7}})
	require.NoError(t, err)
	assert.Equal(t, float64(7), rows[0]["n"])
}

func TestService_UpsertReplaces(t *testing.T) {
	svc := NewService(NewMemoryStore(), slog.Default())
	ctx := context.Background()

	first, err := svc.Upsert(ctx, UpsertRequest{
		TestCaseID: "tc1",
		Columns:    []Column{{Name: "user"}},
		Data:       []map[string]any{{"user": "ann"}},
	})
	require.NoError(t, err)

	second, err := svc.Upsert(ctx, UpsertRequest{
		TestCaseID: "tc1",
		Name:       "logins",
		Columns:    []Column{{Name: "user"}, {Name: "ok", Type: "boolean"}},
		Data:       []map[string]any{{"user": "bob", "ok": false}},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	got, err := svc.Get(ctx, "tc1")
	require.NoError(t, err)
	assert.Equal(t, "logins", got.Name)
	require.Len(t, got.Data, 1)
	assert.Equal(t, "bob", got.Data[0]["user"])

	require.NoError(t, svc.Delete(ctx, "tc1"))
	_, err = svc.Get(ctx, "tc1")
	assert.Error(t, err)
	assert.Error(t, svc.Delete(ctx, "tc1"))
}

func TestService_UpsertRequiresTestCase(t *testing.T) {
	svc := NewService(NewMemoryStore(), slog.Default())
	_, err := svc.Upsert(context.Background(), UpsertRequest{})
	assert.Error(t, err)
}
