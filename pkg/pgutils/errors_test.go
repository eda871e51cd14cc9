package pgutils

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/testmind/pkg/apperror"
)

func TestHasCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{"nil error", nil, CodeUniqueViolation, false},
		{"typed pg error", &pgconn.PgError{Code: "23505"}, CodeUniqueViolation, true},
		{"wrapped typed pg error", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"}), CodeForeignKeyViolation, true},
		{"typed pg error other code", &pgconn.PgError{Code: "23503"}, CodeUniqueViolation, false},
		{"sqlstate in text", errors.New("duplicate key value (SQLSTATE 23505)"), CodeUniqueViolation, true},
		{"unrelated", errors.New("connection reset"), CodeUniqueViolation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasCode(tt.err, tt.code))
		})
	}
}

func TestToAppError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"no rows", sql.ErrNoRows, http.StatusNotFound, "not_found"},
		{"wrapped no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), http.StatusNotFound, "not_found"},
		{"unique", &pgconn.PgError{Code: CodeUniqueViolation}, http.StatusConflict, "conflict"},
		{"foreign key", &pgconn.PgError{Code: CodeForeignKeyViolation}, http.StatusBadRequest, "bad_request"},
		{"not null", &pgconn.PgError{Code: CodeNotNullViolation}, http.StatusBadRequest, "bad_request"},
		{"other", errors.New("timeout"), http.StatusInternalServerError, "database_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ToAppError(tt.err, "test case", "tc-1")
			appErr, ok := apperror.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, appErr.HTTPStatus)
			assert.Equal(t, tt.wantCode, appErr.Code)
		})
	}

	assert.NoError(t, ToAppError(nil, "test case", "tc-1"))
}
