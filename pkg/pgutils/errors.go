package pgutils

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/emergent-company/testmind/pkg/apperror"
)

// PostgreSQL error codes
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeNotNullViolation    = "23502"
)

func IsUniqueViolation(err error) bool {
	return hasCode(err, CodeUniqueViolation)
}

func IsForeignKeyViolation(err error) bool {
	return hasCode(err, CodeForeignKeyViolation)
}

func IsNotNullViolation(err error) bool {
	return hasCode(err, CodeNotNullViolation)
}

// hasCode prefers the typed pgx error and falls back to the message text,
// which is all that survives when the error crossed database/sql.
func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return strings.Contains(err.Error(), code)
}

// ToAppError maps a repository error to the matching application error.
func ToAppError(err error, resource, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return apperror.NewNotFound(resource, id)
	case IsUniqueViolation(err):
		return apperror.NewConflict(resource + " already exists").WithInternal(err)
	case IsForeignKeyViolation(err):
		return apperror.NewBadRequest(resource + " references a missing record").WithInternal(err)
	case IsNotNullViolation(err):
		return apperror.NewBadRequest(resource + " is missing a required field").WithInternal(err)
	default:
		return apperror.ErrDatabase.WithInternal(err)
	}
}
