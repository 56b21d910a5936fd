package services

import (
	"errors"
	"strings"

	"github.com/diewo77/chantierpro/internal/validation"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means a concurrent request changed the document first.
	ErrConflict = errors.New("concurrent modification")
)

// ValidationError carries field-level violations of user input.
type ValidationError struct {
	Fields validation.Violations
}

func (e *ValidationError) Error() string { return e.Fields.Error() }

func invalid(field, code string) error {
	return &ValidationError{Fields: validation.Violations{field: code}}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
