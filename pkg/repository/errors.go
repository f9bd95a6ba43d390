package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
)

// MapError translates database errors to domain errors.
// sql.ErrNoRows becomes notFoundErr and a unique violation becomes
// duplicateErr. Other errors are returned unchanged.
func MapError(err error, notFoundErr, duplicateErr error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr
	}

	if pgCode(err) == pgUniqueViolation {
		return duplicateErr
	}

	return err
}

// IsUniqueViolation reports whether err is a unique violation on the named
// constraint. An empty constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// IsSerializationFailure reports whether err is a retryable serialization failure.
func IsSerializationFailure(err error) bool {
	return pgCode(err) == pgSerializationFailure
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
