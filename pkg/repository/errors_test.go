package repository_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/einstalek/invoice-ai/pkg/repository"
)

var (
	errNotFound  = errors.New("not found")
	errDuplicate = errors.New("duplicate")
)

func TestMapError(t *testing.T) {
	other := errors.New("some other error")
	fk := &pgconn.PgError{Code: "23503"}

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, errNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), errNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, errDuplicate},
		{"passthrough", other, other},
		{"foreign key passthrough", fk, fk},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := repository.MapError(tt.in, errNotFound, errDuplicate)
			if got != tt.want {
				t.Errorf("MapError(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert approval: %w", &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "approvals_one_per_round",
	})

	if !repository.IsUniqueViolation(err, "approvals_one_per_round") {
		t.Error("expected match on named constraint")
	}
	if !repository.IsUniqueViolation(err, "") {
		t.Error("expected match with empty constraint")
	}
	if repository.IsUniqueViolation(err, "submissions_pkey") {
		t.Error("unexpected match on other constraint")
	}
	if repository.IsUniqueViolation(errors.New("plain"), "") {
		t.Error("plain error is not a unique violation")
	}
}

func TestIsSerializationFailure(t *testing.T) {
	if !repository.IsSerializationFailure(&pgconn.PgError{Code: "40001"}) {
		t.Error("expected 40001 to be a serialization failure")
	}
	if repository.IsSerializationFailure(&pgconn.PgError{Code: "23505"}) {
		t.Error("23505 is not a serialization failure")
	}
}
