package roster

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound      = errors.New("organization not found")
	ErrForbidden     = errors.New("organization admin required")
	ErrInvalidPolicy = errors.New("approvals_required must be at least 1")
	ErrIneligible    = errors.New("reviewer not eligible")
)

// MapHTTPStatus maps roster errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidPolicy), errors.Is(err, ErrIneligible):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
