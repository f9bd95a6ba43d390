package submissions

import (
	"errors"
	"net/http"
)

// Error is a workflow failure with a stable machine-readable code.
// Wrap it with fmt.Errorf("%w: ...") to add detail; errors.Is still matches.
type Error struct {
	code string
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Code returns the machine-readable error code.
func (e *Error) Code() string { return e.code }

var (
	ErrNotFound               = &Error{"NOT_FOUND", "submission not found"}
	ErrInvalidState           = &Error{"INVALID_STATE", "operation not allowed in current status"}
	ErrInvalidReviewerSet     = &Error{"INVALID_REVIEWER_SET", "invalid reviewer set"}
	ErrNotAReviewer           = &Error{"NOT_A_REVIEWER", "not a reviewer of this submission"}
	ErrAlreadyVoted           = &Error{"ALREADY_VOTED", "already decided in this round"}
	ErrCommentRequired        = &Error{"COMMENT_REQUIRED", "comment required when requesting edits"}
	ErrNotApproved            = &Error{"NOT_APPROVED", "submission is not approved for booking"}
	ErrConcurrentModification = &Error{"CONCURRENT_MODIFICATION", "submission changed concurrently, retry"}
	ErrExternalWriteFailed    = &Error{"EXTERNAL_WRITE_FAILED", "ledger write failed, submission remains approved"}
	ErrForbidden              = &Error{"FORBIDDEN", "not permitted for this user"}
	ErrNoChanges              = &Error{"NO_CHANGES", "no changes detected"}
	ErrInvalidInput           = &Error{"INVALID_INPUT", "invalid input"}
)

// ErrVersionConflict is returned by a Store when a commit's expected version
// is stale. Mutate retries on it and never surfaces it to callers.
var ErrVersionConflict = errors.New("submission version conflict")

// MapHTTPStatus maps workflow errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrAlreadyVoted),
		errors.Is(err, ErrNotApproved):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidReviewerSet),
		errors.Is(err, ErrCommentRequired),
		errors.Is(err, ErrNoChanges),
		errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotAReviewer), errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConcurrentModification):
		return http.StatusPreconditionFailed
	case errors.Is(err, ErrExternalWriteFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
