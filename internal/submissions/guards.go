package submissions

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/einstalek/invoice-ai/internal/roster"
)

// CheckView reports whether viewer may read s: its submitter or any
// member of its organization.
func CheckView(s *Submission, snap roster.Snapshot, viewer uuid.UUID) error {
	if s.SubmitterID == viewer {
		return nil
	}
	if _, member := snap.Member(viewer); !member {
		return fmt.Errorf("%w: not a member of the submission's organization", ErrForbidden)
	}
	return nil
}

// CheckEdit reports whether actor may edit the fields of s.
func CheckEdit(s *Submission, snap roster.Snapshot, actor uuid.UUID) error {
	if s.SubmitterID != actor && !snap.IsAdmin(actor) {
		return fmt.Errorf("%w: only the submitter or an admin may edit fields", ErrForbidden)
	}
	if s.Status != PendingReview && s.Status != ExtractionFailed {
		return fmt.Errorf("%w: cannot edit fields while %s", ErrInvalidState, s.Status)
	}
	return nil
}

// CheckAssign reports whether actor may add reviewers to s at now.
func CheckAssign(s *Submission, snap roster.Snapshot, actor uuid.UUID, now time.Time, claimTTL time.Duration) error {
	if !snap.IsAdmin(actor) {
		return fmt.Errorf("%w: only an organization admin may add reviewers", ErrForbidden)
	}
	if s.Status != PendingReview && s.Status != Approved {
		return fmt.Errorf("%w: cannot add reviewers while %s", ErrInvalidState, s.Status)
	}
	if s.ClaimLive(now, claimTTL) {
		return fmt.Errorf("%w: booking in progress", ErrInvalidState)
	}
	return nil
}
