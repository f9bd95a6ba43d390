package approvals

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/einstalek/invoice-ai/internal/roster"
	"github.com/einstalek/invoice-ai/internal/submissions"
)

// Exportable reports whether s is in a state that may be booked.
func Exportable(s *submissions.Submission) bool {
	return s.Status == submissions.Approved
}

func checkDecide(s *submissions.Submission, reviewer uuid.UUID, now time.Time, claimTTL time.Duration) error {
	if !s.IsReviewer(reviewer) {
		return submissions.ErrNotAReviewer
	}
	if _, voted := s.Vote(reviewer); voted {
		return fmt.Errorf("%w: round %d", submissions.ErrAlreadyVoted, s.Round)
	}
	if s.Status != submissions.PendingReview && s.Status != submissions.Approved {
		return fmt.Errorf("%w: cannot decide while %s", submissions.ErrInvalidState, s.Status)
	}
	if s.ClaimLive(now, claimTTL) {
		return fmt.Errorf("%w: booking in progress", submissions.ErrInvalidState)
	}
	return nil
}

func checkSubmitter(s *submissions.Submission, actor uuid.UUID) error {
	if s.SubmitterID != actor {
		return fmt.Errorf("%w: only the submitter may do this", submissions.ErrForbidden)
	}
	return nil
}

func checkResubmit(s *submissions.Submission, actor uuid.UUID) error {
	if err := checkSubmitter(s, actor); err != nil {
		return err
	}
	if s.Status != submissions.ChangesRequested {
		return fmt.Errorf("%w: cannot resubmit while %s", submissions.ErrInvalidState, s.Status)
	}
	return nil
}

func checkCompleteManually(s *submissions.Submission, actor uuid.UUID) error {
	if err := checkSubmitter(s, actor); err != nil {
		return err
	}
	if s.Status != submissions.ExtractionFailed {
		return fmt.Errorf("%w: cannot complete manually while %s", submissions.ErrInvalidState, s.Status)
	}
	return nil
}

func checkCancel(s *submissions.Submission, actor uuid.UUID, now time.Time, claimTTL time.Duration) error {
	if err := checkSubmitter(s, actor); err != nil {
		return err
	}
	if s.Status.Terminal() {
		return fmt.Errorf("%w: submission is %s", submissions.ErrInvalidState, s.Status)
	}
	if s.ClaimLive(now, claimTTL) {
		return fmt.Errorf("%w: booking in progress", submissions.ErrInvalidState)
	}
	return nil
}

// CheckExport reports whether actor may book s at now. A live booking claim
// counts as not approved.
func CheckExport(s *submissions.Submission, snap roster.Snapshot, actor uuid.UUID, now time.Time, claimTTL time.Duration) error {
	if !snap.CanExport(actor) {
		return fmt.Errorf("%w: export permission required", submissions.ErrForbidden)
	}
	if !Exportable(s) || s.ClaimLive(now, claimTTL) {
		return fmt.Errorf("%w: submission is %s", submissions.ErrNotApproved, s.Status)
	}
	return nil
}
