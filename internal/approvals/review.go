package approvals

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/einstalek/invoice-ai/internal/submissions"
)

// ReviewerVote is one assigned reviewer and their current-round decision.
type ReviewerVote struct {
	UserID    uuid.UUID            `json:"user_id"`
	Decision  *submissions.Verdict `json:"decision"`
	Comment   *string              `json:"comment,omitempty"`
	DecidedAt *time.Time           `json:"decided_at,omitempty"`
}

// Counts tallies the current round's decisions.
type Counts struct {
	Total         int `json:"total"`
	Approved      int `json:"approved"`
	EditRequested int `json:"edit_requested"`
	Pending       int `json:"pending"`
}

// Review is the server-computed view of a submission's review for one
// viewer. Clients render the flags as given.
type Review struct {
	SubmissionID      uuid.UUID            `json:"submission_id"`
	Status            submissions.Status   `json:"status"`
	Round             int                  `json:"round"`
	Reviewers         []ReviewerVote       `json:"reviewers"`
	Counts            Counts               `json:"counts"`
	ApprovalsObtained int                  `json:"approvals_obtained"`
	ApprovalsRequired int                  `json:"approvals_required"`
	MyDecision        *submissions.Verdict `json:"my_decision"`
	CanDecide         bool                 `json:"can_decide"`
	CanEdit           bool                 `json:"can_edit"`
	CanResubmit       bool                 `json:"can_resubmit"`
	CanCancel         bool                 `json:"can_cancel"`
	CanAddReviewer    bool                 `json:"can_add_reviewer"`
	CanExport         bool                 `json:"can_export"`
}

func (e *engine) Review(ctx context.Context, id, viewer uuid.UUID) (*Review, error) {
	sub, err := e.subs.Find(ctx, id, viewer)
	if err != nil {
		return nil, err
	}

	snap, err := e.subs.Roster(ctx, sub.OrganizationID)
	if err != nil {
		return nil, err
	}

	now := e.subs.Now()
	ttl := e.claimTTL()

	r := &Review{
		SubmissionID:      sub.ID,
		Status:            sub.Status,
		Round:             sub.Round,
		Reviewers:         make([]ReviewerVote, 0, len(sub.Reviewers)),
		ApprovalsObtained: sub.ApprovalsObtained(),
		ApprovalsRequired: sub.ApprovalsRequired,
		CanDecide:         checkDecide(sub, viewer, now, ttl) == nil,
		CanEdit:           submissions.CheckEdit(sub, snap, viewer) == nil,
		CanResubmit:       checkResubmit(sub, viewer) == nil,
		CanCancel:         checkCancel(sub, viewer, now, ttl) == nil,
		CanAddReviewer:    submissions.CheckAssign(sub, snap, viewer, now, ttl) == nil,
		CanExport:         CheckExport(sub, snap, viewer, now, ttl) == nil,
	}

	for _, rev := range sub.Reviewers {
		vote := ReviewerVote{UserID: rev.UserID}
		r.Counts.Total++

		if a, ok := sub.Vote(rev.UserID); ok {
			vote.Decision = &a.Verdict
			vote.Comment = a.Comment
			vote.DecidedAt = &a.CreatedAt
			switch a.Verdict {
			case submissions.VerdictApproved:
				r.Counts.Approved++
			case submissions.VerdictEditRequested:
				r.Counts.EditRequested++
			}
		} else {
			r.Counts.Pending++
		}

		if rev.UserID == viewer {
			r.MyDecision = vote.Decision
		}
		r.Reviewers = append(r.Reviewers, vote)
	}

	return r, nil
}
