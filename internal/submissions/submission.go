// Package submissions owns the Submission aggregate: its status, extracted
// fields, review rounds, reviewer assignments and recorded decisions.
//
// Every mutation goes through Mutate, which reads the current state, lets the
// caller compute the next one, and commits only if no other writer committed
// in between. Conflicting writers re-read and recompute.
package submissions

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status is a submission's position in the approval workflow.
type Status string

const (
	Processing       Status = "PROCESSING"
	ExtractionFailed Status = "EXTRACTION_FAILED"
	PendingReview    Status = "PENDING_REVIEW"
	ChangesRequested Status = "CHANGES_REQUESTED"
	Approved         Status = "APPROVED"
	Rejected         Status = "REJECTED"
	Booked           Status = "BOOKED"
)

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	return s == Booked || s == Rejected
}

// Verdict is the recorded outcome of one reviewer's decision.
type Verdict string

const (
	VerdictApproved      Verdict = "APPROVED"
	VerdictEditRequested Verdict = "EDIT_REQUESTED"
)

// Approval is one reviewer's decision in one round. Approvals from earlier
// rounds stay on the submission but no longer count.
type Approval struct {
	ID         uuid.UUID `json:"id"`
	ReviewerID uuid.UUID `json:"reviewer_id"`
	Round      int       `json:"round"`
	Verdict    Verdict   `json:"decision"`
	Comment    *string   `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Reviewer is a user assigned to vote on the submission.
type Reviewer struct {
	UserID  uuid.UUID  `json:"user_id"`
	AddedBy *uuid.UUID `json:"added_by,omitempty"`
	AddedAt time.Time  `json:"added_at"`
}

// FieldMeta is extraction metadata kept alongside a field value.
type FieldMeta struct {
	Confidence string    `json:"confidence,omitempty"`
	BBox       []float64 `json:"bbox,omitempty"`
}

// Submission is one uploaded invoice and its review history.
type Submission struct {
	ID                uuid.UUID            `json:"id"`
	OrganizationID    uuid.UUID            `json:"organization_id"`
	SubmitterID       uuid.UUID            `json:"submitter_id"`
	Status            Status               `json:"status"`
	Round             int                  `json:"round"`
	ApprovalsRequired int                  `json:"approvals_required"`
	Fields            map[string]*string   `json:"fields"`
	Extraction        map[string]FieldMeta `json:"extraction,omitempty"`
	ExtractionError   *string              `json:"extraction_error,omitempty"`
	EnteredReview     bool                 `json:"entered_review"`
	Reviewers         []Reviewer           `json:"reviewers"`
	Approvals         []Approval           `json:"approvals"`
	BookedAt          *time.Time           `json:"booked_at,omitempty"`
	BookedBy          *uuid.UUID           `json:"booked_by,omitempty"`
	LedgerRef         *string              `json:"ledger_ref,omitempty"`
	BookingClaim      *uuid.UUID           `json:"-"`
	BookingClaimedAt  *time.Time           `json:"-"`
	Version           int64                `json:"version"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// CurrentApprovals returns the decisions recorded in the current round.
func (s *Submission) CurrentApprovals() []Approval {
	out := make([]Approval, 0, len(s.Approvals))
	for _, a := range s.Approvals {
		if a.Round == s.Round {
			out = append(out, a)
		}
	}
	return out
}

// ApprovalsObtained counts APPROVED decisions in the current round.
func (s *Submission) ApprovalsObtained() int {
	n := 0
	for _, a := range s.Approvals {
		if a.Round == s.Round && a.Verdict == VerdictApproved {
			n++
		}
	}
	return n
}

// HasEditRequest reports whether any current-round decision requested edits.
func (s *Submission) HasEditRequest() bool {
	return slices.ContainsFunc(s.Approvals, func(a Approval) bool {
		return a.Round == s.Round && a.Verdict == VerdictEditRequested
	})
}

// IsReviewer reports whether userID is assigned to the submission.
func (s *Submission) IsReviewer(userID uuid.UUID) bool {
	return slices.ContainsFunc(s.Reviewers, func(r Reviewer) bool { return r.UserID == userID })
}

// ReviewerIDs lists assigned reviewers in assignment order.
func (s *Submission) ReviewerIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(s.Reviewers))
	for i, r := range s.Reviewers {
		ids[i] = r.UserID
	}
	return ids
}

// Vote returns userID's decision in the current round.
func (s *Submission) Vote(userID uuid.UUID) (Approval, bool) {
	for _, a := range s.Approvals {
		if a.Round == s.Round && a.ReviewerID == userID {
			return a, true
		}
	}
	return Approval{}, false
}

// ReviewStatus derives the in-review status from the current round's
// decisions: any edit request wins, then quorum, else still pending.
func (s *Submission) ReviewStatus() Status {
	switch {
	case s.HasEditRequest():
		return ChangesRequested
	case s.ApprovalsObtained() >= s.ApprovalsRequired:
		return Approved
	default:
		return PendingReview
	}
}

// ClaimLive reports whether a booking claim younger than ttl is held at now.
func (s *Submission) ClaimLive(now time.Time, ttl time.Duration) bool {
	if s.BookingClaim == nil || s.BookingClaimedAt == nil {
		return false
	}
	return now.Before(s.BookingClaimedAt.Add(ttl))
}

// ReleaseClaim drops any booking claim.
func (s *Submission) ReleaseClaim() {
	s.BookingClaim = nil
	s.BookingClaimedAt = nil
}

// Clone returns a deep copy safe to mutate.
func (s *Submission) Clone() *Submission {
	c := *s
	c.Fields = cloneFields(s.Fields)
	c.Extraction = maps.Clone(s.Extraction)
	c.Reviewers = slices.Clone(s.Reviewers)
	c.Approvals = slices.Clone(s.Approvals)
	c.ExtractionError = clonePtr(s.ExtractionError)
	c.BookedAt = clonePtr(s.BookedAt)
	c.BookedBy = clonePtr(s.BookedBy)
	c.LedgerRef = clonePtr(s.LedgerRef)
	c.BookingClaim = clonePtr(s.BookingClaim)
	c.BookingClaimedAt = clonePtr(s.BookingClaimedAt)
	return &c
}

// CreateCommand starts a submission. Nil Fields leaves it PROCESSING until
// the extraction result arrives.
type CreateCommand struct {
	OrganizationID uuid.UUID          `json:"organization_id"`
	ReviewerIDs    []uuid.UUID        `json:"reviewer_ids"`
	Fields         map[string]*string `json:"fields,omitempty"`
}

func cloneFields(in map[string]*string) map[string]*string {
	if in == nil {
		return nil
	}
	out := make(map[string]*string, len(in))
	for k, v := range in {
		out[k] = clonePtr(v)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
