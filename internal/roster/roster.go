// Package roster resolves an organization's review population and approval policy.
package roster

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Role is a member's organization role.
type Role string

const (
	Owner      Role = "OWNER"
	Admin      Role = "ADMIN"
	Accountant Role = "ACCOUNTANT"
	Member     Role = "MEMBER"
)

// Status is a membership's lifecycle state.
type Status string

const (
	Pending     Status = "PENDING"
	Active      Status = "ACTIVE"
	Deactivated Status = "DEACTIVATED"
)

// Membership links a user to an organization.
type Membership struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
	Status Status    `json:"status"`
}

// IsAdmin reports whether the member is an active owner or admin.
func (m Membership) IsAdmin() bool {
	return m.Status == Active && (m.Role == Owner || m.Role == Admin)
}

// CanReview reports whether the member may be assigned as a reviewer.
func (m Membership) CanReview() bool {
	return m.Status == Active && (m.Role == Owner || m.Role == Admin || m.Role == Accountant)
}

// CanExport reports whether the member may book approved submissions.
func (m Membership) CanExport() bool {
	return m.CanReview()
}

// Snapshot is an organization's roster and policy as read at one instant.
type Snapshot struct {
	OrganizationID    uuid.UUID    `json:"organization_id"`
	ApprovalsRequired int          `json:"approvals_required"`
	Members           []Membership `json:"members"`
}

// Member finds the membership for userID.
func (s Snapshot) Member(userID uuid.UUID) (Membership, bool) {
	i := slices.IndexFunc(s.Members, func(m Membership) bool { return m.UserID == userID })
	if i < 0 {
		return Membership{}, false
	}
	return s.Members[i], true
}

// IsAdmin reports whether userID is an active admin of the organization.
func (s Snapshot) IsAdmin(userID uuid.UUID) bool {
	m, ok := s.Member(userID)
	return ok && m.IsAdmin()
}

// CanExport reports whether userID may book for the organization.
func (s Snapshot) CanExport(userID uuid.UUID) bool {
	m, ok := s.Member(userID)
	return ok && m.CanExport()
}

// Eligible returns the users who may review a submission by submitter.
func (s Snapshot) Eligible(submitter uuid.UUID) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.Members))
	for _, m := range s.Members {
		if m.CanReview() && m.UserID != submitter {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

// IsEligible reports whether userID may review a submission by submitter.
func (s Snapshot) IsEligible(userID, submitter uuid.UUID) bool {
	if userID == submitter {
		return false
	}
	m, ok := s.Member(userID)
	return ok && m.CanReview()
}

// SelectReviewers validates a requested reviewer set for a submission by
// submitter and returns it deduplicated in request order. An empty request
// is filled in only when exactly one reviewer is eligible.
func (s Snapshot) SelectReviewers(submitter uuid.UUID, requested []uuid.UUID) ([]uuid.UUID, error) {
	if len(requested) == 0 {
		eligible := s.Eligible(submitter)
		if len(eligible) == 1 {
			return eligible, nil
		}
		return nil, fmt.Errorf("%w: select at least one of %d eligible reviewers", ErrIneligible, len(eligible))
	}

	out := make([]uuid.UUID, 0, len(requested))
	for _, id := range requested {
		if slices.Contains(out, id) {
			continue
		}
		if id == submitter {
			return nil, fmt.Errorf("%w: submitter cannot review their own submission", ErrIneligible)
		}
		if !s.IsEligible(id, submitter) {
			return nil, fmt.Errorf("%w: %s is not an eligible reviewer", ErrIneligible, id)
		}
		out = append(out, id)
	}
	return out, nil
}
