package submissions

import (
	"context"

	"github.com/google/uuid"

	"github.com/einstalek/invoice-ai/internal/activities"
	"github.com/einstalek/invoice-ai/pkg/pagination"
)

// Change is the unit of a commit: the next submission state plus the rows
// it appends. Reviewers, approvals and activities are insert-only.
type Change struct {
	Submission *Submission
	Reviewers  []Reviewer
	Approvals  []Approval
	Activities []activities.Activity
}

// Record appends activities to the change.
func (c *Change) Record(items ...activities.Activity) *Change {
	c.Activities = append(c.Activities, items...)
	return c
}

// Store persists submissions with compare-and-set commits.
type Store interface {
	// Insert stores a new submission at version 1.
	Insert(ctx context.Context, c Change) (Change, error)
	// Get loads the submission with all reviewers and approvals.
	Get(ctx context.Context, id uuid.UUID) (*Submission, error)
	// List returns a page of submissions without reviewers or approvals.
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Submission], error)
	// Commit applies c if the stored version still equals expected and
	// returns the committed change. A stale version, or an approval that
	// collides with one already stored, yields ErrVersionConflict.
	Commit(ctx context.Context, expected int64, c Change) (Change, error)
}

// NewChange starts a change whose next state is s.
func NewChange(s *Submission) *Change {
	return &Change{Submission: s}
}

// AddReviewer assigns r on the next state and inserts it on commit.
func (c *Change) AddReviewer(r Reviewer) *Change {
	c.Submission.Reviewers = append(c.Submission.Reviewers, r)
	c.Reviewers = append(c.Reviewers, r)
	return c
}

// AddApproval records a on the next state and inserts it on commit.
func (c *Change) AddApproval(a Approval) *Change {
	c.Submission.Approvals = append(c.Submission.Approvals, a)
	c.Approvals = append(c.Approvals, a)
	return c
}
