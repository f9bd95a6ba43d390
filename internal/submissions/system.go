package submissions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/einstalek/invoice-ai/internal/activities"
	"github.com/einstalek/invoice-ai/internal/roster"
	"github.com/einstalek/invoice-ai/pkg/clock"
	"github.com/einstalek/invoice-ai/pkg/events"
	"github.com/einstalek/invoice-ai/pkg/pagination"
)

// Policy bounds the commit loop and the booking claim.
type Policy struct {
	MaxRetries   int
	RetryBackoff time.Duration
	ClaimTTL     time.Duration
}

// Attempt is the input to one run of a Mutation. Submission is a private
// copy of the stored state; Roster is the submission's organization as read
// for this call.
type Attempt struct {
	Submission *Submission
	Roster     roster.Snapshot
	Now        time.Time
}

// Mutation computes the change to commit for an attempt. It may run more
// than once and must derive everything from its Attempt. A nil change
// commits nothing.
type Mutation func(a Attempt) (*Change, error)

// Event is the payload published for each committed activity. Summary
// renders the activity's field changes for notification text.
type Event struct {
	activities.Activity
	OrganizationID uuid.UUID `json:"organization_id"`
	Status         Status    `json:"status"`
	Version        int64     `json:"version"`
	Summary        string    `json:"summary,omitempty"`
}

// System defines the submission store operations.
type System interface {
	Handler(maxBodySize int64) *Handler

	// List pages through the submissions viewer may see.
	List(
		ctx context.Context,
		viewer uuid.UUID,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Submission], error)

	Find(ctx context.Context, id, viewer uuid.UUID) (*Submission, error)
	Create(ctx context.Context, actor uuid.UUID, cmd CreateCommand) (*Submission, error)
	EditFields(ctx context.Context, id, actor uuid.UUID, edits map[string]*string) (*Submission, error)
	AddReviewer(ctx context.Context, id, actor, reviewer uuid.UUID) (*Submission, error)
	Comment(ctx context.Context, id, actor uuid.UUID, text string) (*Submission, error)

	// Mutate runs fn against the current state and commits its change if no
	// other commit intervened, retrying up to Policy.MaxRetries times before
	// failing with ErrConcurrentModification.
	Mutate(ctx context.Context, id uuid.UUID, fn Mutation) (*Submission, error)

	Roster(ctx context.Context, orgID uuid.UUID) (roster.Snapshot, error)
	Policy() Policy
	Now() time.Time
}

type system struct {
	store      Store
	roster     roster.System
	clock      clock.Clock
	events     events.System
	logger     *slog.Logger
	pagination pagination.Config
	policy     Policy
}

// New creates the submission system.
func New(
	store Store,
	rost roster.System,
	clk clock.Clock,
	pub events.System,
	logger *slog.Logger,
	pagination pagination.Config,
	policy Policy,
) System {
	return &system{
		store:      store,
		roster:     rost,
		clock:      clk,
		events:     pub,
		logger:     logger.With("system", "submissions"),
		pagination: pagination,
		policy:     policy,
	}
}

func (s *system) Handler(maxBodySize int64) *Handler {
	return NewHandler(s, s.logger, s.pagination, maxBodySize)
}

func (s *system) Policy() Policy {
	return s.policy
}

func (s *system) Now() time.Time {
	return s.clock.Now()
}

func (s *system) Roster(ctx context.Context, orgID uuid.UUID) (roster.Snapshot, error) {
	snap, err := s.roster.Resolve(ctx, orgID)
	if errors.Is(err, roster.ErrNotFound) {
		return snap, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return snap, err
}

func (s *system) List(
	ctx context.Context,
	viewer uuid.UUID,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Submission], error) {
	orgs, err := s.roster.Organizations(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("resolve organizations: %w", err)
	}
	if filters.OrganizationID != nil && !slices.Contains(orgs, *filters.OrganizationID) {
		return nil, fmt.Errorf("%w: not a member of organization %s", ErrForbidden, *filters.OrganizationID)
	}
	filters.visible = &visibility{viewer: viewer, orgs: orgs}

	page.Normalize(s.pagination)
	return s.store.List(ctx, page, filters)
}

func (s *system) Find(ctx context.Context, id, viewer uuid.UUID) (*Submission, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	snap, err := s.Roster(ctx, sub.OrganizationID)
	if err != nil {
		return nil, err
	}
	if err := CheckView(sub, snap, viewer); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *system) Create(ctx context.Context, actor uuid.UUID, cmd CreateCommand) (*Submission, error) {
	snap, err := s.Roster(ctx, cmd.OrganizationID)
	if err != nil {
		return nil, err
	}
	if m, ok := snap.Member(actor); !ok || m.Status != roster.Active {
		return nil, fmt.Errorf("%w: not an active member of the organization", ErrForbidden)
	}

	reviewers, err := snap.SelectReviewers(actor, cmd.ReviewerIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReviewerSet, err)
	}

	now := s.clock.Now()
	sub := &Submission{
		ID:                uuid.New(),
		OrganizationID:    cmd.OrganizationID,
		SubmitterID:       actor,
		Status:            Processing,
		Round:             1,
		ApprovalsRequired: snap.ApprovalsRequired,
		Fields:            map[string]*string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if cmd.Fields != nil {
		sub.Fields = cloneFields(cmd.Fields)
		sub.Status = PendingReview
		sub.EnteredReview = true
	}

	change := NewChange(sub)
	for _, id := range reviewers {
		change.AddReviewer(Reviewer{UserID: id, AddedBy: &actor, AddedAt: now})
	}
	change.Record(activities.NewActivity(sub.ID, actor, activities.Uploaded, sub.Round, now))

	committed, err := s.store.Insert(ctx, *change)
	if err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}

	s.publish(ctx, committed)
	s.logger.Info("submission created",
		"id", sub.ID,
		"organization_id", sub.OrganizationID,
		"status", sub.Status,
		"reviewers", len(reviewers),
	)
	return committed.Submission, nil
}

func (s *system) EditFields(ctx context.Context, id, actor uuid.UUID, edits map[string]*string) (*Submission, error) {
	if len(edits) == 0 {
		return nil, ErrNoChanges
	}

	return s.Mutate(ctx, id, func(a Attempt) (*Change, error) {
		sub := a.Submission
		if err := CheckEdit(sub, a.Roster, actor); err != nil {
			return nil, err
		}

		changes := activities.Diff(sub.Fields, edits)
		if len(changes) == 0 {
			return nil, ErrNoChanges
		}
		sub.Fields = changes.Apply(sub.Fields)

		return NewChange(sub).Record(
			activities.NewActivity(sub.ID, actor, activities.FieldsEdited, sub.Round, a.Now).WithChanges(changes),
		), nil
	})
}

func (s *system) AddReviewer(ctx context.Context, id, actor, reviewer uuid.UUID) (*Submission, error) {
	return s.Mutate(ctx, id, func(a Attempt) (*Change, error) {
		sub := a.Submission
		if err := CheckAssign(sub, a.Roster, actor, a.Now, s.policy.ClaimTTL); err != nil {
			return nil, err
		}
		if reviewer == sub.SubmitterID {
			return nil, fmt.Errorf("%w: submitter cannot review their own submission", ErrInvalidReviewerSet)
		}
		if sub.IsReviewer(reviewer) {
			return nil, fmt.Errorf("%w: %s is already assigned", ErrInvalidReviewerSet, reviewer)
		}
		if !a.Roster.IsEligible(reviewer, sub.SubmitterID) {
			return nil, fmt.Errorf("%w: %s is not an eligible reviewer", ErrInvalidReviewerSet, reviewer)
		}

		added := reviewer.String()
		return NewChange(sub).
			AddReviewer(Reviewer{UserID: reviewer, AddedBy: &actor, AddedAt: a.Now}).
			Record(activities.NewActivity(sub.ID, actor, activities.ReviewerAdded, sub.Round, a.Now).
				WithChanges(activities.Changes{"reviewer": {New: &added}})), nil
	})
}

func (s *system) Comment(ctx context.Context, id, actor uuid.UUID, text string) (*Submission, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: comment text is empty", ErrInvalidInput)
	}

	return s.Mutate(ctx, id, func(a Attempt) (*Change, error) {
		sub := a.Submission
		if sub.SubmitterID != actor && !sub.IsReviewer(actor) && !a.Roster.IsAdmin(actor) {
			return nil, fmt.Errorf("%w: only participants may comment", ErrForbidden)
		}
		return NewChange(sub).Record(
			activities.NewActivity(sub.ID, actor, activities.Commented, sub.Round, a.Now).WithComment(text),
		), nil
	})
}

func (s *system) Mutate(ctx context.Context, id uuid.UUID, fn Mutation) (*Submission, error) {
	var snap *roster.Snapshot

	for attempt := 1; ; attempt++ {
		current, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		if snap == nil || snap.OrganizationID != current.OrganizationID {
			r, err := s.Roster(ctx, current.OrganizationID)
			if err != nil {
				return nil, fmt.Errorf("resolve roster: %w", err)
			}
			snap = &r
		}

		now := s.clock.Now()
		change, err := fn(Attempt{Submission: current.Clone(), Roster: *snap, Now: now})
		if err != nil {
			return nil, err
		}
		if change == nil {
			return current, nil
		}
		change.Submission.UpdatedAt = now
		if change.Submission.Status != Approved {
			change.Submission.ReleaseClaim()
		}

		committed, err := s.store.Commit(ctx, current.Version, *change)
		if err == nil {
			s.publish(ctx, committed)
			return committed.Submission, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, fmt.Errorf("commit submission %s: %w", id, err)
		}

		if attempt >= s.policy.MaxRetries {
			s.logger.Warn("commit retries exhausted", "id", id, "attempts", attempt)
			return nil, ErrConcurrentModification
		}
		s.logger.Debug("version conflict, retrying", "id", id, "attempt", attempt)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.clock.After(s.policy.RetryBackoff * time.Duration(attempt)):
		}
	}
}

func (s *system) publish(ctx context.Context, c Change) {
	for _, a := range c.Activities {
		s.events.Publish(ctx, strings.ToLower(string(a.Action)), Event{
			Activity:       a,
			OrganizationID: c.Submission.OrganizationID,
			Status:         c.Submission.Status,
			Version:        c.Submission.Version,
			Summary:        a.Changes.Summary(),
		})
	}
}
