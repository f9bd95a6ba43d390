package approvals

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/einstalek/invoice-ai/internal/activities"
	"github.com/einstalek/invoice-ai/internal/submissions"
)

// FieldResult is one extracted field as reported by the extraction service.
type FieldResult struct {
	Value      *string   `json:"value"`
	Confidence string    `json:"confidence,omitempty"`
	BBox       []float64 `json:"bbox,omitempty"`
}

// Result is the extraction service's completion event. A non-empty Error
// marks the extraction as failed; any fields sent with it are kept.
type Result struct {
	Fields map[string]FieldResult `json:"fields"`
	Error  *string                `json:"error,omitempty"`
}

// Failed reports whether the result carries an error.
func (r Result) Failed() bool {
	return r.Error != nil && *r.Error != ""
}

// System defines the approval workflow operations.
type System interface {
	Handler(maxBodySize int64) *Handler

	CompleteExtraction(ctx context.Context, id uuid.UUID, result Result) (*submissions.Submission, error)
	Decide(ctx context.Context, id, reviewer uuid.UUID, d Decision) (*submissions.Submission, error)
	Resubmit(ctx context.Context, id, actor uuid.UUID, edits map[string]*string) (*submissions.Submission, error)
	CompleteManually(ctx context.Context, id, actor uuid.UUID, edits map[string]*string) (*submissions.Submission, error)
	Cancel(ctx context.Context, id, actor uuid.UUID, comment string) (*submissions.Submission, error)
	Review(ctx context.Context, id, viewer uuid.UUID) (*Review, error)
}

type engine struct {
	subs   submissions.System
	logger *slog.Logger
}

// New creates the approval engine over the submission system.
func New(subs submissions.System, logger *slog.Logger) System {
	return &engine{
		subs:   subs,
		logger: logger.With("system", "approvals"),
	}
}

func (e *engine) Handler(maxBodySize int64) *Handler {
	return NewHandler(e, e.logger, maxBodySize)
}

func (e *engine) claimTTL() time.Duration {
	return e.subs.Policy().ClaimTTL
}

func (e *engine) CompleteExtraction(ctx context.Context, id uuid.UUID, result Result) (*submissions.Submission, error) {
	sub, err := e.subs.Mutate(ctx, id, func(a submissions.Attempt) (*submissions.Change, error) {
		sub := a.Submission
		if sub.Status != submissions.Processing {
			return nil, fmt.Errorf("%w: extraction already completed (%s)", submissions.ErrInvalidState, sub.Status)
		}

		values := make(map[string]*string, len(result.Fields))
		meta := make(map[string]submissions.FieldMeta, len(result.Fields))
		for name, f := range result.Fields {
			values[name] = f.Value
			if f.Confidence != "" || len(f.BBox) > 0 {
				meta[name] = submissions.FieldMeta{Confidence: f.Confidence, BBox: f.BBox}
			}
		}

		changes := activities.Diff(sub.Fields, values)
		sub.Fields = changes.Apply(sub.Fields)
		sub.Extraction = meta

		var entry activities.Activity
		if result.Failed() {
			sub.Status = submissions.ExtractionFailed
			sub.ExtractionError = result.Error
			entry = activities.NewActivity(sub.ID, uuid.Nil, activities.ExtractionFailed, sub.Round, a.Now).
				WithComment(*result.Error)
		} else {
			enterReview(sub, a.Roster.ApprovalsRequired)
			entry = activities.NewActivity(sub.ID, uuid.Nil, activities.ExtractionCompleted, sub.Round, a.Now)
		}

		return submissions.NewChange(sub).Record(entry.WithChanges(changes)), nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("extraction completed", "id", id, "status", sub.Status, "fields", len(result.Fields))
	return sub, nil
}

func (e *engine) Decide(ctx context.Context, id, reviewer uuid.UUID, d Decision) (*submissions.Submission, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: decision required", submissions.ErrInvalidInput)
	}

	ttl := e.claimTTL()
	sub, err := e.subs.Mutate(ctx, id, func(a submissions.Attempt) (*submissions.Change, error) {
		sub := a.Submission
		if err := checkDecide(sub, reviewer, a.Now, ttl); err != nil {
			return nil, err
		}

		before := sub.Status
		change := submissions.NewChange(sub).AddApproval(submissions.Approval{
			ID:         uuid.New(),
			ReviewerID: reviewer,
			Round:      sub.Round,
			Verdict:    d.Verdict(),
			Comment:    d.Comment(),
			CreatedAt:  a.Now,
		})
		sub.Status = sub.ReviewStatus()

		action := activities.Approved
		if d.Verdict() == submissions.VerdictEditRequested {
			action = activities.EditRequested
		}
		entry := activities.NewActivity(sub.ID, reviewer, action, sub.Round, a.Now)
		if c := d.Comment(); c != nil {
			entry = entry.WithComment(*c)
		}
		change.Record(entry)

		if before != submissions.Approved && sub.Status == submissions.Approved {
			change.Record(activities.NewActivity(sub.ID, uuid.Nil, activities.QuorumReached, sub.Round, a.Now))
		}
		return change, nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("decision recorded",
		"id", id,
		"reviewer", reviewer,
		"decision", d.Verdict(),
		"round", sub.Round,
		"status", sub.Status,
	)
	return sub, nil
}

func (e *engine) Resubmit(ctx context.Context, id, actor uuid.UUID, edits map[string]*string) (*submissions.Submission, error) {
	sub, err := e.subs.Mutate(ctx, id, func(a submissions.Attempt) (*submissions.Change, error) {
		sub := a.Submission
		if err := checkResubmit(sub, actor); err != nil {
			return nil, err
		}

		changes := activities.Diff(sub.Fields, edits)
		sub.Fields = changes.Apply(sub.Fields)
		sub.Round++
		sub.ApprovalsRequired = a.Roster.ApprovalsRequired
		sub.Status = submissions.PendingReview

		return submissions.NewChange(sub).Record(
			activities.NewActivity(sub.ID, actor, activities.Resubmitted, sub.Round, a.Now).WithChanges(changes),
		), nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("submission resubmitted", "id", id, "round", sub.Round)
	return sub, nil
}

func (e *engine) CompleteManually(ctx context.Context, id, actor uuid.UUID, edits map[string]*string) (*submissions.Submission, error) {
	return e.subs.Mutate(ctx, id, func(a submissions.Attempt) (*submissions.Change, error) {
		sub := a.Submission
		if err := checkCompleteManually(sub, actor); err != nil {
			return nil, err
		}

		changes := activities.Diff(sub.Fields, edits)
		sub.Fields = changes.Apply(sub.Fields)
		enterReview(sub, a.Roster.ApprovalsRequired)

		return submissions.NewChange(sub).Record(
			activities.NewActivity(sub.ID, actor, activities.ManuallyCompleted, sub.Round, a.Now).WithChanges(changes),
		), nil
	})
}

func (e *engine) Cancel(ctx context.Context, id, actor uuid.UUID, comment string) (*submissions.Submission, error) {
	ttl := e.claimTTL()
	sub, err := e.subs.Mutate(ctx, id, func(a submissions.Attempt) (*submissions.Change, error) {
		sub := a.Submission
		if err := checkCancel(sub, actor, a.Now, ttl); err != nil {
			return nil, err
		}

		sub.Status = submissions.Rejected

		entry := activities.NewActivity(sub.ID, actor, activities.Cancelled, sub.Round, a.Now)
		if c := optional(strings.TrimSpace(comment)); c != nil {
			entry = entry.WithComment(*c)
		}
		return submissions.NewChange(sub).Record(entry), nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("submission cancelled", "id", id)
	return sub, nil
}

// enterReview opens review in the current round. The approval policy is
// snapshotted the first time a submission enters review.
func enterReview(s *submissions.Submission, approvalsRequired int) {
	if !s.EnteredReview {
		s.ApprovalsRequired = approvalsRequired
		s.EnteredReview = true
	}
	s.Status = submissions.PendingReview
}
