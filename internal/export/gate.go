// Package export gates booking of approved submissions to the external
// ledger. A booking claims the submission, writes the ledger entry and only
// then commits BOOKED, so the ledger is written at most once per approval.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/einstalek/invoice-ai/internal/activities"
	"github.com/einstalek/invoice-ai/internal/approvals"
	"github.com/einstalek/invoice-ai/internal/submissions"
)

// System defines the export gate operations.
type System interface {
	Handler() *Handler

	// CanExport reports whether s is in a bookable state.
	CanExport(s *submissions.Submission) bool
	// Book writes the submission to the ledger and commits BOOKED. The
	// approved state is re-validated at write time.
	Book(ctx context.Context, id, actor uuid.UUID) (*submissions.Submission, error)
	// Document returns the ledger entry of a booked submission.
	Document(ctx context.Context, id, viewer uuid.UUID) ([]byte, error)
}

type gate struct {
	subs   submissions.System
	ledger Ledger
	logger *slog.Logger
}

// New returns the export gate. Ledger writes are bounded by the
// submission policy's claim TTL.
func New(subs submissions.System, ledger Ledger, logger *slog.Logger) System {
	return &gate{
		subs:   subs,
		ledger: ledger,
		logger: logger.With("system", "export"),
	}
}

func (g *gate) Handler() *Handler {
	return NewHandler(g, g.logger)
}

func (g *gate) CanExport(s *submissions.Submission) bool {
	return approvals.Exportable(s)
}

func (g *gate) Book(ctx context.Context, id, actor uuid.UUID) (*submissions.Submission, error) {
	ttl := g.subs.Policy().ClaimTTL
	token := uuid.New()

	claimed, err := g.subs.Mutate(ctx, id, func(a submissions.Attempt) (*submissions.Change, error) {
		sub := a.Submission
		if err := approvals.CheckExport(sub, a.Roster, actor, a.Now, ttl); err != nil {
			return nil, err
		}
		now := a.Now
		sub.BookingClaim = &token
		sub.BookingClaimedAt = &now
		return submissions.NewChange(sub), nil
	})
	if err != nil {
		return nil, err
	}

	entry := Entry{
		SubmissionID:   claimed.ID,
		OrganizationID: claimed.OrganizationID,
		Round:          claimed.Round,
		Fields:         claimed.Fields,
		BookedBy:       actor,
		RequestedAt:    *claimed.BookingClaimedAt,
	}

	writeCtx, cancel := ctx, context.CancelFunc(func() {})
	if ttl > 0 {
		writeCtx, cancel = context.WithTimeout(ctx, ttl)
	}
	receipt, writeErr := g.ledger.Write(writeCtx, IdempotencyKey(claimed.ID, claimed.Round), entry)
	cancel()

	// The outcome must be recorded even if the caller has gone away.
	commitCtx := context.WithoutCancel(ctx)

	if writeErr != nil {
		g.logger.Error("ledger write failed", "id", id, "round", claimed.Round, "error", writeErr)
		g.release(commitCtx, id, actor, token, writeErr)
		return nil, fmt.Errorf("%w: %v", submissions.ErrExternalWriteFailed, writeErr)
	}

	booked, err := g.subs.Mutate(commitCtx, id, func(a submissions.Attempt) (*submissions.Change, error) {
		sub := a.Submission
		switch {
		case sub.Status == submissions.Booked:
			return nil, fmt.Errorf("%w: already booked", submissions.ErrNotApproved)
		case sub.Status != submissions.Approved:
			return nil, fmt.Errorf("%w: submission is %s", submissions.ErrNotApproved, sub.Status)
		case !holds(sub, token):
			return nil, fmt.Errorf("%w: booking claim lost", submissions.ErrConcurrentModification)
		}

		at := receipt.RecordedAt
		if at.IsZero() {
			at = a.Now
		}
		ref := receipt.Ref

		sub.Status = submissions.Booked
		sub.BookedAt = &at
		sub.BookedBy = &actor
		sub.LedgerRef = &ref
		sub.ReleaseClaim()

		return submissions.NewChange(sub).Record(
			activities.NewActivity(sub.ID, actor, activities.Booked, sub.Round, a.Now).WithComment(ref),
		), nil
	})
	if err != nil {
		g.logger.Error("booking commit failed after ledger write", "id", id, "round", claimed.Round, "ref", receipt.Ref, "error", err)
		return nil, err
	}

	g.logger.Info("submission booked", "id", id, "round", booked.Round, "ref", receipt.Ref)
	return booked, nil
}

// release drops the booking claim after a failed ledger write so the
// submission can be booked again.
func (g *gate) release(ctx context.Context, id, actor, token uuid.UUID, cause error) {
	_, err := g.subs.Mutate(ctx, id, func(a submissions.Attempt) (*submissions.Change, error) {
		sub := a.Submission
		if !holds(sub, token) {
			return nil, nil
		}
		sub.ReleaseClaim()
		return submissions.NewChange(sub).Record(
			activities.NewActivity(sub.ID, actor, activities.BookingFailed, sub.Round, a.Now).WithComment(cause.Error()),
		), nil
	})
	if err != nil {
		g.logger.Error("release booking claim", "id", id, "error", err)
	}
}

func (g *gate) Document(ctx context.Context, id, viewer uuid.UUID) ([]byte, error) {
	sub, err := g.subs.Find(ctx, id, viewer)
	if err != nil {
		return nil, err
	}

	if sub.Status != submissions.Booked || sub.LedgerRef == nil {
		return nil, fmt.Errorf("%w: submission is %s", submissions.ErrNotApproved, sub.Status)
	}

	data, err := g.ledger.Read(ctx, *sub.LedgerRef)
	if errors.Is(err, ErrDocumentNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, *sub.LedgerRef)
	}
	return data, err
}

func holds(s *submissions.Submission, token uuid.UUID) bool {
	return s.BookingClaim != nil && *s.BookingClaim == token
}
