package roster

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/einstalek/invoice-ai/pkg/repository"
)

// System reads rosters and manages the approval policy.
type System interface {
	Handler() *Handler
	// Resolve reads the organization's policy and memberships.
	Resolve(ctx context.Context, orgID uuid.UUID) (Snapshot, error)
	// SetApprovalsRequired changes the quorum for rounds started afterwards.
	// Only organization admins may call it.
	SetApprovalsRequired(ctx context.Context, orgID, actor uuid.UUID, n int) (Snapshot, error)
	// Organizations lists the organizations userID holds a membership in.
	Organizations(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a Postgres-backed roster.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "roster"),
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

func (r *repo) Resolve(ctx context.Context, orgID uuid.UUID) (Snapshot, error) {
	snap := Snapshot{OrganizationID: orgID}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := r.db.QueryRowContext(gctx,
			"SELECT approvals_required FROM organizations WHERE id = $1",
			orgID,
		).Scan(&snap.ApprovalsRequired)
		return repository.MapError(err, ErrNotFound, nil)
	})

	g.Go(func() error {
		members, err := repository.QueryMany(gctx, r.db,
			`SELECT user_id, role, status FROM memberships
			 WHERE organization_id = $1
			 ORDER BY created_at, user_id`,
			[]any{orgID},
			scanMembership,
		)
		if err != nil {
			return fmt.Errorf("query memberships: %w", err)
		}
		snap.Members = members
		return nil
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (r *repo) SetApprovalsRequired(ctx context.Context, orgID, actor uuid.UUID, n int) (Snapshot, error) {
	if n < 1 {
		return Snapshot{}, ErrInvalidPolicy
	}

	snap, err := r.Resolve(ctx, orgID)
	if err != nil {
		return Snapshot{}, err
	}
	if !snap.IsAdmin(actor) {
		return Snapshot{}, ErrForbidden
	}

	err = repository.ExecExpectOne(ctx, r.db,
		"UPDATE organizations SET approvals_required = $2, updated_at = now() WHERE id = $1",
		orgID, n,
	)
	if err != nil {
		return Snapshot{}, repository.MapError(err, ErrNotFound, nil)
	}

	r.logger.Info("approval policy changed", "organization_id", orgID, "approvals_required", n, "actor", actor)
	snap.ApprovalsRequired = n
	return snap, nil
}

func (r *repo) Organizations(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return repository.QueryMany(ctx, r.db,
		"SELECT organization_id FROM memberships WHERE user_id = $1 ORDER BY organization_id",
		[]any{userID},
		func(s repository.Scanner) (uuid.UUID, error) {
			var id uuid.UUID
			err := s.Scan(&id)
			return id, err
		},
	)
}

func scanMembership(s repository.Scanner) (Membership, error) {
	var m Membership
	err := s.Scan(&m.UserID, &m.Role, &m.Status)
	return m, err
}
