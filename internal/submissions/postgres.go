package submissions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/einstalek/invoice-ai/internal/activities"
	"github.com/einstalek/invoice-ai/pkg/pagination"
	"github.com/einstalek/invoice-ai/pkg/query"
	"github.com/einstalek/invoice-ai/pkg/repository"
)

const approvalConstraint = "approvals_one_per_round"

type postgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Store over the submissions schema.
func NewPostgresStore(db *sql.DB) Store {
	return &postgresStore{db: db}
}

func (p *postgresStore) Get(ctx context.Context, id uuid.UUID) (*Submission, error) {
	return repository.WithReadTx(ctx, p.db, func(tx *sql.Tx) (*Submission, error) {
		q, args := query.NewBuilder(projection).BuildSingle("ID", id)
		sub, err := repository.QueryOne(ctx, tx, q, args, scanSubmission)
		if err != nil {
			return nil, repository.MapError(err, ErrNotFound, ErrVersionConflict)
		}

		sub.Reviewers, err = repository.QueryMany(ctx, tx,
			`SELECT user_id, added_by, added_at FROM submission_reviewers
			 WHERE submission_id = $1 ORDER BY added_at, user_id`,
			[]any{id}, scanReviewer)
		if err != nil {
			return nil, fmt.Errorf("query reviewers: %w", err)
		}

		sub.Approvals, err = repository.QueryMany(ctx, tx,
			`SELECT id, reviewer_id, round, decision, comment, created_at FROM approvals
			 WHERE submission_id = $1 ORDER BY round, created_at, id`,
			[]any{id}, scanApproval)
		if err != nil {
			return nil, fmt.Errorf("query approvals: %w", err)
		}

		return &sub, nil
	})
}

func (p *postgresStore) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Submission], error) {
	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "FieldsText")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count submissions: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	subs, err := repository.QueryMany(ctx, p.db, pageSQL, pageArgs, scanSubmission)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}

	result := pagination.NewPageResult(subs, total, page.Page, page.PageSize)
	return &result, nil
}

const insertSubmissionSQL = `
	INSERT INTO submissions(
		id, organization_id, submitter_id, status, round, approvals_required,
		fields, extraction, extraction_error, entered_review, version, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9, $10, 1, $11, $11)`

func (p *postgresStore) Insert(ctx context.Context, c Change) (Change, error) {
	s := c.Submission

	fields, err := encodeJSON(s.Fields)
	if err != nil {
		return c, fmt.Errorf("encode fields: %w", err)
	}
	extraction, err := encodeJSON(s.Extraction)
	if err != nil {
		return c, fmt.Errorf("encode extraction: %w", err)
	}

	return repository.WithTx(ctx, p.db, func(tx *sql.Tx) (Change, error) {
		_, err := tx.ExecContext(ctx, insertSubmissionSQL,
			s.ID, s.OrganizationID, s.SubmitterID, s.Status, s.Round, s.ApprovalsRequired,
			fields, extraction, s.ExtractionError, s.EnteredReview, s.CreatedAt,
		)
		if err != nil {
			return c, fmt.Errorf("insert submission: %w", err)
		}
		s.Version = 1
		return p.appendRows(ctx, tx, c)
	})
}

const commitSQL = `
	UPDATE submissions SET
		status = $3,
		round = $4,
		approvals_required = $5,
		fields = $6::jsonb,
		extraction = $7::jsonb,
		extraction_error = $8,
		entered_review = $9,
		booked_at = $10,
		booked_by = $11,
		ledger_ref = $12,
		booking_claim = $13,
		booking_claimed_at = $14,
		updated_at = $15,
		version = version + 1
	WHERE id = $1 AND version = $2
	RETURNING version`

func (p *postgresStore) Commit(ctx context.Context, expected int64, c Change) (Change, error) {
	s := c.Submission

	fields, err := encodeJSON(s.Fields)
	if err != nil {
		return c, fmt.Errorf("encode fields: %w", err)
	}
	extraction, err := encodeJSON(s.Extraction)
	if err != nil {
		return c, fmt.Errorf("encode extraction: %w", err)
	}

	committed, err := repository.WithTx(ctx, p.db, func(tx *sql.Tx) (Change, error) {
		err := tx.QueryRowContext(ctx, commitSQL,
			s.ID, expected,
			s.Status, s.Round, s.ApprovalsRequired,
			fields, extraction, s.ExtractionError, s.EnteredReview,
			s.BookedAt, s.BookedBy, s.LedgerRef,
			s.BookingClaim, s.BookingClaimedAt,
			s.UpdatedAt,
		).Scan(&s.Version)
		if err != nil {
			return c, repository.MapError(err, ErrVersionConflict, ErrVersionConflict)
		}
		return p.appendRows(ctx, tx, c)
	})
	if err != nil {
		if repository.IsUniqueViolation(err, approvalConstraint) || repository.IsSerializationFailure(err) {
			return c, ErrVersionConflict
		}
		return c, err
	}
	return committed, nil
}

func (p *postgresStore) appendRows(ctx context.Context, tx *sql.Tx, c Change) (Change, error) {
	s := c.Submission

	for _, r := range c.Reviewers {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO submission_reviewers(submission_id, user_id, added_by, added_at)
			 VALUES ($1, $2, $3, $4)`,
			s.ID, r.UserID, r.AddedBy, r.AddedAt,
		)
		if err != nil {
			return c, fmt.Errorf("insert reviewer: %w", err)
		}
	}

	for _, a := range c.Approvals {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO approvals(id, submission_id, reviewer_id, round, decision, comment, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			a.ID, s.ID, a.ReviewerID, a.Round, a.Verdict, a.Comment, a.CreatedAt,
		)
		if err != nil {
			return c, fmt.Errorf("insert approval: %w", err)
		}
	}

	written := make([]activities.Activity, len(c.Activities))
	for i, a := range c.Activities {
		stored, err := activities.Insert(ctx, tx, a)
		if err != nil {
			return c, err
		}
		written[i] = stored
	}
	c.Activities = written

	return c, nil
}
