package activities

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/einstalek/invoice-ai/pkg/pagination"
	"github.com/einstalek/invoice-ai/pkg/query"
	"github.com/einstalek/invoice-ai/pkg/repository"
)

// System reads a submission's activity history.
type System interface {
	Handler(access Access) *Handler

	List(
		ctx context.Context,
		submissionID uuid.UUID,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Activity], error)
}

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a Postgres-backed activity reader.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "activities"),
		pagination: pagination,
	}
}

func (r *repo) Handler(access Access) *Handler {
	return NewHandler(r, access, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	submissionID uuid.UUID,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Activity], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("SubmissionID", submissionID)

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count activities: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanActivity)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

const insertSQL = `
	INSERT INTO activities(id, submission_id, actor_id, action, comment, changes, round, created_at)
	VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)
	RETURNING seq`

// Insert appends a within the caller's transaction and returns it with its
// assigned sequence number.
func Insert(ctx context.Context, q repository.Querier, a Activity) (Activity, error) {
	changes, err := encodeChanges(a.Changes)
	if err != nil {
		return a, fmt.Errorf("encode changes: %w", err)
	}

	err = q.QueryRowContext(ctx, insertSQL,
		a.ID,
		a.SubmissionID,
		a.ActorID,
		a.Action,
		a.Comment,
		changes,
		a.Round,
		a.CreatedAt,
	).Scan(&a.Seq)
	if err != nil {
		return a, fmt.Errorf("insert activity %s: %w", a.Action, err)
	}
	return a, nil
}
