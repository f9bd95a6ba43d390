package approvals_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/einstalek/invoice-ai/internal/activities"
	"github.com/einstalek/invoice-ai/internal/approvals"
	"github.com/einstalek/invoice-ai/internal/roster"
	"github.com/einstalek/invoice-ai/internal/submissions"
	"github.com/einstalek/invoice-ai/pkg/clock"
	"github.com/einstalek/invoice-ai/pkg/events"
	"github.com/einstalek/invoice-ai/pkg/pagination"
)

var (
	org       = uuid.MustParse("20000000-0000-0000-0000-000000000000")
	soloOrg   = uuid.MustParse("30000000-0000-0000-0000-000000000000")
	submitter = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	r1        = uuid.MustParse("00000000-0000-0000-0000-0000000000b1")
	r2        = uuid.MustParse("00000000-0000-0000-0000-0000000000b2")
	r3        = uuid.MustParse("00000000-0000-0000-0000-0000000000b3")
	soloAdmin = uuid.MustParse("00000000-0000-0000-0000-0000000000c1")
)

type env struct {
	subs   submissions.System
	engine approvals.System
	roster *roster.Memory
	log    *activities.Memory
	clock  *clock.Fake
}

func newEnv(t *testing.T, required int) *env {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pg := pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}

	rost := roster.NewMemory(logger,
		roster.Snapshot{
			OrganizationID:    org,
			ApprovalsRequired: required,
			Members: []roster.Membership{
				{UserID: submitter, Role: roster.Member, Status: roster.Active},
				{UserID: r1, Role: roster.Admin, Status: roster.Active},
				{UserID: r2, Role: roster.Accountant, Status: roster.Active},
				{UserID: r3, Role: roster.Owner, Status: roster.Active},
			},
		},
		roster.Snapshot{
			OrganizationID:    soloOrg,
			ApprovalsRequired: 1,
			Members: []roster.Membership{
				{UserID: submitter, Role: roster.Member, Status: roster.Active},
				{UserID: soloAdmin, Role: roster.Owner, Status: roster.Active},
			},
		},
	)

	log := activities.NewMemory(logger, pg)
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	subs := submissions.New(submissions.NewMemoryStore(log), rost, clk, &events.Recorder{}, logger, pg, submissions.Policy{
		MaxRetries:   50,
		RetryBackoff: time.Millisecond,
		ClaimTTL:     time.Minute,
	})

	return &env{
		subs:   subs,
		engine: approvals.New(subs, logger),
		roster: rost,
		log:    log,
		clock:  clk,
	}
}

func strp(s string) *string { return &s }

func (e *env) submit(t *testing.T, orgID uuid.UUID, reviewers ...uuid.UUID) *submissions.Submission {
	t.Helper()
	sub, err := e.subs.Create(context.Background(), submitter, submissions.CreateCommand{
		OrganizationID: orgID,
		ReviewerIDs:    reviewers,
		Fields:         map[string]*string{"total": strp("119.00"), "vat_rate": strp("19")},
	})
	require.NoError(t, err)
	return sub
}

func (e *env) decide(t *testing.T, id, reviewer uuid.UUID, d approvals.Decision) *submissions.Submission {
	t.Helper()
	sub, err := e.engine.Decide(context.Background(), id, reviewer, d)
	require.NoError(t, err)
	return sub
}

func (e *env) actions(id uuid.UUID) []activities.Action {
	var out []activities.Action
	for _, a := range e.log.All(id) {
		out = append(out, a.Action)
	}
	return out
}

func editRequest(t *testing.T, comment string) approvals.Decision {
	t.Helper()
	d, err := approvals.RequestEdits(comment)
	require.NoError(t, err)
	return d
}

func TestQuorumOfTwo(t *testing.T) {
	e := newEnv(t, 2)
	sub := e.submit(t, org, r1, r2)

	sub = e.decide(t, sub.ID, r1, approvals.Approve(""))
	assert.Equal(t, submissions.PendingReview, sub.Status)
	assert.Equal(t, 1, sub.ApprovalsObtained())

	sub = e.decide(t, sub.ID, r2, approvals.Approve(""))
	assert.Equal(t, submissions.Approved, sub.Status)
	assert.Equal(t, 2, sub.ApprovalsObtained())

	assert.Equal(t, []activities.Action{
		activities.Uploaded,
		activities.Approved,
		activities.Approved,
		activities.QuorumReached,
	}, e.actions(sub.ID))

	last := e.log.All(sub.ID)[3]
	assert.Nil(t, last.ActorID, "quorum is a system entry")
}

func TestEditRequestWinsImmediately(t *testing.T) {
	e := newEnv(t, 2)
	sub := e.submit(t, org, r1, r2)

	sub = e.decide(t, sub.ID, r1, editRequest(t, "fix VAT rate"))
	assert.Equal(t, submissions.ChangesRequested, sub.Status)

	_, err := e.engine.Decide(context.Background(), sub.ID, r2, approvals.Approve(""))
	assert.ErrorIs(t, err, submissions.ErrInvalidState)
}

func TestEditRequestAfterApproval(t *testing.T) {
	e := newEnv(t, 1)
	sub := e.submit(t, org, r1, r2)

	sub = e.decide(t, sub.ID, r1, approvals.Approve(""))
	require.Equal(t, submissions.Approved, sub.Status)

	sub = e.decide(t, sub.ID, r2, editRequest(t, "wrong supplier"))
	assert.Equal(t, submissions.ChangesRequested, sub.Status)
	assert.Equal(t, 1, sub.ApprovalsObtained())
}

func TestLateApprovalKeepsApproved(t *testing.T) {
	e := newEnv(t, 1)
	sub := e.submit(t, org, r1, r2)

	e.decide(t, sub.ID, r1, approvals.Approve(""))
	sub = e.decide(t, sub.ID, r2, approvals.Approve("also fine"))

	assert.Equal(t, submissions.Approved, sub.Status)
	assert.Equal(t, 2, sub.ApprovalsObtained())
	assert.Equal(t, 1, countAction(e.actions(sub.ID), activities.QuorumReached))
}

func TestResubmitOpensNewRound(t *testing.T) {
	e := newEnv(t, 2)
	sub := e.submit(t, org, r1, r2)
	ctx := context.Background()

	e.decide(t, sub.ID, r2, approvals.Approve(""))
	e.decide(t, sub.ID, r1, editRequest(t, "fix VAT rate"))

	_, err := e.engine.Resubmit(ctx, sub.ID, r1, nil)
	assert.ErrorIs(t, err, submissions.ErrForbidden, "only the submitter resubmits")

	sub, err = e.engine.Resubmit(ctx, sub.ID, submitter, map[string]*string{"vat_rate": strp("7")})
	require.NoError(t, err)

	assert.Equal(t, 2, sub.Round)
	assert.Equal(t, submissions.PendingReview, sub.Status)
	assert.Equal(t, 0, sub.ApprovalsObtained())
	assert.Len(t, sub.Approvals, 2, "round 1 decisions stay on record")
	assert.Empty(t, sub.CurrentApprovals())
	assert.Equal(t, "7", *sub.Fields["vat_rate"])

	entries := e.log.All(sub.ID)
	resubmitted := entries[len(entries)-1]
	assert.Equal(t, activities.Resubmitted, resubmitted.Action)
	assert.Equal(t, 2, resubmitted.Round)
	assert.Equal(t, []string{"vat_rate"}, resubmitted.Changes.Fields())

	sub = e.decide(t, sub.ID, r1, approvals.Approve(""))
	assert.Equal(t, submissions.PendingReview, sub.Status, "round 1 approval from r2 does not count")

	_, err = e.engine.Resubmit(ctx, sub.ID, submitter, nil)
	assert.ErrorIs(t, err, submissions.ErrInvalidState)
}

func TestResubmitSnapshotsPolicy(t *testing.T) {
	e := newEnv(t, 2)
	ctx := context.Background()
	sub := e.submit(t, org, r1, r2)

	_, err := e.roster.SetApprovalsRequired(ctx, org, r1, 1)
	require.NoError(t, err)

	sub = e.decide(t, sub.ID, r1, approvals.Approve(""))
	assert.Equal(t, submissions.PendingReview, sub.Status, "in-flight round keeps its policy")

	e.decide(t, sub.ID, r2, editRequest(t, "typo"))
	sub, err = e.engine.Resubmit(ctx, sub.ID, submitter, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sub.ApprovalsRequired)
}

func TestSingleAdminShortcut(t *testing.T) {
	e := newEnv(t, 1)
	sub := e.submit(t, soloOrg)
	require.Equal(t, []uuid.UUID{soloAdmin}, sub.ReviewerIDs())

	sub = e.decide(t, sub.ID, soloAdmin, approvals.Approve(""))
	assert.Equal(t, submissions.Approved, sub.Status)
}

func TestDecideErrors(t *testing.T) {
	e := newEnv(t, 2)
	ctx := context.Background()
	sub := e.submit(t, org, r1, r2)

	_, err := e.engine.Decide(ctx, sub.ID, r3, approvals.Approve(""))
	assert.ErrorIs(t, err, submissions.ErrNotAReviewer)

	before := e.decide(t, sub.ID, r1, approvals.Approve(""))

	for _, d := range []approvals.Decision{approvals.Approve(""), editRequest(t, "changed my mind")} {
		_, err = e.engine.Decide(ctx, sub.ID, r1, d)
		assert.ErrorIs(t, err, submissions.ErrAlreadyVoted)
	}

	after, err := e.subs.Find(ctx, sub.ID, submitter)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version, "rejected votes never mutate")

	_, err = e.engine.Decide(ctx, uuid.New(), r1, approvals.Approve(""))
	assert.ErrorIs(t, err, submissions.ErrNotFound)

	_, err = e.engine.Decide(ctx, sub.ID, r2, nil)
	assert.ErrorIs(t, err, submissions.ErrInvalidInput)
}

func TestAddReviewerAfterApprovalIsNonBinding(t *testing.T) {
	e := newEnv(t, 1)
	ctx := context.Background()
	sub := e.submit(t, org, r2)

	e.decide(t, sub.ID, r2, approvals.Approve(""))

	sub, err := e.subs.AddReviewer(ctx, sub.ID, r1, r3)
	require.NoError(t, err)
	assert.Equal(t, submissions.Approved, sub.Status)

	sub = e.decide(t, sub.ID, r3, approvals.Approve(""))
	assert.Equal(t, submissions.Approved, sub.Status)
	assert.Equal(t, 2, sub.ApprovalsObtained())
}

func TestExtraction(t *testing.T) {
	ctx := context.Background()

	create := func(t *testing.T, e *env) *submissions.Submission {
		sub, err := e.subs.Create(ctx, submitter, submissions.CreateCommand{
			OrganizationID: org,
			ReviewerIDs:    []uuid.UUID{r1},
		})
		require.NoError(t, err)
		require.Equal(t, submissions.Processing, sub.Status)
		return sub
	}

	t.Run("success opens review", func(t *testing.T) {
		e := newEnv(t, 2)
		sub := create(t, e)

		_, err := e.roster.SetApprovalsRequired(ctx, org, r1, 1)
		require.NoError(t, err)

		sub, err = e.engine.CompleteExtraction(ctx, sub.ID, approvals.Result{
			Fields: map[string]approvals.FieldResult{
				"total":  {Value: strp("42.00"), Confidence: "high", BBox: []float64{0.1, 0.2, 0.3, 0.4}},
				"vendor": {Value: nil, Confidence: "low"},
			},
		})
		require.NoError(t, err)

		assert.Equal(t, submissions.PendingReview, sub.Status)
		assert.True(t, sub.EnteredReview)
		assert.Equal(t, 1, sub.ApprovalsRequired, "policy snapshotted on entering review")
		assert.Equal(t, "42.00", *sub.Fields["total"])
		assert.Equal(t, "high", sub.Extraction["total"].Confidence)

		entries := e.log.All(sub.ID)
		require.Len(t, entries, 2)
		assert.Equal(t, activities.ExtractionCompleted, entries[1].Action)
		assert.Nil(t, entries[1].ActorID)

		_, err = e.engine.CompleteExtraction(ctx, sub.ID, approvals.Result{})
		assert.ErrorIs(t, err, submissions.ErrInvalidState)
	})

	t.Run("failure then manual completion", func(t *testing.T) {
		e := newEnv(t, 1)
		sub := create(t, e)

		sub, err := e.engine.CompleteExtraction(ctx, sub.ID, approvals.Result{Error: strp("unreadable scan")})
		require.NoError(t, err)
		assert.Equal(t, submissions.ExtractionFailed, sub.Status)
		require.NotNil(t, sub.ExtractionError)

		_, err = e.engine.CompleteManually(ctx, sub.ID, r1, nil)
		assert.ErrorIs(t, err, submissions.ErrForbidden)

		sub, err = e.subs.EditFields(ctx, sub.ID, submitter, map[string]*string{"total": strp("10.00")})
		require.NoError(t, err)

		sub, err = e.engine.CompleteManually(ctx, sub.ID, submitter, map[string]*string{"vendor": strp("Acme")})
		require.NoError(t, err)
		assert.Equal(t, submissions.PendingReview, sub.Status)
		assert.Equal(t, 1, sub.Round, "round unchanged")
		assert.Equal(t, "Acme", *sub.Fields["vendor"])

		assert.Equal(t, []activities.Action{
			activities.Uploaded,
			activities.ExtractionFailed,
			activities.FieldsEdited,
			activities.ManuallyCompleted,
		}, e.actions(sub.ID))
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("submitter withdraws", func(t *testing.T) {
		e := newEnv(t, 2)
		sub := e.submit(t, org, r1, r2)

		_, err := e.engine.Cancel(ctx, sub.ID, r1, "")
		assert.ErrorIs(t, err, submissions.ErrForbidden, "reviewers cannot cancel")

		sub, err = e.engine.Cancel(ctx, sub.ID, submitter, "duplicate upload")
		require.NoError(t, err)
		assert.Equal(t, submissions.Rejected, sub.Status)

		_, err = e.engine.Cancel(ctx, sub.ID, submitter, "")
		assert.ErrorIs(t, err, submissions.ErrInvalidState)

		_, err = e.engine.Decide(ctx, sub.ID, r1, approvals.Approve(""))
		assert.ErrorIs(t, err, submissions.ErrInvalidState)

		_, err = e.subs.EditFields(ctx, sub.ID, submitter, map[string]*string{"total": strp("1")})
		assert.ErrorIs(t, err, submissions.ErrInvalidState)
	})

	t.Run("changes requested", func(t *testing.T) {
		e := newEnv(t, 2)
		sub := e.submit(t, org, r1, r2)
		e.decide(t, sub.ID, r1, editRequest(t, "wrong"))

		sub, err := e.engine.Cancel(ctx, sub.ID, submitter, "")
		require.NoError(t, err)
		assert.Equal(t, submissions.Rejected, sub.Status)
	})
}

func TestReview(t *testing.T) {
	e := newEnv(t, 2)
	ctx := context.Background()
	sub := e.submit(t, org, r1, r2)
	e.decide(t, sub.ID, r1, approvals.Approve("ok"))

	rv, err := e.engine.Review(ctx, sub.ID, r2)
	require.NoError(t, err)
	assert.Equal(t, approvals.Counts{Total: 2, Approved: 1, Pending: 1}, rv.Counts)
	assert.Equal(t, 1, rv.ApprovalsObtained)
	assert.Equal(t, 2, rv.ApprovalsRequired)
	assert.Nil(t, rv.MyDecision)
	assert.True(t, rv.CanDecide)
	assert.False(t, rv.CanEdit)
	assert.False(t, rv.CanCancel)
	assert.False(t, rv.CanExport)

	rv, err = e.engine.Review(ctx, sub.ID, r1)
	require.NoError(t, err)
	require.NotNil(t, rv.MyDecision)
	assert.Equal(t, submissions.VerdictApproved, *rv.MyDecision)
	assert.False(t, rv.CanDecide)
	assert.True(t, rv.CanAddReviewer)
	assert.True(t, rv.CanEdit, "admins may edit")

	rv, err = e.engine.Review(ctx, sub.ID, submitter)
	require.NoError(t, err)
	assert.True(t, rv.CanEdit)
	assert.True(t, rv.CanCancel)
	assert.False(t, rv.CanResubmit)
	assert.False(t, rv.CanAddReviewer)

	e.decide(t, sub.ID, r2, approvals.Approve(""))
	rv, err = e.engine.Review(ctx, sub.ID, r2)
	require.NoError(t, err)
	assert.Equal(t, submissions.Approved, rv.Status)
	assert.True(t, rv.CanExport)

	_, err = e.engine.Review(ctx, sub.ID, uuid.New())
	assert.ErrorIs(t, err, submissions.ErrForbidden)
}

// Every reviewer votes at once. Whatever the interleaving, the committed
// state must satisfy the consensus rules and the quorum transition must
// be recorded exactly once.
func TestConcurrentDecisions(t *testing.T) {
	for _, withEditRequest := range []bool{false, true} {
		e := newEnv(t, 2)
		ctx := context.Background()
		sub := e.submit(t, org, r1, r2, r3)

		var wg sync.WaitGroup
		for i, reviewer := range []uuid.UUID{r1, r2, r3} {
			d := approvals.Approve("")
			if withEditRequest && i == 1 {
				d = editRequest(t, "totals disagree")
			}
			wg.Go(func() {
				_, err := e.engine.Decide(ctx, sub.ID, reviewer, d)
				if withEditRequest && d.Verdict() == submissions.VerdictApproved {
					// the edit request may land first and close the round
					if err != nil {
						assert.ErrorIs(t, err, submissions.ErrInvalidState)
					}
					return
				}
				assert.NoError(t, err)
			})
		}
		wg.Wait()

		got, err := e.subs.Find(ctx, sub.ID, submitter)
		require.NoError(t, err)
		assertConsensus(t, got)

		if withEditRequest {
			assert.Equal(t, submissions.ChangesRequested, got.Status)
		} else {
			assert.Len(t, got.CurrentApprovals(), 3)
			assert.Equal(t, submissions.Approved, got.Status)
			assert.Equal(t, 1, countAction(e.actions(sub.ID), activities.QuorumReached))
		}
	}
}

func assertConsensus(t *testing.T, s *submissions.Submission) {
	t.Helper()
	if s.ApprovalsObtained() < s.ApprovalsRequired {
		assert.NotEqual(t, submissions.Approved, s.Status, "approved below quorum")
	}
	if s.HasEditRequest() {
		assert.Equal(t, submissions.ChangesRequested, s.Status, "edit request must win")
	}
	seen := map[uuid.UUID]bool{}
	for _, a := range s.CurrentApprovals() {
		assert.False(t, seen[a.ReviewerID], "duplicate vote from %s", a.ReviewerID)
		seen[a.ReviewerID] = true
	}
}

func countAction(actions []activities.Action, want activities.Action) int {
	n := 0
	for _, a := range actions {
		if a == want {
			n++
		}
	}
	return n
}
