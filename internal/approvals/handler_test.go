package approvals_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/einstalek/invoice-ai/internal/approvals"
	"github.com/einstalek/invoice-ai/internal/submissions"
	"github.com/einstalek/invoice-ai/pkg/handlers"
	"github.com/einstalek/invoice-ai/pkg/identity"
)

type mockSystem struct {
	completeExtractionFn func(ctx context.Context, id uuid.UUID, result approvals.Result) (*submissions.Submission, error)
	decideFn             func(ctx context.Context, id, reviewer uuid.UUID, d approvals.Decision) (*submissions.Submission, error)
	resubmitFn           func(ctx context.Context, id, actor uuid.UUID, edits map[string]*string) (*submissions.Submission, error)
	completeManuallyFn   func(ctx context.Context, id, actor uuid.UUID, edits map[string]*string) (*submissions.Submission, error)
	cancelFn             func(ctx context.Context, id, actor uuid.UUID, comment string) (*submissions.Submission, error)
	reviewFn             func(ctx context.Context, id, viewer uuid.UUID) (*approvals.Review, error)
}

func (m *mockSystem) Handler(int64) *approvals.Handler { return nil }

func (m *mockSystem) CompleteExtraction(ctx context.Context, id uuid.UUID, result approvals.Result) (*submissions.Submission, error) {
	return m.completeExtractionFn(ctx, id, result)
}

func (m *mockSystem) Decide(ctx context.Context, id, reviewer uuid.UUID, d approvals.Decision) (*submissions.Submission, error) {
	return m.decideFn(ctx, id, reviewer, d)
}

func (m *mockSystem) Resubmit(ctx context.Context, id, actor uuid.UUID, edits map[string]*string) (*submissions.Submission, error) {
	return m.resubmitFn(ctx, id, actor, edits)
}

func (m *mockSystem) CompleteManually(ctx context.Context, id, actor uuid.UUID, edits map[string]*string) (*submissions.Submission, error) {
	return m.completeManuallyFn(ctx, id, actor, edits)
}

func (m *mockSystem) Cancel(ctx context.Context, id, actor uuid.UUID, comment string) (*submissions.Submission, error) {
	return m.cancelFn(ctx, id, actor, comment)
}

func (m *mockSystem) Review(ctx context.Context, id, viewer uuid.UUID) (*approvals.Review, error) {
	return m.reviewFn(ctx, id, viewer)
}

func setupMux(sys approvals.System) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := approvals.NewHandler(sys, logger, 1<<20)

	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		mux.HandleFunc(route.Method+" "+group.Prefix+route.Pattern, route.Handler)
	}
	resolver, _ := identity.New(context.Background(), &identity.Config{})
	return identity.Middleware(resolver, logger)(mux)
}

func send(mux http.Handler, method, path string, actor uuid.UUID, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(identity.HeaderActorID, actor.String())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp handlers.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp.Code
}

func TestHandlerDecide(t *testing.T) {
	id := uuid.New()
	reviewer := uuid.New()

	tests := []struct {
		name     string
		body     string
		err      error
		status   int
		code     string
		verdict  submissions.Verdict
		reaching bool
	}{
		{"approve", `{"decision":"APPROVED"}`, nil, http.StatusOK, "", submissions.VerdictApproved, true},
		{"edit request", `{"decision":"EDIT_REQUESTED","comment":"fix VAT rate"}`, nil, http.StatusOK, "", submissions.VerdictEditRequested, true},
		{"missing comment", `{"decision":"EDIT_REQUESTED"}`, nil, http.StatusBadRequest, "COMMENT_REQUIRED", "", false},
		{"unknown decision", `{"decision":"MAYBE"}`, nil, http.StatusBadRequest, "INVALID_INPUT", "", false},
		{"already voted", `{"decision":"APPROVED"}`, submissions.ErrAlreadyVoted, http.StatusConflict, "ALREADY_VOTED", submissions.VerdictApproved, true},
		{"not a reviewer", `{"decision":"APPROVED"}`, submissions.ErrNotAReviewer, http.StatusForbidden, "NOT_A_REVIEWER", submissions.VerdictApproved, true},
		{"state changed", `{"decision":"APPROVED"}`, submissions.ErrConcurrentModification, http.StatusPreconditionFailed, "CONCURRENT_MODIFICATION", submissions.VerdictApproved, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			mux := setupMux(&mockSystem{
				decideFn: func(_ context.Context, gotID, gotReviewer uuid.UUID, d approvals.Decision) (*submissions.Submission, error) {
					called = true
					if gotID != id || gotReviewer != reviewer {
						t.Errorf("target: got (%s, %s)", gotID, gotReviewer)
					}
					if d.Verdict() != tt.verdict {
						t.Errorf("verdict: got %s, want %s", d.Verdict(), tt.verdict)
					}
					if tt.err != nil {
						return nil, tt.err
					}
					return &submissions.Submission{ID: id, Status: submissions.PendingReview}, nil
				},
			})

			rec := send(mux, "POST", "/submissions/"+id.String()+"/decisions", reviewer, tt.body)

			if rec.Code != tt.status {
				t.Fatalf("status: got %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if called != tt.reaching {
				t.Errorf("system called: got %v, want %v", called, tt.reaching)
			}
			if tt.code != "" {
				if got := errorCode(t, rec); got != tt.code {
					t.Errorf("code: got %q, want %q", got, tt.code)
				}
			}
		})
	}
}

func TestHandlerOptionalBodies(t *testing.T) {
	id := uuid.New()
	actor := uuid.New()

	var gotComment string
	var gotEdits map[string]*string
	mux := setupMux(&mockSystem{
		cancelFn: func(_ context.Context, _, _ uuid.UUID, comment string) (*submissions.Submission, error) {
			gotComment = comment
			return &submissions.Submission{ID: id, Status: submissions.Rejected}, nil
		},
		resubmitFn: func(_ context.Context, _, _ uuid.UUID, edits map[string]*string) (*submissions.Submission, error) {
			gotEdits = edits
			return &submissions.Submission{ID: id, Status: submissions.PendingReview, Round: 2}, nil
		},
	})

	rec := send(mux, "POST", "/submissions/"+id.String()+"/cancel", actor, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel without body: got %d", rec.Code)
	}

	rec = send(mux, "POST", "/submissions/"+id.String()+"/cancel", actor, `{"comment":"duplicate"}`)
	if rec.Code != http.StatusOK || gotComment != "duplicate" {
		t.Fatalf("cancel with body: got %d, comment %q", rec.Code, gotComment)
	}

	rec = send(mux, "POST", "/submissions/"+id.String()+"/resubmit", actor, `{"fields":{"vat_rate":"7"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("resubmit: got %d", rec.Code)
	}
	if gotEdits["vat_rate"] == nil || *gotEdits["vat_rate"] != "7" {
		t.Errorf("edits: got %v", gotEdits)
	}

	rec = send(mux, "POST", "/submissions/"+id.String()+"/resubmit", actor, `{"fields":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: got %d", rec.Code)
	}
}

func TestHandlerExtractionAndReview(t *testing.T) {
	id := uuid.New()
	viewer := uuid.New()

	mux := setupMux(&mockSystem{
		completeExtractionFn: func(_ context.Context, _ uuid.UUID, result approvals.Result) (*submissions.Submission, error) {
			if !result.Failed() {
				return nil, errors.New("expected a failed result")
			}
			return &submissions.Submission{ID: id, Status: submissions.ExtractionFailed}, nil
		},
		reviewFn: func(_ context.Context, _, gotViewer uuid.UUID) (*approvals.Review, error) {
			if gotViewer != viewer {
				return nil, submissions.ErrForbidden
			}
			return &approvals.Review{SubmissionID: id, CanDecide: true}, nil
		},
	})

	rec := send(mux, "POST", "/submissions/"+id.String()+"/extraction", viewer, `{"fields":{},"error":"timeout"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("extraction: got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = send(mux, "GET", "/submissions/"+id.String()+"/review", viewer, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("review: got %d", rec.Code)
	}
	var review approvals.Review
	if err := json.NewDecoder(rec.Body).Decode(&review); err != nil {
		t.Fatalf("decode review: %v", err)
	}
	if !review.CanDecide {
		t.Error("expected can_decide")
	}

	rec = send(mux, "GET", "/submissions/"+id.String()+"/review", uuid.New(), "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("review forbidden: got %d", rec.Code)
	}

	rec = send(mux, "GET", "/submissions/bad/review", viewer, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: got %d", rec.Code)
	}
}
