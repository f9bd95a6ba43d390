// Package approvals is the review state machine. It records reviewer
// decisions, derives consensus, opens new rounds on resubmission and decides
// whether a submission may be exported.
package approvals

import (
	"fmt"
	"strings"

	"github.com/einstalek/invoice-ai/internal/submissions"
)

// Decision is a reviewer's verdict. Only Approve and RequestEdits build one,
// so an edit request without a comment cannot exist.
type Decision interface {
	Verdict() submissions.Verdict
	Comment() *string
	sealed()
}

type approval struct{ note string }

func (approval) Verdict() submissions.Verdict { return submissions.VerdictApproved }
func (a approval) Comment() *string           { return optional(a.note) }
func (approval) sealed()                      {}

type editRequest struct{ reason string }

func (editRequest) Verdict() submissions.Verdict { return submissions.VerdictEditRequested }
func (e editRequest) Comment() *string           { return &e.reason }
func (editRequest) sealed()                      {}

// Approve builds an approval. The comment is optional.
func Approve(comment string) Decision {
	return approval{note: strings.TrimSpace(comment)}
}

// RequestEdits builds an edit request. A blank comment fails with
// ErrCommentRequired.
func RequestEdits(comment string) (Decision, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, submissions.ErrCommentRequired
	}
	return editRequest{reason: comment}, nil
}

// ParseDecision builds a Decision from its wire form.
func ParseDecision(verdict, comment string) (Decision, error) {
	switch submissions.Verdict(strings.ToUpper(strings.TrimSpace(verdict))) {
	case submissions.VerdictApproved:
		return Approve(comment), nil
	case submissions.VerdictEditRequested:
		return RequestEdits(comment)
	default:
		return nil, fmt.Errorf("%w: unknown decision %q", submissions.ErrInvalidInput, verdict)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
