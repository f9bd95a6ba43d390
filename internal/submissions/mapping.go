package submissions

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"

	"github.com/google/uuid"

	"github.com/einstalek/invoice-ai/pkg/query"
	"github.com/einstalek/invoice-ai/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "submissions", "s").
	Project("id", "ID").
	Project("organization_id", "OrganizationID").
	Project("submitter_id", "SubmitterID").
	Project("status", "Status").
	Project("round", "Round").
	Project("approvals_required", "ApprovalsRequired").
	Project("fields", "Fields").
	Project("extraction", "Extraction").
	Project("extraction_error", "ExtractionError").
	Project("entered_review", "EnteredReview").
	Project("booked_at", "BookedAt").
	Project("booked_by", "BookedBy").
	Project("ledger_ref", "LedgerRef").
	Project("booking_claim", "BookingClaim").
	Project("booking_claimed_at", "BookingClaimedAt").
	Project("version", "Version").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt").
	ProjectExpr("s.fields::text", "FieldsText")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for submission queries.
// Nil fields are ignored.
type Filters struct {
	Status         *Status    `json:"status,omitempty"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	SubmitterID    *uuid.UUID `json:"submitter_id,omitempty"`

	visible *visibility
}

// visibility limits results to the viewer's own submissions and those of
// the organizations they belong to.
type visibility struct {
	viewer uuid.UUID
	orgs   []uuid.UUID
}

func (v *visibility) allows(s *Submission) bool {
	return s.SubmitterID == v.viewer || slices.Contains(v.orgs, s.OrganizationID)
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	b.
		WhereEquals("Status", f.Status).
		WhereEquals("OrganizationID", f.OrganizationID).
		WhereEquals("SubmitterID", f.SubmitterID)

	if f.visible != nil {
		orgs := make([]any, len(f.visible.orgs))
		for i, id := range f.visible.orgs {
			orgs[i] = id
		}
		b.WhereAnyOf(
			query.In("OrganizationID", orgs...),
			query.Equals("SubmitterID", f.visible.viewer),
		)
	}
	return b
}

func (f Filters) match(s *Submission) bool {
	if f.Status != nil && s.Status != *f.Status {
		return false
	}
	if f.OrganizationID != nil && s.OrganizationID != *f.OrganizationID {
		return false
	}
	if f.SubmitterID != nil && s.SubmitterID != *f.SubmitterID {
		return false
	}
	if f.visible != nil && !f.visible.allows(s) {
		return false
	}
	return true
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		st := Status(s)
		f.Status = &st
	}

	if s := values.Get("organization_id"); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			f.OrganizationID = &id
		}
	}

	if s := values.Get("submitter_id"); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			f.SubmitterID = &id
		}
	}

	return f
}

func scanSubmission(s repository.Scanner) (Submission, error) {
	var (
		sub        Submission
		fields     []byte
		extraction []byte
	)
	err := s.Scan(
		&sub.ID,
		&sub.OrganizationID,
		&sub.SubmitterID,
		&sub.Status,
		&sub.Round,
		&sub.ApprovalsRequired,
		&fields,
		&extraction,
		&sub.ExtractionError,
		&sub.EnteredReview,
		&sub.BookedAt,
		&sub.BookedBy,
		&sub.LedgerRef,
		&sub.BookingClaim,
		&sub.BookingClaimedAt,
		&sub.Version,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return sub, err
	}
	if err := decodeJSON(fields, &sub.Fields); err != nil {
		return sub, fmt.Errorf("decode fields of %s: %w", sub.ID, err)
	}
	if err := decodeJSON(extraction, &sub.Extraction); err != nil {
		return sub, fmt.Errorf("decode extraction of %s: %w", sub.ID, err)
	}
	return sub, nil
}

func scanReviewer(s repository.Scanner) (Reviewer, error) {
	var r Reviewer
	err := s.Scan(&r.UserID, &r.AddedBy, &r.AddedAt)
	return r, err
}

func scanApproval(s repository.Scanner) (Approval, error) {
	var a Approval
	err := s.Scan(&a.ID, &a.ReviewerID, &a.Round, &a.Verdict, &a.Comment, &a.CreatedAt)
	return a, err
}

func decodeJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
