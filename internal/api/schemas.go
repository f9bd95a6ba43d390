package api

import (
	"github.com/einstalek/invoice-ai/internal/activities"
	"github.com/einstalek/invoice-ai/internal/roster"
	"github.com/einstalek/invoice-ai/internal/submissions"
	"github.com/einstalek/invoice-ai/pkg/openapi"
)

var (
	statuses = values(
		submissions.Processing, submissions.ExtractionFailed, submissions.PendingReview,
		submissions.ChangesRequested, submissions.Approved, submissions.Booked, submissions.Rejected,
	)
	verdicts = values(submissions.VerdictApproved, submissions.VerdictEditRequested)
	actions  = values(
		activities.Uploaded, activities.ExtractionCompleted, activities.ExtractionFailed,
		activities.FieldsEdited, activities.ReviewerAdded, activities.Approved,
		activities.EditRequested, activities.QuorumReached, activities.Resubmitted,
		activities.ManuallyCompleted, activities.Cancelled, activities.Commented,
		activities.Booked, activities.BookingFailed,
	)
	roles        = values(roster.Owner, roster.Admin, roster.Accountant, roster.Member)
	memberStates = values(roster.Active, roster.Deactivated)
)

func values[T ~string](vs ...T) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}

func str(description string) *openapi.Schema {
	return &openapi.Schema{Type: "string", Description: description}
}

func integer(description string) *openapi.Schema {
	return &openapi.Schema{Type: "integer", Description: description}
}

func timestamp(description string) *openapi.Schema {
	return &openapi.Schema{Type: "string", Format: "date-time", Description: description}
}

func boolean(description string) *openapi.Schema {
	return &openapi.Schema{Type: "boolean", Description: description}
}

func enum(description string, values []any) *openapi.Schema {
	return &openapi.Schema{Type: "string", Description: description, Enum: values}
}

// fieldMap is a map of field name to value where null means empty.
func fieldMap(description string) *openapi.Schema {
	return &openapi.Schema{
		Type:                 "object",
		Description:          description,
		AdditionalProperties: &openapi.Schema{Type: "string"},
	}
}

func schemas() map[string]*openapi.Schema {
	return map[string]*openapi.Schema{
		"Submission": openapi.Object(map[string]*openapi.Schema{
			"id":                 openapi.UUID(""),
			"organization_id":    openapi.UUID(""),
			"submitter_id":       openapi.UUID(""),
			"status":             enum("Workflow status", statuses),
			"round":              integer("Review round, starting at 1"),
			"approvals_required": integer("Quorum fixed when the round opened"),
			"fields":             fieldMap("Invoice fields; null is an empty field"),
			"extraction":         {Type: "object", Description: "Extraction confidence and bounding box per field"},
			"extraction_error":   str("Why extraction failed"),
			"entered_review":     boolean("Whether review has ever opened"),
			"reviewers":          openapi.ArrayOf("Reviewer"),
			"approvals":          openapi.ArrayOf("Approval"),
			"booked_at":          timestamp(""),
			"booked_by":          openapi.UUID(""),
			"ledger_ref":         str("Reference of the booked ledger entry"),
			"version":            integer("Optimistic concurrency version"),
			"created_at":         timestamp(""),
			"updated_at":         timestamp(""),
		}, "id", "organization_id", "submitter_id", "status", "round", "version"),

		"Reviewer": openapi.Object(map[string]*openapi.Schema{
			"user_id":  openapi.UUID(""),
			"added_by": openapi.UUID("Admin who added the reviewer after upload"),
			"added_at": timestamp(""),
		}, "user_id", "added_at"),

		"Approval": openapi.Object(map[string]*openapi.Schema{
			"id":          openapi.UUID(""),
			"reviewer_id": openapi.UUID(""),
			"round":       integer(""),
			"decision":    enum("", verdicts),
			"comment":     str(""),
			"created_at":  timestamp(""),
		}, "id", "reviewer_id", "round", "decision"),

		"SubmissionPage": openapi.PageOf("Submission"),

		"CreateCommand": openapi.Object(map[string]*openapi.Schema{
			"organization_id": openapi.UUID(""),
			"reviewer_ids":    {Type: "array", Items: openapi.UUID("")},
			"fields":          fieldMap("Supplying fields skips extraction"),
		}, "organization_id"),

		"SearchRequest": openapi.Object(map[string]*openapi.Schema{
			"page":            integer(""),
			"page_size":       integer(""),
			"search":          str(""),
			"sort":            str(""),
			"status":          enum("", statuses),
			"organization_id": openapi.UUID(""),
			"submitter_id":    openapi.UUID(""),
		}),

		"FieldsRequest": openapi.Object(map[string]*openapi.Schema{
			"fields": fieldMap("Field edits; null clears a field"),
		}, "fields"),

		"AddReviewerRequest": openapi.Object(map[string]*openapi.Schema{
			"reviewer_id": openapi.UUID(""),
		}, "reviewer_id"),

		"CommentRequest": openapi.Object(map[string]*openapi.Schema{
			"text": str(""),
		}, "text"),

		"Activity": openapi.Object(map[string]*openapi.Schema{
			"id":            openapi.UUID(""),
			"seq":           integer("Append order within the log"),
			"submission_id": openapi.UUID(""),
			"actor_id":      openapi.UUID("Null for system entries"),
			"action":        enum("", actions),
			"comment":       str(""),
			"changes":       {Type: "object", Description: "Old and new value per changed field"},
			"round":         integer(""),
			"created_at":    timestamp(""),
		}, "id", "seq", "submission_id", "action", "round", "created_at"),

		"ActivityPage": openapi.PageOf("Activity"),

		"ExtractionResult": openapi.Object(map[string]*openapi.Schema{
			"fields": {Type: "object", Description: "Value, confidence and bounding box per field"},
			"error":  str("Set when extraction failed"),
		}),

		"DecideRequest": openapi.Object(map[string]*openapi.Schema{
			"decision": enum("", verdicts),
			"comment":  str("Required for EDIT_REQUESTED"),
		}, "decision"),

		"CancelRequest": openapi.Object(map[string]*openapi.Schema{
			"comment": str(""),
		}),

		"Review": openapi.Object(map[string]*openapi.Schema{
			"submission_id":      openapi.UUID(""),
			"status":             enum("", statuses),
			"round":              integer(""),
			"reviewers":          {Type: "array", Items: &openapi.Schema{Type: "object"}},
			"counts":             {Type: "object", Description: "Decision tallies of the current round"},
			"approvals_obtained": integer(""),
			"approvals_required": integer(""),
			"my_decision":        enum("The caller's decision this round", verdicts),
			"can_decide":         boolean(""),
			"can_edit":           boolean(""),
			"can_resubmit":       boolean(""),
			"can_cancel":         boolean(""),
			"can_add_reviewer":   boolean(""),
			"can_export":         boolean(""),
		}, "submission_id", "status", "round"),

		"LedgerEntry": openapi.Object(map[string]*openapi.Schema{
			"submission_id":   openapi.UUID(""),
			"organization_id": openapi.UUID(""),
			"round":           integer(""),
			"fields":          fieldMap(""),
			"booked_by":       openapi.UUID(""),
			"requested_at":    timestamp(""),
		}, "submission_id", "round", "fields"),

		"Roster": openapi.Object(map[string]*openapi.Schema{
			"organization_id":    openapi.UUID(""),
			"approvals_required": integer(""),
			"members": {Type: "array", Items: openapi.Object(map[string]*openapi.Schema{
				"user_id": openapi.UUID(""),
				"role":    enum("", roles),
				"status":  enum("", memberStates),
			})},
		}, "organization_id", "approvals_required", "members"),

		"PolicyRequest": openapi.Object(map[string]*openapi.Schema{
			"approvals_required": {Type: "integer", Minimum: ptr(1.0)},
		}, "approvals_required"),
	}
}

func ptr[T any](v T) *T { return &v }
