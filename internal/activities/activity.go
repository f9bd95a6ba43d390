// Package activities implements the append-only audit trail of submission mutations.
// Activities are written inside the submission commit that produced them and
// are never updated or deleted.
package activities

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Action identifies the kind of mutation an Activity records.
type Action string

const (
	Uploaded            Action = "UPLOADED"
	ExtractionCompleted Action = "EXTRACTION_COMPLETED"
	ExtractionFailed    Action = "EXTRACTION_FAILED"
	FieldsEdited        Action = "FIELDS_EDITED"
	ReviewerAdded       Action = "REVIEWER_ADDED"
	Approved            Action = "APPROVED"
	EditRequested       Action = "EDIT_REQUESTED"
	QuorumReached       Action = "QUORUM_REACHED"
	Resubmitted         Action = "RESUBMITTED"
	ManuallyCompleted   Action = "MANUALLY_COMPLETED"
	Cancelled           Action = "CANCELLED"
	Commented           Action = "COMMENTED"
	Booked              Action = "BOOKED"
	BookingFailed       Action = "BOOKING_FAILED"
)

// Activity is one immutable entry in a submission's history.
// A nil ActorID marks a system-generated entry.
type Activity struct {
	ID           uuid.UUID  `json:"id"`
	Seq          int64      `json:"seq"`
	SubmissionID uuid.UUID  `json:"submission_id"`
	ActorID      *uuid.UUID `json:"actor_id"`
	Action       Action     `json:"action"`
	Comment      *string    `json:"comment,omitempty"`
	Changes      Changes    `json:"changes,omitempty"`
	Round        int        `json:"round"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewActivity creates an Activity with a fresh id. Pass uuid.Nil as actor for system entries.
func NewActivity(submissionID, actor uuid.UUID, action Action, round int, at time.Time) Activity {
	a := Activity{
		ID:           uuid.New(),
		SubmissionID: submissionID,
		Action:       action,
		Round:        round,
		CreatedAt:    at,
	}
	if actor != uuid.Nil {
		a.ActorID = &actor
	}
	return a
}

// WithComment returns a copy of a carrying text as its comment.
func (a Activity) WithComment(text string) Activity {
	a.Comment = &text
	return a
}

// WithChanges returns a copy of a carrying the field diff. Empty diffs are dropped.
func (a Activity) WithChanges(c Changes) Activity {
	if len(c) > 0 {
		a.Changes = c
	}
	return a
}

// Change is the before and after value of one field. Nil means the field was empty.
type Change struct {
	Old *string `json:"old"`
	New *string `json:"new"`
}

// display renders both sides with "" standing in for an empty value.
func (c Change) display() (before, after string) {
	if c.Old != nil {
		before = *c.Old
	}
	if c.New != nil {
		after = *c.New
	}
	return before, after
}

// Changes maps field names to their recorded change.
type Changes map[string]Change

// Fields returns the changed field names in sorted order.
func (c Changes) Fields() []string {
	return slices.Sorted(maps.Keys(c))
}

// Summary renders the changes one field at a time in field order, as in
// `total: "100.00" -> "120.00"; vat: "" -> "0.2"`.
func (c Changes) Summary() string {
	parts := make([]string, 0, len(c))
	for _, field := range c.Fields() {
		before, after := c[field].display()
		parts = append(parts, fmt.Sprintf("%s: %q -> %q", field, before, after))
	}
	return strings.Join(parts, "; ")
}

// Diff compares requested edits against current field values and keeps only
// the fields whose raw value differs. A nil value and "" are different values.
func Diff(current, edits map[string]*string) Changes {
	changes := make(Changes)
	for field, next := range edits {
		prev := current[field]
		if equal(prev, next) {
			continue
		}
		changes[field] = Change{Old: clone(prev), New: clone(next)}
	}
	return changes
}

// Apply returns a copy of fields with every change's new value written in.
func (c Changes) Apply(fields map[string]*string) map[string]*string {
	out := make(map[string]*string, len(fields)+len(c))
	for k, v := range fields {
		out[k] = clone(v)
	}
	for k, ch := range c {
		out[k] = clone(ch.New)
	}
	return out
}

func equal(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func clone(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
