package activities

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/einstalek/invoice-ai/pkg/query"
	"github.com/einstalek/invoice-ai/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "activities", "a").
	Project("id", "ID").
	Project("seq", "Seq").
	Project("submission_id", "SubmissionID").
	Project("actor_id", "ActorID").
	Project("action", "Action").
	Project("comment", "Comment").
	Project("changes", "Changes").
	Project("round", "Round").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{Field: "Seq"}

// Filters narrows an activity listing. Nil fields are ignored.
type Filters struct {
	Action  *Action    `json:"action,omitempty"`
	ActorID *uuid.UUID `json:"actor_id,omitempty"`
	Round   *int       `json:"round,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Action", f.Action).
		WhereEquals("ActorID", f.ActorID).
		WhereEquals("Round", f.Round)
}

func (f Filters) match(a Activity) bool {
	if f.Action != nil && a.Action != *f.Action {
		return false
	}
	if f.ActorID != nil && (a.ActorID == nil || *a.ActorID != *f.ActorID) {
		return false
	}
	if f.Round != nil && a.Round != *f.Round {
		return false
	}
	return true
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("action"); s != "" {
		a := Action(s)
		f.Action = &a
	}

	if s := values.Get("actor_id"); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			f.ActorID = &id
		}
	}

	if s := values.Get("round"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			f.Round = &n
		}
	}

	return f
}

func scanActivity(s repository.Scanner) (Activity, error) {
	var (
		a       Activity
		changes []byte
	)
	err := s.Scan(
		&a.ID,
		&a.Seq,
		&a.SubmissionID,
		&a.ActorID,
		&a.Action,
		&a.Comment,
		&changes,
		&a.Round,
		&a.CreatedAt,
	)
	if err != nil {
		return a, err
	}
	if len(changes) > 0 {
		if err := json.Unmarshal(changes, &a.Changes); err != nil {
			return a, fmt.Errorf("decode changes for activity %s: %w", a.ID, err)
		}
	}
	return a, nil
}

func encodeChanges(c Changes) (any, error) {
	if len(c) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
