package submissions

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/einstalek/invoice-ai/internal/activities"
	"github.com/einstalek/invoice-ai/pkg/pagination"
)

// MemoryStore is a Store held in process with the same commit semantics as
// the Postgres store. Activities are appended to the shared activity log.
type MemoryStore struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*Submission
	log  *activities.Memory
}

// NewMemoryStore creates an empty store writing activities to log.
func NewMemoryStore(log *activities.Memory) *MemoryStore {
	return &MemoryStore{
		subs: make(map[uuid.UUID]*Submission),
		log:  log,
	}
}

func (m *MemoryStore) Insert(_ context.Context, c Change) (Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := c.Submission
	if _, exists := m.subs[s.ID]; exists {
		return c, fmt.Errorf("insert submission %s: already exists", s.ID)
	}

	s.Version = 1
	s.Reviewers = append(s.Reviewers[:0:0], c.Reviewers...)
	s.Approvals = append(s.Approvals[:0:0], c.Approvals...)
	m.subs[s.ID] = s.Clone()

	c.Activities = m.log.Append(c.Activities...)
	return c, nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) List(
	_ context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Submission], error) {
	m.mu.Lock()
	matched := make([]Submission, 0, len(m.subs))
	for _, s := range m.subs {
		if filters.match(s) && matchesSearch(s, page.Search) {
			c := s.Clone()
			c.Reviewers, c.Approvals = nil, nil
			matched = append(matched, *c)
		}
	}
	m.mu.Unlock()

	slices.SortFunc(matched, func(a, b Submission) int {
		if n := b.CreatedAt.Compare(a.CreatedAt); n != 0 {
			return n
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})

	result := pagination.Window(matched, page)
	return &result, nil
}

func (m *MemoryStore) Commit(_ context.Context, expected int64, c Change) (Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.subs[c.Submission.ID]
	if !ok {
		return c, ErrNotFound
	}
	if stored.Version != expected {
		return c, ErrVersionConflict
	}

	for _, a := range c.Approvals {
		collides := slices.ContainsFunc(stored.Approvals, func(b Approval) bool {
			return b.Round == a.Round && b.ReviewerID == a.ReviewerID
		})
		if collides {
			return c, ErrVersionConflict
		}
	}

	next := c.Submission.Clone()
	next.Version = expected + 1
	next.Reviewers = append(slices.Clone(stored.Reviewers), c.Reviewers...)
	next.Approvals = append(slices.Clone(stored.Approvals), c.Approvals...)
	m.subs[next.ID] = next

	c.Submission = next.Clone()
	c.Activities = m.log.Append(c.Activities...)
	return c, nil
}

func matchesSearch(s *Submission, search *string) bool {
	if search == nil || *search == "" {
		return true
	}
	needle := strings.ToLower(*search)
	for k, v := range s.Fields {
		if strings.Contains(strings.ToLower(k), needle) {
			return true
		}
		if v != nil && strings.Contains(strings.ToLower(*v), needle) {
			return true
		}
	}
	return false
}
