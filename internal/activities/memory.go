package activities

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/einstalek/invoice-ai/pkg/pagination"
)

// Memory is an in-process activity log. The in-memory submission store
// appends to it under its own commit lock.
type Memory struct {
	mu         sync.RWMutex
	seq        int64
	items      map[uuid.UUID][]Activity
	logger     *slog.Logger
	pagination pagination.Config
}

// NewMemory creates an empty in-memory log.
func NewMemory(logger *slog.Logger, pagination pagination.Config) *Memory {
	return &Memory{
		items:      make(map[uuid.UUID][]Activity),
		logger:     logger.With("system", "activities"),
		pagination: pagination,
	}
}

func (m *Memory) Handler(access Access) *Handler {
	return NewHandler(m, access, m.logger, m.pagination)
}

// Append assigns sequence numbers and stores the activities in order.
func (m *Memory) Append(items ...Activity) []Activity {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Activity, len(items))
	for i, a := range items {
		m.seq++
		a.Seq = m.seq
		m.items[a.SubmissionID] = append(m.items[a.SubmissionID], a)
		out[i] = a
	}
	return out
}

// All returns every activity recorded for the submission, oldest first.
func (m *Memory) All(submissionID uuid.UUID) []Activity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.items[submissionID])
}

func (m *Memory) List(
	_ context.Context,
	submissionID uuid.UUID,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Activity], error) {
	page.Normalize(m.pagination)

	m.mu.RLock()
	matched := make([]Activity, 0)
	for _, a := range m.items[submissionID] {
		if filters.match(a) {
			matched = append(matched, a)
		}
	}
	m.mu.RUnlock()

	descending := len(page.Sort) > 0 && page.Sort[0].Field == "Seq" && page.Sort[0].Descending
	slices.SortFunc(matched, func(a, b Activity) int {
		if descending {
			return cmp.Compare(b.Seq, a.Seq)
		}
		return cmp.Compare(a.Seq, b.Seq)
	})

	result := pagination.Window(matched, page)
	return &result, nil
}
