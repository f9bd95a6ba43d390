package roster

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process roster for tests and local runs.
type Memory struct {
	mu     sync.RWMutex
	orgs   map[uuid.UUID]Snapshot
	logger *slog.Logger
}

// NewMemory creates a roster seeded with the given snapshots.
func NewMemory(logger *slog.Logger, snapshots ...Snapshot) *Memory {
	m := &Memory{
		orgs:   make(map[uuid.UUID]Snapshot),
		logger: logger.With("system", "roster"),
	}
	for _, s := range snapshots {
		m.Put(s)
	}
	return m
}

// Put replaces the organization's roster.
func (m *Memory) Put(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Members = slices.Clone(s.Members)
	m.orgs[s.OrganizationID] = s
}

func (m *Memory) Handler() *Handler {
	return NewHandler(m, m.logger)
}

func (m *Memory) Resolve(_ context.Context, orgID uuid.UUID) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.orgs[orgID]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	s.Members = slices.Clone(s.Members)
	return s, nil
}

func (m *Memory) SetApprovalsRequired(_ context.Context, orgID, actor uuid.UUID, n int) (Snapshot, error) {
	if n < 1 {
		return Snapshot{}, ErrInvalidPolicy
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.orgs[orgID]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	if !s.IsAdmin(actor) {
		return Snapshot{}, ErrForbidden
	}

	s.ApprovalsRequired = n
	m.orgs[orgID] = s

	s.Members = slices.Clone(s.Members)
	return s, nil
}

func (m *Memory) Organizations(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := []uuid.UUID{}
	for id, s := range m.orgs {
		if _, ok := s.Member(userID); ok {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return strings.Compare(a.String(), b.String())
	})
	return ids, nil
}
