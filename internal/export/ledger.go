package export

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/einstalek/invoice-ai/pkg/clock"
	"github.com/einstalek/invoice-ai/pkg/storage"
)

// ErrDocumentNotFound indicates no ledger document exists for a reference.
var ErrDocumentNotFound = errors.New("ledger document not found")

// Entry is the document handed to the ledger when a submission is booked.
type Entry struct {
	SubmissionID   uuid.UUID          `json:"submission_id"`
	OrganizationID uuid.UUID          `json:"organization_id"`
	Round          int                `json:"round"`
	Fields         map[string]*string `json:"fields"`
	BookedBy       uuid.UUID          `json:"booked_by"`
	RequestedAt    time.Time          `json:"requested_at"`
}

// Receipt is the ledger's acknowledgement of a write.
type Receipt struct {
	Ref        string    `json:"ref"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Ledger is the external record booked submissions are written to.
// Write must be idempotent per key: writing a key that already exists
// returns the original receipt without writing again.
type Ledger interface {
	Write(ctx context.Context, key string, e Entry) (Receipt, error)
	Read(ctx context.Context, ref string) ([]byte, error)
}

// IdempotencyKey derives the ledger key for one booking of a submission
// round.
func IdempotencyKey(id uuid.UUID, round int) string {
	h := blake3.New()
	h.Write(id[:])

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(round))
	h.Write(buf[:])

	return hex.EncodeToString(h.Sum(nil))
}

func entryPath(prefix, key string) string {
	return path.Join(prefix, key+".json")
}

type blobLedger struct {
	store  storage.System
	prefix string
	logger *slog.Logger
}

// NewBlobLedger writes each entry as a create-only JSON blob under prefix.
func NewBlobLedger(store storage.System, prefix string, logger *slog.Logger) Ledger {
	return &blobLedger{
		store:  store,
		prefix: prefix,
		logger: logger.With("ledger", "blob"),
	}
}

func (l *blobLedger) Write(ctx context.Context, key string, e Entry) (Receipt, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Receipt{}, fmt.Errorf("encode ledger entry: %w", err)
	}

	ref := entryPath(l.prefix, key)
	info, err := l.store.PutNew(ctx, ref, data, "application/json")
	if errors.Is(err, storage.ErrExists) {
		l.logger.Warn("ledger entry already written", "ref", ref)
		info, err = l.store.Stat(ctx, ref)
	}
	if err != nil {
		return Receipt{}, fmt.Errorf("write ledger entry %s: %w", ref, err)
	}

	return Receipt{Ref: ref, RecordedAt: info.LastModified.UTC()}, nil
}

func (l *blobLedger) Read(ctx context.Context, ref string) ([]byte, error) {
	data, _, err := l.store.Get(ctx, ref)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger entry %s: %w", ref, err)
	}
	return data, nil
}

type memoryDoc struct {
	data    []byte
	receipt Receipt
}

// MemoryLedger is an in-process Ledger.
type MemoryLedger struct {
	mu     sync.Mutex
	prefix string
	clock  clock.Clock
	docs   map[string]memoryDoc
	writes int
}

// NewMemoryLedger returns an empty MemoryLedger whose refs live under prefix
// and whose receipts are stamped by clk.
func NewMemoryLedger(prefix string, clk clock.Clock) *MemoryLedger {
	return &MemoryLedger{
		prefix: prefix,
		clock:  clk,
		docs:   make(map[string]memoryDoc),
	}
}

func (m *MemoryLedger) Write(ctx context.Context, key string, e Entry) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return Receipt{}, fmt.Errorf("encode ledger entry: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ref := entryPath(m.prefix, key)
	if doc, ok := m.docs[ref]; ok {
		return doc.receipt, nil
	}

	receipt := Receipt{Ref: ref, RecordedAt: m.clock.Now()}
	m.docs[ref] = memoryDoc{data: data, receipt: receipt}
	m.writes++
	return receipt, nil
}

func (m *MemoryLedger) Read(_ context.Context, ref string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[ref]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return doc.data, nil
}

// Writes returns how many distinct entries have been written.
func (m *MemoryLedger) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Refs lists the stored references in order.
func (m *MemoryLedger) Refs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.docs))
}
