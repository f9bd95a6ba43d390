package export_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/einstalek/invoice-ai/internal/export"
	"github.com/einstalek/invoice-ai/pkg/clock"
	"github.com/einstalek/invoice-ai/pkg/lifecycle"
	"github.com/einstalek/invoice-ai/pkg/storage"
)

type blob struct {
	data []byte
	info storage.Info
}

// fakeStorage is a storage.System with create-only semantics.
type fakeStorage struct {
	mu    sync.Mutex
	blobs map[string]blob
	puts  int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{blobs: make(map[string]blob)}
}

func (f *fakeStorage) Start(*lifecycle.Coordinator) error { return nil }

func (f *fakeStorage) PutNew(_ context.Context, key string, data []byte, _ string) (storage.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blobs[key]; ok {
		return storage.Info{}, storage.ErrExists
	}
	f.puts++
	info := storage.Info{
		Key:          key,
		ETag:         "0x1",
		Size:         int64(len(data)),
		LastModified: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
	}
	f.blobs[key] = blob{data: data, info: info}
	return info, nil
}

func (f *fakeStorage) Get(_ context.Context, key string) ([]byte, storage.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blobs[key]
	if !ok {
		return nil, storage.Info{}, storage.ErrNotFound
	}
	return b.data, b.info, nil
}

func (f *fakeStorage) Stat(_ context.Context, key string) (storage.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blobs[key]
	if !ok {
		return storage.Info{}, storage.ErrNotFound
	}
	return b.info, nil
}

func TestBlobLedger(t *testing.T) {
	ctx := context.Background()
	store := newFakeStorage()
	ledger := export.NewBlobLedger(store, "entries", slog.New(slog.NewTextHandler(io.Discard, nil)))

	id := uuid.New()
	key := export.IdempotencyKey(id, 1)
	entry := export.Entry{SubmissionID: id, Round: 1, Fields: map[string]*string{}}

	first, err := ledger.Write(ctx, key, entry)
	require.NoError(t, err)
	assert.Equal(t, "entries/"+key+".json", first.Ref)
	assert.False(t, first.RecordedAt.IsZero())

	again, err := ledger.Write(ctx, key, entry)
	require.NoError(t, err, "rewriting a key returns the original receipt")
	assert.Equal(t, first, again)
	assert.Equal(t, 1, store.puts)

	data, err := ledger.Read(ctx, first.Ref)
	require.NoError(t, err)

	var got export.Entry
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, id, got.SubmissionID)

	_, err = ledger.Read(ctx, "entries/missing.json")
	assert.True(t, errors.Is(err, export.ErrDocumentNotFound))
}

func TestMemoryLedgerHonorsContext(t *testing.T) {
	start := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	ledger := export.NewMemoryLedger("entries", clock.NewFake(start))
	id := uuid.New()
	entry := export.Entry{SubmissionID: id, Round: 1}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ledger.Write(ctx, export.IdempotencyKey(id, 1), entry)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, ledger.Writes())

	receipt, err := ledger.Write(context.Background(), export.IdempotencyKey(id, 1), entry)
	require.NoError(t, err)
	assert.Equal(t, start, receipt.RecordedAt)
	assert.Equal(t, "entries/"+export.IdempotencyKey(id, 1)+".json", receipt.Ref)
}
