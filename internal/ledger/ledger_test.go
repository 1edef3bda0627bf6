package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"music-sync-srv/internal/models"
)

func TestLedger_RecordThenContains(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()

	assert.False(t, l.Contains("pl-1", "r1"))
	require.NoError(t, l.Record(ctx, "pl-1", "r1"))
	assert.True(t, l.Contains("pl-1", "r1"))

	err := l.Record(ctx, "pl-1", "r1")
	assert.ErrorIs(t, err, ErrDuplicateEntry)
	assert.True(t, l.Contains("pl-1", "r1"))
	assert.Equal(t, 1, l.Len())
}

func TestLedger_KeyedPerPlaylist(t *testing.T) {
	l := NewMemory()
	require.NoError(t, l.Record(context.Background(), "pl-1", "r1"))

	assert.False(t, l.Contains("pl-2", "r1"))
	assert.NoError(t, l.Record(context.Background(), "pl-2", "r1"))
}

func TestLedger_OpenLoadsExistingEntries(t *testing.T) {
	store := &MemoryStore{Entries: []models.LedgerEntry{{PlaylistID: "pl-1", RemoteID: "r1"}}}
	l, err := Open(context.Background(), store)
	require.NoError(t, err)

	assert.True(t, l.Contains("pl-1", "r1"))
	assert.ErrorIs(t, l.Record(context.Background(), "pl-1", "r1"), ErrDuplicateEntry)

	require.NoError(t, l.Record(context.Background(), "pl-1", "r2"))
	assert.Len(t, store.Entries, 2)
}

type failingStore struct {
	MemoryStore
	loadErr   error
	appendErr error
}

func (f *failingStore) Load(ctx context.Context) ([]models.LedgerEntry, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.MemoryStore.Load(ctx)
}

func (f *failingStore) Append(ctx context.Context, e models.LedgerEntry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.MemoryStore.Append(ctx, e)
}

func TestLedger_StoreFailures(t *testing.T) {
	boom := errors.New("disk full")

	_, err := Open(context.Background(), &failingStore{loadErr: boom})
	assert.ErrorIs(t, err, boom)

	l, err := Open(context.Background(), &failingStore{appendErr: boom})
	require.NoError(t, err)
	assert.ErrorIs(t, l.Record(context.Background(), "pl-1", "r1"), boom)
	assert.False(t, l.Contains("pl-1", "r1"), "rejected append must not be visible")
}

func TestLedger_ConcurrentRecordsKeepUniqueness(t *testing.T) {
	l := NewMemory()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := l.Record(context.Background(), "pl", fmt.Sprintf("r%d", i%5)); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, success)
	assert.Equal(t, 5, l.Len())
}
