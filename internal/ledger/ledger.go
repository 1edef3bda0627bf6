// Package ledger remembers which remote tracks have already been added to
// which playlist, so repeated runs do not add them again.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"music-sync-srv/internal/models"
)

// ErrDuplicateEntry means a (playlist, remote track) pair was recorded twice.
// Callers check Contains first, so seeing it points at an ordering bug.
var ErrDuplicateEntry = errors.New("ledger: duplicate entry")

// Store persists ledger entries between runs.
type Store interface {
	Load(ctx context.Context) ([]models.LedgerEntry, error)
	Append(ctx context.Context, entry models.LedgerEntry) error
	Close() error
}

// Ledger is the in-memory view of a Store, loaded once when opened. It is
// safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	store   Store
	entries map[models.LedgerEntry]struct{}
}

// Open loads every entry from store. The ledger owns the store afterwards.
func Open(ctx context.Context, store Store) (*Ledger, error) {
	loaded, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	l := &Ledger{
		store:   store,
		entries: make(map[models.LedgerEntry]struct{}, len(loaded)),
	}
	for _, e := range loaded {
		l.entries[e] = struct{}{}
	}
	return l, nil
}

// NewMemory returns a ledger that keeps nothing beyond the process.
func NewMemory() *Ledger {
	l, _ := Open(context.Background(), &MemoryStore{})
	return l
}

func (l *Ledger) Contains(playlistID, remoteID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[models.LedgerEntry{PlaylistID: playlistID, RemoteID: remoteID}]
	return ok
}

// Record appends a pair. The pair only becomes visible once the store has
// accepted it.
func (l *Ledger) Record(ctx context.Context, playlistID, remoteID string) error {
	entry := models.LedgerEntry{PlaylistID: playlistID, RemoteID: remoteID}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[entry]; ok {
		return fmt.Errorf("%s/%s: %w", playlistID, remoteID, ErrDuplicateEntry)
	}
	if err := l.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("append %s/%s: %w", playlistID, remoteID, err)
	}
	l.entries[entry] = struct{}{}
	return nil
}

// Len reports the number of recorded pairs.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Ledger) Close() error {
	return l.store.Close()
}

// MemoryStore is a Store backed by a slice.
type MemoryStore struct {
	mu      sync.Mutex
	Entries []models.LedgerEntry
}

func (m *MemoryStore) Load(context.Context) ([]models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.LedgerEntry(nil), m.Entries...), nil
}

func (m *MemoryStore) Append(_ context.Context, e models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, e)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
