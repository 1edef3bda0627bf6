package syncer

import (
	"context"
	"log"
	"sync"

	"music-sync-srv/internal/models"
)

// DryRunSink accepts every intent without touching the remote catalog.
type DryRunSink struct {
	mu      sync.Mutex
	intents []models.AddIntent
	Quiet   bool
}

func (d *DryRunSink) Emit(_ context.Context, intent models.AddIntent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.intents = append(d.intents, intent)
	if !d.Quiet {
		log.Printf("dry-run: would add %s to %s", intent.RemoteID, intent.PlaylistID)
	}
	return nil
}

// Intents returns a copy of everything emitted so far.
func (d *DryRunSink) Intents() []models.AddIntent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.AddIntent(nil), d.intents...)
}
