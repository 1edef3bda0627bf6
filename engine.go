package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"music-sync-srv/internal/config"
	"music-sync-srv/internal/dab"
	"music-sync-srv/internal/database"
	"music-sync-srv/internal/ledger"
	"music-sync-srv/internal/models"
	"music-sync-srv/internal/parser"
	"music-sync-srv/internal/report"
	"music-sync-srv/internal/search"
	"music-sync-srv/internal/spotify"
	"music-sync-srv/internal/syncer"
)

// engine owns the long-lived pieces of a sync: the database, the durable
// ledger and the remote backend.
type engine struct {
	cfg      *config.Config
	db       *sql.DB
	store    *database.LedgerStore
	ledger   *ledger.Ledger
	searcher syncer.Searcher
	sink     syncer.IntentSink
	// spotifySource reads Spotify playlists as local input; nil without app
	// credentials.
	spotifySource *parser.SpotifyParser

	// Remote sinks buffer per playlist, so runs must not interleave.
	mu sync.Mutex
}

type runOptions struct {
	Mode       string
	DryRun     bool
	Verbose    bool
	OnProgress syncer.ProgressFunc
}

func newEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.LedgerPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := database.Open(cfg.Storage.LedgerPath)
	if err != nil {
		return nil, err
	}
	store := database.NewLedgerStore(db)
	led, err := ledger.Open(ctx, store)
	if err != nil {
		db.Close()
		return nil, err
	}

	e := &engine{cfg: cfg, db: db, store: store, ledger: led}

	switch cfg.Backend {
	case config.BackendDAB:
		client := dab.NewClient(cfg.DAB.Token, cfg.Search.Interval)
		e.searcher = &search.Searcher{
			Fetch:       client.Fetcher(cfg.Search.Limit),
			MaxAttempts: cfg.Search.MaxAttempts,
			Exhaustive:  cfg.Search.Exhaustive,
		}
		e.sink = dab.NewLibrarySink(client)
	default:
		httpClient := spotify.NewHTTPClient(ctx, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.RefreshToken)
		client := spotify.New(httpClient, spotify.Options{
			SearchLimit:    cfg.Search.Limit,
			SearchInterval: cfg.Search.Interval,
		})
		e.searcher = client.Searcher(cfg.Search.MaxAttempts, cfg.Search.Exhaustive)
		e.sink = client
	}

	if cfg.Spotify.ClientID != "" && cfg.Spotify.ClientSecret != "" {
		e.spotifySource = parser.NewSpotifyAppParser(ctx, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret)
	}

	log.Printf("engine ready: backend=%s ledger=%s (%d entries)", cfg.Backend, cfg.Storage.LedgerPath, led.Len())
	return e, nil
}

// Close releases the ledger, whose store owns the database handle.
func (e *engine) Close() error {
	return e.ledger.Close()
}

// run syncs the playlists and stores one report per playlist. A dry run
// works on a snapshot of the ledger and never touches the remote playlists
// or the report history.
func (e *engine) run(ctx context.Context, playlists []models.Playlist, opts runOptions) ([]models.Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	mode := opts.Mode
	if mode == "" {
		mode = e.cfg.Matching.Mode
	}

	led, sink := e.ledger, e.sink
	if opts.DryRun {
		entries, err := e.store.Load(ctx)
		if err != nil {
			return nil, err
		}
		if led, err = ledger.Open(ctx, &ledger.MemoryStore{Entries: entries}); err != nil {
			return nil, err
		}
		sink = &syncer.DryRunSink{Quiet: !opts.Verbose}
	}

	orch := syncer.New(e.searcher, sink, led, syncer.Options{
		Rank:       e.cfg.RankOptions(mode),
		Mode:       mode,
		Verbose:    opts.Verbose,
		OnProgress: opts.OnProgress,
	})
	reports, err := orch.SyncLibrary(ctx, playlists)

	// Partial reports of a cancelled run are still worth keeping.
	if perr := e.persist(context.WithoutCancel(ctx), reports, opts.DryRun); perr != nil {
		err = errors.Join(err, perr)
	}
	return reports, err
}

func (e *engine) persist(ctx context.Context, reports []models.Report, dryRun bool) error {
	var errs []error
	for i := range reports {
		r := &reports[i]
		if dryRun {
			r.RunID = uuid.NewString()
		} else {
			id, err := database.SaveReport(ctx, e.db, *r)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			r.RunID = id
		}

		if e.cfg.Storage.ReportDir == "" {
			continue
		}
		if _, err := report.WriteCSV(e.cfg.Storage.ReportDir, *r); err != nil {
			errs = append(errs, fmt.Errorf("write report for %q: %w", r.PlaylistName, err))
		}
	}
	return errors.Join(errs...)
}
