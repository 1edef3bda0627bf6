// Package syncer drives one sync run: search, rank, decide, emit, record.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"music-sync-srv/internal/ledger"
	"music-sync-srv/internal/matcher"
	"music-sync-srv/internal/models"
)

// Searcher returns remote candidates for a local track.
type Searcher interface {
	Search(ctx context.Context, t models.LocalTrack) ([]models.RemoteCandidate, error)
}

// IntentSink performs (or queues) the remote playlist write for an intent.
type IntentSink interface {
	Emit(ctx context.Context, intent models.AddIntent) error
}

// Flusher is implemented by sinks that buffer intents. Flush writes the
// buffered intents in emission order and reports how many were written
// before any error. Discard drops whatever is still buffered.
type Flusher interface {
	Flush(ctx context.Context) (int, error)
	Discard()
}

// Preparer is implemented by sinks that need to resolve the remote playlist
// before intents for it arrive. Prepare returns the remote ids the playlist
// already holds.
type Preparer interface {
	Prepare(ctx context.Context, p models.Playlist) ([]string, error)
}

// ProgressFunc is called after each track with its 1-based position.
type ProgressFunc func(index, total int, row models.ReportRow)

type Options struct {
	Rank matcher.RankOptions
	// Mode is the matching mode name, copied into reports.
	Mode       string
	Verbose    bool
	OnProgress ProgressFunc
}

type Orchestrator struct {
	searcher Searcher
	sink     IntentSink
	ledger   *ledger.Ledger
	opts     Options
}

func New(searcher Searcher, sink IntentSink, l *ledger.Ledger, opts Options) *Orchestrator {
	if opts.Rank == (matcher.RankOptions{}) {
		opts.Rank = matcher.DefaultRankOptions()
	}
	return &Orchestrator{searcher: searcher, sink: sink, ledger: l, opts: opts}
}

// pendingAdd is an intent a buffering sink accepted but has not written yet.
type pendingAdd struct {
	entry models.LedgerEntry
	row   int
}

// Sync processes the tracks of one playlist in order and returns a row per
// track. It stops between tracks when ctx is done, returning the rows so far.
// Intents already handed to a buffering sink are flushed on every return
// path, cancellation included.
func (o *Orchestrator) Sync(ctx context.Context, playlistID string, tracks []models.LocalTrack) ([]models.ReportRow, error) {
	rows := make([]models.ReportRow, 0, len(tracks))
	flusher, buffered := o.sink.(Flusher)
	if buffered {
		// Drop adds left over from an aborted run.
		flusher.Discard()
	}

	var pending []pendingAdd
	inFlight := make(map[models.LedgerEntry]struct{})

	for i, t := range tracks {
		if err := ctx.Err(); err != nil {
			return rows, o.settle(ctx, flusher, playlistID, rows, pending, err)
		}

		row, err := o.decide(ctx, playlistID, t, inFlight)
		if err != nil {
			return rows, o.settle(ctx, flusher, playlistID, rows, pending, err)
		}

		if row.Decision == models.DecisionAccepted {
			entry := models.LedgerEntry{PlaylistID: playlistID, RemoteID: row.Candidate.RemoteID}
			if err := o.sink.Emit(ctx, models.AddIntent{PlaylistID: playlistID, RemoteID: entry.RemoteID}); err != nil {
				err = fmt.Errorf("emit add intent for %q: %w", t.Title, err)
				return rows, o.settle(ctx, flusher, playlistID, rows, pending, err)
			}
			if buffered {
				pending = append(pending, pendingAdd{entry: entry, row: len(rows)})
				inFlight[entry] = struct{}{}
			} else if err := o.ledger.Record(ctx, playlistID, entry.RemoteID); err != nil {
				return rows, err
			}
		}

		rows = append(rows, row)
		if o.opts.Verbose {
			log.Printf("[%s] %d/%d %s: %q by %q", playlistID, i+1, len(tracks), row.Decision, t.Title, t.Artist)
		}
		if o.opts.OnProgress != nil {
			o.opts.OnProgress(i+1, len(tracks), row)
		}
	}

	return rows, o.settle(ctx, flusher, playlistID, rows, pending, nil)
}

// settle flushes the pending adds, records the written ones and marks the
// rows of the rest with the write error. cause is the error that ended the
// loop, if any. The flush runs even when ctx is already cancelled.
func (o *Orchestrator) settle(ctx context.Context, flusher Flusher, playlistID string, rows []models.ReportRow, pending []pendingAdd, cause error) error {
	if flusher == nil || len(pending) == 0 {
		return cause
	}
	ctx = context.WithoutCancel(ctx)

	written, flushErr := flusher.Flush(ctx)
	written = max(0, min(written, len(pending)))
	for _, p := range pending[:written] {
		if err := o.ledger.Record(ctx, p.entry.PlaylistID, p.entry.RemoteID); err != nil {
			return errors.Join(cause, err)
		}
	}
	if flushErr == nil {
		return cause
	}

	flusher.Discard()
	for _, p := range pending[written:] {
		rows[p.row].WriteError = flushErr.Error()
	}
	return errors.Join(cause, fmt.Errorf("flush %d intents for playlist %s: %w", len(pending)-written, playlistID, flushErr))
}

func (o *Orchestrator) decide(ctx context.Context, playlistID string, t models.LocalTrack, inFlight map[models.LedgerEntry]struct{}) (models.ReportRow, error) {
	row := models.ReportRow{Track: t}

	candidates, err := o.searcher.Search(ctx, t)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return row, err
		}
		log.Printf("WARN search failed for %q by %q: %v", t.Title, t.Artist, err)
		row.Decision = models.DecisionNoCandidates
		row.SearchError = err.Error()
		return row, nil
	}
	if len(candidates) == 0 {
		row.Decision = models.DecisionNoCandidates
		return row, nil
	}

	best, ok := matcher.Rank(t, candidates, o.opts.Rank)
	cand, score := best.Candidate, best.Score
	row.Candidate, row.Score = &cand, &score

	entry := models.LedgerEntry{PlaylistID: playlistID, RemoteID: cand.RemoteID}
	_, queued := inFlight[entry]
	switch {
	case !ok:
		row.Decision = models.DecisionRejected
	case queued || o.ledger.Contains(playlistID, cand.RemoteID):
		row.Decision = models.DecisionAlreadySynced
	default:
		row.Decision = models.DecisionAccepted
	}
	return row, nil
}

// SyncLibrary syncs each playlist in order and builds one report per
// playlist. On error the reports finished so far are returned, plus the
// partial report of the failing playlist.
func (o *Orchestrator) SyncLibrary(ctx context.Context, playlists []models.Playlist) ([]models.Report, error) {
	reports := make([]models.Report, 0, len(playlists))
	for _, p := range playlists {
		if preparer, ok := o.sink.(Preparer); ok {
			existing, err := preparer.Prepare(ctx, p)
			if err != nil {
				return reports, fmt.Errorf("prepare playlist %q: %w", p.Name, err)
			}
			if err := o.seed(ctx, p.ID, existing); err != nil {
				return reports, fmt.Errorf("prepare playlist %q: %w", p.Name, err)
			}
		}

		rows, err := o.Sync(ctx, p.ID, p.Tracks)
		report := models.Report{
			PlaylistID:   p.ID,
			PlaylistName: p.Name,
			MatchingMode: o.opts.Mode,
			Timestamp:    time.Now().Format(time.RFC3339),
			Rows:         rows,
		}
		reports = append(reports, report)
		if err != nil {
			return reports, fmt.Errorf("sync playlist %q: %w", p.Name, err)
		}

		counts := report.Counts()
		log.Printf("playlist %q: %d accepted, %d already synced, %d rejected, %d without candidates",
			p.Name,
			counts[models.DecisionAccepted],
			counts[models.DecisionAlreadySynced],
			counts[models.DecisionRejected],
			counts[models.DecisionNoCandidates])
	}
	return reports, nil
}

// seed records remote ids that are already on the remote playlist, so tracks
// added outside this tool are reported as already synced instead of added
// twice.
func (o *Orchestrator) seed(ctx context.Context, playlistID string, remoteIDs []string) error {
	seeded := 0
	for _, id := range remoteIDs {
		if id == "" || o.ledger.Contains(playlistID, id) {
			continue
		}
		if err := o.ledger.Record(ctx, playlistID, id); err != nil {
			return err
		}
		seeded++
	}
	if seeded > 0 {
		log.Printf("playlist %s: %d remote tracks not in the ledger, recorded as synced", playlistID, seeded)
	}
	return nil
}
