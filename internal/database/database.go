package database

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"music-sync-srv/internal/ledger"
	"music-sync-srv/internal/models"
)

//go:embed schema.sql
var schema string

// Open connects to the sqlite file at path and applies the schema.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := InitDatabase(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return db, nil
}

// InitDatabase runs the embedded schema and sets performance PRAGMAs
func InitDatabase(db *sql.DB) error {
	_, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA cache_size=-2000;")
	if err != nil {
		return err
	}
	_, err = db.Exec(schema)
	return err
}

// LedgerStore persists sync ledger entries in the sync_ledger table.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) Load(ctx context.Context) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT playlist_id, remote_id FROM sync_ledger ORDER BY synced_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.PlaylistID, &e.RemoteID); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *LedgerStore) Append(ctx context.Context, e models.LedgerEntry) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sync_ledger (playlist_id, remote_id, synced_at) VALUES (?, ?, CURRENT_TIMESTAMP)",
		e.PlaylistID, e.RemoteID)
	if isConstraintViolation(err) {
		return ledger.ErrDuplicateEntry
	}
	return err
}

// Close closes the underlying database.
func (s *LedgerStore) Close() error {
	return s.db.Close()
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// ReportSummary is one row of the report history.
type ReportSummary struct {
	RunID        string `json:"run_id"`
	PlaylistID   string `json:"playlist_id"`
	PlaylistName string `json:"playlist_name"`
	MatchingMode string `json:"matching_mode"`
	Accepted     int    `json:"accepted"`
	Rejected     int    `json:"rejected"`
	NoCandidates int    `json:"no_candidates"`
	Skipped      int    `json:"skipped"`
	CreatedAt    string `json:"created_at"`
}

// SaveReport stores a playlist report and returns its run id, generating one
// when the report has none.
func SaveReport(ctx context.Context, db *sql.DB, r models.Report) (string, error) {
	if db == nil {
		return "", nil
	}
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	counts := r.Counts()

	_, err = db.ExecContext(ctx, `
	INSERT INTO match_reports (run_id, playlist_id, playlist_name, matching_mode,
		accepted, rejected, no_candidates, skipped, payload, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		r.RunID, r.PlaylistID, r.PlaylistName, r.MatchingMode,
		counts[models.DecisionAccepted], counts[models.DecisionRejected],
		counts[models.DecisionNoCandidates], counts[models.DecisionAlreadySynced],
		string(payload))
	if err != nil {
		return "", fmt.Errorf("insert report %s: %w", r.RunID, err)
	}
	return r.RunID, nil
}

// ListReports returns the newest reports first. An empty playlistID lists all.
func ListReports(ctx context.Context, db *sql.DB, playlistID string, limit int) ([]ReportSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
	SELECT run_id, playlist_id, playlist_name, matching_mode,
		accepted, rejected, no_candidates, skipped, created_at
	FROM match_reports
	WHERE ? = '' OR playlist_id = ?
	ORDER BY created_at DESC, rowid DESC
	LIMIT ?`, playlistID, playlistID, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []ReportSummary
	for rows.Next() {
		var s ReportSummary
		if err := rows.Scan(&s.RunID, &s.PlaylistID, &s.PlaylistName, &s.MatchingMode,
			&s.Accepted, &s.Rejected, &s.NoCandidates, &s.Skipped, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetReport loads the full report stored under runID.
func GetReport(ctx context.Context, db *sql.DB, runID string) (models.Report, error) {
	var payload string
	err := db.QueryRowContext(ctx, "SELECT payload FROM match_reports WHERE run_id = ?", runID).Scan(&payload)
	if err != nil {
		return models.Report{}, err
	}
	var r models.Report
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return models.Report{}, fmt.Errorf("decode report %s: %w", runID, err)
	}
	r.RunID = runID
	return r, nil
}
