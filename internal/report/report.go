// Package report writes per-playlist match logs.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gosimple/slug"

	"music-sync-srv/internal/models"
)

var header = []string{
	"Run ID",
	"Local Song Name", "Local Artist", "Local Album",
	"Remote Song Name", "Remote Artist", "Remote Album", "Remote Track ID",
	"Match Score", "Song Match Score", "Artist Match Score", "Album Match Score",
	"Decision", "Search Error", "Write Error",
}

// FileName is the CSV file a playlist's rows are written to.
func FileName(r models.Report) string {
	name := slug.Make(r.PlaylistName)
	if name == "" {
		name = slug.Make(r.PlaylistID)
	}
	if name == "" {
		name = "playlist"
	}
	return name + ".csv"
}

// WriteCSV appends the report to dir/FileName(r), writing the header only
// when the file is new. It returns the file path.
func WriteCSV(dir string, r models.Report) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName(r))

	info, statErr := os.Stat(path)
	fresh := statErr != nil || info.Size() == 0

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := Encode(f, r, fresh); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, f.Close()
}

// Encode writes the rows of r as CSV.
func Encode(w io.Writer, r models.Report, withHeader bool) error {
	cw := csv.NewWriter(w)
	if withHeader {
		if err := cw.Write(header); err != nil {
			return err
		}
	}
	for _, row := range r.Rows {
		if err := cw.Write(record(r.RunID, row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func record(runID string, row models.ReportRow) []string {
	rec := []string{
		runID,
		row.Track.Title, row.Track.Artist, row.Track.Album,
		"", "", "", "",
		"", "", "", "",
		string(row.Decision), row.SearchError, row.WriteError,
	}
	if c := row.Candidate; c != nil {
		rec[4], rec[5], rec[6], rec[7] = c.Title, c.Artist, c.Album, c.RemoteID
	}
	if s := row.Score; s != nil {
		rec[8], rec[9], rec[10], rec[11] = score(s.Total), score(s.Song), score(s.Artist), score(s.Album)
	}
	return rec
}

func score(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// WriteJSON writes the reports as an indented JSON array.
func WriteJSON(w io.Writer, reports []models.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}
