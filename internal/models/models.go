package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidField is returned when a record is built without a field the
// engine cannot work without (playlist or remote identifiers).
var ErrInvalidField = errors.New("invalid field")

// LocalTrack is one track-per-playlist membership read from the local library.
type LocalTrack struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	PlaylistID string `json:"playlist_id"`
}

// NewLocalTrack validates the playlist identifier. An empty title is allowed:
// it simply never scores above zero.
func NewLocalTrack(title, artist, album, playlistID string) (LocalTrack, error) {
	if strings.TrimSpace(playlistID) == "" {
		return LocalTrack{}, fmt.Errorf("local track %q: playlist id: %w", title, ErrInvalidField)
	}
	return LocalTrack{
		Title:      title,
		Artist:     artist,
		Album:      album,
		PlaylistID: playlistID,
	}, nil
}

// RemoteCandidate is a single search hit from the remote catalog.
type RemoteCandidate struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album,omitempty"`
	RemoteID string `json:"remote_id"`
}

func NewRemoteCandidate(title, artist, album, remoteID string) (RemoteCandidate, error) {
	if strings.TrimSpace(remoteID) == "" {
		return RemoteCandidate{}, fmt.Errorf("remote candidate %q: remote id: %w", title, ErrInvalidField)
	}
	return RemoteCandidate{
		Title:    title,
		Artist:   artist,
		Album:    album,
		RemoteID: remoteID,
	}, nil
}

// MatchScore holds per-field similarities and their weighted total, all in [0,1].
type MatchScore struct {
	Song   float64 `json:"song"`
	Artist float64 `json:"artist"`
	Album  float64 `json:"album"`
	Total  float64 `json:"total"`
}

// Weights controls how field scores combine into the total.
type Weights struct {
	Song   float64 `json:"song"`
	Artist float64 `json:"artist"`
	Album  float64 `json:"album"`
}

// DefaultWeights favours the song title, then the artist, then the album.
func DefaultWeights() Weights {
	return Weights{Song: 0.5, Artist: 0.3, Album: 0.2}
}

// Validate checks that every weight is non-negative and that they sum to 1.
func (w Weights) Validate() error {
	if w.Song < 0 || w.Artist < 0 || w.Album < 0 {
		return fmt.Errorf("weights must be non-negative: %+v", w)
	}
	if sum := w.Song + w.Artist + w.Album; math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("weights must sum to 1.0, got %.4f", sum)
	}
	return nil
}

// WithoutAlbum moves the album weight onto song and artist, keeping their ratio.
func (w Weights) WithoutAlbum() Weights {
	rest := w.Song + w.Artist
	if rest == 0 {
		return Weights{Song: 0.5, Artist: 0.5}
	}
	return Weights{Song: w.Song / rest, Artist: w.Artist / rest}
}

// LedgerEntry marks a remote track as already synced into a playlist.
type LedgerEntry struct {
	PlaylistID string `json:"playlist_id"`
	RemoteID   string `json:"remote_id"`
}

// AddIntent asks the playlist mutator to add a remote track to a playlist.
type AddIntent struct {
	PlaylistID string `json:"playlist_id"`
	RemoteID   string `json:"remote_id"`
}

type Decision string

const (
	DecisionAccepted      Decision = "ACCEPTED"
	DecisionRejected      Decision = "REJECTED"
	DecisionNoCandidates  Decision = "NO_CANDIDATES"
	DecisionAlreadySynced Decision = "SKIPPED_ALREADY_SYNCED"
)

// ReportRow records the outcome for one local track.
type ReportRow struct {
	Track       LocalTrack       `json:"track"`
	Candidate   *RemoteCandidate `json:"candidate"`
	Score       *MatchScore      `json:"score"`
	Decision    Decision         `json:"decision"`
	SearchError string           `json:"search_error,omitempty"`
	// WriteError is set on accepted rows whose remote write failed.
	WriteError  string           `json:"write_error,omitempty"`
}

// Playlist groups the local tracks of one playlist.
type Playlist struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Tracks []LocalTrack `json:"tracks"`
}

// AddTrack appends a track that belongs to p.
func (p *Playlist) AddTrack(title, artist, album string) error {
	t, err := NewLocalTrack(title, artist, album, p.ID)
	if err != nil {
		return err
	}
	p.Tracks = append(p.Tracks, t)
	return nil
}

// Report is the outcome of syncing one playlist.
type Report struct {
	RunID        string      `json:"run_id"`
	PlaylistID   string      `json:"playlist_id"`
	PlaylistName string      `json:"playlist_name"`
	MatchingMode string      `json:"matching_mode"`
	Timestamp    string      `json:"timestamp"`
	Rows         []ReportRow `json:"rows"`
}

// Counts tallies rows per decision.
func (r Report) Counts() map[Decision]int {
	counts := make(map[Decision]int, 4)
	for _, row := range r.Rows {
		counts[row.Decision]++
	}
	return counts
}
