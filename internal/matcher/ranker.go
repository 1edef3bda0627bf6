package matcher

import (
	"github.com/samber/lo"

	"music-sync-srv/internal/models"
	"music-sync-srv/internal/normalize"
)

// RankOptions configures candidate selection.
type RankOptions struct {
	Weights   models.Weights
	Threshold float64
}

// DefaultRankOptions uses the default weights and the lenient threshold.
func DefaultRankOptions() RankOptions {
	return RankOptions{Weights: models.DefaultWeights(), Threshold: lenientThreshold}
}

// Match is a scored candidate. Index is its position in the input slice.
type Match struct {
	Candidate models.RemoteCandidate
	Score     models.MatchScore
	Index     int
}

type fields struct {
	song   normalize.NormalizedText
	artist normalize.NormalizedText
	album  normalize.NormalizedText
}

func normalizeFields(title, artist, album string) fields {
	f := fields{
		song:   normalize.Normalize(title),
		artist: normalize.NormalizeArtist(artist),
		album:  normalize.Normalize(album),
	}
	// "Song (feat. X)" credits X as an artist of the same record.
	if len(f.song.Collaborators) > 0 {
		merged := append(append([]string(nil), f.artist.Collaborators...), f.song.Collaborators...)
		f.artist.Collaborators = lo.Uniq(merged)
	}
	return f
}

// ScoreCandidate scores one candidate against a local track.
func ScoreCandidate(track models.LocalTrack, cand models.RemoteCandidate, weights models.Weights) models.MatchScore {
	return score(normalizeFields(track.Title, track.Artist, track.Album), cand, weights)
}

func score(local fields, cand models.RemoteCandidate, weights models.Weights) models.MatchScore {
	remote := normalizeFields(cand.Title, cand.Artist, cand.Album)

	s := models.MatchScore{
		Song:   ScoreField(local.song, remote.song, FieldSong),
		Artist: ScoreField(local.artist, remote.artist, FieldArtist),
		Album:  ScoreField(local.album, remote.album, FieldAlbum),
	}
	if local.album.Canonical == "" {
		weights = weights.WithoutAlbum()
	}
	s.Total = clamp(weights.Song*s.Song + weights.Artist*s.Artist + weights.Album*s.Album)
	return s
}

// Evaluate scores every candidate, preserving input order.
func Evaluate(track models.LocalTrack, candidates []models.RemoteCandidate, weights models.Weights) []Match {
	local := normalizeFields(track.Title, track.Artist, track.Album)
	matches := make([]Match, len(candidates))
	for i, cand := range candidates {
		matches[i] = Match{Candidate: cand, Score: score(local, cand, weights), Index: i}
	}
	return matches
}

// Best picks the highest total. Ties go to the higher song score, then the
// higher artist score, then the earlier candidate.
func Best(matches []Match) (Match, bool) {
	if len(matches) == 0 {
		return Match{}, false
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if better(m, best) {
			best = m
		}
	}
	return best, true
}

func better(a, b Match) bool {
	if a.Score.Total != b.Score.Total {
		return a.Score.Total > b.Score.Total
	}
	if a.Score.Song != b.Score.Song {
		return a.Score.Song > b.Score.Song
	}
	if a.Score.Artist != b.Score.Artist {
		return a.Score.Artist > b.Score.Artist
	}
	return a.Index < b.Index
}

// Rank returns the best candidate when its total reaches the threshold. The
// returned Match is also filled in on rejection so callers can report it.
func Rank(track models.LocalTrack, candidates []models.RemoteCandidate, opts RankOptions) (Match, bool) {
	best, ok := Best(Evaluate(track, candidates, opts.Weights))
	if !ok {
		return Match{}, false
	}
	return best, best.Score.Total >= opts.Threshold
}
