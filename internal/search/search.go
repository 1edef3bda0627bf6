// Package search turns one local track into a sequence of catalog queries
// and merges what they return.
package search

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"music-sync-srv/internal/models"
)

// Query is one search attempt. Empty fields are left out of the query text.
type Query struct {
	Title  string
	Artist string
	Album  string
}

func (q Query) String() string {
	return strings.Join(strings.Fields(q.Title+" "+q.Artist+" "+q.Album), " ")
}

// FetchFunc runs a single query against the remote catalog.
type FetchFunc func(ctx context.Context, q Query) ([]models.RemoteCandidate, error)

var (
	featWord    = regexp.MustCompile(`(?i)\b(?:feat|ft)\.\s`)
	featCut     = regexp.MustCompile(`(?i)\s?\(?(?:feat|ft)\.`)
	remastered  = regexp.MustCompile(`(?i)\s?remastered\s?`)
	ampersandSp = regexp.MustCompile(`\s+&\s+`)
)

// Queries lists the attempts for a track, most specific first, without
// duplicates. Catalog search engines often miss a track because of album
// noise, featuring credits, remaster tags or collaborator lists.
func Queries(t models.LocalTrack) []Query {
	title, artist, album := strings.TrimSpace(t.Title), strings.TrimSpace(t.Artist), strings.TrimSpace(t.Album)

	attempts := []Query{
		{Title: title, Artist: artist, Album: album},
		{Title: title, Artist: artist},
	}
	withAndWithoutAlbum := func(title, artist string) {
		attempts = append(attempts,
			Query{Title: title, Artist: artist, Album: album},
			Query{Title: title, Artist: artist},
		)
	}

	if featWord.MatchString(title) {
		withAndWithoutAlbum(strings.Join(strings.Fields(featWord.ReplaceAllString(title, " ")), " "), artist)
		if loc := featCut.FindStringIndex(title); loc != nil {
			withAndWithoutAlbum(strings.TrimSpace(title[:loc[0]]), artist)
		}
	}
	if remastered.MatchString(title) {
		withAndWithoutAlbum(strings.TrimSpace(remastered.ReplaceAllString(title, " ")), artist)
	}
	if strings.Contains(artist, "&") {
		withAndWithoutAlbum(title, strings.TrimSpace(strings.SplitN(artist, "&", 2)[0]))
		withAndWithoutAlbum(title, ampersandSp.ReplaceAllString(artist, ", "))
	}
	// Drop anything bracketed as a last resort.
	if idx := strings.IndexAny(title, "(["); idx > 0 {
		withAndWithoutAlbum(strings.TrimSpace(title[:idx]), artist)
	}

	return lo.UniqBy(lo.Filter(attempts, func(q Query, _ int) bool {
		return strings.TrimSpace(q.Title) != ""
	}), func(q Query) string {
		return strings.ToLower(q.String())
	})
}

// Searcher runs the query attempts for a track through Fetch.
type Searcher struct {
	Fetch FetchFunc
	// MaxAttempts caps the number of queries per track; zero means all.
	MaxAttempts int
	// Exhaustive keeps querying after an attempt returned candidates.
	Exhaustive bool
}

// Search merges candidates from every attempt, first occurrence wins. A
// failing attempt is logged and skipped; the error is only returned when no
// attempt produced anything.
func (s *Searcher) Search(ctx context.Context, t models.LocalTrack) ([]models.RemoteCandidate, error) {
	queries := Queries(t)
	if s.MaxAttempts > 0 && len(queries) > s.MaxAttempts {
		queries = queries[:s.MaxAttempts]
	}

	var (
		merged   []models.RemoteCandidate
		seen     = make(map[string]struct{})
		firstErr error
	)
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := s.Fetch(ctx, q)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			log.Printf("WARN search %q: %v", q.String(), err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, c := range found {
			if _, dup := seen[c.RemoteID]; dup || c.RemoteID == "" {
				continue
			}
			seen[c.RemoteID] = struct{}{}
			merged = append(merged, c)
		}
		if len(merged) > 0 && !s.Exhaustive {
			break
		}
	}

	if len(merged) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return merged, nil
}
