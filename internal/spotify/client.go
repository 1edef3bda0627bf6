// Package spotify adapts the Spotify Web API to the sync engine: catalog
// search on one side, playlist writes on the other.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	spotifyapi "github.com/zmb3/spotify/v2"
	"golang.org/x/time/rate"

	"music-sync-srv/internal/models"
	"music-sync-srv/internal/search"
)

const (
	// DefaultSearchLimit is the number of tracks requested per query.
	DefaultSearchLimit = 15
	// maxTracksPerRequest is the Web API limit for adding items.
	maxTracksPerRequest = 100
)

// ErrUnknownPlaylist means an intent arrived for a playlist that was never
// prepared.
var ErrUnknownPlaylist = errors.New("spotify: playlist not prepared")

type Options struct {
	SearchLimit int
	// SearchInterval is the minimum spacing between search requests.
	SearchInterval time.Duration
	PlaylistPublic bool
}

type pendingAdd struct {
	playlist spotifyapi.ID
	track    spotifyapi.ID
}

// Client searches the catalog and writes to the current user's playlists.
type Client struct {
	api     *spotifyapi.Client
	limiter *rate.Limiter
	opts    Options

	mu        sync.Mutex
	userID    string
	byName    map[string]spotifyapi.ID
	resolved  map[string]spotifyapi.ID
	buffer    []pendingAdd
	listedAll bool
}

// New wraps an authenticated HTTP client.
func New(httpClient *http.Client, opts Options) *Client {
	return NewWithAPI(spotifyapi.New(httpClient, spotifyapi.WithRetry(true)), opts)
}

func NewWithAPI(api *spotifyapi.Client, opts Options) *Client {
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}
	limit := rate.Inf
	if opts.SearchInterval > 0 {
		limit = rate.Every(opts.SearchInterval)
	}
	return &Client{
		api:      api,
		limiter:  rate.NewLimiter(limit, 1),
		opts:     opts,
		byName:   make(map[string]spotifyapi.ID),
		resolved: make(map[string]spotifyapi.ID),
	}
}

// Fetch runs one catalog query. It satisfies search.FetchFunc.
func (c *Client) Fetch(ctx context.Context, q search.Query) ([]models.RemoteCandidate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := c.api.Search(ctx, q.String(), spotifyapi.SearchTypeTrack, spotifyapi.Limit(c.opts.SearchLimit))
	if err != nil {
		return nil, fmt.Errorf("spotify search: %w", err)
	}
	if res.Tracks == nil {
		return nil, nil
	}

	out := make([]models.RemoteCandidate, 0, len(res.Tracks.Tracks))
	for _, t := range res.Tracks.Tracks {
		cand, err := models.NewRemoteCandidate(t.Name, joinArtists(t.Artists), t.Album.Name, string(t.ID))
		if err != nil {
			// Local files and unavailable tracks come back without an id.
			continue
		}
		out = append(out, cand)
	}
	return out, nil
}

// Searcher returns a multi-attempt searcher backed by this client.
func (c *Client) Searcher(maxAttempts int, exhaustive bool) *search.Searcher {
	return &search.Searcher{Fetch: c.Fetch, MaxAttempts: maxAttempts, Exhaustive: exhaustive}
}

// Prepare finds the user's playlist named like p, creating it when missing,
// and returns the ids of the tracks it already holds.
func (c *Client) Prepare(ctx context.Context, p models.Playlist) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, created, err := c.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	if created {
		return nil, nil
	}
	return c.playlistTrackIDs(ctx, id)
}

func (c *Client) resolve(ctx context.Context, p models.Playlist) (spotifyapi.ID, bool, error) {
	if id, ok := c.resolved[p.ID]; ok {
		return id, false, nil
	}
	name := p.Name
	if name == "" {
		name = p.ID
	}

	if err := c.loadPlaylists(ctx); err != nil {
		return "", false, err
	}
	if id, ok := c.byName[name]; ok {
		c.resolved[p.ID] = id
		return id, false, nil
	}

	created, err := c.api.CreatePlaylistForUser(ctx, c.userID, name, "Synced from local library", c.opts.PlaylistPublic, false)
	if err != nil {
		return "", false, fmt.Errorf("create playlist %q: %w", name, err)
	}
	c.byName[name] = created.ID
	c.resolved[p.ID] = created.ID
	return created.ID, true, nil
}

// playlistTrackIDs pages through the playlist's items. Episodes, local files
// and unavailable tracks are skipped.
func (c *Client) playlistTrackIDs(ctx context.Context, id spotifyapi.ID) ([]string, error) {
	page, err := c.api.GetPlaylistItems(ctx, id, spotifyapi.Limit(100))
	if err != nil {
		return nil, fmt.Errorf("list items of %s: %w", id, err)
	}
	var ids []string
	for {
		for _, item := range page.Items {
			if t := item.Track.Track; t != nil && t.ID != "" {
				ids = append(ids, string(t.ID))
			}
		}
		err = c.api.NextPage(ctx, page)
		if errors.Is(err, spotifyapi.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("playlist items pagination error: %w", err)
		}
	}
	return ids, nil
}

func (c *Client) loadPlaylists(ctx context.Context) error {
	if c.listedAll {
		return nil
	}
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("current user: %w", err)
	}
	c.userID = user.ID

	page, err := c.api.CurrentUsersPlaylists(ctx, spotifyapi.Limit(50))
	if err != nil {
		return fmt.Errorf("list playlists: %w", err)
	}
	for {
		for _, pl := range page.Playlists {
			// First match wins when names repeat.
			if _, ok := c.byName[pl.Name]; !ok && pl.Owner.ID == c.userID {
				c.byName[pl.Name] = pl.ID
			}
		}
		err = c.api.NextPage(ctx, page)
		if errors.Is(err, spotifyapi.ErrNoMorePages) {
			break
		}
		if err != nil {
			return fmt.Errorf("playlist pagination error: %w", err)
		}
	}
	c.listedAll = true
	return nil
}

// Emit queues an add. Nothing is written until Flush.
func (c *Client) Emit(_ context.Context, intent models.AddIntent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	playlist, ok := c.resolved[intent.PlaylistID]
	if !ok {
		return fmt.Errorf("%s: %w", intent.PlaylistID, ErrUnknownPlaylist)
	}
	c.buffer = append(c.buffer, pendingAdd{playlist: playlist, track: spotifyapi.ID(intent.RemoteID)})
	return nil
}

// Flush writes queued adds in emission order, at most 100 per request, and
// returns how many were written. The queue is cleared either way; unwritten
// adds are picked up again by the next run.
func (c *Client) Flush(ctx context.Context) (int, error) {
	c.mu.Lock()
	queued := c.buffer
	c.buffer = nil
	c.mu.Unlock()

	written := 0
	for len(queued) > 0 {
		batch := nextBatch(queued)
		ids := make([]spotifyapi.ID, len(batch))
		for i, a := range batch {
			ids[i] = a.track
		}
		if _, err := c.api.AddTracksToPlaylist(ctx, batch[0].playlist, ids...); err != nil {
			return written, fmt.Errorf("add %d tracks to %s: %w", len(ids), batch[0].playlist, err)
		}
		written += len(batch)
		queued = queued[len(batch):]
	}
	return written, nil
}

// Discard drops queued adds without writing them.
func (c *Client) Discard() {
	c.mu.Lock()
	c.buffer = nil
	c.mu.Unlock()
}

// nextBatch takes the longest prefix that targets one playlist, capped at
// the per-request limit.
func nextBatch(queued []pendingAdd) []pendingAdd {
	n := 1
	for n < len(queued) && n < maxTracksPerRequest && queued[n].playlist == queued[0].playlist {
		n++
	}
	return queued[:n]
}

func joinArtists(artists []spotifyapi.SimpleArtist) string {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}
