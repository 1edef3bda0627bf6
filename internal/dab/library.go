package dab

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"music-sync-srv/internal/models"
)

// ErrUnknownLibrary means an intent arrived for a playlist that was never
// prepared.
var ErrUnknownLibrary = errors.New("dab: library not prepared")

type LibraryInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListLibraries returns the libraries of the token's user.
func (c *Client) ListLibraries(ctx context.Context) ([]LibraryInfo, error) {
	var result struct {
		Libraries []LibraryInfo `json:"libraries"`
	}
	if err := c.DoRequest(ctx, "GET", "/libraries", nil, &result); err != nil {
		return nil, fmt.Errorf("failed to list libraries: %w", err)
	}
	return result.Libraries, nil
}

// CreateLibrary creates a new library on DAB
func (c *Client) CreateLibrary(ctx context.Context, name string) (string, error) {
	payload := map[string]any{
		"name":        name,
		"description": "Synced from local library",
		"isPublic":    false,
	}

	var result struct {
		Library LibraryInfo `json:"library"`
	}
	if err := c.DoRequest(ctx, "POST", "/libraries", payload, &result); err != nil {
		return "", err
	}
	return result.Library.ID, nil
}

// GetLibraryTracks fetches all tracks currently in a library.
func (c *Client) GetLibraryTracks(ctx context.Context, libraryID string) ([]DabTrack, error) {
	var result struct {
		Tracks []DabTrack `json:"tracks"`
	}
	if err := c.DoRequest(ctx, "GET", fmt.Sprintf("/libraries/%s/tracks", libraryID), nil, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch library tracks: %w", err)
	}
	return result.Tracks, nil
}

// AddTrackByID adds a catalog track to a library.
func (c *Client) AddTrackByID(ctx context.Context, libraryID string, trackID string) error {
	payload := map[string]any{
		"trackId": trackID,
	}
	return c.DoRequest(ctx, "POST", fmt.Sprintf("/libraries/%s/tracks", libraryID), payload, nil)
}

// LibrarySink writes add intents straight into DAB libraries, one request
// per track.
type LibrarySink struct {
	client *Client

	mu       sync.Mutex
	resolved map[string]string
}

func NewLibrarySink(c *Client) *LibrarySink {
	return &LibrarySink{client: c, resolved: make(map[string]string)}
}

// Prepare maps the local playlist onto the library with the same name,
// creating one when none exists, and returns the ids already in it.
func (s *LibrarySink) Prepare(ctx context.Context, p models.Playlist) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	libID, ok := s.resolved[p.ID]
	if !ok {
		id, created, err := s.resolve(ctx, p)
		if err != nil {
			return nil, err
		}
		s.resolved[p.ID] = id
		if created {
			return nil, nil
		}
		libID = id
	}

	tracks, err := s.client.GetLibraryTracks(ctx, libID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if t.ID != "" {
			ids = append(ids, string(t.ID))
		}
	}
	return ids, nil
}

func (s *LibrarySink) resolve(ctx context.Context, p models.Playlist) (string, bool, error) {
	name := p.Name
	if name == "" {
		name = p.ID
	}

	libs, err := s.client.ListLibraries(ctx)
	if err != nil {
		return "", false, err
	}
	for _, lib := range libs {
		if lib.Name == name {
			return lib.ID, false, nil
		}
	}

	id, err := s.client.CreateLibrary(ctx, name)
	if err != nil {
		return "", false, fmt.Errorf("create library %q: %w", name, err)
	}
	return id, true, nil
}

func (s *LibrarySink) Emit(ctx context.Context, intent models.AddIntent) error {
	s.mu.Lock()
	libID, ok := s.resolved[intent.PlaylistID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", intent.PlaylistID, ErrUnknownLibrary)
	}
	return s.client.AddTrackByID(ctx, libID, intent.RemoteID)
}
