package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"music-sync-srv/internal/models"
)

// SpotifyParser reads public Spotify playlists, albums and tracks as a local
// library, e.g. to mirror them into DAB.
type SpotifyParser struct {
	client *spotify.Client
}

func NewSpotifyParser(client *spotify.Client) *SpotifyParser {
	return &SpotifyParser{client: client}
}

// NewSpotifyAppParser authenticates with the app's client credentials only;
// no user is involved.
func NewSpotifyAppParser(ctx context.Context, clientID, clientSecret string) *SpotifyParser {
	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return NewSpotifyParser(spotify.New(config.Client(ctx)))
}

func (p *SpotifyParser) Parse(ctx context.Context, url string) ([]models.Playlist, error) {
	id, mediaType, err := parseSpotifyURL(url)
	if err != nil {
		return nil, fmt.Errorf("spotify parse url: %w", err)
	}

	var (
		name   string
		tracks []models.LocalTrack
	)
	switch mediaType {
	case "playlist":
		name, tracks, err = p.playlist(ctx, id)
	case "album":
		name, tracks, err = p.album(ctx, id)
	case "track":
		name, tracks, err = p.track(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	pl := newPlaylist("spotify-"+string(id), name)
	for _, t := range tracks {
		if err := pl.AddTrack(t.Title, t.Artist, t.Album); err != nil {
			return nil, err
		}
	}
	return []models.Playlist{*pl}, nil
}

func (p *SpotifyParser) playlist(ctx context.Context, id spotify.ID) (string, []models.LocalTrack, error) {
	res, err := p.client.GetPlaylist(ctx, id)
	if err != nil {
		return "", nil, fmt.Errorf("get playlist: %w", err)
	}

	var tracks []models.LocalTrack
	page := res.Tracks
	for {
		for _, item := range page.Tracks {
			if item.Track.ID != "" && !item.IsLocal {
				tracks = append(tracks, fromFullTrack(item.Track))
			}
		}
		err = p.client.NextPage(ctx, &page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return res.Name, tracks, fmt.Errorf("playlist pagination error: %w", err)
		}
	}
	return res.Name, tracks, nil
}

func (p *SpotifyParser) album(ctx context.Context, id spotify.ID) (string, []models.LocalTrack, error) {
	res, err := p.client.GetAlbum(ctx, id)
	if err != nil {
		return "", nil, fmt.Errorf("get album: %w", err)
	}
	tracks := make([]models.LocalTrack, 0, len(res.Tracks.Tracks))
	for _, t := range res.Tracks.Tracks {
		tracks = append(tracks, models.LocalTrack{
			Title:  t.Name,
			Artist: joinArtistNames(t.Artists),
			Album:  res.Name,
		})
	}
	return res.Name, tracks, nil
}

func (p *SpotifyParser) track(ctx context.Context, id spotify.ID) (string, []models.LocalTrack, error) {
	res, err := p.client.GetTrack(ctx, id)
	if err != nil {
		return "", nil, fmt.Errorf("get track: %w", err)
	}
	return res.Name, []models.LocalTrack{fromFullTrack(*res)}, nil
}

func parseSpotifyURL(urlStr string) (spotify.ID, string, error) {
	for _, kind := range []string{"playlist", "album", "track"} {
		marker := "/" + kind + "/"
		if idx := strings.Index(urlStr, marker); idx != -1 {
			id := urlStr[idx+len(marker):]
			id = strings.SplitN(id, "?", 2)[0]
			id = strings.SplitN(id, "/", 2)[0]
			if id == "" {
				break
			}
			return spotify.ID(id), kind, nil
		}
	}
	return "", "", fmt.Errorf("could not identify media type from URL")
}

func fromFullTrack(st spotify.FullTrack) models.LocalTrack {
	return models.LocalTrack{
		Title:  st.Name,
		Artist: joinArtistNames(st.Artists),
		Album:  st.Album.Name,
	}
}

func joinArtistNames(artists []spotify.SimpleArtist) string {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}
