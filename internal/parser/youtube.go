package parser

import (
	"context"
	"fmt"

	"github.com/kkdai/youtube/v2"

	"music-sync-srv/internal/models"
)

// ParseYouTube turns a playlist URL, or a single video URL, into one local
// playlist. Video titles are split into artist and title heuristically.
func ParseYouTube(ctx context.Context, url string) ([]models.Playlist, error) {
	client := youtube.Client{}

	// 1. Try to parse as a playlist first
	playlist, err := client.GetPlaylistContext(ctx, url)
	if err == nil {
		p := newPlaylist("yt-"+playlist.ID, playlist.Title)
		for _, entry := range playlist.Videos {
			artist, title := NormalizeYTTitle(entry.Title, entry.Author)
			if err := p.AddTrack(title, artist, ""); err != nil {
				return nil, err
			}
		}
		return []models.Playlist{*p}, nil
	}

	// 2. Fallback: Parse as a single video if playlist parsing fails
	video, err := client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YouTube URL: %w", err)
	}

	p := newPlaylist("yt-"+video.ID, video.Title)
	artist, title := NormalizeYTTitle(video.Title, video.Author)
	if err := p.AddTrack(title, artist, ""); err != nil {
		return nil, err
	}
	return []models.Playlist{*p}, nil
}
