package dab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"music-sync-srv/internal/models"
	"music-sync-srv/internal/search"
)

// TrackID accepts both numeric and string ids.
type TrackID string

func (id *TrackID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = TrackID(s)
		return nil
	}
	if string(b) == "null" {
		*id = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = TrackID(n.String())
	return nil
}

// DabTrack represents the DAB API response item
type DabTrack struct {
	ID           TrackID `json:"id"`
	Title        string  `json:"title"`
	Artist       string  `json:"artist"`
	AlbumTitle   string  `json:"albumTitle"`
	AudioQuality struct {
		SamplingRate float64 `json:"maximumSamplingRate"`
		BitDepth     int     `json:"maximumBitDepth"`
	} `json:"audioQuality"`
}

func (c *Client) Search(ctx context.Context, query string, limit int) ([]DabTrack, error) {
	path := fmt.Sprintf("/search?q=%s&type=track", url.QueryEscape(query))
	if limit > 0 {
		path += fmt.Sprintf("&limit=%d", limit)
	}

	var result struct {
		Tracks []DabTrack `json:"tracks"`
	}
	if err := c.DoRequest(ctx, "GET", path, nil, &result); err != nil {
		return nil, fmt.Errorf("dab search: %w", err)
	}
	return result.Tracks, nil
}

// Fetcher adapts Search to search.FetchFunc.
func (c *Client) Fetcher(limit int) search.FetchFunc {
	return func(ctx context.Context, q search.Query) ([]models.RemoteCandidate, error) {
		tracks, err := c.Search(ctx, q.String(), limit)
		if err != nil {
			return nil, err
		}
		out := make([]models.RemoteCandidate, 0, len(tracks))
		for _, t := range preferQuality(tracks) {
			cand, err := models.NewRemoteCandidate(t.Title, t.Artist, t.AlbumTitle, string(t.ID))
			if err != nil {
				continue
			}
			out = append(out, cand)
		}
		return out, nil
	}
}

// preferQuality stably orders releases of the same title and artist by
// sampling rate, then bit depth, so equal-scoring duplicates resolve to the
// best audio.
func preferQuality(tracks []DabTrack) []DabTrack {
	out := append([]DabTrack(nil), tracks...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && sameRecording(out[j], out[j-1]) && betterQuality(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func sameRecording(a, b DabTrack) bool {
	return a.Title == b.Title && a.Artist == b.Artist && a.AlbumTitle == b.AlbumTitle
}

func betterQuality(a, b DabTrack) bool {
	if a.AudioQuality.SamplingRate != b.AudioQuality.SamplingRate {
		return a.AudioQuality.SamplingRate > b.AudioQuality.SamplingRate
	}
	return a.AudioQuality.BitDepth > b.AudioQuality.BitDepth
}
