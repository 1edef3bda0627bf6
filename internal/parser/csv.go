package parser

import (
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"music-sync-srv/internal/models"
)

// canonical header mapping
var headerAliases = map[string]string{
	"title":       "title",
	"track":       "title",
	"track_title": "title",
	"track name":  "title",
	"name":        "title",
	"song":        "title",
	"song name":   "title",

	"artist":      "artist",
	"artist_name": "artist",
	"artist name": "artist",
	"performer":   "artist",

	"album":       "album",
	"album_title": "album",
	"album name":  "album",

	"playlist":      "playlist",
	"playlist_name": "playlist",
	"playlist name": "playlist",
}

var ErrNoColumns = errors.New("CSV has no recognizable columns")

func normalizeHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
}

// ParseCSV reads one track per row. Rows without a playlist column value go
// to defaultPlaylist.
func ParseCSV(r io.Reader, defaultPlaylist string) ([]models.Playlist, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	// ---- Read header row ----
	rawHeaders, err := reader.Read()
	if err != nil {
		return nil, err
	}

	columnMap := make(map[int]string)
	for i, h := range rawHeaders {
		if canonical, ok := headerAliases[normalizeHeader(h)]; ok {
			columnMap[i] = canonical
		}
	}
	if len(columnMap) == 0 {
		return nil, ErrNoColumns
	}

	b := newPlaylistBuilder()

	// ---- Read rows ----
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		var title, artist, album, playlist string
		for i, v := range record {
			field, ok := columnMap[i]
			if !ok {
				continue
			}
			val := strings.TrimSpace(v)
			switch field {
			case "title":
				title = val
			case "artist":
				artist = val
			case "album":
				album = val
			case "playlist":
				playlist = val
			}
		}

		// Skip totally empty rows
		if title == "" && artist == "" {
			continue
		}
		if playlist == "" {
			playlist = defaultPlaylist
		}
		if err := b.add(playlist, title, artist, album); err != nil {
			return nil, err
		}
	}

	return b.playlists(), nil
}

// ParseCSVUpload handles multipart file uploads from the Web API. The file
// name, without extension, names the playlist when the CSV has no playlist
// column.
func ParseCSVUpload(r *http.Request) ([]models.Playlist, string, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	name := strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	playlists, err := ParseCSV(file, name)
	return playlists, header.Filename, err
}
