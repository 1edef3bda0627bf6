package parser

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/samber/lo"

	"music-sync-srv/internal/models"
)

// PlaylistID derives a stable identifier from a playlist name.
func PlaylistID(name string) string {
	if id := slug.Make(name); id != "" {
		return id
	}
	return "playlist"
}

// Filter keeps playlists named in include (all when empty) and drops those
// named in exclude. Names compare case-insensitively.
func Filter(playlists []models.Playlist, include, exclude []string) []models.Playlist {
	fold := func(names []string) map[string]struct{} {
		return lo.SliceToMap(names, func(n string) (string, struct{}) {
			return strings.ToLower(strings.TrimSpace(n)), struct{}{}
		})
	}
	inc, exc := fold(include), fold(exclude)

	return lo.Filter(playlists, func(p models.Playlist, _ int) bool {
		name := strings.ToLower(p.Name)
		if _, skip := exc[name]; skip {
			return false
		}
		if len(inc) == 0 {
			return true
		}
		_, ok := inc[name]
		return ok
	})
}

func newPlaylist(id, name string) *models.Playlist {
	if id == "" {
		id = PlaylistID(name)
	}
	return &models.Playlist{ID: id, Name: name}
}

// playlistIDs hands out playlist ids, suffixing repeats with -2, -3 and so
// on in first-seen order. Names that only differ in case or punctuation
// slug to the same id.
type playlistIDs map[string]struct{}

func (s playlistIDs) claim(id string) string {
	unique := id
	for n := 2; ; n++ {
		if _, taken := s[unique]; !taken {
			break
		}
		unique = fmt.Sprintf("%s-%d", id, n)
	}
	s[unique] = struct{}{}
	return unique
}

// playlistBuilder groups rows by playlist name, keeping first-seen order.
type playlistBuilder struct {
	byName map[string]*models.Playlist
	order  []string
	ids    playlistIDs
}

func newPlaylistBuilder() *playlistBuilder {
	return &playlistBuilder{byName: make(map[string]*models.Playlist), ids: make(playlistIDs)}
}

func (b *playlistBuilder) playlists() []models.Playlist {
	out := make([]models.Playlist, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, *b.byName[name])
	}
	return out
}

func (b *playlistBuilder) add(name, title, artist, album string) error {
	p, ok := b.byName[name]
	if !ok {
		p = newPlaylist(b.ids.claim(PlaylistID(name)), name)
		b.byName[name] = p
		b.order = append(b.order, name)
	}
	return p.AddTrack(title, artist, album)
}
