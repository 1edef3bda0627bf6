package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"music-sync-srv/internal/models"
)

var ErrNotPlist = errors.New("not an Apple Music library export")

// ParseAppleMusic reads a library exported with File > Library > Export
// Library. The master library, built-in lists such as "Music" and folders
// are skipped.
func ParseAppleMusic(r io.Reader) ([]models.Playlist, error) {
	root, err := decodePlist(xml.NewDecoder(r))
	if err != nil {
		return nil, err
	}
	lib, ok := root.(plistDict)
	if !ok {
		return nil, ErrNotPlist
	}

	tracks := make(map[string]models.LocalTrack)
	if all, ok := lib["Tracks"].(plistDict); ok {
		for key, v := range all {
			t, ok := v.(plistDict)
			if !ok {
				continue
			}
			tracks[key] = models.LocalTrack{
				Title:  t.str("Name"),
				Artist: t.str("Artist"),
				Album:  t.str("Album"),
			}
		}
	}

	lists, _ := lib["Playlists"].([]any)
	out := make([]models.Playlist, 0, len(lists))
	ids := make(playlistIDs)
	for _, v := range lists {
		pl, ok := v.(plistDict)
		if !ok || skipPlaylist(pl) {
			continue
		}
		id := pl.str("Playlist Persistent ID")
		if id == "" {
			id = PlaylistID(pl.str("Name"))
		}
		p := newPlaylist(ids.claim(id), pl.str("Name"))

		items, _ := pl["Playlist Items"].([]any)
		for _, item := range items {
			entry, ok := item.(plistDict)
			if !ok {
				continue
			}
			t, ok := tracks[entry.str("Track ID")]
			if !ok {
				continue
			}
			if err := p.AddTrack(t.Title, t.Artist, t.Album); err != nil {
				return nil, err
			}
		}
		out = append(out, *p)
	}
	return out, nil
}

func skipPlaylist(pl plistDict) bool {
	if pl.flag("Master") || pl.flag("Folder") {
		return true
	}
	_, builtin := pl["Distinguished Kind"]
	return builtin
}

type plistDict map[string]any

func (d plistDict) str(key string) string {
	s, _ := d[key].(string)
	return s
}

func (d plistDict) flag(key string) bool {
	b, _ := d[key].(bool)
	return b
}

// decodePlist returns the first value inside <plist>. Dicts become
// plistDict, arrays []any, booleans bool and every scalar its text.
func decodePlist(dec *xml.Decoder) (any, error) {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, ErrNotPlist
		}
		if err != nil {
			return nil, fmt.Errorf("read plist: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local == "plist" {
			continue
		}
		return decodeValue(dec, start)
	}
}

func decodeValue(dec *xml.Decoder, start xml.StartElement) (any, error) {
	switch start.Name.Local {
	case "dict":
		return decodeDict(dec)
	case "array":
		return decodeArray(dec)
	case "true", "false":
		if err := dec.Skip(); err != nil {
			return nil, err
		}
		return start.Name.Local == "true", nil
	default:
		var text string
		if err := dec.DecodeElement(&text, &start); err != nil {
			return nil, err
		}
		return strings.TrimSpace(text), nil
	}
}

func decodeDict(dec *xml.Decoder) (plistDict, error) {
	d := make(plistDict)
	var key string
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read dict: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "key" {
				if err := dec.DecodeElement(&key, &t); err != nil {
					return nil, err
				}
				continue
			}
			v, err := decodeValue(dec, t)
			if err != nil {
				return nil, err
			}
			d[key] = v
		case xml.EndElement:
			return d, nil
		}
	}
}

func decodeArray(dec *xml.Decoder) ([]any, error) {
	var out []any
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read array: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			v, err := decodeValue(dec, t)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		case xml.EndElement:
			return out, nil
		}
	}
}
