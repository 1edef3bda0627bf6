package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"music-sync-srv/internal/normalize"
)

func TestScoreField_IdenticalTitlesScoreOne(t *testing.T) {
	inputs := []string{
		"Caruso",
		"A te (Special Edition)",
		"Heroes - 2017 Remaster",
		"Café Déjà Vu",
		"!!!",
		"(Untitled)",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			n := normalize.Normalize(in)
			assert.Equal(t, 1.0, ScoreField(n, n, FieldSong))
			assert.Equal(t, 1.0, ScoreField(n, n, FieldAlbum))
		})
	}
}

func TestScoreField_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"Caruso", "Carusso"},
		{"A te (Special Edition)", "A te"},
		{"Hello (Live)", "Hello (Live at Wembley)"},
		{"Yesterday", "Let It Be"},
		{"", "Something"},
	}
	for _, p := range pairs {
		a, b := normalize.Normalize(p[0]), normalize.Normalize(p[1])
		for _, kind := range []FieldKind{FieldSong, FieldAlbum} {
			assert.InDelta(t, ScoreField(a, b, kind), ScoreField(b, a, kind), 1e-12, "%q vs %q (%s)", p[0], p[1], kind)
		}
	}

	artists := [][2]string{
		{"Artist A & Artist B", "Artist A"},
		{"Simon & Garfunkel", "Simon and Garfunkle"},
		{"Crosby, Stills & Nash", "Crosby, Stills, Nash and Young"},
	}
	for _, p := range artists {
		a, b := normalize.NormalizeArtist(p[0]), normalize.NormalizeArtist(p[1])
		assert.InDelta(t, ScoreField(a, b, FieldArtist), ScoreField(b, a, FieldArtist), 1e-12, "%q vs %q", p[0], p[1])
	}
}

func TestScoreField_EmptyIsNeverAMatch(t *testing.T) {
	empty := normalize.Normalize("   ")
	assert.Equal(t, 0.0, ScoreField(empty, empty, FieldSong))
	assert.Equal(t, 0.0, ScoreField(empty, normalize.Normalize("x"), FieldAlbum))

	emptyArtist := normalize.NormalizeArtist("")
	assert.Equal(t, 0.0, ScoreField(emptyArtist, emptyArtist, FieldArtist))
	assert.Equal(t, 0.0, ScoreField(emptyArtist, normalize.NormalizeArtist("Adele"), FieldArtist))
}

func TestScoreField_EditionMismatchLowersScore(t *testing.T) {
	got := ScoreField(normalize.Normalize("A te (Special Edition)"), normalize.Normalize("A te"), FieldAlbum)
	assert.InDelta(t, 0.8, got, 1e-9)
}

func TestScoreField_QualifierOrderIndependent(t *testing.T) {
	a := normalize.Normalize("Song (Live) [Remastered]")
	b := normalize.Normalize("Song [Remastered] (Live)")
	assert.Equal(t, 1.0, ScoreField(a, b, FieldSong))
	assert.Equal(t, 1.0, ScoreField(b, a, FieldAlbum))
}

func TestScoreField_ArtistOrderIndependent(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "ampersand vs feat", a: "Artist A & Artist B", b: "Artist B feat. Artist A", want: 1},
		{name: "permuted list", a: "Crosby, Stills, Nash", b: "Nash & Stills & Crosby", want: 1},
		{name: "subset is fully aligned", a: "Artist A", b: "Artist A, Artist B", want: 1},
		{name: "and equals ampersand", a: "Simon and Garfunkel", b: "Garfunkel & Simon", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreField(normalize.NormalizeArtist(tt.a), normalize.NormalizeArtist(tt.b), FieldArtist)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestScoreField_Bounded(t *testing.T) {
	a, b := normalize.Normalize("Bohemian Rhapsody"), normalize.Normalize("Rhapsody in Blue (Live)")
	got := ScoreField(a, b, FieldSong)
	assert.GreaterOrEqual(t, got, 0.0)
	assert.Less(t, got, 1.0)
}
