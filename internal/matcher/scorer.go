package matcher

import (
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"music-sync-srv/internal/normalize"
)

// FieldKind selects how two normalized fields are compared.
type FieldKind int

const (
	FieldSong FieldKind = iota
	FieldArtist
	FieldAlbum
)

func (k FieldKind) String() string {
	switch k {
	case FieldSong:
		return "song"
	case FieldArtist:
		return "artist"
	case FieldAlbum:
		return "album"
	default:
		return "unknown"
	}
}

// Share of a title score carried by the canonical text; the rest comes from
// edition qualifier agreement.
const coreShare = 0.8

var levenshtein = metrics.NewLevenshtein()

// ScoreField returns a similarity in [0,1]. Missing data on either side is 0.
func ScoreField(a, b normalize.NormalizedText, kind FieldKind) float64 {
	if kind == FieldArtist {
		return scoreCollaborators(a.Collaborators, b.Collaborators)
	}
	if a.Canonical == "" || b.Canonical == "" {
		return 0
	}
	core := similarity(a.Canonical, b.Canonical)
	return clamp(coreShare*core + (1-coreShare)*qualifierAgreement(a, b))
}

func qualifierAgreement(a, b normalize.NormalizedText) float64 {
	qa, qb := a.QualifierText(), b.QualifierText()
	switch {
	case qa == "" && qb == "":
		return 1
	case qa == "" || qb == "":
		return 0
	default:
		return similarity(qa, qb)
	}
}

// scoreCollaborators aligns every name of the smaller set with its best
// counterpart in the larger one. Equal-sized sets are aligned both ways and
// averaged so the result does not depend on argument order.
func scoreCollaborators(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	switch {
	case len(a) < len(b):
		return bestAlignment(a, b)
	case len(b) < len(a):
		return bestAlignment(b, a)
	default:
		return clamp((bestAlignment(a, b) + bestAlignment(b, a)) / 2)
	}
}

func bestAlignment(small, large []string) float64 {
	var sum float64
	for _, name := range small {
		best := 0.0
		for _, other := range large {
			if s := similarity(name, other); s > best {
				best = s
			}
		}
		sum += best
	}
	return clamp(sum / float64(len(small)))
}

func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return clamp(strutil.Similarity(a, b, levenshtein))
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
