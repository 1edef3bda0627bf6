// Package normalize canonicalizes song, album and artist text before it is
// compared. Normalization is an ordered list of pure rules; each rule takes
// the working state and returns a new one.
package normalize

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/gosimple/unidecode"
	"github.com/samber/lo"
)

// NormalizedText is the comparison-ready form of one text field.
type NormalizedText struct {
	Canonical string
	// Qualifiers holds isolated edition suffixes such as "remastered" or
	// "special edition".
	Qualifiers []string
	// Collaborators is the set of individual artist names, in first-seen order.
	Collaborators []string
}

// Empty reports whether nothing comparable survived normalization.
func (n NormalizedText) Empty() bool {
	return n.Canonical == "" && len(n.Collaborators) == 0
}

// QualifierText joins the qualifiers in sorted order, so "(Live) [Remastered]"
// and "[Remastered] (Live)" compare equal.
func (n NormalizedText) QualifierText() string {
	return strings.Join(slices.Sorted(slices.Values(n.Qualifiers)), " ")
}

type state struct {
	text          string
	qualifiers    []string
	collaborators []string
}

// Rule is a single named normalization step.
type Rule struct {
	Name  string
	Apply func(state) state
}

// TitleRules normalize song titles and album names.
var TitleRules = []Rule{
	{Name: "fold-case", Apply: foldCase},
	{Name: "strip-diacritics", Apply: stripDiacritics},
	{Name: "isolate-qualifiers", Apply: isolateQualifiers},
	{Name: "extract-inline-featuring", Apply: extractInlineFeaturing},
	{Name: "equate-ampersand", Apply: equateAmpersand},
	{Name: "strip-punctuation", Apply: stripPunctuation},
}

// ArtistRules normalize artist fields and split them into collaborators.
var ArtistRules = []Rule{
	{Name: "fold-case", Apply: foldCase},
	{Name: "strip-diacritics", Apply: stripDiacritics},
	{Name: "isolate-qualifiers", Apply: isolateQualifiers},
	{Name: "split-collaborators", Apply: splitCollaborators},
	{Name: "equate-ampersand", Apply: equateAmpersand},
	{Name: "strip-punctuation", Apply: stripPunctuation},
}

var (
	featPrefix     = regexp.MustCompile(`^(?:featuring|feat\.?|ft\.?)\s+`)
	inlineFeat     = regexp.MustCompile(`\s(?:featuring|feat\.?|ft\.?)\s+`)
	separatorSplit = regexp.MustCompile(`\s*,\s*|\s*&\s*|\s+and\s+|\s+featuring\s+|\s+feat\.?\s+|\s+ft\.?\s+`)
)

var editionTokens = map[string]struct{}{
	"acoustic":    {},
	"anniversary": {},
	"bonus":       {},
	"clean":       {},
	"deluxe":      {},
	"demo":        {},
	"edit":        {},
	"edition":     {},
	"ep":          {},
	"expanded":    {},
	"explicit":    {},
	"live":        {},
	"mix":         {},
	"mono":        {},
	"radio":       {},
	"remaster":    {},
	"remastered":  {},
	"remix":       {},
	"single":      {},
	"special":     {},
	"stereo":      {},
	"version":     {},
}

// Normalize canonicalizes a song title or album name.
func Normalize(raw string) NormalizedText {
	return Run(raw, TitleRules)
}

// NormalizeArtist canonicalizes an artist field and extracts its collaborators.
func NormalizeArtist(raw string) NormalizedText {
	return Run(raw, ArtistRules)
}

// Run applies rules in order. Input that is blank yields an empty result.
func Run(raw string, rules []Rule) NormalizedText {
	s := state{text: raw}
	for _, rule := range rules {
		s = rule.Apply(s)
	}

	canonical := s.text
	qualifiers := uniqueNonEmpty(s.qualifiers)
	if canonical == "" && len(qualifiers) > 0 {
		// "(Untitled)" keeps its bracket content as the comparable text.
		canonical = strings.Join(qualifiers, " ")
		qualifiers = nil
	}
	if canonical == "" {
		// Punctuation-only input still compares equal to itself.
		canonical = stripDiacritics(foldCase(state{text: raw})).text
	}

	return NormalizedText{
		Canonical:     canonical,
		Qualifiers:    qualifiers,
		Collaborators: uniqueNonEmpty(s.collaborators),
	}
}

func foldCase(s state) state {
	s.text = collapse(strings.ToLower(s.text))
	return s
}

func stripDiacritics(s state) state {
	s.text = collapse(strings.ToLower(unidecode.Unidecode(s.text)))
	return s
}

func isolateQualifiers(s state) state {
	var out, segment strings.Builder
	var segments []string
	depth := 0
	for _, r := range s.text {
		switch r {
		case '(', '[', '{':
			if depth > 0 {
				segment.WriteRune(' ')
			}
			depth++
		case ')', ']', '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				segments = append(segments, segment.String())
				segment.Reset()
			} else {
				segment.WriteRune(' ')
			}
		default:
			if depth == 0 {
				out.WriteRune(r)
			} else {
				segment.WriteRune(r)
			}
		}
	}
	if depth > 0 {
		segments = append(segments, segment.String())
	}

	next := state{
		text:          collapse(out.String()),
		qualifiers:    clone(s.qualifiers),
		collaborators: clone(s.collaborators),
	}
	for _, seg := range segments {
		seg = collapse(seg)
		if seg == "" {
			continue
		}
		if names, ok := featuredNames(seg); ok {
			next.collaborators = append(next.collaborators, names...)
			continue
		}
		next.qualifiers = append(next.qualifiers, seg)
	}

	for {
		idx := strings.LastIndex(next.text, " - ")
		if idx == -1 {
			break
		}
		suffix := strings.TrimSpace(next.text[idx+3:])
		if names, ok := featuredNames(suffix); ok {
			next.collaborators = append(next.collaborators, names...)
		} else if hasEditionToken(suffix) {
			next.qualifiers = append(next.qualifiers, suffix)
		} else {
			break
		}
		next.text = strings.TrimSpace(next.text[:idx])
	}

	return next
}

func extractInlineFeaturing(s state) state {
	loc := inlineFeat.FindStringIndex(s.text)
	if loc == nil {
		return s
	}
	names := splitNames(s.text[loc[1]:])
	return state{
		text:          strings.TrimSpace(s.text[:loc[0]]),
		qualifiers:    clone(s.qualifiers),
		collaborators: append(clone(s.collaborators), names...),
	}
}

func splitCollaborators(s state) state {
	names := splitNames(s.text)
	return state{
		text:          s.text,
		qualifiers:    clone(s.qualifiers),
		collaborators: append(names, s.collaborators...),
	}
}

func equateAmpersand(s state) state {
	s.text = collapse(strings.ReplaceAll(s.text, "&", " and "))
	return s
}

func stripPunctuation(s state) state {
	return state{
		text:          cleanPunctuation(s.text),
		qualifiers:    lo.Map(s.qualifiers, func(q string, _ int) string { return cleanPunctuation(q) }),
		collaborators: lo.Map(s.collaborators, func(c string, _ int) string { return cleanPunctuation(c) }),
	}
}

// featuredNames recognizes "feat. X & Y" style segments.
func featuredNames(segment string) ([]string, bool) {
	if !featPrefix.MatchString(segment) {
		return nil, false
	}
	names := splitNames(featPrefix.ReplaceAllString(segment, ""))
	return names, len(names) > 0
}

func splitNames(s string) []string {
	s = featPrefix.ReplaceAllString(collapse(s), "")
	parts := separatorSplit.Split(s, -1)
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := cleanPunctuation(p); name != "" {
			names = append(names, name)
		}
	}
	return lo.Uniq(names)
}

func hasEditionToken(s string) bool {
	for _, token := range strings.Fields(cleanPunctuation(s)) {
		if _, ok := editionTokens[token]; ok {
			return true
		}
	}
	return false
}

// cleanPunctuation keeps letters, digits and name-internal hyphens/apostrophes.
func cleanPunctuation(s string) string {
	runes := []rune(s)
	var out strings.Builder
	for i, r := range runes {
		switch {
		case isWordRune(r):
			out.WriteRune(r)
		case (r == '-' || r == '\'') && i > 0 && i < len(runes)-1 && isWordRune(runes[i-1]) && isWordRune(runes[i+1]):
			out.WriteRune(r)
		default:
			out.WriteRune(' ')
		}
	}
	return collapse(out.String())
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func uniqueNonEmpty(in []string) []string {
	out := lo.Uniq(lo.Compact(in))
	if len(out) == 0 {
		return nil
	}
	return out
}

func clone(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return append([]string(nil), in...)
}
