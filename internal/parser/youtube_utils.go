package parser

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// Noise reduction regex
	noiseRegex = regexp.MustCompile(`(?i)\s*[(\[](official (music )?video|official audio|audio|video|lyrics?( video)?|visuali[sz]er|hd|hq|4k)[)\]]`)
	featRegex  = regexp.MustCompile(`(?i)\bfeat\b\.?`)
	spaceRegex = regexp.MustCompile(`\s{2,}`)
	splitRegex = regexp.MustCompile(`\s+[-–—|:]\s+`)
	topicRegex = regexp.MustCompile(`(?i)\s+-\s+topic$`)
)

// NormalizeYTTitle splits a video title into (artist, title). Uploader is the
// channel name; auto-generated "Artist - Topic" channels name the artist.
func NormalizeYTTitle(rawTitle string, uploader string) (string, string) {
	t := noiseRegex.ReplaceAllString(rawTitle, "")
	t = featRegex.ReplaceAllString(t, "feat.")
	t = strings.TrimSpace(spaceRegex.ReplaceAllString(t, " "))

	if topicRegex.MatchString(uploader) {
		return capWords(topicRegex.ReplaceAllString(uploader, "")), capWords(t)
	}

	// "Artist - Title", but some channels post "Title - Artist".
	parts := splitRegex.Split(t, 2)
	if len(parts) == 2 {
		left, right := parts[0], parts[1]
		if looksLikeArtist(left, right) {
			return capWords(left), capWords(right)
		}
		return capWords(right), capWords(left)
	}

	if uploader != "" {
		return capWords(uploader), capWords(t)
	}
	return "", capWords(t)
}

// looksLikeArtist: the left side lists collaborators, or is short while the
// right side is not.
func looksLikeArtist(left, right string) bool {
	leftLower := strings.ToLower(left)
	if strings.Contains(left, ",") || strings.Contains(left, "&") || strings.Contains(leftLower, "feat.") {
		return true
	}
	return len(strings.Fields(left)) <= 4 && len(strings.Fields(right)) >= 2
}

// capWords title-cases words but leaves short all-caps tokens (DJ, AC/DC) alone.
func capWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == strings.ToUpper(w) && len([]rune(w)) <= 5 {
			continue
		}
		runes := []rune(strings.ToLower(w))
		for j, r := range runes {
			if unicode.IsLetter(r) {
				runes[j] = unicode.ToUpper(r)
				break
			}
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
