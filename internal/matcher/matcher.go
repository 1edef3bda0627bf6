package matcher

import (
	"strings"

	"music-sync-srv/internal/models"
)

// Matching modes. Strict trades recall for fewer false positives.
const (
	ModeLenient = "lenient"
	ModeStrict  = "strict"
)

const (
	lenientThreshold = 0.6
	strictThreshold  = 0.85
)

// ThresholdForMode maps a matching mode to its acceptance threshold. Unknown
// modes fall back to lenient.
func ThresholdForMode(mode string) float64 {
	if strings.EqualFold(mode, ModeStrict) {
		return strictThreshold
	}
	return lenientThreshold
}

// OptionsForMode builds ranking options with the given weights. A non-nil
// override replaces the mode threshold, zero included.
func OptionsForMode(mode string, weights models.Weights, override *float64) RankOptions {
	threshold := ThresholdForMode(mode)
	if override != nil {
		threshold = *override
	}
	return RankOptions{Weights: weights, Threshold: threshold}
}
