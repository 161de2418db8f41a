package preset

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// suggestThreshold is the minimum Jaro-Winkler score for a suggestion.
const suggestThreshold = 0.80

// Suggest returns the candidate most similar to key by Jaro-Winkler
// similarity (case-insensitive), or "" when nothing scores at least 0.80.
// It is used for diagnostics only; resolution never acts on a suggestion.
func Suggest(key string, candidates []string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return ""
	}
	var (
		best      string
		bestScore float64
	)
	for _, c := range candidates {
		score := matchr.JaroWinkler(key, strings.ToLower(c), false)
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	if bestScore < suggestThreshold {
		return ""
	}
	return best
}
