package rolemap

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// defaultFuzzyThreshold is the minimum Jaro-Winkler score for a phonetically
// overlapping token to count as a cue hit.
const defaultFuzzyThreshold = 0.85

// FuzzyCueMatcher matches transcript tokens against single-word cues by
// pronunciation rather than spelling, so STT mishearings ("dolor" for
// "douleur") still register. A token matches when any of its Double
// Metaphone codes overlaps a cue's codes and the Jaro-Winkler similarity of
// the two strings clears the threshold.
//
// Read-only after construction; safe for concurrent use.
type FuzzyCueMatcher struct {
	threshold float64
}

// NewFuzzyCueMatcher returns a matcher with the given Jaro-Winkler
// threshold; values outside (0, 1] fall back to the default 0.85.
func NewFuzzyCueMatcher(threshold float64) *FuzzyCueMatcher {
	if threshold <= 0 || threshold > 1 {
		threshold = defaultFuzzyThreshold
	}
	return &FuzzyCueMatcher{threshold: threshold}
}

// Match reports whether token sounds like cue. Both sides are compared
// lowercase; multi-word cues never fuzzy-match (phrase cues stay exact).
func (m *FuzzyCueMatcher) Match(token, cue string) bool {
	token = strings.ToLower(strings.TrimSpace(token))
	cue = strings.ToLower(strings.TrimSpace(cue))
	if token == "" || cue == "" || strings.ContainsRune(cue, ' ') {
		return false
	}
	if token == cue {
		return true
	}
	if !codesOverlap(token, cue) {
		return false
	}
	return matchr.JaroWinkler(token, cue, false) >= m.threshold
}

// codesOverlap reports whether the Double Metaphone code sets of the two
// words share at least one code. Empty codes (very short words, no
// consonants) are ignored.
func codesOverlap(a, b string) bool {
	pa, sa := matchr.DoubleMetaphone(a)
	pb, sb := matchr.DoubleMetaphone(b)
	for _, x := range []string{pa, sa} {
		if x == "" {
			continue
		}
		if x == pb || (sb != "" && x == sb) {
			return true
		}
	}
	return false
}
