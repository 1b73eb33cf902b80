// Package match provides name normalization and similarity scoring for
// watchlist screening.
package match

import "strings"

// Normalize canonicalizes a name for comparison: lower-cases and strips
// every character outside [a-z0-9], retaining no internal separators.
// Total and deterministic; any input (including empty) yields a defined,
// possibly empty, output. Applied identically to query and candidate names
// so comparisons are symmetric.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToLower(raw) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
