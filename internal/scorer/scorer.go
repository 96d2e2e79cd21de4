// Package scorer assigns a confidence score to an enrichment outcome.
package scorer

import (
	"strings"
)

const (
	emailPoints   = 50
	phonePoints   = 40
	trustedPoints = 10
	maxScore      = 100
)

// trustedMarkers are substrings of a source that earn the trusted bonus.
var trustedMarkers = []string{"linkedin", "realtor.com", "zillow"}

// Score returns 0-100: 50 for an email, 40 for a phone, 10 when the source
// names a trusted site.
func Score(email, phone, source string) int {
	score := 0
	if email != "" {
		score += emailPoints
	}
	if phone != "" {
		score += phonePoints
	}
	if IsTrustedSource(source) {
		score += trustedPoints
	}
	return min(score, maxScore)
}

// IsTrustedSource reports whether source contains a trusted marker.
func IsTrustedSource(source string) bool {
	for _, m := range trustedMarkers {
		if strings.Contains(source, m) {
			return true
		}
	}
	return false
}
