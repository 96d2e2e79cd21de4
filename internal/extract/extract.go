// Package extract pulls email addresses and phone numbers out of free text.
package extract

import (
	"regexp"
	"strings"

	"github.com/sells-group/lender-enrich/internal/model"
)

var (
	// The TLD class admits a literal '|' to match what existing lists were built with.
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)
	phoneRe = regexp.MustCompile(`(\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
)

// roleMarkers flag shared or placeholder mailboxes. Matched as substrings of
// the lowercased address.
var roleMarkers = []string{
	"noreply",
	"support",
	"info@",
	"admin",
	"example",
	"test",
	"privacy",
	"abuse",
}

// Extract returns the unique emails and phones found in text, in order of
// first appearance. Role mailboxes are dropped before each list is capped at
// model.MaxCandidates.
func Extract(text string) model.ContactCandidate {
	var c model.ContactCandidate
	if text == "" {
		return c
	}

	for _, e := range unique(emailRe.FindAllString(text, -1)) {
		if isRoleAddress(e) {
			continue
		}
		c.Emails = append(c.Emails, e)
		if len(c.Emails) == model.MaxCandidates {
			break
		}
	}

	phones := unique(phoneRe.FindAllString(text, -1))
	if len(phones) > model.MaxCandidates {
		phones = phones[:model.MaxCandidates]
	}
	c.Phones = phones

	return c
}

// NormalizePhone strips everything but ASCII digits.
func NormalizePhone(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isRoleAddress(email string) bool {
	lower := strings.ToLower(email)
	for _, m := range roleMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func unique(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
