package scrape

import (
	"net/url"
	"strings"
)

// DefaultBlockedDomains gate or block automated fetches reliably.
var DefaultBlockedDomains = []string{
	"linkedin.com",
	"zillow.com",
	"facebook.com",
}

// DomainMatcher matches URLs whose host is one of a set of domains or a
// subdomain of one.
type DomainMatcher struct {
	domains []string
}

// NewDomainMatcher creates a DomainMatcher. Falls back to
// DefaultBlockedDomains when domains is nil.
func NewDomainMatcher(domains []string) *DomainMatcher {
	if domains == nil {
		domains = DefaultBlockedDomains
	}
	m := &DomainMatcher{}
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), ".")
		if d != "" {
			m.domains = append(m.domains, d)
		}
	}
	return m
}

// Match reports whether rawURL points at a listed domain. Unparseable URLs
// and URLs without a host match.
func (m *DomainMatcher) Match(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return true
	}
	return m.MatchHost(u.Hostname())
}

// MatchHost reports whether host is a listed domain or below one.
func (m *DomainMatcher) MatchHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for _, d := range m.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
