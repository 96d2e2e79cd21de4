// Package scrape fetches candidate pages and pulls contact details from them.
package scrape

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lender-enrich/internal/extract"
	"github.com/sells-group/lender-enrich/internal/metrics"
	"github.com/sells-group/lender-enrich/internal/model"
	"github.com/sells-group/lender-enrich/internal/resilience"
)

// browserHeaders is sent with every fetch. Accept-Encoding is limited to
// what the fetcher can decode.
var browserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"Accept-Encoding":           "gzip, deflate",
	"DNT":                       "1",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

// Config controls fetch limits.
type Config struct {
	Timeout          time.Duration
	MaxRedirects     int
	MaxBodyBytes     int64
	BlockedDomains   []string
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// DefaultConfig returns the standard fetch limits.
func DefaultConfig() Config {
	return Config{
		Timeout:          8 * time.Second,
		MaxRedirects:     3,
		MaxBodyBytes:     2 << 20,
		BlockedDomains:   DefaultBlockedDomains,
		BreakerThreshold: 3,
		BreakerCooldown:  5 * time.Minute,
	}
}

// Fetcher downloads a page and extracts contacts from its visible text.
// It never returns an error; any failure yields nil. Host breakers are
// scoped to one record by BeginRecord.
type Fetcher struct {
	client   *http.Client
	blocked  *DomainMatcher
	maxBody  int64
	breakers *resilience.HostBreakers
	metrics  *metrics.Metrics
	cache    PageCache
	cacheTTL time.Duration
}

// PageCache stores the contacts found on previously fetched pages.
type PageCache interface {
	GetCachedPage(ctx context.Context, url string) (*model.ContactCandidate, error)
	SetCachedPage(ctx context.Context, url string, contacts model.ContactCandidate, ttl time.Duration) error
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithMetrics records fetch outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// WithCache reuses page results for ttl across records. Failed fetches are
// not cached. A ttl of zero leaves caching off.
func WithCache(c PageCache, ttl time.Duration) Option {
	return func(f *Fetcher) {
		if ttl > 0 {
			f.cache = c
			f.cacheTTL = ttl
		}
	}
}

// WithTransport overrides the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) {
		f.client.Transport = rt
	}
}

var errTooManyRedirects = eris.New("scrape: too many redirects")

// NewFetcher creates a Fetcher. Zero fields in cfg take their defaults.
func NewFetcher(cfg Config, opts ...Option) *Fetcher {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = def.MaxRedirects
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}

	blocked := NewDomainMatcher(cfg.BlockedDomains)
	f := &Fetcher{
		blocked:  blocked,
		maxBody:  cfg.MaxBodyBytes,
		breakers: resilience.NewHostBreakers(resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.BreakerThreshold,
			Cooldown:         cfg.BreakerCooldown,
			ShouldTrip:       resilience.IsTransient,
		}),
	}
	maxRedirects := cfg.MaxRedirects
	f.client = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 5 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 5 * time.Second,
			MaxIdleConnsPerHost: 2,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return errTooManyRedirects
			}
			if blocked.MatchHost(req.URL.Hostname()) {
				return eris.Errorf("scrape: redirect to blocked host %s", req.URL.Hostname())
			}
			return nil
		},
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// BeginRecord closes every host breaker. Failures seen while enriching one
// record never skip fetches for the next.
func (f *Fetcher) BeginRecord() {
	for host, st := range f.breakers.States() {
		if st != resilience.CircuitClosed {
			zap.L().Debug("scrape: clearing host breaker", zap.String("host", host), zap.Stringer("state", st))
		}
	}
	f.breakers.Reset()
}

// Blocked reports whether rawURL is refused without a request.
func (f *Fetcher) Blocked(rawURL string) bool {
	return f.blocked.Match(rawURL)
}

// FetchContacts fetches rawURL and returns the contacts in its visible text,
// or nil when the URL is blocked, the fetch fails, or the page has none.
func (f *Fetcher) FetchContacts(ctx context.Context, rawURL string) *model.ContactCandidate {
	log := zap.L().With(zap.String("url", rawURL))

	if f.Blocked(rawURL) {
		f.metrics.Scrape(metrics.OutcomeBlocked)
		log.Debug("scrape: blocked domain")
		return nil
	}

	if f.cache != nil {
		cached, err := f.cache.GetCachedPage(ctx, rawURL)
		if err != nil {
			log.Warn("scrape: cache lookup failed", zap.Error(err))
		} else if cached != nil {
			f.metrics.Scrape(metrics.OutcomeCached)
			if cached.Empty() {
				return nil
			}
			return cached
		}
	}

	text, err := f.fetchText(ctx, rawURL)
	if eris.Is(err, resilience.ErrCircuitOpen) {
		f.metrics.Scrape(metrics.OutcomeCircuitOpen)
		log.Debug("scrape: host circuit open")
		return nil
	}
	if err != nil {
		f.metrics.Scrape(metrics.OutcomeError)
		log.Debug("scrape: fetch failed", zap.Error(err))
		return nil
	}

	c := extract.Extract(text)
	if f.cache != nil {
		if err := f.cache.SetCachedPage(ctx, rawURL, c, f.cacheTTL); err != nil {
			log.Warn("scrape: cache store failed", zap.Error(err))
		}
	}
	if c.Empty() {
		f.metrics.Scrape(metrics.OutcomeEmpty)
		return nil
	}
	f.metrics.Scrape(metrics.OutcomeOK)
	return &c
}

// fetchText returns the visible text of the page at rawURL. Transport
// failures and retryable statuses count against the host's breaker.
func (f *Fetcher) fetchText(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "scrape: create request")
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := resilience.ExecuteVal(ctx, f.breakers.ForURL(rawURL), func(ctx context.Context) (*http.Response, error) {
		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(err, "scrape: fetch")
			}
			return nil, resilience.NewTransientError(eris.Wrap(err, "scrape: fetch"), 0)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close() //nolint:errcheck
			return nil, resilience.StatusError("scrape", resp.StatusCode, nil)
		}
		return resp, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return "", eris.Wrap(err, "scrape: read body")
	}

	body, err := decodeBody(resp.Header.Get("Content-Encoding"), raw, f.maxBody)
	if err != nil {
		return "", err
	}

	return visibleText(toUTF8(resp.Header.Get("Content-Type"), body))
}

// decodeBody undoes gzip or deflate content coding. The decoded size is
// capped at limit.
func decodeBody(encoding string, raw []byte, limit int64) ([]byte, error) {
	var r io.Reader
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return raw, nil
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, eris.Wrap(err, "scrape: gzip")
		}
		defer gz.Close() //nolint:errcheck
		r = gz
	case "deflate":
		// Servers send both zlib-wrapped and raw deflate under this name.
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			r = flate.NewReader(bytes.NewReader(raw))
		} else {
			defer zr.Close() //nolint:errcheck
			r = zr
		}
	default:
		return nil, eris.Errorf("scrape: unsupported content encoding %q", encoding)
	}

	body, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil && len(body) == 0 {
		return nil, eris.Wrap(err, "scrape: decode body")
	}
	return body, nil
}

// visibleText parses HTML, drops script, style and noscript elements, and
// returns the remaining document text.
func visibleText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "scrape: parse html")
	}
	doc.Find("script, style, noscript").Remove()
	return doc.Text(), nil
}
