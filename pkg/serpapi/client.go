// Package serpapi is a minimal client for the SerpAPI search.json endpoint.
package serpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lender-enrich/internal/resilience"
)

const (
	defaultBaseURL = "https://serpapi.com"
	defaultTimeout = 15 * time.Second
)

// Client performs web searches.
type Client interface {
	Search(ctx context.Context, req Request) (*Response, error)
}

// Request is a single search query.
type Request struct {
	Query string
	Num   int
	HL    string
	GL    string
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a SerpAPI client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, r Request) (*Response, error) {
	if r.Num <= 0 {
		r.Num = 20
	}
	if r.HL == "" {
		r.HL = "en"
	}
	if r.GL == "" {
		r.GL = "us"
	}

	q := url.Values{}
	q.Set("q", r.Query)
	q.Set("num", strconv.Itoa(r.Num))
	q.Set("api_key", c.apiKey)
	q.Set("hl", r.HL)
	q.Set("gl", r.GL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search.json?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: read response")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, resilience.StatusError("serpapi", resp.StatusCode, body)
	}

	var result Response
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "serpapi: unmarshal response")
	}
	return &result, nil
}
