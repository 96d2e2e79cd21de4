// Package realvalidation is a client for the RealValidation DNC lookup API.
package realvalidation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lender-enrich/internal/resilience"
)

const (
	defaultBaseURL = "https://api.realvalidation.com"
	defaultTimeout = 10 * time.Second
	lookupPath     = "/rpvWebService/DNCLookup.php"
)

// Response codes returned in RESPONSECODE.
const (
	CodeOK    = "OK"
	CodeError = "-1"
)

// Client performs do-not-call lookups.
type Client interface {
	DNCLookup(ctx context.Context, phone string) (*LookupResponse, error)
}

// LookupResponse is the JSON body of a DNCLookup call. Flags are "Y" or "N".
type LookupResponse struct {
	ResponseCode string `json:"RESPONSECODE"`
	ResponseMsg  string `json:"RESPONSEMSG"`
	NationalDNC  string `json:"national_dnc"`
	StateDNC     string `json:"state_dnc"`
	DMA          string `json:"dma"`
	Litigator    string `json:"litigator"`
	IsCell       string `json:"iscell"`
	ID           string `json:"id"`
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
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a RealValidation client authenticated with token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) DNCLookup(ctx context.Context, phone string) (*LookupResponse, error) {
	q := url.Values{}
	q.Set("phone", phone)
	q.Set("token", c.token)
	q.Set("Output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+lookupPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "realvalidation: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "realvalidation: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "realvalidation: read response")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, resilience.StatusError("realvalidation", resp.StatusCode, body)
	}

	var result LookupResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "realvalidation: unmarshal response")
	}
	return &result, nil
}
