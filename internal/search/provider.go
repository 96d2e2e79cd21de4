// Package search turns a query into normalized search results.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lender-enrich/internal/metrics"
	"github.com/sells-group/lender-enrich/internal/model"
	"github.com/sells-group/lender-enrich/internal/resilience"
	"github.com/sells-group/lender-enrich/pkg/serpapi"
)

// Provider wraps a serpapi.Client. Search never fails; problems are logged
// and yield no results.
type Provider struct {
	client  serpapi.Client
	num     int
	timeout time.Duration
	retry   resilience.RetryConfig
	metrics *metrics.Metrics
}

// Option configures a Provider.
type Option func(*Provider)

// WithTimeout bounds a single query, retries included.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithResultCount sets the result-count hint sent with each query.
func WithResultCount(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.num = n
		}
	}
}

// WithRetries retries transient failures up to n extra times.
func WithRetries(n int) Option {
	return func(p *Provider) {
		p.retry = resilience.RetriesConfig(n)
		p.retry.OnRetry = resilience.RetryLogger("serpapi", "search")
	}
}

// WithMetrics records query outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Provider) {
		p.metrics = m
	}
}

// NewProvider creates a Provider over client.
func NewProvider(client serpapi.Client, opts ...Option) *Provider {
	p := &Provider{
		client:  client,
		num:     20,
		timeout: 15 * time.Second,
		retry:   resilience.RetriesConfig(0),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Search runs query and returns every result section flattened into one list.
func (p *Provider) Search(ctx context.Context, query string) []model.SearchResult {
	log := zap.L().With(zap.String("query", query))

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := resilience.DoVal(ctx, p.retry, func(ctx context.Context) (*serpapi.Response, error) {
		return p.client.Search(ctx, serpapi.Request{Query: query, Num: p.num})
	})
	if err != nil {
		log.Warn("search: query failed", zap.Error(err))
		p.metrics.Search(metrics.OutcomeError)
		return []model.SearchResult{}
	}
	if resp.Error != "" {
		log.Debug("search: api reported", zap.String("error", resp.Error))
	}

	results := Normalize(resp)
	if len(results) == 0 {
		p.metrics.Search(metrics.OutcomeEmpty)
	} else {
		p.metrics.Search(metrics.OutcomeOK)
	}
	log.Debug("search: results", zap.Int("count", len(results)))
	return results
}

// Normalize flattens a response: organic hits, then the knowledge panel,
// then local cards, then a non-empty answer box.
func Normalize(resp *serpapi.Response) []model.SearchResult {
	results := []model.SearchResult{}
	if resp == nil {
		return results
	}

	for _, r := range resp.OrganicResults {
		results = append(results, model.SearchResult{
			URL:     r.Link,
			Title:   r.Title.String(),
			Snippet: r.Snippet.String(),
			Kind:    model.KindOrganic,
		})
	}

	if kg := resp.KnowledgeGraph; kg != nil {
		results = append(results, model.SearchResult{
			URL:   kg.Website,
			Title: kg.Title.String(),
			Snippet: joinNonEmpty(
				kg.Title.String(),
				kg.Description.String(),
				kg.Phone.String(),
				kg.Email.String(),
				compactJSON(kg.Profiles),
				compactJSON(kg.Contact),
			),
			Kind: model.KindKnowledgeGraph,
		})
	}

	if lr := resp.LocalResults; lr != nil {
		for _, pl := range lr.Places {
			results = append(results, model.SearchResult{
				URL:     pl.Website,
				Title:   pl.Title.String(),
				Snippet: joinNonEmpty(pl.Title.String(), pl.Address.String(), pl.Phone.String(), pl.Website),
				Kind:    model.KindLocalBusiness,
			})
		}
	}

	if ab := resp.AnswerBox; ab != nil {
		text := joinNonEmpty(ab.Answer.String(), ab.Title.String(), ab.Snippet.String())
		if text != "" {
			results = append(results, model.SearchResult{
				URL:     ab.Link,
				Title:   ab.Title.String(),
				Snippet: text,
				Kind:    model.KindAnswerBox,
			})
		}
	}

	return results
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// compactJSON renders raw JSON on one line; null and absent values render empty.
func compactJSON(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
