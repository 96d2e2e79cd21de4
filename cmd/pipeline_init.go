package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lender-enrich/internal/config"
	"github.com/sells-group/lender-enrich/internal/dnc"
	"github.com/sells-group/lender-enrich/internal/metrics"
	"github.com/sells-group/lender-enrich/internal/pipeline"
	"github.com/sells-group/lender-enrich/internal/scrape"
	"github.com/sells-group/lender-enrich/internal/search"
	"github.com/sells-group/lender-enrich/internal/store"
	"github.com/sells-group/lender-enrich/pkg/realvalidation"
	"github.com/sells-group/lender-enrich/pkg/serpapi"
)

// pipelineEnv holds the initialized clients and the orchestrator needed by
// the enrich and serve commands.
type pipelineEnv struct {
	Store        *store.SQLiteStore
	Metrics      *metrics.Metrics
	Orchestrator *pipeline.Orchestrator
	Checker      *dnc.Checker
}

// The orchestrator clears the fetcher's host breakers before each record.
var _ pipeline.RecordScoped = (*scrape.Fetcher)(nil)

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline opens the run journal, builds every API client from cfg and
// wires the orchestrator. Callers should defer env.Close().
func initPipeline(ctx context.Context, c *config.Config) (*pipelineEnv, error) {
	st, err := store.NewSQLite(c.Store.DSN)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	if n, err := st.DeleteExpiredPages(ctx); err != nil {
		zap.L().Warn("page cache cleanup failed", zap.Error(err))
	} else if n > 0 {
		zap.L().Debug("page cache cleanup", zap.Int("removed", n))
	}

	m := metrics.New()

	serp := serpapi.NewClient(c.Search.APIKey,
		serpapi.WithBaseURL(c.Search.BaseURL),
		serpapi.WithTimeout(seconds(c.Search.TimeoutSecs)),
	)
	provider := search.NewProvider(serp,
		search.WithTimeout(seconds(c.Search.TimeoutSecs)),
		search.WithResultCount(c.Search.Num),
		search.WithRetries(c.Search.Retries),
		search.WithMetrics(m),
	)

	fetcher := scrape.NewFetcher(scrapeConfig(c.Scrape),
		scrape.WithMetrics(m),
		scrape.WithCache(st, time.Duration(c.Scrape.CacheTTLMins)*time.Minute),
	)

	pacer := pipeline.NewPacer(
		time.Duration(c.Pacing.ScrapeSpacingMs)*time.Millisecond,
		time.Duration(c.Pacing.QueryBackoffMs)*time.Millisecond,
	)
	orch := pipeline.NewOrchestrator(provider, fetcher,
		pipeline.WithPacer(pacer),
		pipeline.WithOrchestratorMetrics(m),
	)

	return &pipelineEnv{
		Store:        st,
		Metrics:      m,
		Orchestrator: orch,
		Checker:      newChecker(c, m),
	}, nil
}

// newChecker builds the DNC checker. Without a token every lookup comes back
// inconclusive, so records are reported rather than silently passed.
func newChecker(c *config.Config, m *metrics.Metrics) *dnc.Checker {
	var rv realvalidation.Client
	if c.DNC.Token != "" {
		rv = realvalidation.NewClient(c.DNC.Token,
			realvalidation.WithBaseURL(c.DNC.BaseURL),
			realvalidation.WithTimeout(seconds(c.DNC.TimeoutSecs)),
		)
	} else {
		zap.L().Warn("LENDER_DNC_TOKEN not set, DNC lookups will be inconclusive")
	}
	return dnc.NewChecker(rv, dnc.WithRate(c.DNC.RatePerSec), dnc.WithMetrics(m))
}

func scrapeConfig(sc config.ScrapeConfig) scrape.Config {
	out := scrape.DefaultConfig()
	if sc.TimeoutSecs > 0 {
		out.Timeout = seconds(sc.TimeoutSecs)
	}
	if sc.MaxRedirects > 0 {
		out.MaxRedirects = sc.MaxRedirects
	}
	if sc.MaxBodyBytes > 0 {
		out.MaxBodyBytes = sc.MaxBodyBytes
	}
	if sc.BlockedDomains != nil {
		out.BlockedDomains = sc.BlockedDomains
	}
	if sc.BreakerThreshold > 0 {
		out.BreakerThreshold = sc.BreakerThreshold
	}
	if sc.BreakerCooldownSecs > 0 {
		out.BreakerCooldown = seconds(sc.BreakerCooldownSecs)
	}
	return out
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
