package pipeline

import (
	"context"
	"time"
)

// Pacer spaces outbound work for a single worker: a short gap between page
// fetches and a longer one between search queries that found nothing.
type Pacer struct {
	ScrapeSpacing time.Duration
	QueryBackoff  time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a Pacer. Zero durations disable the corresponding wait.
func NewPacer(scrapeSpacing, queryBackoff time.Duration) *Pacer {
	return &Pacer{
		ScrapeSpacing: scrapeSpacing,
		QueryBackoff:  queryBackoff,
		sleep:         sleepCtx,
	}
}

// BetweenScrapes waits ScrapeSpacing or until ctx is done.
func (p *Pacer) BetweenScrapes(ctx context.Context) error {
	return p.wait(ctx, p.ScrapeSpacing)
}

// BetweenQueries waits QueryBackoff or until ctx is done.
func (p *Pacer) BetweenQueries(ctx context.Context) error {
	return p.wait(ctx, p.QueryBackoff)
}

func (p *Pacer) wait(ctx context.Context, d time.Duration) error {
	if p == nil || d <= 0 {
		return ctx.Err()
	}
	return p.sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
