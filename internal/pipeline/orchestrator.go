// Package pipeline drives contact enrichment for single records and batches.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lender-enrich/internal/extract"
	"github.com/sells-group/lender-enrich/internal/metrics"
	"github.com/sells-group/lender-enrich/internal/model"
	"github.com/sells-group/lender-enrich/internal/scorer"
)

// maxScrapesPerQuery bounds how many results of one query are fetched.
const maxScrapesPerQuery = 5

// Searcher returns normalized results for a query. It never fails.
type Searcher interface {
	Search(ctx context.Context, query string) []model.SearchResult
}

// ContactFetcher fetches a page and returns its contacts, or nil.
type ContactFetcher interface {
	FetchContacts(ctx context.Context, url string) *model.ContactCandidate
}

// RecordScoped is implemented by fetchers that keep per-host state.
// BeginRecord clears it so nothing learned on one record affects the next.
type RecordScoped interface {
	BeginRecord()
}

// Status is the outcome class of one enrichment.
type Status string

const (
	StatusEnriched Status = "enriched"
	StatusNotFound Status = "not_found"
	StatusFailed   Status = "failed"
	StatusInvalid  Status = "invalid"
	StatusComplete Status = "complete"
)

// Result is what Enrich returns for one record.
type Result struct {
	Record  model.LenderRecord      `json:"record"`
	Outcome model.EnrichmentOutcome `json:"outcome"`
	Status  Status                  `json:"status"`
	Err     error                   `json:"-"`
}

// Event renders the result as a user-facing event.
func (r Result) Event() model.Event {
	name := r.Record.FullName()
	switch r.Status {
	case StatusEnriched:
		found := r.Outcome.Email
		if found == "" {
			found = r.Record.MobilePhone
		}
		return newEvent(r.Record.ID, model.SeveritySuccess,
			fmt.Sprintf("Found: %s (%d%% confidence)", found, r.Outcome.Confidence))
	case StatusNotFound:
		return newEvent(r.Record.ID, model.SeverityWarning, "No contact info found for "+name)
	case StatusInvalid:
		return newEvent(r.Record.ID, model.SeverityWarning,
			fmt.Sprintf("Skipping %q: first name, last name and company are required", name))
	case StatusComplete:
		return newEvent(r.Record.ID, model.SeverityInfo, name+" already has contact info")
	default:
		return newEvent(r.Record.ID, model.SeverityError,
			fmt.Sprintf("Error processing %s: %v", name, r.Err))
	}
}

// Orchestrator runs the query, snippet, and scrape sequence for one record.
type Orchestrator struct {
	search   Searcher
	fetcher  ContactFetcher
	pacer    *Pacer
	validate *validator.Validate
	metrics  *metrics.Metrics
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithPacer overrides the default pacing.
func WithPacer(p *Pacer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.pacer = p
	}
}

// WithOrchestratorMetrics records per-record outcomes and durations.
func WithOrchestratorMetrics(m *metrics.Metrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// NewOrchestrator creates an Orchestrator. Pacing defaults to one second
// between fetches and two seconds between empty queries.
func NewOrchestrator(search Searcher, fetcher ContactFetcher, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		search:   search,
		fetcher:  fetcher,
		pacer:    NewPacer(time.Second, 2*time.Second),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Enrich looks for a work email and mobile phone for rec. It never fails:
// an invalid record, an error, or a panic returns rec's own contact fields
// with zero confidence and no source. A record that already has both is
// returned as is without any search.
func (o *Orchestrator) Enrich(ctx context.Context, rec model.LenderRecord) (res Result) {
	start := time.Now()
	log := zap.L().With(zap.String("record", rec.ID), zap.String("name", rec.FullName()))

	if err := o.validate.Struct(rec); err != nil {
		log.Warn("pipeline: invalid record", zap.Error(err))
		o.metrics.Record(metrics.OutcomeSkipped, time.Since(start))
		return unchanged(rec, StatusInvalid, eris.Wrap(err, "pipeline: validate record"))
	}
	if !rec.NeedsEnrichment() {
		o.metrics.Record(metrics.OutcomeSkipped, time.Since(start))
		return Result{Record: rec, Status: StatusComplete}
	}
	if rs, ok := o.fetcher.(RecordScoped); ok {
		rs.BeginRecord()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline: enrichment panicked", zap.Any("panic", r))
			res = unchanged(rec, StatusFailed, eris.Errorf("pipeline: panic: %v", r))
		}
		o.metrics.Record(metricOutcome(res.Status), time.Since(start))
	}()

	outcome, err := o.discover(ctx, rec)
	if err != nil {
		log.Warn("pipeline: enrichment aborted", zap.Error(err))
		return unchanged(rec, StatusFailed, err)
	}

	res = Result{
		Record:  Merge(rec, outcome),
		Outcome: outcome,
		Status:  StatusNotFound,
	}
	if outcome.Found() {
		res.Status = StatusEnriched
	}
	log.Info("pipeline: record enriched",
		zap.String("status", string(res.Status)),
		zap.String("source", outcome.Source),
		zap.Int("confidence", outcome.Confidence),
	)
	return res
}

// discover walks the query variants until one of them yields a contact.
func (o *Orchestrator) discover(ctx context.Context, rec model.LenderRecord) (model.EnrichmentOutcome, error) {
	var acc accumulator
	queries := PlanQueries(rec)

	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			return model.EnrichmentOutcome{}, eris.Wrap(err, "pipeline: cancelled")
		}

		results := o.search.Search(ctx, q)

		for _, r := range results {
			c := extract.Extract(r.Title + " " + r.Snippet)
			if c.Empty() {
				continue
			}
			src := r.URL
			if src == "" {
				src = model.SnippetSource
			}
			acc.add(c, src)
		}
		// Snippet hits win over anything a scrape might find.
		if acc.found() {
			break
		}

		fetched := 0
		for _, r := range results[:min(len(results), maxScrapesPerQuery)] {
			if r.URL == "" {
				continue
			}
			if fetched > 0 {
				if err := o.pacer.BetweenScrapes(ctx); err != nil {
					return model.EnrichmentOutcome{}, eris.Wrap(err, "pipeline: pacing")
				}
			}
			fetched++
			if c := o.fetcher.FetchContacts(ctx, r.URL); c != nil && !c.Empty() {
				acc.add(*c, r.URL)
			}
		}
		if acc.found() {
			break
		}

		if i < len(queries)-1 {
			if err := o.pacer.BetweenQueries(ctx); err != nil {
				return model.EnrichmentOutcome{}, eris.Wrap(err, "pipeline: pacing")
			}
		}
	}

	return acc.outcome(), nil
}

// Merge writes outcome into rec. Found values replace existing ones; a
// missing value leaves the existing field alone. Phones are stored as digits.
func Merge(rec model.LenderRecord, outcome model.EnrichmentOutcome) model.LenderRecord {
	if outcome.Email != "" {
		rec.WorkEmail = outcome.Email
	}
	if phone := extract.NormalizePhone(outcome.Phone); phone != "" {
		rec.MobilePhone = phone
	}
	rec.Source = outcome.Source
	rec.Confidence = outcome.Confidence
	return rec
}

func unchanged(rec model.LenderRecord, status Status, err error) Result {
	rec.Source = ""
	rec.Confidence = 0
	return Result{Record: rec, Status: status, Err: err}
}

func metricOutcome(s Status) string {
	switch s {
	case StatusEnriched:
		return metrics.OutcomeEnriched
	case StatusNotFound:
		return metrics.OutcomeNotFound
	case StatusInvalid, StatusComplete:
		return metrics.OutcomeSkipped
	default:
		return metrics.OutcomeFailed
	}
}

// accumulator collects contacts across results in discovery order.
type accumulator struct {
	emails  []string
	phones  []string
	sources []string
}

func (a *accumulator) add(c model.ContactCandidate, source string) {
	a.emails = append(a.emails, c.Emails...)
	a.phones = append(a.phones, c.Phones...)
	a.sources = append(a.sources, source)
}

func (a *accumulator) found() bool {
	return len(a.emails) > 0 || len(a.phones) > 0
}

// outcome picks the first email, phone and source and scores them.
func (a *accumulator) outcome() model.EnrichmentOutcome {
	var out model.EnrichmentOutcome
	if len(a.emails) > 0 {
		out.Email = a.emails[0]
	}
	if len(a.phones) > 0 {
		out.Phone = a.phones[0]
	}
	if len(a.sources) > 0 {
		out.Source = a.sources[0]
	}
	if out.Found() {
		out.Confidence = scorer.Score(out.Email, out.Phone, out.Source)
	}
	return out
}
