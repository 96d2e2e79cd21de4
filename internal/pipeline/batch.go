package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lender-enrich/internal/model"
)

// Enricher enriches one record. *Orchestrator satisfies it.
type Enricher interface {
	Enrich(ctx context.Context, rec model.LenderRecord) Result
}

// DNCChecker looks up one phone number. *dnc.Checker satisfies it.
type DNCChecker interface {
	Check(ctx context.Context, phone string) model.DNCResult
}

// Journal records run progress. Failures are logged and otherwise ignored.
type Journal interface {
	CreateRun(ctx context.Context, label string, total int) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	RecordOutcome(ctx context.Context, outcome model.RecordOutcome) error
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, counts model.RunCounts) error
}

// DNC outcome labels stored in the journal.
const (
	DNCListed  = "dnc"
	DNCClear   = "clear"
	DNCError   = "error"
	DNCSkipped = ""
)

// Report is the full result of a batch.
type Report struct {
	RunID    string                     `json:"run_id,omitempty"`
	Records  []model.LenderRecord       `json:"records"`
	Counts   model.RunCounts            `json:"counts"`
	DNC      map[string]model.DNCResult `json:"dnc,omitempty"`
	Started  time.Time                  `json:"started"`
	Finished time.Time                  `json:"finished"`
}

// BatchRunner enriches a list of records one at a time and then screens
// every record with a phone against the do-not-call registry.
type BatchRunner struct {
	enricher Enricher
	checker  DNCChecker
	journal  Journal
	skipDNC  bool
}

// BatchOption configures a BatchRunner.
type BatchOption func(*BatchRunner)

// WithJournal records runs and per-record outcomes in j.
func WithJournal(j Journal) BatchOption {
	return func(b *BatchRunner) {
		b.journal = j
	}
}

// WithSkipDNC disables the registry pass.
func WithSkipDNC(skip bool) BatchOption {
	return func(b *BatchRunner) {
		b.skipDNC = skip
	}
}

// NewBatchRunner creates a BatchRunner. A nil checker skips the DNC pass.
func NewBatchRunner(enricher Enricher, checker DNCChecker, opts ...BatchOption) *BatchRunner {
	b := &BatchRunner{enricher: enricher, checker: checker}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Run processes records and returns them in input order.
func (b *BatchRunner) Run(ctx context.Context, records []model.LenderRecord, rep Reporter) []model.LenderRecord {
	return b.Execute(ctx, "", records, rep).Records
}

// Execute processes records under runID. When runID is empty and a journal
// is configured a new run is created. Cancelling ctx stops work between
// records; every input record is still returned.
func (b *BatchRunner) Execute(ctx context.Context, runID string, records []model.LenderRecord, rep Reporter) *Report {
	if rep == nil {
		rep = NopReporter{}
	}

	out := make([]model.LenderRecord, len(records))
	copy(out, records)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = uuid.NewString()
		}
	}

	report := &Report{
		Records: out,
		Counts:  model.RunCounts{Total: len(out)},
		DNC:     make(map[string]model.DNCResult),
		Started: time.Now().UTC(),
	}
	report.RunID = b.startRun(ctx, runID, len(out))
	log := zap.L().With(zap.String("run_id", report.RunID))

	dnc := make([]string, len(out))
	status := model.RunStatusComplete
	if err := b.enrichPass(ctx, report, rep); err != nil {
		log.Warn("pipeline: batch interrupted during enrichment", zap.Error(err))
		status = model.RunStatusFailed
	} else if err := b.dncPass(ctx, report, dnc, rep); err != nil {
		log.Warn("pipeline: batch interrupted during dnc pass", zap.Error(err))
		status = model.RunStatusFailed
	}

	report.Finished = time.Now().UTC()
	b.finishRun(report, dnc, status)

	log.Info("pipeline: batch finished",
		zap.String("status", string(status)),
		zap.Int("total", report.Counts.Total),
		zap.Int("enriched", report.Counts.Enriched),
		zap.Int("dnc", report.Counts.DNC),
		zap.Duration("elapsed", report.Finished.Sub(report.Started)),
	)
	return report
}

func (b *BatchRunner) enrichPass(ctx context.Context, report *Report, rep Reporter) error {
	var pending []int
	for i, rec := range report.Records {
		if rec.NeedsEnrichment() {
			pending = append(pending, i)
		}
	}

	if len(pending) == 0 {
		rep.Event(newEvent("", model.SeverityInfo, "No mortgage lenders need scraping. All have contact info!"))
		return nil
	}

	b.setStatus(ctx, report.RunID, model.RunStatusEnriching)
	rep.Event(newEvent("", model.SeverityInfo,
		fmt.Sprintf("Starting scraping process for %d mortgage lenders", len(pending))))

	for n, i := range pending {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "pipeline: enrich pass")
		}

		rec := report.Records[i]
		rep.Event(newEvent(rec.ID, model.SeverityInfo, "Searching: "+rec.FullName()))

		res := b.enricher.Enrich(ctx, rec)
		report.Records[i] = res.Record
		rep.Event(res.Event())

		switch res.Status {
		case StatusEnriched:
			report.Counts.Enriched++
		case StatusNotFound:
			report.Counts.NotFound++
		case StatusInvalid:
			report.Counts.SkippedValid++
		default:
			report.Counts.Failed++
		}
		rep.Progress(model.NewProgress(model.PhaseEnrich, n+1, len(pending)))
	}

	rep.Event(newEvent("", model.SeveritySuccess, "Scraping completed! Starting filtering and DNC check..."))
	return nil
}

func (b *BatchRunner) dncPass(ctx context.Context, report *Report, outcomes []string, rep Reporter) error {
	if b.skipDNC || b.checker == nil {
		return nil
	}

	var phones []int
	for i, rec := range report.Records {
		if rec.MobilePhone != "" {
			phones = append(phones, i)
		}
	}
	if len(phones) == 0 {
		rep.Event(newEvent("", model.SeverityInfo, "Filtering complete! 0 on DNC"))
		return nil
	}

	b.setStatus(ctx, report.RunID, model.RunStatusChecking)

	for n, i := range phones {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "pipeline: dnc pass")
		}
		outcomes[i] = b.screen(ctx, report, i, rep)
		rep.Progress(model.NewProgress(model.PhaseDNC, n+1, len(phones)))
	}

	rep.Event(newEvent("", model.SeveritySuccess,
		fmt.Sprintf("Filtering complete! %d on DNC", report.Counts.DNC)))
	return nil
}

// screen checks one record and tags it when listed.
func (b *BatchRunner) screen(ctx context.Context, report *Report, i int, rep Reporter) (outcome string) {
	rec := &report.Records[i]
	name := rec.FirstName + " " + rec.LastName

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("pipeline: dnc check panicked", zap.String("record", rec.ID), zap.Any("panic", r))
			report.Counts.DNCErrors++
			rep.Event(newEvent(rec.ID, model.SeverityError, fmt.Sprintf("%s: Processing error - %v", name, r)))
			outcome = DNCError
		}
	}()

	res := b.checker.Check(ctx, rec.MobilePhone)
	report.DNC[rec.ID] = res

	switch {
	case res.Inconclusive():
		report.Counts.DNCErrors++
		rep.Event(newEvent(rec.ID, model.SeverityWarning, fmt.Sprintf("%s: DNC check failed - %s", name, res.Error)))
		return DNCError
	case res.IsDNC:
		rec.AppendTag(model.DNCTag)
		report.Counts.DNC++
		rep.Event(newEvent(rec.ID, model.SeverityError, name+": On DNC list"))
		return DNCListed
	default:
		report.Counts.DNCClear++
		rep.Event(newEvent(rec.ID, model.SeveritySuccess, name+": Clear - not on DNC"))
		return DNCClear
	}
}

// ScreenRecord runs the registry check for a single record. Records without
// a phone come back unchanged with no event.
func (b *BatchRunner) ScreenRecord(ctx context.Context, rec model.LenderRecord) (model.LenderRecord, model.DNCResult, *model.Event) {
	if rec.MobilePhone == "" || b.checker == nil {
		return rec, model.DNCResult{}, nil
	}
	report := &Report{
		Records: []model.LenderRecord{rec},
		DNC:     make(map[string]model.DNCResult),
	}
	var last lastEvent
	b.screen(ctx, report, 0, &last)
	return report.Records[0], report.DNC[rec.ID], last.ev
}

type lastEvent struct{ ev *model.Event }

func (l *lastEvent) Event(ev model.Event)    { l.ev = &ev }
func (l *lastEvent) Progress(model.Progress) {}

func (b *BatchRunner) startRun(ctx context.Context, runID string, total int) string {
	if runID != "" || b.journal == nil {
		return runID
	}
	run, err := b.journal.CreateRun(ctx, "batch", total)
	if err != nil {
		zap.L().Warn("pipeline: journal create run failed", zap.Error(err))
		return ""
	}
	return run.ID
}

func (b *BatchRunner) setStatus(ctx context.Context, runID string, status model.RunStatus) {
	if b.journal == nil || runID == "" {
		return
	}
	if err := b.journal.UpdateRunStatus(ctx, runID, status); err != nil {
		zap.L().Warn("pipeline: journal status update failed", zap.String("run_id", runID), zap.Error(err))
	}
}

// finishRun writes per-record outcomes and closes the run. It uses a fresh
// context so a cancelled batch still leaves a complete journal.
func (b *BatchRunner) finishRun(report *Report, dnc []string, status model.RunStatus) {
	if b.journal == nil || report.RunID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for i, rec := range report.Records {
		err := b.journal.RecordOutcome(ctx, model.RecordOutcome{
			RunID:      report.RunID,
			RecordID:   rec.ID,
			Name:       rec.FullName(),
			Email:      rec.WorkEmail,
			Phone:      rec.MobilePhone,
			Source:     rec.Source,
			Confidence: rec.Confidence,
			DNC:        dnc[i],
			CreatedAt:  report.Finished,
		})
		if err != nil {
			zap.L().Warn("pipeline: journal outcome failed", zap.String("record", rec.ID), zap.Error(err))
		}
	}

	if err := b.journal.CompleteRun(ctx, report.RunID, status, report.Counts); err != nil {
		zap.L().Warn("pipeline: journal complete failed", zap.String("run_id", report.RunID), zap.Error(err))
	}
}
