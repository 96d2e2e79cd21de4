package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lender-enrich/internal/config"
	"github.com/sells-group/lender-enrich/internal/delivery"
	"github.com/sells-group/lender-enrich/internal/ingest"
	"github.com/sells-group/lender-enrich/internal/model"
	"github.com/sells-group/lender-enrich/internal/pipeline"
)

// enrichOptions are the enrich command's flags.
type enrichOptions struct {
	Input   string
	Output  string
	Report  string
	State   string
	Limit   int
	Deliver bool
	SkipDNC bool
	DryRun  bool
}

var enrichOpts enrichOptions

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich a lender list and screen phones against the DNC registry",
	Long: `Reads a lender contact list (CSV or XLSX), searches for missing work
emails and mobile phones, screens every phone against the do-not-call
registry and writes the CRM import CSV.

Examples:
  # Parse only, no API calls
  lender-enrich enrich --input "Harris County.csv" --dry-run

  # Full run with a Markdown report
  lender-enrich enrich --input "Harris County.xlsx" --report harris.md

  # Enrich and hand the result to the upload workflow
  lender-enrich enrich --input harris.csv --deliver --state TX`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runEnrich(ctx, cfg, enrichOpts, cmd.OutOrStdout())
	},
}

func init() {
	f := enrichCmd.Flags()
	f.StringVar(&enrichOpts.Input, "input", "", "lender list to enrich (.csv or .xlsx)")
	f.StringVar(&enrichOpts.Output, "output", "", "output CSV path (default derived from the county)")
	f.StringVar(&enrichOpts.Report, "report", "", "write a Markdown run report to this path")
	f.StringVar(&enrichOpts.State, "state", "", "state code sent with --deliver (default from the first record)")
	f.IntVar(&enrichOpts.Limit, "limit", 0, "process at most N records (0 = all)")
	f.BoolVar(&enrichOpts.Deliver, "deliver", false, "post the finished CSV to the upload webhook")
	f.BoolVar(&enrichOpts.SkipDNC, "skip-dnc", false, "skip the do-not-call pass")
	f.BoolVar(&enrichOpts.DryRun, "dry-run", false, "parse the input and print stats without enriching")
	_ = enrichCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(enrichCmd)
}

// dryRunSummary is printed by --dry-run.
type dryRunSummary struct {
	File    string       `yaml:"file"`
	County  string       `yaml:"county,omitempty"`
	City    string       `yaml:"city,omitempty"`
	Stats   ingest.Stats `yaml:"stats"`
	Pending []string     `yaml:"pending,omitempty"`
}

func runEnrich(ctx context.Context, c *config.Config, opts enrichOptions, out io.Writer) error {
	batch, err := ingest.ParseFile(ctx, opts.Input)
	if err != nil {
		return eris.Wrap(err, "enrich: parse input")
	}

	records := batch.Records
	if opts.Limit > 0 && opts.Limit < len(records) {
		records = records[:opts.Limit]
	}

	if opts.DryRun {
		return printDryRun(out, opts.Input, batch, records)
	}

	if err := c.Validate("enrich"); err != nil {
		return err
	}

	env, err := initPipeline(ctx, c)
	if err != nil {
		return eris.Wrap(err, "enrich: init pipeline")
	}
	defer env.Close()

	runID := ""
	if run, err := env.Store.CreateRun(ctx, filepath.Base(opts.Input), len(records)); err != nil {
		zap.L().Warn("enrich: journal create run failed", zap.Error(err))
	} else {
		runID = run.ID
	}

	runner := pipeline.NewBatchRunner(env.Orchestrator, env.Checker,
		pipeline.WithJournal(env.Store),
		pipeline.WithSkipDNC(opts.SkipDNC),
	)
	report := runner.Execute(ctx, runID, records, pipeline.LogReporter{})

	outPath := opts.Output
	if outPath == "" {
		outPath = delivery.Filename(batch.County)
	}
	if err := writeCSVFile(outPath, report.Records); err != nil {
		return err
	}

	if opts.Report != "" {
		if err := writeReportFile(opts.Report, delivery.Summary{
			Source:   filepath.Base(opts.Input),
			County:   batch.County,
			Counts:   report.Counts,
			Records:  report.Records,
			DNC:      report.DNC,
			Started:  report.Started,
			Finished: report.Finished,
		}); err != nil {
			return err
		}
	}

	if opts.Deliver {
		if err := deliver(ctx, c, opts, batch.County, outPath, report.Records); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "wrote %s: %d records, %d enriched, %d not found, %d failed, %d on DNC\n",
		outPath, report.Counts.Total, report.Counts.Enriched, report.Counts.NotFound,
		report.Counts.Failed, report.Counts.DNC)
	if ctx.Err() != nil {
		return eris.Wrap(ctx.Err(), "enrich: interrupted")
	}
	return nil
}

func printDryRun(out io.Writer, input string, batch *ingest.Batch, records []model.LenderRecord) error {
	s := dryRunSummary{
		File:   filepath.Base(input),
		County: batch.County,
		City:   batch.City,
		Stats:  batch.Stats,
	}
	for _, r := range records {
		if r.NeedsEnrichment() {
			s.Pending = append(s.Pending, r.FullName())
		}
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return eris.Wrap(err, "enrich: encode dry run")
	}
	return enc.Close()
}

func writeCSVFile(path string, records []model.LenderRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "enrich: create output")
	}
	if err := delivery.WriteCSV(f, records); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrap(f.Close(), "enrich: close output")
}

func writeReportFile(path string, s delivery.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "enrich: create report")
	}
	if err := delivery.WriteReport(f, s); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrap(f.Close(), "enrich: close report")
}

func deliver(ctx context.Context, c *config.Config, opts enrichOptions, county, filename string, records []model.LenderRecord) error {
	hook := delivery.NewWebhook(c.Delivery.WebhookURL, seconds(c.Delivery.TimeoutSecs))
	if !hook.Configured() {
		return eris.New("enrich: --deliver needs delivery.webhook_url (LENDER_DELIVERY_WEBHOOK_URL)")
	}

	state := opts.State
	for i := 0; state == "" && i < len(records); i++ {
		state = records[i].State
	}

	content, err := delivery.CSVContent(records)
	if err != nil {
		return err
	}
	resp, err := hook.Deliver(ctx, delivery.Upload{
		CSVContent:   content,
		Filename:     filepath.Base(filename),
		StateCode:    state,
		County:       county,
		TotalRecords: len(records),
	})
	if err != nil {
		return eris.Wrap(err, "enrich: deliver")
	}
	zap.L().Info("enrich: upload triggered",
		zap.String("filename", filepath.Base(filename)),
		zap.String("state", state),
		zap.ByteString("response", resp),
	)
	return nil
}
