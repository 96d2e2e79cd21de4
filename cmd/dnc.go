package main

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lender-enrich/internal/config"
	"github.com/sells-group/lender-enrich/internal/metrics"
)

var dncPhone string

var dncCmd = &cobra.Command{
	Use:     "dnc",
	Short:   "Look up one phone number in the do-not-call registry",
	Example: `  lender-enrich dnc --phone "(512) 555-0101"`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runDNC(cmd.Context(), cfg, dncPhone, cmd.OutOrStdout())
	},
}

func init() {
	dncCmd.Flags().StringVar(&dncPhone, "phone", "", "phone number to check")
	_ = dncCmd.MarkFlagRequired("phone")
	rootCmd.AddCommand(dncCmd)
}

// runDNC prints the lookup result as YAML. An inconclusive lookup is printed
// and also returned as an error so scripts see a non-zero exit.
func runDNC(ctx context.Context, c *config.Config, phone string, out io.Writer) error {
	if err := c.Validate("dnc"); err != nil {
		return err
	}

	res := newChecker(c, metrics.New()).Check(ctx, phone)

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(res); err != nil {
		return eris.Wrap(err, "dnc: encode result")
	}
	if err := enc.Close(); err != nil {
		return eris.Wrap(err, "dnc: encode result")
	}

	if res.Inconclusive() {
		return eris.Errorf("dnc: lookup inconclusive: %s", res.Error)
	}
	return nil
}
