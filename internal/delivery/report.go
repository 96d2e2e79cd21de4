package delivery

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"github.com/sells-group/lender-enrich/internal/model"
)

// Summary is what a run report is rendered from.
type Summary struct {
	Source   string
	County   string
	Counts   model.RunCounts
	Records  []model.LenderRecord
	DNC      map[string]model.DNCResult
	Started  time.Time
	Finished time.Time
}

// WriteReport renders s as Markdown to w.
func WriteReport(w io.Writer, s Summary) error {
	md := markdown.NewMarkdown(w)

	md.H1("Lender Enrichment Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Source", orDash(s.Source)},
			{"County", orDash(s.County)},
			{"Started", s.Started.Format("2006-01-02 15:04:05 MST")},
			{"Duration", s.Finished.Sub(s.Started).Round(time.Second).String()},
		},
	})
	md.PlainText("")

	md.H2("Totals")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"Records", strconv.Itoa(s.Counts.Total)},
			{"Enriched", strconv.Itoa(s.Counts.Enriched)},
			{"Not found", strconv.Itoa(s.Counts.NotFound)},
			{"Failed", strconv.Itoa(s.Counts.Failed)},
			{"Skipped (invalid)", strconv.Itoa(s.Counts.SkippedValid)},
		},
	})
	md.PlainText("")

	md.H2("Do-Not-Call Screening")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Result", "Count"},
		Rows: [][]string{
			{"On DNC list", strconv.Itoa(s.Counts.DNC)},
			{"Clear", strconv.Itoa(s.Counts.DNCClear)},
			{"Check failed", strconv.Itoa(s.Counts.DNCErrors)},
		},
	})
	md.PlainText("")
	if s.Counts.DNC > 0 {
		md.Warningf("%d record(s) are on the do-not-call registry and were tagged %q.", s.Counts.DNC, model.DNCTag)
		md.PlainText("")
	}

	md.H2("Records")
	md.PlainText("")
	if len(s.Records) == 0 {
		md.PlainText("No records.")
	} else {
		rows := make([][]string, len(s.Records))
		for i, r := range s.Records {
			rows[i] = []string{
				r.FullName(),
				r.Company,
				orDash(r.WorkEmail),
				orDash(r.MobilePhone),
				strconv.Itoa(r.Confidence),
				dncLabel(s.DNC, r.ID),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Name", "Company", "Email", "Phone", "Confidence", "DNC"},
			Rows:   rows,
		})
	}
	md.PlainText("")

	return md.Build()
}

func dncLabel(results map[string]model.DNCResult, id string) string {
	res, ok := results[id]
	switch {
	case !ok:
		return "-"
	case res.Inconclusive():
		return "error"
	case res.IsDNC:
		return "yes"
	default:
		return "no"
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
