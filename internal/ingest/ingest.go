// Package ingest reads lender contact lists from CSV and XLSX uploads.
package ingest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/lender-enrich/internal/model"
)

// Stats summarizes a parsed list.
type Stats struct {
	Total           int `json:"total" yaml:"total"`
	NeedsEnrichment int `json:"needs_enrichment" yaml:"needs_enrichment"`
	Complete        int `json:"complete" yaml:"complete"`
}

// Batch is a parsed contact list.
type Batch struct {
	Records []model.LenderRecord `json:"records"`
	County  string               `json:"county,omitempty"`
	City    string               `json:"city,omitempty"`
	Stats   Stats                `json:"stats"`
}

// Pending returns the records that are missing a work email or mobile phone.
func (b *Batch) Pending() []model.LenderRecord {
	var out []model.LenderRecord
	for _, r := range b.Records {
		if r.NeedsEnrichment() {
			out = append(out, r)
		}
	}
	return out
}

// ParseFile opens path and parses it. The extension selects the format.
func ParseFile(ctx context.Context, path string) (*Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open file")
	}
	defer f.Close() //nolint:errcheck

	return Parse(ctx, filepath.Base(path), f)
}

// Parse reads a contact list named filename from r. XLSX is chosen by the
// .xlsx extension; anything else is read as CSV.
func Parse(ctx context.Context, filename string, r io.Reader) (*Batch, error) {
	var rowCh <-chan []string
	var errCh <-chan error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read workbook")
		}
		rowCh, errCh = StreamXLSX(ctx, data)
	default:
		// Spreadsheet exports often carry a UTF-8 byte order mark.
		src := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
		rowCh, errCh = StreamCSV(ctx, src, CSVOptions{TrimSpace: true, LazyQuotes: true})
	}

	county := CountyFromFilename(filename)
	batch := &Batch{County: county, Records: []model.LenderRecord{}}

	var cols columns
	header := true
	for row := range rowCh {
		if header {
			cols = mapHeader(row)
			header = false
			continue
		}
		if blank(row) {
			continue
		}
		rec := cols.record(row)
		rec.ID = uuid.NewString()
		rec.Tags = SeedTags(county, rec.State)
		batch.Records = append(batch.Records, rec)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "ingest: parse "+filename)
	}
	if header {
		return nil, eris.Errorf("ingest: %s has no header row", filename)
	}
	if cols.first < 0 || cols.last < 0 || cols.company < 0 {
		zap.L().Warn("ingest: name or company column missing",
			zap.String("file", filename),
			zap.Int("first_name", cols.first),
			zap.Int("last_name", cols.last),
			zap.Int("company", cols.company),
		)
	}

	batch.Stats.Total = len(batch.Records)
	for _, rec := range batch.Records {
		if rec.NeedsEnrichment() {
			batch.Stats.NeedsEnrichment++
		}
	}
	batch.Stats.Complete = batch.Stats.Total - batch.Stats.NeedsEnrichment
	if len(batch.Records) > 0 {
		batch.City = batch.Records[0].City
	}

	zap.L().Info("ingest: parsed contact list",
		zap.String("file", filename),
		zap.String("county", county),
		zap.Int("total", batch.Stats.Total),
		zap.Int("needs_enrichment", batch.Stats.NeedsEnrichment),
	)
	return batch, nil
}

// NormalizeHeader lowercases h and strips spaces and underscores.
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Map(func(r rune) rune {
		if r == '_' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, h)
}

// columns holds the index of each known column, or -1.
type columns struct {
	first, last, company       int
	workEmail, personalEmail   int
	mobilePhone, title         int
	state, city, trailingUnits int
}

func mapHeader(header []string) columns {
	c := columns{-1, -1, -1, -1, -1, -1, -1, -1, -1, -1}
	set := func(dst *int, i int) {
		if *dst < 0 {
			*dst = i
		}
	}
	for i, h := range header {
		switch n := NormalizeHeader(h); {
		case n == "firstname":
			set(&c.first, i)
		case n == "lastname":
			set(&c.last, i)
		case n == "company":
			set(&c.company, i)
		case n == "workemail":
			set(&c.workEmail, i)
		case n == "personalemail":
			set(&c.personalEmail, i)
		case strings.Contains(n, "mobilephone"):
			set(&c.mobilePhone, i)
		case n == "title":
			set(&c.title, i)
		case n == "state":
			set(&c.state, i)
		case n == "city":
			set(&c.city, i)
		case n == "trailing14units":
			set(&c.trailingUnits, i)
		}
	}
	return c
}

func (c columns) record(row []string) model.LenderRecord {
	get := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	return model.LenderRecord{
		FirstName:       get(c.first),
		LastName:        get(c.last),
		Company:         get(c.company),
		WorkEmail:       get(c.workEmail),
		MobilePhone:     get(c.mobilePhone),
		PersonalEmail:   get(c.personalEmail),
		Title:           get(c.title),
		State:           get(c.state),
		City:            get(c.city),
		Trailing14Units: get(c.trailingUnits),
	}
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
