// Package delivery writes enriched lists to CSV, uploads them to the CRM
// webhook, and renders run reports.
package delivery

import (
	"bytes"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lender-enrich/internal/model"
)

// Header is the column layout expected by the CRM import.
var Header = []string{
	"First Name",
	"Last Name",
	"Company",
	"work_email",
	"mobile_phone",
	"personal_email",
	"title",
	"City",
	"state",
	"trailing_14_units",
	"Tags",
}

// WriteCSV writes records to w under Header.
func WriteCSV(w io.Writer, records []model.LenderRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return eris.Wrap(err, "delivery: write header")
	}
	for _, r := range records {
		row := []string{
			r.FirstName,
			r.LastName,
			r.Company,
			r.WorkEmail,
			r.MobilePhone,
			r.PersonalEmail,
			r.Title,
			r.City,
			r.State,
			r.Trailing14Units,
			r.Tags,
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "delivery: write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "delivery: flush csv")
	}
	return nil
}

// CSVContent renders records as a CSV document.
func CSVContent(records []model.LenderRecord) (string, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Filename names the output file for a county.
func Filename(county string) string {
	if county == "" {
		return "mortgage_lenders_with_contacts.csv"
	}
	return county + "_County_mortgage_lenders_with_contacts.csv"
}
