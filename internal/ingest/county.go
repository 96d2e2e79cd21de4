package ingest

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultTag is applied to every record.
const DefaultTag = "Mortgage Lender"

var (
	countyRe  = regexp.MustCompile(`(?i)([A-Za-z\s]+)\s*county`)
	separator = strings.NewReplacer("_", " ", "-", " ")
)

// CountyFromFilename pulls the county name out of an upload name such as
// "Harris County lenders.csv". It returns "" when there is none.
func CountyFromFilename(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	m := countyRe.FindStringSubmatch(separator.Replace(base))
	if m == nil {
		return ""
	}
	county := strings.Join(strings.Fields(m[1]), " ")
	if county == "" {
		return ""
	}
	return cases.Title(language.English).String(county)
}

// SeedTags builds the initial tag list from the county and state.
func SeedTags(county, state string) string {
	switch {
	case county != "" && state != "":
		return county + " county " + state + " " + DefaultTag + "," + state + " " + DefaultTag + "," + DefaultTag
	case state != "":
		return state + " " + DefaultTag + "," + DefaultTag
	default:
		return DefaultTag
	}
}
