package pipeline

import (
	"fmt"

	"github.com/sells-group/lender-enrich/internal/model"
)

// PlanQueries returns the search query variants for rec, most specific first.
func PlanQueries(rec model.LenderRecord) []string {
	f, l, c := rec.FirstName, rec.LastName, rec.Company
	return []string{
		fmt.Sprintf("%s %s %s email phone contact", f, l, c),
		fmt.Sprintf("%s %s %s email cell contact", f, l, c),
		fmt.Sprintf("%s %s %s mortgage lender contact", f, l, c),
		fmt.Sprintf("%s %s mortgage lender %s", f, l, c),
		fmt.Sprintf(`"%s %s" mortgage lender %s`, f, l, c),
	}
}
