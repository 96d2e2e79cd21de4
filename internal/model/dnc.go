package model

// DNCTag is appended to the tags of records on the do-not-call registry.
const DNCTag = "dnc"

// DNCResult is the outcome of a do-not-call lookup. A non-empty Error means
// the lookup was inconclusive and the flags carry no meaning.
type DNCResult struct {
	IsDNC       bool   `json:"is_dnc" yaml:"is_dnc"`
	NationalDNC bool   `json:"national_dnc" yaml:"national_dnc"`
	StateDNC    bool   `json:"state_dnc" yaml:"state_dnc"`
	IsCell      bool   `json:"is_cell" yaml:"is_cell"`
	IsLitigator bool   `json:"is_litigator" yaml:"is_litigator"`
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Inconclusive reports whether the lookup failed.
func (r DNCResult) Inconclusive() bool {
	return r.Error != ""
}
