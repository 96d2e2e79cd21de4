package model

import (
	"time"
)

// Severity classifies a pipeline event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is a user-facing message about one record.
type Event struct {
	ID        string    `json:"id"`
	RecordID  string    `json:"record_id,omitempty"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// Batch phases.
const (
	PhaseEnrich = "enrich"
	PhaseDNC    = "dnc"
)

// Progress reports how far a batch phase has come.
type Progress struct {
	Phase   string `json:"phase,omitempty"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
	Percent int    `json:"percent"`
}

// NewProgress computes the rounded completion percentage.
func NewProgress(phase string, done, total int) Progress {
	p := Progress{Phase: phase, Done: done, Total: total}
	if total > 0 {
		p.Percent = (done*100 + total/2) / total
	}
	return p
}
