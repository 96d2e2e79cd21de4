package model

import (
	"time"
)

// RunStatus represents the current state of a batch run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusEnriching RunStatus = "enriching"
	RunStatusChecking  RunStatus = "checking_dnc"
	RunStatusComplete  RunStatus = "complete"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one batch execution recorded in the journal.
type Run struct {
	ID        string     `json:"id"`
	Label     string     `json:"label"`
	Status    RunStatus  `json:"status"`
	Total     int        `json:"total"`
	Summary   *RunCounts `json:"summary,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunCounts tallies what a batch produced.
type RunCounts struct {
	Total        int `json:"total"`
	Enriched     int `json:"enriched"`
	NotFound     int `json:"not_found"`
	Failed       int `json:"failed"`
	DNC          int `json:"dnc"`
	DNCClear     int `json:"dnc_clear"`
	DNCErrors    int `json:"dnc_errors"`
	SkippedValid int `json:"skipped_invalid"`
}

// RecordOutcome is the journal entry for one record within a run.
type RecordOutcome struct {
	RunID      string    `json:"run_id"`
	RecordID   string    `json:"record_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Source     string    `json:"source"`
	Confidence int       `json:"confidence"`
	DNC        string    `json:"dnc"`
	CreatedAt  time.Time `json:"created_at"`
}
