// Package store keeps the run journal and the page-contact cache.
package store

import (
	"context"
	"time"

	"github.com/sells-group/lender-enrich/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for batch runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, label string, total int) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, counts model.RunCounts) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Outcomes
	RecordOutcome(ctx context.Context, outcome model.RecordOutcome) error
	ListOutcomes(ctx context.Context, runID string) ([]model.RecordOutcome, error)

	// Page cache
	GetCachedPage(ctx context.Context, url string) (*model.ContactCandidate, error)
	SetCachedPage(ctx context.Context, url string, contacts model.ContactCandidate, ttl time.Duration) error
	DeleteExpiredPages(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
