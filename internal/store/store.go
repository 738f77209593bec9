// Package store persists crawl run history so long-running crawls can be
// inspected after the fact. The CSV sinks remain the source of truth for
// records; the store only tracks run-level bookkeeping.
package store

import (
	"context"
	"time"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one crawl invocation and its outcome statistics.
type Run struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	Params      string     `json:"params,omitempty"`
	Cells       int        `json:"cells"`
	Tasks       int        `json:"tasks"`
	TasksFailed int        `json:"tasks_failed"`
	Records     int        `json:"records"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Stats carries the counters written when a run completes.
type Stats struct {
	Cells       int
	Tasks       int
	TasksFailed int
	Records     int
}

// Store records crawl runs and their outcomes.
type Store interface {
	CreateRun(ctx context.Context, params any) (string, error)
	CompleteRun(ctx context.Context, id string, stats Stats) error
	FailRun(ctx context.Context, id, msg string) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
