package store

import (
	"context"
	"time"
)

// JobStatus mirrors the crawl_jobs status column.
type JobStatus string

// Job statuses persisted in crawl_jobs.status.
const (
	JobActive JobStatus = "active"
	JobPaused JobStatus = "paused"
)

// JobDefinition is a saved, re-runnable collection scope: which complexes to
// cover and which job types to dispatch. Triggering an active definition
// creates a run; a paused one refuses to trigger until resumed.
type JobDefinition struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ComplexIDs  []int64   `json:"complex_ids,omitempty"`
	JobTypes    []JobType `json:"job_types"`
	Status      JobStatus `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// JobUpdate carries a partial update; nil fields keep their current value.
type JobUpdate struct {
	Name        *string
	Description *string
	ComplexIDs  *[]int64
	JobTypes    *[]JobType
}

// Jobs persists saved job definitions.
type Jobs interface {
	// CreateJob inserts a definition and returns its ID.
	CreateJob(ctx context.Context, job JobDefinition) (int64, error)
	// GetJob loads a definition or returns ErrNotFound.
	GetJob(ctx context.Context, id int64) (JobDefinition, error)
	// ListJobs returns definitions ordered by ID.
	ListJobs(ctx context.Context, limit, offset int) ([]JobDefinition, error)
	// UpdateJob applies a partial update and returns the new state.
	UpdateJob(ctx context.Context, id int64, upd JobUpdate) (JobDefinition, error)
	// SetJobStatus pauses or resumes a definition.
	SetJobStatus(ctx context.Context, id int64, status JobStatus) error
}
