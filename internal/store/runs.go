package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobType selects which connector a task drives.
type JobType string

// Job types dispatched by the worker.
const (
	JobPrice       JobType = "price"
	JobTransaction JobType = "transaction"
	JobListing     JobType = "listing"
)

// RunStatus mirrors the collection_runs status column.
type RunStatus string

// Run statuses persisted in collection_runs.status.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// TaskStatus mirrors the collection_tasks status column.
type TaskStatus string

// Task statuses persisted in collection_tasks.status.
const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// Run models one collection run over a set of targets. JobID is set when the
// run was triggered from a saved job definition.
type Run struct {
	ID             uuid.UUID  `json:"id"`
	JobID          *int64     `json:"job_id,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Status         RunStatus  `json:"status"`
	TotalTasks     int        `json:"total_tasks"`
	SucceededTasks int        `json:"succeeded_tasks"`
	FailedTasks    int        `json:"failed_tasks"`
	TriggeredBy    string     `json:"triggered_by,omitempty"`
}

// Task models one unit of work within a run.
type Task struct {
	ID         uuid.UUID  `json:"id"`
	RunID      uuid.UUID  `json:"run_id"`
	JobType    JobType    `json:"job_type"`
	ComplexID  int64      `json:"complex_id"`
	AreaID     int64      `json:"area_id,omitempty"`
	Status     TaskStatus `json:"status"`
	Attempts   int        `json:"attempts"`
	Error      *string    `json:"error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Runs persists run and task bookkeeping.
type Runs interface {
	// CreateRun inserts a run in running status with its task count.
	CreateRun(ctx context.Context, run Run) error
	// CompleteRun finalizes a run's status, counters, and finish time.
	CompleteRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time, status RunStatus, succeeded, failed int) error
	// GetRun loads a single run or returns ErrNotFound.
	GetRun(ctx context.Context, runID uuid.UUID) (Run, error)
	// ListRuns returns runs ordered by start time, newest first.
	ListRuns(ctx context.Context, limit, offset int) ([]Run, error)

	// CreateTasks inserts a run's tasks in pending status.
	CreateTasks(ctx context.Context, tasks []Task) error
	// StartTask marks a task running and bumps its attempt counter.
	StartTask(ctx context.Context, taskID uuid.UUID, at time.Time) error
	// FinishTask records a task's terminal status and optional error.
	FinishTask(ctx context.Context, taskID uuid.UUID, at time.Time, status TaskStatus, errMsg *string) error
	// ListTasks returns a run's tasks.
	ListTasks(ctx context.Context, runID uuid.UUID) ([]Task, error)
}
