package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/parkmj/kbland-collector/internal/store"
)

// RunStore implements store.Runs using Postgres.
type RunStore struct {
	pool Pool
}

// NewRunStore constructs a run store from an existing pool.
func NewRunStore(pool Pool) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RunStore{pool: pool}, nil
}

// CreateRun inserts a run in running status.
func (s *RunStore) CreateRun(ctx context.Context, run store.Run) error {
	query := `
		INSERT INTO collection_runs (id, job_id, started_at, status, total_tasks, triggered_by)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := s.pool.Exec(ctx, query, run.ID, run.JobID, run.StartedAt, store.RunRunning, run.TotalTasks, run.TriggeredBy)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// CompleteRun finalizes a run.
func (s *RunStore) CompleteRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time, status store.RunStatus, succeeded, failed int) error {
	query := `
		UPDATE collection_runs
		SET finished_at = $1, status = $2, succeeded_tasks = $3, failed_tasks = $4
		WHERE id = $5;
	`
	_, err := s.pool.Exec(ctx, query, finishedAt, status, succeeded, failed, runID)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// GetRun loads a single run by ID.
func (s *RunStore) GetRun(ctx context.Context, runID uuid.UUID) (store.Run, error) {
	query := `
		SELECT id, job_id, started_at, finished_at, status, total_tasks, succeeded_tasks, failed_tasks, triggered_by
		FROM collection_runs
		WHERE id = $1;
	`
	var run store.Run
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&run.ID, &run.JobID, &run.StartedAt, &run.FinishedAt, &run.Status,
		&run.TotalTasks, &run.SucceededTasks, &run.FailedTasks, &run.TriggeredBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Run{}, store.ErrNotFound
		}
		return store.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs ordered by start time, newest first.
func (s *RunStore) ListRuns(ctx context.Context, limit, offset int) ([]store.Run, error) {
	query := `
		SELECT id, job_id, started_at, finished_at, status, total_tasks, succeeded_tasks, failed_tasks, triggered_by
		FROM collection_runs
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2;
	`
	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		var run store.Run
		err := rows.Scan(
			&run.ID, &run.JobID, &run.StartedAt, &run.FinishedAt, &run.Status,
			&run.TotalTasks, &run.SucceededTasks, &run.FailedTasks, &run.TriggeredBy,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CreateTasks inserts a run's tasks in pending status.
func (s *RunStore) CreateTasks(ctx context.Context, tasks []store.Task) error {
	query := `
		INSERT INTO collection_tasks (id, run_id, job_type, complex_id, area_id, status)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	for _, task := range tasks {
		_, err := s.pool.Exec(ctx, query, task.ID, task.RunID, task.JobType, task.ComplexID, task.AreaID, store.TaskPending)
		if err != nil {
			return fmt.Errorf("create task: %w", err)
		}
	}
	return nil
}

// StartTask marks a task running and bumps its attempt counter.
func (s *RunStore) StartTask(ctx context.Context, taskID uuid.UUID, at time.Time) error {
	query := `
		UPDATE collection_tasks
		SET status = $1, started_at = $2, attempts = attempts + 1
		WHERE id = $3;
	`
	_, err := s.pool.Exec(ctx, query, store.TaskRunning, at, taskID)
	if err != nil {
		return fmt.Errorf("start task: %w", err)
	}
	return nil
}

// FinishTask records a task's terminal status.
func (s *RunStore) FinishTask(ctx context.Context, taskID uuid.UUID, at time.Time, status store.TaskStatus, errMsg *string) error {
	query := `
		UPDATE collection_tasks
		SET status = $1, finished_at = $2, error_message = $3
		WHERE id = $4;
	`
	_, err := s.pool.Exec(ctx, query, status, at, errMsg, taskID)
	if err != nil {
		return fmt.Errorf("finish task: %w", err)
	}
	return nil
}

// ListTasks returns a run's tasks in insertion order.
func (s *RunStore) ListTasks(ctx context.Context, runID uuid.UUID) ([]store.Task, error) {
	query := `
		SELECT id, run_id, job_type, complex_id, area_id, status, attempts, error_message, started_at, finished_at
		FROM collection_tasks
		WHERE run_id = $1
		ORDER BY id;
	`
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []store.Task
	for rows.Next() {
		var task store.Task
		err := rows.Scan(
			&task.ID, &task.RunID, &task.JobType, &task.ComplexID, &task.AreaID,
			&task.Status, &task.Attempts, &task.Error, &task.StartedAt, &task.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
