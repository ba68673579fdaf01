package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/parkmj/kbland-collector/internal/store"
)

// JobStore implements store.Jobs using Postgres.
type JobStore struct {
	pool Pool
}

// NewJobStore constructs a job store from an existing pool.
func NewJobStore(pool Pool) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &JobStore{pool: pool}, nil
}

// CreateJob inserts a definition and returns its generated ID.
func (s *JobStore) CreateJob(ctx context.Context, job store.JobDefinition) (int64, error) {
	if job.Status == "" {
		job.Status = store.JobActive
	}
	query := `
		INSERT INTO crawl_jobs (name, description, complex_ids, job_types, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING id;
	`
	var id int64
	err := s.pool.QueryRow(ctx, query,
		job.Name, job.Description, job.ComplexIDs, jobTypeStrings(job.JobTypes), job.Status,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create job: %w", err)
	}
	return id, nil
}

// GetJob loads one definition by ID.
func (s *JobStore) GetJob(ctx context.Context, id int64) (store.JobDefinition, error) {
	query := `
		SELECT id, name, description, complex_ids, job_types, status, created_at, updated_at
		FROM crawl_jobs
		WHERE id = $1;
	`
	var job store.JobDefinition
	var types []string
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.Name, &job.Description, &job.ComplexIDs, &types,
		&job.Status, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.JobDefinition{}, store.ErrNotFound
		}
		return store.JobDefinition{}, fmt.Errorf("get job: %w", err)
	}
	job.JobTypes = jobTypesFromStrings(types)
	return job, nil
}

// ListJobs returns definitions ordered by ID.
func (s *JobStore) ListJobs(ctx context.Context, limit, offset int) ([]store.JobDefinition, error) {
	query := `
		SELECT id, name, description, complex_ids, job_types, status, created_at, updated_at
		FROM crawl_jobs
		ORDER BY id
		LIMIT $1 OFFSET $2;
	`
	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []store.JobDefinition
	for rows.Next() {
		var job store.JobDefinition
		var types []string
		err := rows.Scan(
			&job.ID, &job.Name, &job.Description, &job.ComplexIDs, &types,
			&job.Status, &job.CreatedAt, &job.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		job.JobTypes = jobTypesFromStrings(types)
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateJob applies a partial update and returns the new definition.
func (s *JobStore) UpdateJob(ctx context.Context, id int64, upd store.JobUpdate) (store.JobDefinition, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return store.JobDefinition{}, err
	}
	if upd.Name != nil {
		job.Name = *upd.Name
	}
	if upd.Description != nil {
		job.Description = *upd.Description
	}
	if upd.ComplexIDs != nil {
		job.ComplexIDs = *upd.ComplexIDs
	}
	if upd.JobTypes != nil {
		job.JobTypes = *upd.JobTypes
	}
	query := `
		UPDATE crawl_jobs
		SET name = $1, description = $2, complex_ids = $3, job_types = $4, updated_at = now()
		WHERE id = $5;
	`
	_, err = s.pool.Exec(ctx, query,
		job.Name, job.Description, job.ComplexIDs, jobTypeStrings(job.JobTypes), id,
	)
	if err != nil {
		return store.JobDefinition{}, fmt.Errorf("update job: %w", err)
	}
	job.UpdatedAt = time.Now().UTC()
	return job, nil
}

// SetJobStatus pauses or resumes a definition.
func (s *JobStore) SetJobStatus(ctx context.Context, id int64, status store.JobStatus) error {
	query := `
		UPDATE crawl_jobs
		SET status = $1, updated_at = now()
		WHERE id = $2;
	`
	tag, err := s.pool.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("set job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func jobTypeStrings(types []store.JobType) []string {
	out := make([]string, len(types))
	for i, jt := range types {
		out[i] = string(jt)
	}
	return out
}

func jobTypesFromStrings(types []string) []store.JobType {
	out := make([]store.JobType, len(types))
	for i, s := range types {
		out[i] = store.JobType(s)
	}
	return out
}
