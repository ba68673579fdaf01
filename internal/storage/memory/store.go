package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parkmj/kbland-collector/internal/store"
)

// Store provides an in-memory implementation of the catalog, record, and run
// interfaces for development and testing.
type Store struct {
	mu sync.RWMutex

	nextID    int64
	complexes map[int64]store.Complex
	areas     map[int64]store.Area

	valuations   []store.ValuationRecord
	transactions []store.TransactionRecord
	listings     map[string]store.ListingRecord
	listingOrder []string

	jobs map[int64]store.JobDefinition

	runs  map[uuid.UUID]store.Run
	tasks map[uuid.UUID][]store.Task
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		complexes: make(map[int64]store.Complex),
		areas:     make(map[int64]store.Area),
		listings:  make(map[string]store.ListingRecord),
		jobs:      make(map[int64]store.JobDefinition),
		runs:      make(map[uuid.UUID]store.Run),
		tasks:     make(map[uuid.UUID][]store.Task),
	}
}

// RegisterComplex inserts or updates a complex keyed by its portal ID.
func (s *Store) RegisterComplex(_ context.Context, c store.Complex) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.complexes {
		if existing.KBComplexID == c.KBComplexID {
			c.ID = id
			c.CreatedAt = existing.CreatedAt
			s.complexes[id] = c
			return id, nil
		}
	}
	s.nextID++
	c.ID = s.nextID
	c.CreatedAt = time.Now().UTC()
	s.complexes[c.ID] = c
	return c.ID, nil
}

// RegisterArea inserts or updates an area keyed by (complex, portal code).
func (s *Store) RegisterArea(_ context.Context, a store.Area) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.areas {
		if existing.ComplexID == a.ComplexID && existing.KBAreaCode == a.KBAreaCode {
			a.ID = id
			s.areas[id] = a
			return id, nil
		}
	}
	s.nextID++
	a.ID = s.nextID
	s.areas[a.ID] = a
	return a.ID, nil
}

// GetComplex fetches a complex by internal ID.
func (s *Store) GetComplex(_ context.Context, id int64) (store.Complex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.complexes[id]
	if !ok {
		return store.Complex{}, store.ErrNotFound
	}
	return c, nil
}

// ListComplexes returns registered complexes ordered by internal ID.
func (s *Store) ListComplexes(_ context.Context, limit, offset int) ([]store.Complex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Complex
	for id := int64(1); id <= s.nextID; id++ {
		if c, ok := s.complexes[id]; ok {
			out = append(out, c)
		}
	}
	return paginate(out, limit, offset), nil
}

// ListAreas returns a complex's areas.
func (s *Store) ListAreas(_ context.Context, complexID int64) ([]store.Area, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Area
	for id := int64(1); id <= s.nextID; id++ {
		if a, ok := s.areas[id]; ok && a.ComplexID == complexID {
			out = append(out, a)
		}
	}
	return out, nil
}

// KBComplexID resolves an internal complex ID to its portal identifier.
func (s *Store) KBComplexID(_ context.Context, complexID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.complexes[complexID]
	if !ok {
		return "", store.ErrNotFound
	}
	return c.KBComplexID, nil
}

// KBAreaCode resolves an internal area ID to its portal identifier.
func (s *Store) KBAreaCode(_ context.Context, areaID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.areas[areaID]
	if !ok {
		return "", store.ErrNotFound
	}
	return a.KBAreaCode, nil
}

// SaveValuations appends snapshots, skipping duplicate (complex, area, date)
// combinations.
func (s *Store) SaveValuations(_ context.Context, records []store.ValuationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		dup := false
		for _, existing := range s.valuations {
			if existing.ComplexID == r.ComplexID && existing.AreaID == r.AreaID && existing.AsOfDate == r.AsOfDate {
				dup = true
				break
			}
		}
		if !dup {
			s.valuations = append(s.valuations, r)
		}
	}
	return nil
}

// SaveTransactions appends deals, skipping exact duplicates.
func (s *Store) SaveTransactions(_ context.Context, records []store.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		dup := false
		for i, existing := range s.transactions {
			if existing.ComplexID == r.ComplexID && existing.ContractDate == r.ContractDate &&
				existing.Price == r.Price && existing.ExclusiveM2 == r.ExclusiveM2 {
				s.transactions[i].IsCancelled = r.IsCancelled
				dup = true
				break
			}
		}
		if !dup {
			s.transactions = append(s.transactions, r)
		}
	}
	return nil
}

// UpsertListings inserts or refreshes listings keyed by source listing ID.
func (s *Store) UpsertListings(_ context.Context, records []store.ListingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if existing, ok := s.listings[r.SourceListingID]; ok {
			existing.AskPrice = r.AskPrice
			existing.Status = r.Status
			existing.LastSeenAt = r.LastSeenAt
			s.listings[r.SourceListingID] = existing
			continue
		}
		if r.FirstSeenAt.IsZero() {
			r.FirstSeenAt = r.LastSeenAt
		}
		s.listings[r.SourceListingID] = r
		s.listingOrder = append(s.listingOrder, r.SourceListingID)
	}
	return nil
}

// ListValuations returns valuations for a complex in insertion order.
func (s *Store) ListValuations(_ context.Context, complexID int64, limit, offset int) ([]store.ValuationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.ValuationRecord
	for _, r := range s.valuations {
		if r.ComplexID == complexID {
			out = append(out, r)
		}
	}
	return paginate(out, limit, offset), nil
}

// ListTransactions returns deals for a complex in insertion order.
func (s *Store) ListTransactions(_ context.Context, complexID int64, limit, offset int) ([]store.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.TransactionRecord
	for _, r := range s.transactions {
		if r.ComplexID == complexID {
			out = append(out, r)
		}
	}
	return paginate(out, limit, offset), nil
}

// ListListings returns listings for a complex in first-seen order.
func (s *Store) ListListings(_ context.Context, complexID int64, limit, offset int) ([]store.ListingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.ListingRecord
	for _, id := range s.listingOrder {
		if r := s.listings[id]; r.ComplexID == complexID {
			out = append(out, r)
		}
	}
	return paginate(out, limit, offset), nil
}

// CreateJob saves a job definition, defaulting it to active.
func (s *Store) CreateJob(_ context.Context, job store.JobDefinition) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	job.ID = s.nextID
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = store.JobActive
	}
	s.jobs[job.ID] = job
	return job.ID, nil
}

// GetJob fetches a job definition by ID.
func (s *Store) GetJob(_ context.Context, id int64) (store.JobDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.JobDefinition{}, store.ErrNotFound
	}
	return job, nil
}

// ListJobs returns job definitions ordered by internal ID.
func (s *Store) ListJobs(_ context.Context, limit, offset int) ([]store.JobDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.JobDefinition
	for id := int64(1); id <= s.nextID; id++ {
		if job, ok := s.jobs[id]; ok {
			out = append(out, job)
		}
	}
	return paginate(out, limit, offset), nil
}

// UpdateJob applies a partial update and returns the new definition.
func (s *Store) UpdateJob(_ context.Context, id int64, upd store.JobUpdate) (store.JobDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.JobDefinition{}, store.ErrNotFound
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
	job.UpdatedAt = time.Now().UTC()
	s.jobs[id] = job
	return job, nil
}

// SetJobStatus pauses or resumes a job definition.
func (s *Store) SetJobStatus(_ context.Context, id int64, status store.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	job.Status = status
	job.UpdatedAt = time.Now().UTC()
	s.jobs[id] = job
	return nil
}

// CreateRun stores a run in running status.
func (s *Store) CreateRun(_ context.Context, run store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.Status = store.RunRunning
	s.runs[run.ID] = run
	return nil
}

// CompleteRun finalizes a run.
func (s *Store) CompleteRun(_ context.Context, runID uuid.UUID, finishedAt time.Time, status store.RunStatus, succeeded, failed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return store.ErrNotFound
	}
	run.FinishedAt = &finishedAt
	run.Status = status
	run.SucceededTasks = succeeded
	run.FailedTasks = failed
	s.runs[runID] = run
	return nil
}

// GetRun fetches a run by ID.
func (s *Store) GetRun(_ context.Context, runID uuid.UUID) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return store.Run{}, store.ErrNotFound
	}
	return run, nil
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(_ context.Context, limit, offset int) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].StartedAt.After(out[i].StartedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return paginate(out, limit, offset), nil
}

// CreateTasks stores a run's tasks in pending status.
func (s *Store) CreateTasks(_ context.Context, tasks []store.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range tasks {
		task.Status = store.TaskPending
		s.tasks[task.RunID] = append(s.tasks[task.RunID], task)
	}
	return nil
}

// StartTask marks a task running and bumps its attempt counter.
func (s *Store) StartTask(_ context.Context, taskID uuid.UUID, at time.Time) error {
	return s.updateTask(taskID, func(task *store.Task) {
		task.Status = store.TaskRunning
		task.StartedAt = &at
		task.Attempts++
	})
}

// FinishTask records a task's terminal status.
func (s *Store) FinishTask(_ context.Context, taskID uuid.UUID, at time.Time, status store.TaskStatus, errMsg *string) error {
	return s.updateTask(taskID, func(task *store.Task) {
		task.Status = status
		task.FinishedAt = &at
		task.Error = errMsg
	})
}

// ListTasks returns a run's tasks in insertion order.
func (s *Store) ListTasks(_ context.Context, runID uuid.UUID) ([]store.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks := s.tasks[runID]
	out := make([]store.Task, len(tasks))
	copy(out, tasks)
	return out, nil
}

func (s *Store) updateTask(taskID uuid.UUID, apply func(*store.Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for runID, tasks := range s.tasks {
		for i := range tasks {
			if tasks[i].ID == taskID {
				apply(&tasks[i])
				s.tasks[runID] = tasks
				return nil
			}
		}
	}
	return store.ErrNotFound
}

func paginate[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
