package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkmj/kbland-collector/internal/store"
)

func TestRegisterComplexIsIdempotentByPortalID(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	id1, err := s.RegisterComplex(ctx, store.Complex{KBComplexID: "103206", Name: "개포자이"})
	require.NoError(t, err)
	id2, err := s.RegisterComplex(ctx, store.Complex{KBComplexID: "103206", Name: "개포자이 (updated)"})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	c, err := s.GetComplex(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "개포자이 (updated)", c.Name)

	kbID, err := s.KBComplexID(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "103206", kbID)

	_, err = s.KBComplexID(ctx, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAreasPerComplex(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	complexID, err := s.RegisterComplex(ctx, store.Complex{KBComplexID: "103206"})
	require.NoError(t, err)
	areaID, err := s.RegisterArea(ctx, store.Area{ComplexID: complexID, KBAreaCode: "3", ExclusiveM2: 84.97})
	require.NoError(t, err)
	_, err = s.RegisterArea(ctx, store.Area{ComplexID: complexID + 100, KBAreaCode: "9"})
	require.NoError(t, err)

	areas, err := s.ListAreas(ctx, complexID)
	require.NoError(t, err)
	require.Len(t, areas, 1)
	assert.Equal(t, areaID, areas[0].ID)

	code, err := s.KBAreaCode(ctx, areaID)
	require.NoError(t, err)
	assert.Equal(t, "3", code)
}

func TestSaveValuationsSkipsDuplicateDays(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	rec := store.ValuationRecord{ComplexID: 1, AreaID: 2, AsOfDate: "2026-02-06"}
	require.NoError(t, s.SaveValuations(ctx, []store.ValuationRecord{rec}))
	require.NoError(t, s.SaveValuations(ctx, []store.ValuationRecord{rec}))

	got, err := s.ListValuations(ctx, 1, 10, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestUpsertListingsRefreshesExisting(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()
	day1 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 7)

	require.NoError(t, s.UpsertListings(ctx, []store.ListingRecord{{
		ComplexID: 1, SourceListingID: "KB777", AskPrice: 142000, Status: "active", LastSeenAt: day1,
	}}))
	require.NoError(t, s.UpsertListings(ctx, []store.ListingRecord{{
		ComplexID: 1, SourceListingID: "KB777", AskPrice: 140000, Status: "sold", LastSeenAt: day2,
	}}))

	got, err := s.ListListings(ctx, 1, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(140000), got[0].AskPrice)
	assert.Equal(t, "sold", got[0].Status)
	assert.Equal(t, day1, got[0].FirstSeenAt)
	assert.Equal(t, day2, got[0].LastSeenAt)
}

func TestRunAndTaskLifecycle(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	runID := uuid.New()
	taskID := uuid.New()
	started := time.Date(2026, 2, 6, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateRun(ctx, store.Run{ID: runID, StartedAt: started, TotalTasks: 1}))
	require.NoError(t, s.CreateTasks(ctx, []store.Task{{ID: taskID, RunID: runID, JobType: store.JobListing, ComplexID: 1}}))

	require.NoError(t, s.StartTask(ctx, taskID, started))
	require.NoError(t, s.FinishTask(ctx, taskID, started.Add(time.Minute), store.TaskSucceeded, nil))
	require.NoError(t, s.CompleteRun(ctx, runID, started.Add(time.Minute), store.RunCompleted, 1, 0))

	run, err := s.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, store.RunCompleted, run.Status)
	assert.Equal(t, 1, run.SucceededTasks)
	require.NotNil(t, run.FinishedAt)

	tasks, err := s.ListTasks(ctx, runID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, store.TaskSucceeded, tasks[0].Status)
	assert.Equal(t, 1, tasks[0].Attempts)

	assert.ErrorIs(t, s.StartTask(ctx, uuid.New(), started), store.ErrNotFound)
}

func TestJobDefinitionLifecycle(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()

	id, err := s.CreateJob(ctx, store.JobDefinition{
		Name:       "gangnam-daily",
		ComplexIDs: []int64{1, 2},
		JobTypes:   []store.JobType{store.JobPrice},
	})
	require.NoError(t, err)

	job, err := s.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.JobActive, job.Status)
	assert.False(t, job.CreatedAt.IsZero())

	name := "gangnam-hourly"
	types := []store.JobType{store.JobPrice, store.JobListing}
	job, err = s.UpdateJob(ctx, id, store.JobUpdate{Name: &name, JobTypes: &types})
	require.NoError(t, err)
	assert.Equal(t, "gangnam-hourly", job.Name)
	assert.Equal(t, types, job.JobTypes)
	assert.Equal(t, []int64{1, 2}, job.ComplexIDs)

	require.NoError(t, s.SetJobStatus(ctx, id, store.JobPaused))
	job, err = s.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.JobPaused, job.Status)

	jobs, err := s.ListJobs(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	_, err = s.GetJob(ctx, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.SetJobStatus(ctx, 999, store.JobActive), store.ErrNotFound)
}
