package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/parkmj/kbland-collector/internal/store"
)

func TestCreateAndCompleteRun(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	runs, err := NewRunStore(mock)
	require.NoError(t, err)

	runID := uuid.New()
	started := time.Unix(1700000000, 0).UTC()
	finished := started.Add(5 * time.Minute)

	mock.ExpectExec("INSERT INTO collection_runs").
		WithArgs(runID, (*int64)(nil), started, store.RunRunning, 6, "api").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE collection_runs").
		WithArgs(finished, store.RunPartial, 5, 1, runID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = runs.CreateRun(context.Background(), store.Run{
		ID: runID, StartedAt: started, TotalTasks: 6, TriggeredBy: "api",
	})
	require.NoError(t, err)

	err = runs.CompleteRun(context.Background(), runID, finished, store.RunPartial, 5, 1)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	runs, err := NewRunStore(mock)
	require.NoError(t, err)

	runID := uuid.New()
	mock.ExpectQuery("SELECT id, job_id, started_at").
		WithArgs(runID).
		WillReturnError(pgx.ErrNoRows)

	_, err = runs.GetRun(context.Background(), runID)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskLifecycle(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	runs, err := NewRunStore(mock)
	require.NoError(t, err)

	runID := uuid.New()
	taskID := uuid.New()
	now := time.Unix(1700000000, 0).UTC()
	errMsg := "collection failed after 3 attempts"

	mock.ExpectExec("INSERT INTO collection_tasks").
		WithArgs(taskID, runID, store.JobPrice, int64(7), int64(21), store.TaskPending).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE collection_tasks").
		WithArgs(store.TaskRunning, now, taskID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE collection_tasks").
		WithArgs(store.TaskFailed, now, &errMsg, taskID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = runs.CreateTasks(context.Background(), []store.Task{{
		ID: taskID, RunID: runID, JobType: store.JobPrice, ComplexID: 7, AreaID: 21,
	}})
	require.NoError(t, err)

	require.NoError(t, runs.StartTask(context.Background(), taskID, now))
	require.NoError(t, runs.FinishTask(context.Background(), taskID, now, store.TaskFailed, &errMsg))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	runs, err := NewRunStore(mock)
	require.NoError(t, err)

	runID := uuid.New()
	started := time.Unix(1700000000, 0).UTC()
	rows := pgxmock.NewRows([]string{
		"id", "job_id", "started_at", "finished_at", "status",
		"total_tasks", "succeeded_tasks", "failed_tasks", "triggered_by",
	}).AddRow(runID, (*int64)(nil), started, (*time.Time)(nil), store.RunRunning, 6, 0, 0, "schedule")

	mock.ExpectQuery("SELECT id, job_id, started_at").
		WithArgs(20, 0).
		WillReturnRows(rows)

	got, err := runs.ListRuns(context.Background(), 20, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, runID, got[0].ID)
	require.Nil(t, got[0].FinishedAt)
	require.Equal(t, store.RunRunning, got[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
