package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsuits/ues-sync/internal/models"
)

func runRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "status", "forced", "started_at", "finished_at", "semesters_seen", "sections_processed", "sections_skipped", "enrolls_applied", "unenrolls_applied", "errors_queued", "log_tail"})
}

func TestRunRepositoryCreateDefaults(t *testing.T) {
	store, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRunRepository(store)

	mock.ExpectExec(`INSERT INTO sync_runs`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	run := &models.Run{}
	require.NoError(t, repo.Create(context.Background(), run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, models.RunStatusRunning, run.Status)
	assert.False(t, run.StartedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryFinishStampsTime(t *testing.T) {
	store, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRunRepository(store)

	mock.ExpectExec(`UPDATE sync_runs SET status`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	run := &models.Run{ID: "run-1", Status: models.RunStatusSucceeded}
	require.NoError(t, repo.Finish(context.Background(), run))
	require.NotNil(t, run.FinishedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryLatest(t *testing.T) {
	store, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRunRepository(store)

	mock.ExpectQuery(`SELECT (.+) FROM sync_runs ORDER BY started_at DESC LIMIT 1`).
		WillReturnRows(runRows().
			AddRow("run-2", "SUCCEEDED", false, time.Now(), time.Now(), 1, 2, 0, 10, 1, 0, ""))

	run, err := repo.Latest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "run-2", run.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryLatestEmpty(t *testing.T) {
	store, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRunRepository(store)

	mock.ExpectQuery(`SELECT (.+) FROM sync_runs ORDER BY started_at DESC LIMIT 1`).
		WillReturnRows(runRows())

	run, err := repo.Latest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, run)
	require.NoError(t, mock.ExpectationsWereMet())
}
