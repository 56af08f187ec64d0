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

func TestErrorRepositoryCreate(t *testing.T) {
	store, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewErrorRepository(store)

	mock.ExpectExec(`INSERT INTO sync_errors`).
		WithArgs(sqlmock.AnyArg(), "SECTION", []byte(`{"section_id":"sec-1"}`), "provider timeout", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.ErrorRecord{
		Kind:    models.ErrorKindSection,
		Params:  []byte(`{"section_id":"sec-1"}`),
		Message: "provider timeout",
	}
	require.NoError(t, repo.Create(context.Background(), record))
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorRepositoryListOldestFirst(t *testing.T) {
	store, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewErrorRepository(store)

	rows := sqlmock.NewRows([]string{"id", "kind", "params", "message", "created_at"}).
		AddRow("err-1", "COURSE", []byte(`{}`), "older", time.Now().Add(-time.Hour)).
		AddRow("err-2", "COURSE", []byte(`{}`), "newer", time.Now())
	mock.ExpectQuery(`SELECT (.+) FROM sync_errors WHERE kind = \$1 ORDER BY created_at`).
		WithArgs(models.ErrorKindCourse).
		WillReturnRows(rows)

	records, err := repo.List(context.Background(), models.ErrorFilter{Kind: models.ErrorKindCourse})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "err-1", records[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorRepositoryCount(t *testing.T) {
	store, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewErrorRepository(store)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM sync_errors`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	total, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorRepositoryDelete(t *testing.T) {
	store, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewErrorRepository(store)

	mock.ExpectExec(`DELETE FROM sync_errors WHERE id = \$1`).
		WithArgs("err-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "err-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
