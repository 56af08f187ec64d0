package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsuits/ues-sync/internal/models"
	appErrors "github.com/lsuits/ues-sync/pkg/errors"
)

func newStoreMock(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewStore(sqlxDB), mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestStoreFindScopesRoleKinds(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "status"}).
		AddRow("row-1", "PROCESSED")
	mock.ExpectQuery(`SELECT id, status FROM enrollments WHERE section_id = \$1 AND role = \$2 ORDER BY created_at`).
		WithArgs("sec-1", models.RoleTeacher).
		WillReturnRows(rows)

	var dest []models.Enrollment
	f := NewFilter().Equal("section_id", "sec-1")
	err := store.Find(context.Background(), &dest, models.KindTeacher, "id, status", f, "created_at", 0, 0)
	require.NoError(t, err)
	require.Len(t, dest, 1)
	assert.Equal(t, models.EnrollmentStatusProcessed, dest[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreFindPaging(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT id FROM sections ORDER BY sec_number LIMIT 10 OFFSET 20`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	var dest []models.Section
	err := store.Find(context.Background(), &dest, models.KindSection, "id", nil, "sec_number", 20, 10)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreFindUnknownKind(t *testing.T) {
	store, _, cleanup := newStoreMock(t)
	defer cleanup()

	var dest []models.Section
	err := store.Find(context.Background(), &dest, models.EntityKind("widget"), "id", nil, "", 0, 0)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrStore))
}

func TestStoreCount(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM enrollments WHERE section_id = \$1 AND status IN \(\$2, \$3\) AND role = \$4`).
		WithArgs("sec-1", "PROCESSED", "ENROLLED", models.RoleStudent).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	f := NewFilter().Equal("section_id", "sec-1").In("status", "PROCESSED", "ENROLLED")
	total, err := store.Count(context.Background(), models.KindStudent, f)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreDeleteRejectsJoins(t *testing.T) {
	store, _, cleanup := newStoreMock(t)
	defer cleanup()

	f := NewFilter().Join("courses", "c", "c.id = sections.course_id")
	_, err := store.Delete(context.Background(), models.KindSection, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "joins")
}

func TestStoreDelete(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectExec(`DELETE FROM sync_errors WHERE id = \$1`).
		WithArgs("err-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := store.Delete(context.Background(), models.KindError, NewFilter().Equal("id", "err-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreLoadMeta(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"name", "value"}).
		AddRow("credit_hours", "3").
		AddRow("delivery", "online")
	mock.ExpectQuery(`SELECT name, value FROM section_meta WHERE parent_id = \$1`).
		WithArgs("sec-1").
		WillReturnRows(rows)

	meta, err := store.LoadMeta(context.Background(), models.KindSection, "sec-1")
	require.NoError(t, err)
	assert.Equal(t, models.Metadata{"credit_hours": "3", "delivery": "online"}, meta)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSaveMetaSkipsWhenUnchanged(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT name, value FROM course_meta WHERE parent_id = \$1`).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).AddRow("credit_hours", "3"))

	err := store.SaveMeta(context.Background(), models.KindCourse, "course-1", models.Metadata{"credit_hours": "3"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSaveMetaReplaces(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT name, value FROM course_meta WHERE parent_id = \$1`).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}))
	mock.ExpectExec(`DELETE FROM course_meta WHERE parent_id = \$1`).
		WithArgs("course-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO course_meta \(parent_id, name, value\) VALUES \(\$1, \$2, \$3\)`).
		WithArgs("course-1", "credit_hours", "4").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.SaveMeta(context.Background(), models.KindCourse, "course-1", models.Metadata{"credit_hours": "4"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSaveMetaNoMetaTable(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	// Error records carry no metadata; the call is a no-op.
	err := store.SaveMeta(context.Background(), models.KindError, "err-1", models.Metadata{"k": "v"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
