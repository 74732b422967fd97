package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var timetableRowColumns = []string{"id", "class_id", "subject_id", "teacher_id", "day_of_week", "start_time", "end_time", "is_break", "period_name", "created_at"}

func strPtr(v string) *string { return &v }

func TestTimetableRepositoryListByClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	rows := sqlmock.NewRows(timetableRowColumns).
		AddRow("e1", "class-1", "math", "teacher-1", "Monday", "08:00", "08:45", false, nil, time.Now()).
		AddRow("e2", "class-1", nil, nil, "Monday", "08:45", "09:30", true, "Breakfast Break", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_entries WHERE class_id = $1")).
		WithArgs("class-1").
		WillReturnRows(rows)

	entries, err := repo.ListByClass(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "math", *entries[0].SubjectID)
	assert.Nil(t, entries[1].SubjectID)
	assert.Nil(t, entries[1].TeacherID)
	assert.Equal(t, "Breakfast Break", *entries[1].PeriodName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryListByTeachersExcludesClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	rows := sqlmock.NewRows(timetableRowColumns).
		AddRow("e9", "class-2", "math", "teacher-1", "Monday", "08:00", "08:45", false, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE teacher_id = ANY($1) AND class_id <> $2 AND is_break = FALSE")).
		WithArgs(sqlmock.AnyArg(), "class-1").
		WillReturnRows(rows)

	entries, err := repo.ListByTeachers(context.Background(), []string{"teacher-1"}, "class-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "class-2", entries[0].ClassID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryListByTeachersEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	entries, err := repo.ListByTeachers(context.Background(), nil, "class-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryDeleteByClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_entries WHERE class_id = $1")).
		WithArgs("class-1").
		WillReturnResult(sqlmock.NewResult(0, 25))

	removed, err := repo.DeleteByClass(context.Background(), "class-1")
	require.NoError(t, err)
	assert.EqualValues(t, 25, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryBulkInsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	entries := []models.TimetableEntry{
		{ClassID: "class-1", SubjectID: strPtr("math"), TeacherID: strPtr("teacher-1"), DayOfWeek: "Monday", StartTime: "08:00", EndTime: "08:45"},
		{ClassID: "class-1", DayOfWeek: "Monday", StartTime: "08:45", EndTime: "09:30", IsBreak: true, PeriodName: strPtr("Breakfast Break")},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO timetable_entries").
		WithArgs(sqlmock.AnyArg(), "class-1", "math", "teacher-1", "Monday", "08:00", "08:45", false, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO timetable_entries").
		WithArgs(sqlmock.AnyArg(), "class-1", nil, nil, "Monday", "08:45", "09:30", true, "Breakfast Break", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.BulkInsert(context.Background(), entries))
	for _, entry := range entries {
		assert.NotEmpty(t, entry.ID)
		assert.False(t, entry.CreatedAt.IsZero())
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryBulkInsertRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO timetable_entries").WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := repo.BulkInsert(context.Background(), []models.TimetableEntry{{ClassID: "class-1", DayOfWeek: "Monday", StartTime: "08:00", EndTime: "08:45"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert timetable entry")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryBulkInsertEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	require.NoError(t, NewTimetableRepository(db).BulkInsert(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
