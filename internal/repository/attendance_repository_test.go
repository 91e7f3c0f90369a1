package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-classroom-api/internal/models"
)

func TestCreateCheckInDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec("INSERT INTO attendance").WillReturnError(&pq.Error{Code: "23505"})

	session := "sess-1"
	err := repo.CreateCheckIn(context.Background(), &models.Attendance{ClassID: "c1", StudentID: "s1", SessionID: &session, Status: models.AttendancePresent, MarkedBy: "s1"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUpsertManualInsertsWhenNoMarkForDay(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	day := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE attendance SET status").
		WithArgs("c1", "s1", day, "LATE", nil, "t1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO attendance").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec := &models.Attendance{ClassID: "c1", StudentID: "s1", Status: models.AttendanceLate, MarkedAt: day, MarkedBy: "t1"}
	require.NoError(t, repo.UpsertManual(context.Background(), rec))
	assert.NotEmpty(t, rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertManualUpdatesExisting(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE attendance SET status").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("existing"))
	mock.ExpectCommit()

	rec := &models.Attendance{ClassID: "c1", StudentID: "s1", Status: models.AttendanceExcused, MarkedAt: time.Now(), MarkedBy: "t1"}
	require.NoError(t, repo.UpsertManual(context.Background(), rec))
	assert.Equal(t, "existing", rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceSummary(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance a WHERE 1=1 AND a.student_id = $1")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"present", "late", "absent", "excused", "total"}).AddRow(3, 1, 0, 0, 4))

	summary, err := repo.Summary(context.Background(), models.AttendanceFilter{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, float64(100), summary.Rate)
}

func TestAttendanceListWithoutPaging(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	from := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND a.class_id = $1 AND a.marked_at >= $2 ORDER BY a.marked_at DESC")).
		WithArgs("c1", from).
		WillReturnRows(sqlmock.NewRows([]string{"id", "class_id", "student_id", "session_id", "status", "marked_at", "marked_by", "notes", "student_name", "class_name"}).
			AddRow("a1", "c1", "s1", nil, "PRESENT", from, "t1", nil, "Ana", "Biology"))
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	records, total, err := repo.List(context.Background(), models.AttendanceFilter{ClassID: "c1", From: &from, Unpaged: true})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Ana", records[0].StudentName)
	assert.Equal(t, 1, total)
}
