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

var classDetailColumns = []string{"id", "name", "description", "subject", "teacher_id", "join_code", "created_at", "updated_at", "teacher_name", "student_count"}

func TestClassFindByJoinCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	now := time.Now()
	mock.ExpectQuery("WHERE c.join_code = \\$1").
		WithArgs("AB12CD").
		WillReturnRows(sqlmock.NewRows(classDetailColumns).AddRow("c1", "Biology", "", "Science", "t1", "AB12CD", now, now, "Ms. Rahma", 12))

	class, err := repo.FindByJoinCode(context.Background(), "ab12cd")
	require.NoError(t, err)
	assert.Equal(t, "Ms. Rahma", class.TeacherName)
	assert.Equal(t, 12, class.StudentCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassFindByIDMalformedID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery("WHERE c.id = \\$1").
		WithArgs("abc").
		WillReturnError(&pq.Error{Code: "22P02", Message: "invalid input syntax for type uuid"})

	_, err := repo.FindByID(context.Background(), "abc")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassListForStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND EXISTS (SELECT 1 FROM class_students cs WHERE cs.class_id = c.id AND cs.student_id = $1) ORDER BY c.name ASC LIMIT 20 OFFSET 0")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(classDetailColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM classes c WHERE 1=1 AND EXISTS")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.ClassFilter{StudentID: "s1", SortBy: "name", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassCreateJoinCodeCollision(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec("INSERT INTO classes").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Class{Name: "Math", TeacherID: "t1", JoinCode: "AAAAAA"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestClassAddStudentsSkipsExisting(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO class_students").WithArgs("c1", "s1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO class_students").WithArgs("c1", "s2", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	added, err := repo.AddStudents(context.Background(), "c1", []string{"s1", "s2"})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassIsEnrolled(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery("SELECT EXISTS").WithArgs("c1", "s1").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.IsEnrolled(context.Background(), "c1", "s1")
	require.NoError(t, err)
	assert.True(t, ok)
}
