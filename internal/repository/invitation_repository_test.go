package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-classroom-api/internal/models"
)

var invitationRowColumns = []string{"id", "code", "role", "email", "expires_at", "used_by", "used_at", "revoked", "created_by", "created_at"}

func TestInvitationFindByCodeUppercases(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInvitationRepository(db)

	now := time.Now()
	mock.ExpectQuery("FROM invitation_codes WHERE code = \\$1").
		WithArgs("ABCDEFGH23").
		WillReturnRows(sqlmock.NewRows(invitationRowColumns).
			AddRow("i1", "ABCDEFGH23", "TEACHER", nil, now.Add(time.Hour), nil, nil, false, "admin", now))

	inv, err := repo.FindByCode(context.Background(), "abcdefgh23")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, inv.Role)
	assert.Nil(t, inv.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationCreateCollision(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInvitationRepository(db)

	mock.ExpectExec("INSERT INTO invitation_codes").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.InvitationCode{Code: "X", Role: models.RoleTeacher})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestInvitationListActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInvitationRepository(db)
	fixed := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, code, role, email, expires_at, used_by, used_at, revoked, created_by, created_at FROM invitation_codes WHERE 1=1 AND revoked = FALSE AND used_at IS NULL AND expires_at > $1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs(fixed).
		WillReturnRows(sqlmock.NewRows(invitationRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM invitation_codes WHERE 1=1 AND revoked = FALSE")).
		WithArgs(fixed).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	items, total, err := repo.List(context.Background(), models.InvitationFilter{Status: models.InvitationActive})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationRevokeUsed(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInvitationRepository(db)

	mock.ExpectExec("UPDATE invitation_codes SET revoked = TRUE").WithArgs("i1").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Revoke(context.Background(), "i1")
	require.NoError(t, err)
	assert.False(t, ok)
}
