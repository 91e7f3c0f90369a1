package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParentLinkDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewParentRepository(db)

	mock.ExpectExec("INSERT INTO parent_links").WillReturnError(&pq.Error{Code: "23505"})
	assert.ErrorIs(t, repo.Link(context.Background(), "p1", "s1"), ErrDuplicate)
}

func TestParentIsLinked(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewParentRepository(db)

	mock.ExpectQuery("SELECT EXISTS").WithArgs("p1", "s1").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	linked, err := repo.IsLinked(context.Background(), "p1", "s1")
	require.NoError(t, err)
	assert.True(t, linked)
}

func TestParentUnlinkMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewParentRepository(db)

	mock.ExpectExec("DELETE FROM parent_links").WillReturnResult(sqlmock.NewResult(0, 0))
	removed, err := repo.Unlink(context.Background(), "p1", "s1")
	require.NoError(t, err)
	assert.False(t, removed)
}
