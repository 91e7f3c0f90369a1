package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-classroom-api/internal/models"
)

func TestListCommunityPostsWithSearch(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewForumRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND p.class_id IS NULL AND (p.title ILIKE $1 OR p.body ILIKE $1) ORDER BY p.created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("%exam%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "class_id", "author_id", "title", "body", "created_at", "updated_at", "author_name", "comment_count"}).
			AddRow("p1", nil, "u1", "Exam tips", "<p>study</p>", now, now, "Ana", 2))
	mock.ExpectQuery("SELECT COUNT").WithArgs("%exam%").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	posts, total, err := repo.ListPosts(context.Background(), models.PostFilter{CommunityOnly: true, Search: " exam "})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Nil(t, posts[0].ClassID)
	assert.Equal(t, 2, posts[0].CommentCount)
	assert.Equal(t, 1, total)
}

func TestCreateCommentAssignsID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewForumRepository(db)

	mock.ExpectExec("INSERT INTO comments").WillReturnResult(sqlmock.NewResult(0, 1))

	comment := &models.Comment{PostID: "p1", AuthorID: "u1", Body: "nice"}
	require.NoError(t, repo.CreateComment(context.Background(), comment))
	assert.NotEmpty(t, comment.ID)
	assert.False(t, comment.CreatedAt.IsZero())
}
