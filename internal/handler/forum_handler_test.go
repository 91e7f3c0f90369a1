package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-classroom-api/internal/models"
	appErrors "github.com/noah-isme/smart-classroom-api/pkg/errors"
)

type fakeForumSrv struct {
	forumService
	filter      models.PostFilter
	created     models.CreatePostRequest
	commentPost string
	deleteErr   error
}

func (f *fakeForumSrv) ListPosts(_ context.Context, _ models.Actor, filter models.PostFilter) ([]models.PostDetail, *models.Pagination, error) {
	f.filter = filter
	return []models.PostDetail{}, models.NewPagination(filter.Page, filter.PageSize, 0), nil
}

func (f *fakeForumSrv) CreatePost(_ context.Context, actor models.Actor, req models.CreatePostRequest) (*models.PostDetail, error) {
	f.created = req
	return &models.PostDetail{Post: models.Post{ID: "post-1", AuthorID: actor.ID, ClassID: req.ClassID, Title: req.Title}}, nil
}

func (f *fakeForumSrv) AddComment(_ context.Context, actor models.Actor, postID string, req models.CreateCommentRequest) (*models.CommentDetail, error) {
	f.commentPost = postID
	return &models.CommentDetail{Comment: models.Comment{ID: "c-1", PostID: postID, AuthorID: actor.ID, Body: req.Body}}, nil
}

func (f *fakeForumSrv) DeletePost(context.Context, models.Actor, string) error {
	return f.deleteErr
}

func TestForumHandlerListCommunityByDefault(t *testing.T) {
	srv := &fakeForumSrv{}
	handler := NewForumHandler(srv)
	c, rec := newTestContext(http.MethodGet, "/forum/posts?search=exam", nil, studentClaims)

	handler.ListPosts(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, srv.filter.ClassID)
	assert.Equal(t, "exam", srv.filter.Search)
}

func TestForumHandlerCreateClassPost(t *testing.T) {
	srv := &fakeForumSrv{}
	handler := NewForumHandler(srv)
	body := `{"class_id":"7b0f1f3e-3f0a-4b8e-9d55-1b1f2a3c4d5e","title":"Lab","body":"<p>bring goggles</p>"}`
	c, rec := newTestContext(http.MethodPost, "/forum/posts", strings.NewReader(body), teacherClaims)

	handler.CreatePost(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, srv.created.ClassID)
	assert.Equal(t, "Lab", srv.created.Title)
	assert.Equal(t, "teacher-1", decodeEnvelope(t, rec).Data["author_id"])
}

func TestForumHandlerAddComment(t *testing.T) {
	srv := &fakeForumSrv{}
	handler := NewForumHandler(srv)
	c, rec := newTestContext(http.MethodPost, "/forum/posts/post-1/comments", strings.NewReader(`{"body":"thanks"}`), studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "post-1"}}

	handler.AddComment(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "post-1", srv.commentPost)
}

func TestForumHandlerDeletePostForbidden(t *testing.T) {
	handler := NewForumHandler(&fakeForumSrv{deleteErr: appErrors.Clone(appErrors.ErrForbidden, "only the author can delete this post")})
	c, rec := newTestContext(http.MethodDelete, "/forum/posts/post-1", nil, studentClaims)

	handler.DeletePost(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
