package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smart-classroom-api/internal/models"
	"github.com/noah-isme/smart-classroom-api/pkg/response"
)

type forumService interface {
	CreatePost(ctx context.Context, actor models.Actor, req models.CreatePostRequest) (*models.PostDetail, error)
	ListPosts(ctx context.Context, actor models.Actor, filter models.PostFilter) ([]models.PostDetail, *models.Pagination, error)
	GetPost(ctx context.Context, actor models.Actor, id string) (*models.PostThread, error)
	UpdatePost(ctx context.Context, actor models.Actor, id string, req models.UpdatePostRequest) (*models.PostDetail, error)
	DeletePost(ctx context.Context, actor models.Actor, id string) error
	AddComment(ctx context.Context, actor models.Actor, postID string, req models.CreateCommentRequest) (*models.CommentDetail, error)
	DeleteComment(ctx context.Context, actor models.Actor, commentID string) error
}

// ForumHandler serves class and community discussion threads.
type ForumHandler struct {
	service forumService
}

// NewForumHandler constructs the handler.
func NewForumHandler(svc forumService) *ForumHandler {
	return &ForumHandler{service: svc}
}

// CreatePost godoc
// @Summary Create post
// @Description Omit class_id for a community-wide post.
// @Tags Forum
// @Accept json
// @Produce json
// @Param payload body models.CreatePostRequest true "Post"
// @Success 201 {object} response.Envelope
// @Router /forum/posts [post]
func (h *ForumHandler) CreatePost(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req models.CreatePostRequest
	if !bindJSON(c, &req, "invalid post payload") {
		return
	}
	post, err := h.service.CreatePost(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, post)
}

// ListPosts godoc
// @Summary List posts
// @Tags Forum
// @Produce json
// @Param class_id query string false "Class ID, community posts when empty"
// @Param search query string false "Search keyword"
// @Success 200 {object} response.Envelope
// @Router /forum/posts [get]
func (h *ForumHandler) ListPosts(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	filter := models.PostFilter{
		ClassID:  strings.TrimSpace(c.Query("class_id")),
		AuthorID: c.Query("author_id"),
		Search:   strings.TrimSpace(c.Query("search")),
	}
	filter.Page, filter.PageSize = paging(c)

	posts, pagination, err := h.service.ListPosts(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, posts, pagination)
}

// GetPost godoc
// @Summary Get post with comments
// @Tags Forum
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} response.Envelope
// @Router /forum/posts/{id} [get]
func (h *ForumHandler) GetPost(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	thread, err := h.service.GetPost(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, thread)
}

// UpdatePost godoc
// @Summary Update post
// @Tags Forum
// @Accept json
// @Produce json
// @Param id path string true "Post ID"
// @Param payload body models.UpdatePostRequest true "Post"
// @Success 200 {object} response.Envelope
// @Router /forum/posts/{id} [put]
func (h *ForumHandler) UpdatePost(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req models.UpdatePostRequest
	if !bindJSON(c, &req, "invalid post payload") {
		return
	}
	post, err := h.service.UpdatePost(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, post)
}

// DeletePost godoc
// @Summary Delete post
// @Tags Forum
// @Param id path string true "Post ID"
// @Success 204 {object} response.Envelope
// @Router /forum/posts/{id} [delete]
func (h *ForumHandler) DeletePost(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.service.DeletePost(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddComment godoc
// @Summary Comment on a post
// @Tags Forum
// @Accept json
// @Produce json
// @Param id path string true "Post ID"
// @Param payload body models.CreateCommentRequest true "Comment"
// @Success 201 {object} response.Envelope
// @Router /forum/posts/{id}/comments [post]
func (h *ForumHandler) AddComment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req models.CreateCommentRequest
	if !bindJSON(c, &req, "invalid comment payload") {
		return
	}
	comment, err := h.service.AddComment(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// DeleteComment godoc
// @Summary Delete comment
// @Tags Forum
// @Param id path string true "Comment ID"
// @Success 204 {object} response.Envelope
// @Router /forum/comments/{id} [delete]
func (h *ForumHandler) DeleteComment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.service.DeleteComment(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
