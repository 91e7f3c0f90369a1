package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-classroom-api/internal/models"
	appErrors "github.com/noah-isme/smart-classroom-api/pkg/errors"
	"github.com/noah-isme/smart-classroom-api/pkg/realtime"
	"github.com/noah-isme/smart-classroom-api/pkg/sanitize"
)

const (
	EventPostCreated    = "post.created"
	EventCommentCreated = "comment.created"
)

type forumRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	FindPost(ctx context.Context, id string) (*models.PostDetail, error)
	ListPosts(ctx context.Context, filter models.PostFilter) ([]models.PostDetail, int, error)
	UpdatePost(ctx context.Context, post *models.Post) error
	DeletePost(ctx context.Context, id string) error
	CreateComment(ctx context.Context, comment *models.Comment) error
	FindComment(ctx context.Context, id string) (*models.Comment, error)
	ListComments(ctx context.Context, postID string) ([]models.CommentDetail, error)
	DeleteComment(ctx context.Context, id string) error
}

// ForumService manages class and community discussion threads.
type ForumService struct {
	repo      forumRepository
	classes   classAccess
	publisher realtime.Publisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewForumService constructs a ForumService. publisher may be nil.
func NewForumService(repo forumRepository, classes classAccess, publisher realtime.Publisher, validate *validator.Validate, logger *zap.Logger) *ForumService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ForumService{repo: repo, classes: classes, publisher: publisher, validator: validate, logger: logger}
}

// CreatePost starts a thread after sanitising its content.
func (s *ForumService) CreatePost(ctx context.Context, actor models.Actor, req models.CreatePostRequest) (*models.PostDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid post payload")
	}
	if req.ClassID != nil {
		if err := s.checkParticipant(ctx, actor, *req.ClassID); err != nil {
			return nil, err
		}
	}

	title, body, err := cleanPost(req.Title, req.Body)
	if err != nil {
		return nil, err
	}
	post := &models.Post{ClassID: req.ClassID, AuthorID: actor.ID, Title: title, Body: body}
	if err := s.repo.CreatePost(ctx, post); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create post")
	}

	detail, err := s.loadPost(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	s.publish(detail.ClassID, EventPostCreated, detail)
	return detail, nil
}

// ListPosts lists threads of a class, or community threads when classID is empty.
func (s *ForumService) ListPosts(ctx context.Context, actor models.Actor, filter models.PostFilter) ([]models.PostDetail, *models.Pagination, error) {
	if filter.ClassID != "" {
		if _, err := s.classes.Authorize(ctx, actor, filter.ClassID, false); err != nil {
			return nil, nil, err
		}
		filter.CommunityOnly = false
	} else {
		filter.CommunityOnly = true
	}

	posts, total, err := s.repo.ListPosts(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list posts")
	}
	if posts == nil {
		posts = []models.PostDetail{}
	}
	return posts, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// GetPost returns a thread with its comments.
func (s *ForumService) GetPost(ctx context.Context, actor models.Actor, id string) (*models.PostThread, error) {
	post, err := s.viewablePost(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	comments, err := s.repo.ListComments(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	if comments == nil {
		comments = []models.CommentDetail{}
	}
	return &models.PostThread{PostDetail: *post, Comments: comments}, nil
}

// UpdatePost edits a thread. Only its author or an admin may do so.
func (s *ForumService) UpdatePost(ctx context.Context, actor models.Actor, id string, req models.UpdatePostRequest) (*models.PostDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid post payload")
	}
	post, err := s.loadPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actor.ID && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author can edit this post")
	}

	title, body, err := cleanPost(req.Title, req.Body)
	if err != nil {
		return nil, err
	}
	updated := post.Post
	updated.Title = title
	updated.Body = body
	if err := s.repo.UpdatePost(ctx, &updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update post")
	}
	return s.loadPost(ctx, id)
}

// DeletePost removes a thread and its comments.
func (s *ForumService) DeletePost(ctx context.Context, actor models.Actor, id string) error {
	post, err := s.loadPost(ctx, id)
	if err != nil {
		return err
	}
	if post.AuthorID != actor.ID && !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only the author can delete this post")
	}
	if err := s.repo.DeletePost(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete post")
	}
	return nil
}

// AddComment replies to a thread the actor can participate in.
func (s *ForumService) AddComment(ctx context.Context, actor models.Actor, postID string, req models.CreateCommentRequest) (*models.CommentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.ClassID != nil {
		if err := s.checkParticipant(ctx, actor, *post.ClassID); err != nil {
			return nil, err
		}
	}

	body := sanitize.HTML(req.Body)
	if sanitize.IsBlank(body) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comment body is empty")
	}
	comment := &models.Comment{PostID: postID, AuthorID: actor.ID, Body: body}
	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create comment")
	}

	detail := &models.CommentDetail{Comment: *comment, AuthorName: actor.Name}
	s.publish(post.ClassID, EventCommentCreated, detail)
	return detail, nil
}

// DeleteComment removes a reply. The comment author, post author and admins may do so.
func (s *ForumService) DeleteComment(ctx context.Context, actor models.Actor, commentID string) error {
	comment, err := s.repo.FindComment(ctx, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "comment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comment")
	}
	if comment.AuthorID != actor.ID && !actor.IsAdmin() {
		post, err := s.loadPost(ctx, comment.PostID)
		if err != nil {
			return err
		}
		if post.AuthorID != actor.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "cannot delete this comment")
		}
	}
	if err := s.repo.DeleteComment(ctx, commentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete comment")
	}
	return nil
}

// checkParticipant admits admins, the class teacher and enrolled students.
func (s *ForumService) checkParticipant(ctx context.Context, actor models.Actor, classID string) error {
	if _, err := s.classes.Authorize(ctx, actor, classID, false); err != nil {
		return err
	}
	if actor.Role == models.RoleParent {
		return appErrors.Clone(appErrors.ErrForbidden, "parents cannot post in class forums")
	}
	return nil
}

func (s *ForumService) viewablePost(ctx context.Context, actor models.Actor, id string) (*models.PostDetail, error) {
	post, err := s.loadPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.ClassID != nil {
		if _, err := s.classes.Authorize(ctx, actor, *post.ClassID, false); err != nil {
			return nil, err
		}
	}
	return post, nil
}

func (s *ForumService) loadPost(ctx context.Context, id string) (*models.PostDetail, error) {
	post, err := s.repo.FindPost(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "post not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load post")
	}
	return post, nil
}

func (s *ForumService) publish(classID *string, eventType string, data interface{}) {
	if s.publisher == nil {
		return
	}
	room := realtime.CommunityRoom
	if classID != nil {
		room = realtime.ClassRoom(*classID)
	}
	s.publisher.Publish(room, realtime.Event{Type: eventType, Data: data})
}

func cleanPost(title, body string) (string, string, error) {
	title = sanitize.Text(title)
	body = sanitize.HTML(body)
	if title == "" {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "post title is empty")
	}
	if sanitize.IsBlank(body) {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "post body is empty")
	}
	return title, body, nil
}
