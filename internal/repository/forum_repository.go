package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/smart-classroom-api/internal/models"
)

const postDetailSelect = `SELECT p.id, p.class_id, p.author_id, p.title, p.body, p.created_at, p.updated_at,
u.full_name AS author_name,
(SELECT COUNT(*) FROM comments cm WHERE cm.post_id = p.id) AS comment_count
FROM posts p JOIN users u ON u.id = p.author_id`

// ForumRepository stores posts and comments.
type ForumRepository struct {
	db *sqlx.DB
}

// NewForumRepository creates a new instance of ForumRepository.
func NewForumRepository(db *sqlx.DB) *ForumRepository {
	return &ForumRepository{db: db}
}

// CreatePost inserts a post.
func (r *ForumRepository) CreatePost(ctx context.Context, post *models.Post) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now
	const query = `INSERT INTO posts (id, class_id, author_id, title, body, created_at, updated_at) VALUES (:id, :class_id, :author_id, :title, :body, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, post); err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// FindPost returns a post with author name and comment count.
func (r *ForumRepository) FindPost(ctx context.Context, id string) (*models.PostDetail, error) {
	query := postDetailSelect + ` WHERE p.id = $1`
	var post models.PostDetail
	if err := r.db.GetContext(ctx, &post, query, id); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find post: %w", err)
	}
	return &post, nil
}

// ListPosts returns posts newest first.
func (r *ForumRepository) ListPosts(ctx context.Context, filter models.PostFilter) ([]models.PostDetail, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	switch {
	case filter.ClassID != "":
		args = append(args, filter.ClassID)
		conditions = append(conditions, fmt.Sprintf("p.class_id = $%d", len(args)))
	case filter.CommunityOnly:
		conditions = append(conditions, "p.class_id IS NULL")
	}
	if filter.AuthorID != "" {
		args = append(args, filter.AuthorID)
		conditions = append(conditions, fmt.Sprintf("p.author_id = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		conditions = append(conditions, fmt.Sprintf("(p.title ILIKE $%d OR p.body ILIKE $%d)", len(args), len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	_, pageSize, offset := pageBounds(filter.Page, filter.PageSize)
	listQuery := postDetailSelect + where + fmt.Sprintf(" ORDER BY p.created_at DESC LIMIT %d OFFSET %d", pageSize, offset)

	var posts []models.PostDetail
	if err := r.db.SelectContext(ctx, &posts, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM posts p`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}
	return posts, total, nil
}

// UpdatePost stores a new title and body.
func (r *ForumRepository) UpdatePost(ctx context.Context, post *models.Post) error {
	post.UpdatedAt = time.Now().UTC()
	const query = `UPDATE posts SET title = :title, body = :body, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, post); err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return nil
}

// DeletePost removes a post and its comments.
func (r *ForumRepository) DeletePost(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// CreateComment inserts a comment.
func (r *ForumRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	comment.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO comments (id, post_id, author_id, body, created_at) VALUES (:id, :post_id, :author_id, :body, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// FindComment returns a comment by id.
func (r *ForumRepository) FindComment(ctx context.Context, id string) (*models.Comment, error) {
	const query = `SELECT id, post_id, author_id, body, created_at FROM comments WHERE id = $1`
	var comment models.Comment
	if err := r.db.GetContext(ctx, &comment, query, id); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find comment: %w", err)
	}
	return &comment, nil
}

// ListComments returns a post's comments oldest first.
func (r *ForumRepository) ListComments(ctx context.Context, postID string) ([]models.CommentDetail, error) {
	const query = `SELECT cm.id, cm.post_id, cm.author_id, cm.body, cm.created_at, u.full_name AS author_name
FROM comments cm JOIN users u ON u.id = cm.author_id
WHERE cm.post_id = $1 ORDER BY cm.created_at ASC`
	var comments []models.CommentDetail
	if err := r.db.SelectContext(ctx, &comments, query, postID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// DeleteComment removes a comment.
func (r *ForumRepository) DeleteComment(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}
