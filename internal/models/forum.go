package models

import "time"

// Post is a forum thread. A nil ClassID marks a community-wide post.
type Post struct {
	ID        string    `db:"id" json:"id"`
	ClassID   *string   `db:"class_id" json:"class_id,omitempty"`
	AuthorID  string    `db:"author_id" json:"author_id"`
	Title     string    `db:"title" json:"title"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PostDetail adds the author name and comment count used by listings.
type PostDetail struct {
	Post
	AuthorName   string `db:"author_name" json:"author_name"`
	CommentCount int    `db:"comment_count" json:"comment_count"`
}

// PostThread is a post with all of its comments.
type PostThread struct {
	PostDetail
	Comments []CommentDetail `json:"comments"`
}

// PostFilter narrows post listings. CommunityOnly selects posts without a class.
type PostFilter struct {
	ClassID       string
	CommunityOnly bool
	AuthorID      string
	Search        string
	Page          int
	PageSize      int
}

// Comment is a reply to a post.
type Comment struct {
	ID        string    `db:"id" json:"id"`
	PostID    string    `db:"post_id" json:"post_id"`
	AuthorID  string    `db:"author_id" json:"author_id"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CommentDetail adds the author name.
type CommentDetail struct {
	Comment
	AuthorName string `db:"author_name" json:"author_name"`
}

// CreatePostRequest starts a thread. Without ClassID the post is community-wide.
type CreatePostRequest struct {
	ClassID *string `json:"class_id" validate:"omitempty,uuid"`
	Title   string  `json:"title" validate:"required,max=200"`
	Body    string  `json:"body" validate:"required,max=20000"`
}

// UpdatePostRequest edits a thread.
type UpdatePostRequest struct {
	Title string `json:"title" validate:"required,max=200"`
	Body  string `json:"body" validate:"required,max=20000"`
}

// CreateCommentRequest replies to a thread.
type CreateCommentRequest struct {
	Body string `json:"body" validate:"required,max=5000"`
}
