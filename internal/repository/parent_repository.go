package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/smart-classroom-api/internal/models"
)

// ParentRepository manages parent to student links.
type ParentRepository struct {
	db *sqlx.DB
}

// NewParentRepository creates a new instance of ParentRepository.
func NewParentRepository(db *sqlx.DB) *ParentRepository {
	return &ParentRepository{db: db}
}

// Link connects a parent to a student. An existing link yields ErrDuplicate.
func (r *ParentRepository) Link(ctx context.Context, parentID, studentID string) error {
	const query = `INSERT INTO parent_links (parent_id, student_id, created_at) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, parentID, studentID, time.Now().UTC()); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("link child: %w", err)
	}
	return nil
}

// Unlink removes a link and reports whether one existed.
func (r *ParentRepository) Unlink(ctx context.Context, parentID, studentID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM parent_links WHERE parent_id = $1 AND student_id = $2`, parentID, studentID)
	if err != nil {
		return false, fmt.Errorf("unlink child: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unlink child rows affected: %w", err)
	}
	return affected > 0, nil
}

// IsLinked reports whether the parent is linked to the student.
func (r *ParentRepository) IsLinked(ctx context.Context, parentID, studentID string) (bool, error) {
	var linked bool
	const query = `SELECT EXISTS (SELECT 1 FROM parent_links WHERE parent_id = $1 AND student_id = $2)`
	if err := r.db.GetContext(ctx, &linked, query, parentID, studentID); err != nil {
		return false, fmt.Errorf("check parent link: %w", err)
	}
	return linked, nil
}

// ListChildren returns the students linked to a parent.
func (r *ParentRepository) ListChildren(ctx context.Context, parentID string) ([]models.UserSummary, error) {
	const query = `SELECT u.id, u.email, u.full_name, u.role
FROM parent_links pl JOIN users u ON u.id = pl.student_id
WHERE pl.parent_id = $1 ORDER BY u.full_name`
	var children []models.UserSummary
	if err := r.db.SelectContext(ctx, &children, query, parentID); err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return children, nil
}
