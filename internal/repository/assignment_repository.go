package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/smart-classroom-api/internal/dto"
	"github.com/noah-isme/smart-classroom-api/internal/models"
)

const assignmentDetailSelect = `SELECT a.id, a.class_id, a.title, a.description, a.due_at, a.max_score, a.created_by, a.created_at, a.updated_at,
c.name AS class_name,
(SELECT COUNT(*) FROM submissions s WHERE s.assignment_id = a.id) AS submission_count
FROM assignments a JOIN classes c ON c.id = a.class_id`

const submissionDetailSelect = `SELECT s.id, s.assignment_id, s.student_id, s.content, s.file_path, s.file_name, s.submitted_at, s.score, s.feedback, s.graded_at, s.graded_by, s.late,
u.full_name AS student_name, a.title AS assignment_title, a.max_score, a.class_id
FROM submissions s
JOIN users u ON u.id = s.student_id
JOIN assignments a ON a.id = s.assignment_id`

// AssignmentRepository manages assignments and submissions.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository creates a new instance of AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create inserts an assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	assignment.CreatedAt = now
	assignment.UpdatedAt = now
	const query = `INSERT INTO assignments (id, class_id, title, description, due_at, max_score, created_by, created_at, updated_at) VALUES (:id, :class_id, :title, :description, :due_at, :max_score, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// FindByID returns assignment detail by id.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	query := assignmentDetailSelect + ` WHERE a.id = $1`
	var assignment models.AssignmentDetail
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &assignment, nil
}

// List returns assignments ordered by due date.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		conditions = append(conditions, fmt.Sprintf("a.class_id = $%d", len(args)))
	}
	if filter.DueAfter != nil {
		args = append(args, *filter.DueAfter)
		conditions = append(conditions, fmt.Sprintf("a.due_at >= $%d", len(args)))
	}
	if filter.DueBefore != nil {
		args = append(args, *filter.DueBefore)
		conditions = append(conditions, fmt.Sprintf("a.due_at < $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	_, pageSize, offset := pageBounds(filter.Page, filter.PageSize)
	listQuery := assignmentDetailSelect + where + fmt.Sprintf(" ORDER BY a.due_at ASC LIMIT %d OFFSET %d", pageSize, offset)

	var assignments []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM assignments a`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}
	return assignments, total, nil
}

// Update modifies the editable fields of an assignment.
func (r *AssignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	assignment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assignments SET title = :title, description = :description, due_at = :due_at, max_score = :max_score, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	return nil
}

// Delete removes an assignment and, through cascade, its submissions.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

// ListFilePaths returns stored file keys for an assignment's submissions.
func (r *AssignmentRepository) ListFilePaths(ctx context.Context, assignmentID string) ([]string, error) {
	var paths []string
	const query = `SELECT file_path FROM submissions WHERE assignment_id = $1 AND file_path IS NOT NULL`
	if err := r.db.SelectContext(ctx, &paths, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list submission files: %w", err)
	}
	return paths, nil
}

// UpsertSubmission stores a submission, overwriting an earlier ungraded one
// from the same student. A graded submission yields ErrSubmissionGraded.
func (r *AssignmentRepository) UpsertSubmission(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	const query = `INSERT INTO submissions (id, assignment_id, student_id, content, file_path, file_name, submitted_at, late)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (assignment_id, student_id) DO UPDATE
SET content = EXCLUDED.content, file_path = EXCLUDED.file_path, file_name = EXCLUDED.file_name,
    submitted_at = EXCLUDED.submitted_at, late = EXCLUDED.late
WHERE submissions.graded_at IS NULL
RETURNING id`
	var id string
	err := r.db.QueryRowxContext(ctx, query,
		submission.ID, submission.AssignmentID, submission.StudentID, submission.Content,
		submission.FilePath, submission.FileName, submission.SubmittedAt, submission.Late,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSubmissionGraded
		}
		return fmt.Errorf("upsert submission: %w", err)
	}
	submission.ID = id
	return nil
}

// FindSubmission returns a submission detail by id.
func (r *AssignmentRepository) FindSubmission(ctx context.Context, id string) (*models.SubmissionDetail, error) {
	query := submissionDetailSelect + ` WHERE s.id = $1`
	var submission models.SubmissionDetail
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &submission, nil
}

// FindStudentSubmission returns a student's submission for an assignment.
func (r *AssignmentRepository) FindStudentSubmission(ctx context.Context, assignmentID, studentID string) (*models.SubmissionDetail, error) {
	query := submissionDetailSelect + ` WHERE s.assignment_id = $1 AND s.student_id = $2`
	var submission models.SubmissionDetail
	if err := r.db.GetContext(ctx, &submission, query, assignmentID, studentID); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find student submission: %w", err)
	}
	return &submission, nil
}

// Grade stores the score and feedback on a submission.
func (r *AssignmentRepository) Grade(ctx context.Context, id string, score float64, feedback *string, gradedBy string, gradedAt time.Time) error {
	const query = `UPDATE submissions SET score = $2, feedback = $3, graded_by = $4, graded_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, score, feedback, gradedBy, gradedAt); err != nil {
		return fmt.Errorf("grade submission: %w", err)
	}
	return nil
}

// ListSubmissions returns every submission for an assignment.
func (r *AssignmentRepository) ListSubmissions(ctx context.Context, assignmentID string) ([]models.SubmissionDetail, error) {
	query := submissionDetailSelect + ` WHERE s.assignment_id = $1 ORDER BY s.submitted_at ASC`
	var submissions []models.SubmissionDetail
	if err := r.db.SelectContext(ctx, &submissions, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// ListStudentSubmissions returns a student's most recent submissions.
func (r *AssignmentRepository) ListStudentSubmissions(ctx context.Context, studentID string, limit int) ([]models.SubmissionDetail, error) {
	if limit <= 0 {
		limit = 20
	}
	query := submissionDetailSelect + ` WHERE s.student_id = $1 ORDER BY s.submitted_at DESC LIMIT $2`
	var submissions []models.SubmissionDetail
	if err := r.db.SelectContext(ctx, &submissions, query, studentID, limit); err != nil {
		return nil, fmt.Errorf("list student submissions: %w", err)
	}
	return submissions, nil
}

// Upcoming returns assignments due in [from, to) across the student's classes.
func (r *AssignmentRepository) Upcoming(ctx context.Context, studentID string, from, to time.Time) ([]dto.UpcomingAssignment, error) {
	const query = `SELECT a.id AS assignment_id, a.class_id, c.name AS class_name, a.title, a.due_at,
EXISTS (SELECT 1 FROM submissions s WHERE s.assignment_id = a.id AND s.student_id = $1) AS submitted
FROM assignments a
JOIN classes c ON c.id = a.class_id
JOIN class_students cs ON cs.class_id = a.class_id AND cs.student_id = $1
WHERE a.due_at >= $2 AND a.due_at < $3
ORDER BY a.due_at ASC`
	var upcoming []dto.UpcomingAssignment
	if err := r.db.SelectContext(ctx, &upcoming, query, studentID, from, to); err != nil {
		return nil, fmt.Errorf("list upcoming assignments: %w", err)
	}
	return upcoming, nil
}
