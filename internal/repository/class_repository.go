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

const classDetailSelect = `SELECT c.id, c.name, c.description, c.subject, c.teacher_id, c.join_code, c.created_at, c.updated_at,
u.full_name AS teacher_name,
(SELECT COUNT(*) FROM class_students cs WHERE cs.class_id = c.id) AS student_count
FROM classes c JOIN users u ON u.id = c.teacher_id`

// ClassRepository manages classes and their rosters.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates a new instance of ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// Create inserts a class. A join code collision yields ErrDuplicate.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now
	const query = `INSERT INTO classes (id, name, description, subject, teacher_id, join_code, created_at, updated_at) VALUES (:id, :name, :description, :subject, :teacher_id, :join_code, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// FindByID returns class detail by id.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	query := classDetailSelect + ` WHERE c.id = $1`
	var class models.ClassDetail
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find class by id: %w", err)
	}
	return &class, nil
}

// FindByJoinCode returns the class using code.
func (r *ClassRepository) FindByJoinCode(ctx context.Context, code string) (*models.ClassDetail, error) {
	query := classDetailSelect + ` WHERE c.join_code = $1`
	var class models.ClassDetail
	if err := r.db.GetContext(ctx, &class, query, strings.ToUpper(code)); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find class by join code: %w", err)
	}
	return &class, nil
}

// List returns classes visible under filter with the total count.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM class_students cs WHERE cs.class_id = c.id AND cs.student_id = $%d)", len(args)))
	}
	if filter.ParentID != "" {
		args = append(args, filter.ParentID)
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM class_students cs JOIN parent_links pl ON pl.student_id = cs.student_id WHERE cs.class_id = c.id AND pl.parent_id = $%d)", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(c.name) LIKE $%d OR LOWER(c.subject) LIKE $%d)", len(args), len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"name":       "c.name",
		"subject":    "c.subject",
		"created_at": "c.created_at",
	}
	sortBy, ok := allowedSorts[filter.SortBy]
	if !ok {
		sortBy = "c.created_at"
	}
	_, pageSize, offset := pageBounds(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf("%s%s ORDER BY %s %s LIMIT %d OFFSET %d", classDetailSelect, where, sortBy, sortOrder(filter.SortOrder), pageSize, offset)
	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM classes c"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// Update saves name, description and subject.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, description = :description, subject = :subject, teacher_id = :teacher_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// UpdateJoinCode replaces the join code. A collision yields ErrDuplicate.
func (r *ClassRepository) UpdateJoinCode(ctx context.Context, id, code string) error {
	const query = `UPDATE classes SET join_code = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, code, time.Now().UTC()); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update join code: %w", err)
	}
	return nil
}

// Delete removes a class. Dependent rows cascade in the schema.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}

// AddStudents enrolls students, skipping those already enrolled, and returns
// how many rows were inserted.
func (r *ClassRepository) AddStudents(ctx context.Context, classID string, studentIDs []string) (int, error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin add students: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO class_students (class_id, student_id, joined_at) VALUES ($1, $2, $3) ON CONFLICT (class_id, student_id) DO NOTHING`
	now := time.Now().UTC()
	added := 0
	for _, studentID := range studentIDs {
		res, err := tx.ExecContext(ctx, query, classID, studentID, now)
		if err != nil {
			return 0, fmt.Errorf("add student %s: %w", studentID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("add student %s: %w", studentID, err)
		}
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit add students: %w", err)
	}
	committed = true
	return added, nil
}

// RemoveStudent drops a student from the roster. It reports false when the
// student was not enrolled.
func (r *ClassRepository) RemoveStudent(ctx context.Context, classID, studentID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM class_students WHERE class_id = $1 AND student_id = $2`, classID, studentID)
	if err != nil {
		return false, fmt.Errorf("remove student: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove student: %w", err)
	}
	return n > 0, nil
}

// ListStudents returns the roster ordered by name.
func (r *ClassRepository) ListStudents(ctx context.Context, classID string) ([]models.ClassMember, error) {
	const query = `SELECT u.id, u.email, u.full_name, u.role, cs.joined_at
FROM class_students cs JOIN users u ON u.id = cs.student_id
WHERE cs.class_id = $1 ORDER BY u.full_name ASC`
	var members []models.ClassMember
	if err := r.db.SelectContext(ctx, &members, query, classID); err != nil {
		return nil, fmt.Errorf("list class students: %w", err)
	}
	return members, nil
}

// IsEnrolled reports whether studentID is on the roster of classID.
func (r *ClassRepository) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM class_students WHERE class_id = $1 AND student_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, classID, studentID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

// HasLinkedChild reports whether parentID has a child enrolled in classID.
func (r *ClassRepository) HasLinkedChild(ctx context.Context, classID, parentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM class_students cs JOIN parent_links pl ON pl.student_id = cs.student_id WHERE cs.class_id = $1 AND pl.parent_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, classID, parentID); err != nil {
		return false, fmt.Errorf("check parent class link: %w", err)
	}
	return exists, nil
}

// TeachesStudent reports whether teacherID owns any class studentID is enrolled in.
func (r *ClassRepository) TeachesStudent(ctx context.Context, teacherID, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM classes c JOIN class_students cs ON cs.class_id = c.id WHERE c.teacher_id = $1 AND cs.student_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, teacherID, studentID); err != nil {
		return false, fmt.Errorf("check teacher student link: %w", err)
	}
	return exists, nil
}
