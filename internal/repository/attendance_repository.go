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

	"github.com/noah-isme/smart-classroom-api/internal/models"
)

const attendanceColumns = `a.id, a.class_id, a.student_id, a.session_id, a.status, a.marked_at, a.marked_by, a.notes`

// AttendanceRepository stores QR sessions and attendance marks.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new instance of AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// CreateSession records a QR issuance.
func (r *AttendanceRepository) CreateSession(ctx context.Context, session *models.AttendanceSession) error {
	const query = `INSERT INTO attendance_sessions (id, class_id, issued_by, issued_at, expires_at) VALUES (:id, :class_id, :issued_by, :issued_at, :expires_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create attendance session: %w", err)
	}
	return nil
}

// FindSession returns a QR session by id.
func (r *AttendanceRepository) FindSession(ctx context.Context, id string) (*models.AttendanceSession, error) {
	const query = `SELECT id, class_id, issued_by, issued_at, expires_at FROM attendance_sessions WHERE id = $1`
	var session models.AttendanceSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find attendance session: %w", err)
	}
	return &session, nil
}

// CreateCheckIn inserts a QR check-in. A second check-in for the same
// student and session yields ErrDuplicate.
func (r *AttendanceRepository) CreateCheckIn(ctx context.Context, record *models.Attendance) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.MarkedAt.IsZero() {
		record.MarkedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance (id, class_id, student_id, session_id, status, marked_at, marked_by, notes) VALUES (:id, :class_id, :student_id, :session_id, :status, :marked_at, :marked_by, :notes)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create check-in: %w", err)
	}
	return nil
}

// FindBySession returns a student's attendance row for a QR session.
func (r *AttendanceRepository) FindBySession(ctx context.Context, studentID, sessionID string) (*models.Attendance, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance a WHERE a.student_id = $1 AND a.session_id = $2`
	var record models.Attendance
	if err := r.db.GetContext(ctx, &record, query, studentID, sessionID); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find attendance by session: %w", err)
	}
	return &record, nil
}

// UpsertManual records a teacher's mark for a student on the calendar day of
// record.MarkedAt, replacing any manual mark already present for that day.
func (r *AttendanceRepository) UpsertManual(ctx context.Context, record *models.Attendance) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin manual attendance: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const update = `UPDATE attendance SET status = $4, notes = $5, marked_by = $6, marked_at = $3
WHERE class_id = $1 AND student_id = $2 AND session_id IS NULL AND marked_at::date = $3::date
RETURNING id`
	var existingID string
	err = tx.QueryRowxContext(ctx, update, record.ClassID, record.StudentID, record.MarkedAt, record.Status, record.Notes, record.MarkedBy).Scan(&existingID)
	switch {
	case err == nil:
		record.ID = existingID
	case errors.Is(err, sql.ErrNoRows):
		const insert = `INSERT INTO attendance (id, class_id, student_id, session_id, status, marked_at, marked_by, notes) VALUES ($1, $2, $3, NULL, $4, $5, $6, $7)`
		if _, err := tx.ExecContext(ctx, insert, record.ID, record.ClassID, record.StudentID, record.Status, record.MarkedAt, record.MarkedBy, record.Notes); err != nil {
			return fmt.Errorf("insert manual attendance: %w", err)
		}
	default:
		return fmt.Errorf("update manual attendance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit manual attendance: %w", err)
	}
	committed = true
	return nil
}

func buildAttendanceConditions(filter models.AttendanceFilter) (string, []interface{}) {
	conditions := []string{"1=1"}
	var args []interface{}
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		conditions = append(conditions, fmt.Sprintf("a.class_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("a.marked_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("a.marked_at < $%d", len(args)))
	}
	return strings.Join(conditions, " AND "), args
}

// List returns attendance records newest first, one page at a time unless
// filter.Unpaged is set.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	where, args := buildAttendanceConditions(filter)
	base := ` FROM attendance a JOIN users u ON u.id = a.student_id JOIN classes c ON c.id = a.class_id WHERE ` + where

	listQuery := `SELECT ` + attendanceColumns + `, u.full_name AS student_name, c.name AS class_name` + base + ` ORDER BY a.marked_at DESC`
	if !filter.Unpaged {
		_, pageSize, offset := pageBounds(filter.Page, filter.PageSize)
		listQuery += fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, offset)
	}

	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*)`+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return records, total, nil
}

// Summary aggregates statuses for rows matching filter.
func (r *AttendanceRepository) Summary(ctx context.Context, filter models.AttendanceFilter) (*models.AttendanceSummary, error) {
	where, args := buildAttendanceConditions(filter)
	query := `SELECT
COUNT(*) FILTER (WHERE a.status = 'PRESENT') AS present,
COUNT(*) FILTER (WHERE a.status = 'LATE') AS late,
COUNT(*) FILTER (WHERE a.status = 'ABSENT') AS absent,
COUNT(*) FILTER (WHERE a.status = 'EXCUSED') AS excused,
COUNT(*) AS total
FROM attendance a WHERE ` + where

	var summary models.AttendanceSummary
	if err := r.db.GetContext(ctx, &summary, query, args...); err != nil {
		return nil, fmt.Errorf("summarise attendance: %w", err)
	}
	summary.ComputeRate()
	return &summary, nil
}
