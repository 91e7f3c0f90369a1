package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/smart-classroom-api/internal/dto"
)

// AnalyticsRepository exposes read-optimised queries for dashboard endpoints.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// CountClasses returns the number of classes on the platform.
func (r *AnalyticsRepository) CountClasses(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM classes`); err != nil {
		return 0, fmt.Errorf("count classes: %w", err)
	}
	return count, nil
}

// AttendanceRateSince returns the share of PRESENT or LATE marks since the
// given moment as a percentage. No marks yields zero.
func (r *AnalyticsRepository) AttendanceRateSince(ctx context.Context, since time.Time) (float64, error) {
	const query = `SELECT CASE WHEN COUNT(*) = 0 THEN 0
ELSE ROUND((COUNT(*) FILTER (WHERE status IN ('PRESENT', 'LATE')))::NUMERIC / COUNT(*) * 100, 2) END
FROM attendance WHERE marked_at >= $1`
	var rate float64
	if err := r.db.GetContext(ctx, &rate, query, since); err != nil {
		return 0, fmt.Errorf("query attendance rate: %w", err)
	}
	return rate, nil
}

// TeacherClassStats returns per-class roster size, check-ins since dayStart and
// ungraded submissions for every class the teacher owns.
func (r *AnalyticsRepository) TeacherClassStats(ctx context.Context, teacherID string, dayStart time.Time) ([]dto.TeacherClassStat, error) {
	const query = `SELECT c.id AS class_id, c.name,
(SELECT COUNT(*) FROM class_students cs WHERE cs.class_id = c.id) AS student_count,
(SELECT COUNT(*) FROM attendance a WHERE a.class_id = c.id AND a.session_id IS NOT NULL AND a.marked_at >= $2) AS check_ins_today,
(SELECT COUNT(*) FROM submissions s JOIN assignments asg ON asg.id = s.assignment_id
  WHERE asg.class_id = c.id AND s.graded_at IS NULL) AS pending_grading
FROM classes c
WHERE c.teacher_id = $1
ORDER BY c.name`
	var stats []dto.TeacherClassStat
	if err := r.db.SelectContext(ctx, &stats, query, teacherID, dayStart); err != nil {
		return nil, fmt.Errorf("query teacher class stats: %w", err)
	}
	return stats, nil
}
