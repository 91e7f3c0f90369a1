package dto

import (
	"time"

	"github.com/noah-isme/smart-classroom-api/internal/models"
)

// AdminDashboard is the platform-wide overview.
type AdminDashboard struct {
	UsersByRole       map[models.UserRole]int `json:"users_by_role"`
	ClassCount        int                     `json:"class_count"`
	AttendanceRate7d  float64                 `json:"attendance_rate_7d"`
	ActiveInvitations int                     `json:"active_invitations"`
	GeneratedAt       time.Time               `json:"generated_at"`
}

// TeacherClassStat summarises one class a teacher owns.
type TeacherClassStat struct {
	ClassID        string `db:"class_id" json:"class_id"`
	Name           string `db:"name" json:"name"`
	StudentCount   int    `db:"student_count" json:"student_count"`
	CheckInsToday  int    `db:"check_ins_today" json:"check_ins_today"`
	PendingGrading int    `db:"pending_grading" json:"pending_grading"`
}

// TeacherDashboard is a teacher's overview across their classes.
type TeacherDashboard struct {
	Classes            []TeacherClassStat `json:"classes"`
	TotalStudents      int                `json:"total_students"`
	CheckInsToday      int                `json:"check_ins_today"`
	PendingSubmissions int                `json:"pending_submissions"`
	GeneratedAt        time.Time          `json:"generated_at"`
}

// UpcomingAssignment is an assignment due soon, with the caller's submission state.
type UpcomingAssignment struct {
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	ClassID      string    `db:"class_id" json:"class_id"`
	ClassName    string    `db:"class_name" json:"class_name"`
	Title        string    `db:"title" json:"title"`
	DueAt        time.Time `db:"due_at" json:"due_at"`
	Submitted    bool      `db:"submitted" json:"submitted"`
}

// StudentDashboard is a student's overview.
type StudentDashboard struct {
	Classes     []models.ClassDetail     `json:"classes"`
	Attendance  models.AttendanceSummary `json:"attendance"`
	Upcoming    []UpcomingAssignment     `json:"upcoming_assignments"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// ChildDashboard is one linked child inside a parent's dashboard.
type ChildDashboard struct {
	Student    models.UserSummary       `json:"student"`
	Attendance models.AttendanceSummary `json:"attendance"`
	Upcoming   []UpcomingAssignment     `json:"upcoming_assignments"`
}

// ParentDashboard groups every linked child.
type ParentDashboard struct {
	Children    []ChildDashboard `json:"children"`
	GeneratedAt time.Time        `json:"generated_at"`
}
