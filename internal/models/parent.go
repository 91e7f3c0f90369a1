package models

import "time"

// ParentLink connects a parent account to a student account.
type ParentLink struct {
	ParentID  string    `db:"parent_id" json:"parent_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// LinkChildRequest links a student by email (parents) or by id (admins).
type LinkChildRequest struct {
	ParentID     string `json:"parent_id" validate:"omitempty,uuid"`
	StudentID    string `json:"student_id" validate:"omitempty,uuid"`
	StudentEmail string `json:"student_email" validate:"omitempty,email"`
}

// ChildOverview is what a parent sees for one linked child.
type ChildOverview struct {
	Student           UserSummary        `json:"student"`
	Attendance        AttendanceSummary  `json:"attendance"`
	Classes           []ClassDetail      `json:"classes"`
	RecentSubmissions []SubmissionDetail `json:"recent_submissions"`
}
