package models

import "time"

// Class is a teacher-owned course section students can join.
type Class struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Subject     string    `db:"subject" json:"subject"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	JoinCode    string    `db:"join_code" json:"join_code"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ClassDetail extends Class with teacher name and roster size.
type ClassDetail struct {
	Class
	TeacherName  string `db:"teacher_name" json:"teacher_name"`
	StudentCount int    `db:"student_count" json:"student_count"`
}

// ClassFilter defines filter criteria for listing classes. At most one of the
// scoping ids is set by the service based on the caller's role.
type ClassFilter struct {
	TeacherID string
	StudentID string
	ParentID  string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ClassMember is a roster entry.
type ClassMember struct {
	UserSummary
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// CreateClassRequest creates a class. TeacherID is only honoured for admins.
type CreateClassRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=2000"`
	Subject     string `json:"subject" validate:"max=80"`
	TeacherID   string `json:"teacher_id"`
}

// UpdateClassRequest edits a class.
type UpdateClassRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=2000"`
	Subject     string `json:"subject" validate:"max=80"`
}

// AddStudentsRequest enrols students by id.
type AddStudentsRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,max=200,dive,uuid"`
}

// JoinClassRequest enrols the caller using a join code.
type JoinClassRequest struct {
	JoinCode string `json:"join_code" validate:"required,len=6"`
}

// AddStudentsResult reports how many ids were newly enrolled.
type AddStudentsResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}
