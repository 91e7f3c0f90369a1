package models

import "time"

// Assignment is coursework published to a class.
type Assignment struct {
	ID          string    `db:"id" json:"id"`
	ClassID     string    `db:"class_id" json:"class_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	DueAt       time.Time `db:"due_at" json:"due_at"`
	MaxScore    float64   `db:"max_score" json:"max_score"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// AssignmentDetail adds the class name and submission progress.
type AssignmentDetail struct {
	Assignment
	ClassName       string `db:"class_name" json:"class_name"`
	SubmissionCount int    `db:"submission_count" json:"submission_count"`
}

// AssignmentFilter narrows assignment listings.
type AssignmentFilter struct {
	ClassID   string
	DueAfter  *time.Time
	DueBefore *time.Time
	Page      int
	PageSize  int
}

// Submission is a student's answer to an assignment. One row per student per assignment.
type Submission struct {
	ID           string     `db:"id" json:"id"`
	AssignmentID string     `db:"assignment_id" json:"assignment_id"`
	StudentID    string     `db:"student_id" json:"student_id"`
	Content      string     `db:"content" json:"content"`
	FilePath     *string    `db:"file_path" json:"-"`
	FileName     *string    `db:"file_name" json:"file_name,omitempty"`
	SubmittedAt  time.Time  `db:"submitted_at" json:"submitted_at"`
	Score        *float64   `db:"score" json:"score,omitempty"`
	Feedback     *string    `db:"feedback" json:"feedback,omitempty"`
	GradedAt     *time.Time `db:"graded_at" json:"graded_at,omitempty"`
	GradedBy     *string    `db:"graded_by" json:"graded_by,omitempty"`
	Late         bool       `db:"late" json:"late"`
}

// Graded reports whether a teacher has scored the submission.
func (s Submission) Graded() bool {
	return s.GradedAt != nil
}

// SubmissionDetail joins a submission with student and assignment names.
type SubmissionDetail struct {
	Submission
	StudentName     string  `db:"student_name" json:"student_name"`
	AssignmentTitle string  `db:"assignment_title" json:"assignment_title"`
	MaxScore        float64 `db:"max_score" json:"max_score"`
	ClassID         string  `db:"class_id" json:"class_id"`
}

// CreateAssignmentRequest publishes an assignment. MaxScore defaults to 100.
type CreateAssignmentRequest struct {
	ClassID     string    `json:"class_id" validate:"required,uuid"`
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=10000"`
	DueAt       time.Time `json:"due_at" validate:"required"`
	MaxScore    float64   `json:"max_score" validate:"omitempty,gt=0,lte=1000"`
}

// UpdateAssignmentRequest edits an assignment.
type UpdateAssignmentRequest struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=10000"`
	DueAt       time.Time `json:"due_at" validate:"required"`
	MaxScore    float64   `json:"max_score" validate:"required,gt=0,lte=1000"`
}

// SubmitRequest carries the text part of a submission.
type SubmitRequest struct {
	Content string `json:"content" form:"content" validate:"max=20000"`
}

// GradeRequest scores a submission.
type GradeRequest struct {
	Score    *float64 `json:"score" validate:"required,gte=0"`
	Feedback *string  `json:"feedback" validate:"omitempty,max=5000"`
}

// FileDownload is a short-lived link to an uploaded file.
type FileDownload struct {
	URL       string    `json:"url"`
	FileName  string    `json:"file_name"`
	ExpiresAt time.Time `json:"expires_at"`
}
