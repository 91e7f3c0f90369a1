package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceExcused AttendanceStatus = "EXCUSED"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceLate, AttendanceAbsent, AttendanceExcused:
		return true
	default:
		return false
	}
}

// AttendanceSession is one QR issuance. Its id doubles as the token jti.
type AttendanceSession struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	IssuedBy  string    `db:"issued_by" json:"issued_by"`
	IssuedAt  time.Time `db:"issued_at" json:"issued_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

// Attendance is a single student's mark for a class on a given moment.
type Attendance struct {
	ID        string           `db:"id" json:"id"`
	ClassID   string           `db:"class_id" json:"class_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	SessionID *string          `db:"session_id" json:"session_id,omitempty"`
	Status    AttendanceStatus `db:"status" json:"status"`
	MarkedAt  time.Time        `db:"marked_at" json:"marked_at"`
	MarkedBy  string           `db:"marked_by" json:"marked_by"`
	Notes     *string          `db:"notes" json:"notes,omitempty"`
}

// AttendanceRecord joins attendance with student and class names.
type AttendanceRecord struct {
	Attendance
	StudentName string `db:"student_name" json:"student_name"`
	ClassName   string `db:"class_name" json:"class_name"`
}

// AttendanceFilter defines query filters.
type AttendanceFilter struct {
	ClassID   string
	StudentID string
	Status    *AttendanceStatus
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	// Unpaged returns every matching row. Only internal callers set it.
	Unpaged   bool
}

// AttendanceSummary aggregates a set of attendance rows.
type AttendanceSummary struct {
	Present int     `db:"present" json:"present"`
	Late    int     `db:"late" json:"late"`
	Absent  int     `db:"absent" json:"absent"`
	Excused int     `db:"excused" json:"excused"`
	Total   int     `db:"total" json:"total"`
	Rate    float64 `db:"-" json:"rate"`
}

// ComputeRate fills Rate as the share of PRESENT or LATE marks, rounded to two decimals.
func (s *AttendanceSummary) ComputeRate() {
	if s.Total == 0 {
		s.Rate = 0
		return
	}
	rate := float64(s.Present+s.Late) / float64(s.Total) * 100
	s.Rate = float64(int(rate*100+0.5)) / 100
}

// AttendanceTokenClaims is the payload encoded into the QR code.
type AttendanceTokenClaims struct {
	ClassID string `json:"class_id"`
	jwt.RegisteredClaims
}

// AttendanceToken is returned to the teacher when a QR code is issued.
type AttendanceToken struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	ClassID   string    `json:"class_id"`
	ExpiresAt time.Time `json:"expires_at"`
	QRCode    string    `json:"qr_png"`
}

// CheckInRequest is posted by a student after scanning the QR code.
type CheckInRequest struct {
	Token string `json:"token" validate:"required"`
}

// MarkAttendanceRequest is a teacher's manual mark.
type MarkAttendanceRequest struct {
	ClassID   string           `json:"class_id" validate:"required,uuid"`
	StudentID string           `json:"student_id" validate:"required,uuid"`
	Status    AttendanceStatus `json:"status" validate:"required,oneof=PRESENT LATE ABSENT EXCUSED"`
	Date      *time.Time       `json:"date"`
	Notes     *string          `json:"notes" validate:"omitempty,max=500"`
}

// StudentAttendanceHistory is a student's records plus their summary.
type StudentAttendanceHistory struct {
	StudentID string             `json:"student_id"`
	Summary   AttendanceSummary  `json:"summary"`
	Records   []AttendanceRecord `json:"records"`
}

// IssueTokenRequest asks for a fresh QR token for a class.
type IssueTokenRequest struct {
	ClassID string `json:"class_id" validate:"required,uuid"`
}
