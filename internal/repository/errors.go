package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrDuplicate is returned when an insert hits a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrInvitationUnavailable is returned when an invitation was consumed,
	// revoked or expired between validation and consumption.
	ErrInvitationUnavailable = errors.New("invitation no longer available")
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// isNotFound treats a malformed UUID like a missing row: no record can match it.
func isNotFound(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == invalidTextRepresentation
}

// pageBounds normalises page and page size and returns the SQL offset.
func pageBounds(page, pageSize int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize, (page - 1) * pageSize
}

func sortOrder(raw string) string {
	if raw == "asc" || raw == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ErrSubmissionGraded is returned when a resubmission targets a graded submission.
var ErrSubmissionGraded = errors.New("submission already graded")
