package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserRole(t *testing.T) {
	assert.True(t, RoleParent.Valid())
	assert.False(t, UserRole("SUPERADMIN").Valid())
	assert.True(t, RoleTeacher.RequiresInvitation())
	assert.True(t, RoleAdmin.RequiresInvitation())
	assert.False(t, RoleStudent.RequiresInvitation())
	assert.False(t, RoleParent.RequiresInvitation())
}

func TestInvitationStatusAt(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	used := now.Add(-time.Hour)

	cases := []struct {
		name string
		inv  InvitationCode
		want InvitationStatus
	}{
		{"active", InvitationCode{ExpiresAt: now.Add(time.Hour)}, InvitationActive},
		{"expired at boundary", InvitationCode{ExpiresAt: now}, InvitationExpired},
		{"used beats expired", InvitationCode{ExpiresAt: now.Add(-time.Minute), UsedAt: &used}, InvitationUsed},
		{"revoked beats used", InvitationCode{ExpiresAt: now.Add(time.Hour), UsedAt: &used, Revoked: true}, InvitationRevoked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.inv.StatusAt(now))
		})
	}
}

func TestAttendanceSummaryRate(t *testing.T) {
	s := AttendanceSummary{Present: 5, Late: 1, Absent: 2, Excused: 1, Total: 9}
	s.ComputeRate()
	assert.Equal(t, 66.67, s.Rate)

	empty := AttendanceSummary{}
	empty.ComputeRate()
	assert.Zero(t, empty.Rate)
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(0, 500, 42)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 100, p.PageSize)
	assert.Equal(t, 42, p.TotalCount)

	p = NewPagination(3, 0, 0)
	assert.Equal(t, 20, p.PageSize)
}

func TestAttendanceStatusValid(t *testing.T) {
	assert.True(t, AttendanceLate.Valid())
	assert.False(t, AttendanceStatus("H").Valid())
}
