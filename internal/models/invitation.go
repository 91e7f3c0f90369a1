package models

import "time"

// InvitationStatus is derived from an invitation's timestamps and flags.
type InvitationStatus string

const (
	InvitationActive  InvitationStatus = "active"
	InvitationUsed    InvitationStatus = "used"
	InvitationExpired InvitationStatus = "expired"
	InvitationRevoked InvitationStatus = "revoked"
)

// InvitationCode is a single-use code that grants a role at registration.
type InvitationCode struct {
	ID        string     `db:"id" json:"id"`
	Code      string     `db:"code" json:"code"`
	Role      UserRole   `db:"role" json:"role"`
	Email     *string    `db:"email" json:"email,omitempty"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	UsedBy    *string    `db:"used_by" json:"used_by,omitempty"`
	UsedAt    *time.Time `db:"used_at" json:"used_at,omitempty"`
	Revoked   bool       `db:"revoked" json:"revoked"`
	CreatedBy string     `db:"created_by" json:"created_by"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// StatusAt returns the invitation status as of now. Revocation wins over use,
// and use wins over expiry.
func (i InvitationCode) StatusAt(now time.Time) InvitationStatus {
	switch {
	case i.Revoked:
		return InvitationRevoked
	case i.UsedAt != nil:
		return InvitationUsed
	case !now.Before(i.ExpiresAt):
		return InvitationExpired
	default:
		return InvitationActive
	}
}

// InvitationFilter narrows invitation listings.
type InvitationFilter struct {
	Status   InvitationStatus
	Role     *UserRole
	Page     int
	PageSize int
}

// CreateInvitationRequest is an admin's request for a new code.
type CreateInvitationRequest struct {
	Role           UserRole `json:"role" validate:"required,oneof=ADMIN TEACHER STUDENT PARENT"`
	Email          *string  `json:"email" validate:"omitempty,email"`
	ExpiresInHours int      `json:"expires_in_hours" validate:"omitempty,min=1,max=720"`
}

// InvitationView is an invitation with its derived status.
type InvitationView struct {
	InvitationCode
	Status InvitationStatus `json:"status"`
}
