package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/smart-classroom-api/internal/models"
)

const invitationColumns = `id, code, role, email, expires_at, used_by, used_at, revoked, created_by, created_at`

// InvitationRepository persists invitation codes.
type InvitationRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewInvitationRepository(db *sqlx.DB) *InvitationRepository {
	return &InvitationRepository{db: db, now: time.Now}
}

// Create stores a new invitation. A code collision yields ErrDuplicate.
func (r *InvitationRepository) Create(ctx context.Context, inv *models.InvitationCode) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = r.now().UTC()
	}
	const query = `INSERT INTO invitation_codes (id, code, role, email, expires_at, revoked, created_by, created_at) VALUES (:id, :code, :role, :email, :expires_at, :revoked, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, inv); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create invitation: %w", err)
	}
	return nil
}

// FindByCode returns the invitation with code.
func (r *InvitationRepository) FindByCode(ctx context.Context, code string) (*models.InvitationCode, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitation_codes WHERE code = $1 LIMIT 1`
	var inv models.InvitationCode
	if err := r.db.GetContext(ctx, &inv, query, strings.ToUpper(code)); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find invitation by code: %w", err)
	}
	return &inv, nil
}

// FindByID returns the invitation with id.
func (r *InvitationRepository) FindByID(ctx context.Context, id string) (*models.InvitationCode, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitation_codes WHERE id = $1 LIMIT 1`
	var inv models.InvitationCode
	if err := r.db.GetContext(ctx, &inv, query, id); err != nil {
		if isNotFound(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find invitation by id: %w", err)
	}
	return &inv, nil
}

// List returns invitations matching filter, newest first.
func (r *InvitationRepository) List(ctx context.Context, filter models.InvitationFilter) ([]models.InvitationCode, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	now := r.now().UTC()

	switch filter.Status {
	case models.InvitationActive:
		args = append(args, now)
		conditions = append(conditions, fmt.Sprintf("revoked = FALSE AND used_at IS NULL AND expires_at > $%d", len(args)))
	case models.InvitationUsed:
		conditions = append(conditions, "revoked = FALSE AND used_at IS NOT NULL")
	case models.InvitationExpired:
		args = append(args, now)
		conditions = append(conditions, fmt.Sprintf("revoked = FALSE AND used_at IS NULL AND expires_at <= $%d", len(args)))
	case models.InvitationRevoked:
		conditions = append(conditions, "revoked = TRUE")
	}
	if filter.Role != nil {
		args = append(args, *filter.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}

	where := strings.Join(conditions, " AND ")
	_, pageSize, offset := pageBounds(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf("SELECT %s FROM invitation_codes WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d", invitationColumns, where, pageSize, offset)
	var items []models.InvitationCode
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list invitations: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM invitation_codes WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count invitations: %w", err)
	}
	return items, total, nil
}

// CountActive returns how many invitations can still be redeemed.
func (r *InvitationRepository) CountActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM invitation_codes WHERE revoked = FALSE AND used_at IS NULL AND expires_at > $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, r.now().UTC()); err != nil {
		return 0, fmt.Errorf("count active invitations: %w", err)
	}
	return total, nil
}

// Revoke flags an unused invitation as revoked. It reports false when the
// invitation was already used.
func (r *InvitationRepository) Revoke(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE invitation_codes SET revoked = TRUE WHERE id = $1 AND used_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("revoke invitation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke invitation: %w", err)
	}
	return affected > 0, nil
}
