package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-classroom-api/internal/models"
	"github.com/noah-isme/smart-classroom-api/internal/repository"
	appErrors "github.com/noah-isme/smart-classroom-api/pkg/errors"
)

const (
	invitationCodeLength    = 10
	defaultInvitationExpiry = 72 * time.Hour
	maxInvitationExpiry     = 30 * 24 * time.Hour
)

type invitationRepository interface {
	Create(ctx context.Context, inv *models.InvitationCode) error
	FindByCode(ctx context.Context, code string) (*models.InvitationCode, error)
	FindByID(ctx context.Context, id string) (*models.InvitationCode, error)
	List(ctx context.Context, filter models.InvitationFilter) ([]models.InvitationCode, int, error)
	Revoke(ctx context.Context, id string) (bool, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type invitationNotifier interface {
	Invitation(ctx context.Context, inv *models.InvitationCode) error
}

// InvitationService issues and validates role-granting invitation codes.
type InvitationService struct {
	repo      invitationRepository
	audit     auditRecorder
	notifier  invitationNotifier
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewInvitationService constructs an InvitationService.
func NewInvitationService(repo invitationRepository, audit auditRecorder, notifier invitationNotifier, validate *validator.Validate, logger *zap.Logger) *InvitationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &InvitationService{repo: repo, audit: audit, notifier: notifier, validator: validate, logger: logger, now: time.Now}
}

// Create issues a new code.
func (s *InvitationService) Create(ctx context.Context, req models.CreateInvitationRequest, actorID string, meta models.RequestMeta) (*models.InvitationView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invitation payload")
	}

	expiry := defaultInvitationExpiry
	if req.ExpiresInHours > 0 {
		expiry = time.Duration(req.ExpiresInHours) * time.Hour
	}
	if expiry > maxInvitationExpiry {
		expiry = maxInvitationExpiry
	}

	inv := &models.InvitationCode{
		Role:      req.Role,
		ExpiresAt: s.now().UTC().Add(expiry),
		CreatedBy: actorID,
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		inv.Email = &email
	}

	var err error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		if inv.Code, err = randomCode(invitationCodeLength); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate invitation code")
		}
		inv.ID = ""
		err = s.repo.Create(ctx, inv)
		if !errors.Is(err, repository.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invitation")
	}

	payload, _ := json.Marshal(map[string]interface{}{"role": inv.Role, "expires_at": inv.ExpiresAt})
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionInvitationCreate,
		Resource:   "invitations",
		ResourceID: &inv.ID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record invitation audit log", zap.Error(err))
	}

	if s.notifier != nil && inv.Email != nil {
		if err := s.notifier.Invitation(ctx, inv); err != nil {
			s.logger.Warn("failed to enqueue invitation email", zap.String("invitation_id", inv.ID), zap.Error(err))
		}
	}

	return &models.InvitationView{InvitationCode: *inv, Status: inv.StatusAt(s.now())}, nil
}

// List returns invitations with their derived status.
func (s *InvitationService) List(ctx context.Context, filter models.InvitationFilter) ([]models.InvitationView, *models.Pagination, error) {
	switch filter.Status {
	case "", models.InvitationActive, models.InvitationUsed, models.InvitationExpired, models.InvitationRevoked:
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "status must be one of active, used, expired, revoked")
	}

	invitations, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invitations")
	}

	now := s.now()
	views := make([]models.InvitationView, 0, len(invitations))
	for _, inv := range invitations {
		views = append(views, models.InvitationView{InvitationCode: inv, Status: inv.StatusAt(now)})
	}
	return views, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Revoke disables an unused code.
func (s *InvitationService) Revoke(ctx context.Context, id, actorID string, meta models.RequestMeta) error {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "invitation not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invitation")
	}
	if inv.UsedAt != nil {
		return appErrors.Clone(appErrors.ErrConflict, "invitation has already been used")
	}

	revoked, err := s.repo.Revoke(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke invitation")
	}
	if !revoked {
		return appErrors.Clone(appErrors.ErrConflict, "invitation is no longer revocable")
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionInvitationRevoke,
		Resource:   "invitations",
		ResourceID: &inv.ID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record invitation revoke audit log", zap.Error(err))
	}
	return nil
}

// Validate checks that code can be redeemed by email. It does not consume the
// code; consumption happens atomically with account creation.
func (s *InvitationService) Validate(ctx context.Context, code, email string) (*models.InvitationCode, error) {
	inv, err := s.repo.FindByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invitation code not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invitation")
	}

	switch inv.StatusAt(s.now()) {
	case models.InvitationRevoked:
		return nil, appErrors.Clone(appErrors.ErrGone, "invitation code has been revoked")
	case models.InvitationUsed:
		return nil, appErrors.Clone(appErrors.ErrGone, "invitation code has already been used")
	case models.InvitationExpired:
		return nil, appErrors.Clone(appErrors.ErrGone, "invitation code has expired")
	}

	if inv.Email != nil && !strings.EqualFold(*inv.Email, strings.TrimSpace(email)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invitation code was issued for a different email")
	}
	return inv, nil
}
