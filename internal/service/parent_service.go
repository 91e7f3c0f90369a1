package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-classroom-api/internal/models"
	"github.com/noah-isme/smart-classroom-api/internal/repository"
	appErrors "github.com/noah-isme/smart-classroom-api/pkg/errors"
)

const childRecentSubmissions = 10

type parentRepository interface {
	Link(ctx context.Context, parentID, studentID string) error
	Unlink(ctx context.Context, parentID, studentID string) (bool, error)
	IsLinked(ctx context.Context, parentID, studentID string) (bool, error)
	ListChildren(ctx context.Context, parentID string) ([]models.UserSummary, error)
}

type parentUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type classLister interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
}

type attendanceSummarizer interface {
	Summary(ctx context.Context, studentID string, from *time.Time) (*models.AttendanceSummary, error)
}

type submissionLister interface {
	RecentSubmissions(ctx context.Context, studentID string, limit int) ([]models.SubmissionDetail, error)
}

// ParentService links parents to students and reports on linked children.
type ParentService struct {
	repo        parentRepository
	users       parentUserLookup
	classes     classLister
	attendance  attendanceSummarizer
	submissions submissionLister
	cache       dashboardInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewParentService constructs a ParentService.
func NewParentService(
	repo parentRepository,
	users parentUserLookup,
	classes classLister,
	attendance attendanceSummarizer,
	submissions submissionLister,
	cache dashboardInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
) *ParentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ParentService{
		repo:        repo,
		users:       users,
		classes:     classes,
		attendance:  attendance,
		submissions: submissions,
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

// LinkChild connects a parent and a student. Parents link themselves to a
// student by email; admins link any parent and student by id.
func (s *ParentService) LinkChild(ctx context.Context, actor models.Actor, req models.LinkChildRequest) (*models.UserSummary, error) {
	req.StudentEmail = strings.ToLower(strings.TrimSpace(req.StudentEmail))
	req.ParentID = strings.TrimSpace(req.ParentID)
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid link request")
	}

	var (
		parentID string
		student  *models.User
		err      error
	)
	switch actor.Role {
	case models.RoleParent:
		if req.StudentEmail == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student_email is required")
		}
		parentID = actor.ID
		student, err = s.users.FindByEmail(ctx, req.StudentEmail)
	case models.RoleAdmin:
		if req.ParentID == "" || req.StudentID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "parent_id and student_id are required")
		}
		if err := s.requireRole(ctx, req.ParentID, models.RoleParent); err != nil {
			return nil, err
		}
		parentID = req.ParentID
		student, err = s.users.FindByID(ctx, req.StudentID)
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only parents and admins can link children")
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent || !student.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	if err := s.repo.Link(ctx, parentID, student.ID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "child already linked")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link child")
	}
	s.cache.InvalidateDashboards(ctx)
	return &models.UserSummary{ID: student.ID, Email: student.Email, FullName: student.FullName, Role: student.Role}, nil
}

// ListChildren returns the students linked to parentID.
func (s *ParentService) ListChildren(ctx context.Context, actor models.Actor, parentID string) ([]models.UserSummary, error) {
	if err := s.checkParent(actor, parentID); err != nil {
		return nil, err
	}
	children, err := s.repo.ListChildren(ctx, parentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list children")
	}
	if children == nil {
		children = []models.UserSummary{}
	}
	return children, nil
}

// UnlinkChild removes a parent-student link.
func (s *ParentService) UnlinkChild(ctx context.Context, actor models.Actor, parentID, studentID string) error {
	if err := s.checkParent(actor, parentID); err != nil {
		return err
	}
	removed, err := s.repo.Unlink(ctx, parentID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlink child")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "child is not linked")
	}
	s.cache.InvalidateDashboards(ctx)
	return nil
}

// ChildOverview summarises a linked child's classes, attendance and recent work.
func (s *ParentService) ChildOverview(ctx context.Context, actor models.Actor, studentID string) (*models.ChildOverview, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleParent:
		linked, err := s.repo.IsLinked(ctx, actor.ID, studentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check link")
		}
		if !linked {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "child is not linked to this account")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only parents can view child overviews")
	}

	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	classes, _, err := s.classes.List(ctx, models.ClassFilter{StudentID: studentID, PageSize: 100})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	summary, err := s.attendance.Summary(ctx, studentID, nil)
	if err != nil {
		return nil, err
	}
	submissions, err := s.submissions.RecentSubmissions(ctx, studentID, childRecentSubmissions)
	if err != nil {
		return nil, err
	}
	if classes == nil {
		classes = []models.ClassDetail{}
	}

	return &models.ChildOverview{
		Student:           models.UserSummary{ID: student.ID, Email: student.Email, FullName: student.FullName, Role: student.Role},
		Attendance:        *summary,
		Classes:           classes,
		RecentSubmissions: submissions,
	}, nil
}

func (s *ParentService) checkParent(actor models.Actor, parentID string) error {
	if actor.IsAdmin() || (actor.Role == models.RoleParent && actor.ID == parentID) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "cannot manage another parent's children")
}

func (s *ParentService) requireRole(ctx context.Context, userID string, role models.UserRole) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "parent not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent")
	}
	if user.Role != role || !user.Active {
		return appErrors.Clone(appErrors.ErrValidation, "parent_id must reference an active parent")
	}
	return nil
}
