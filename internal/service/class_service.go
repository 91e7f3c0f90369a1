package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-classroom-api/internal/models"
	"github.com/noah-isme/smart-classroom-api/internal/repository"
	appErrors "github.com/noah-isme/smart-classroom-api/pkg/errors"
	"github.com/noah-isme/smart-classroom-api/pkg/realtime"
)

const joinCodeLength = 6

type classRepository interface {
	Create(ctx context.Context, class *models.Class) error
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
	FindByJoinCode(ctx context.Context, code string) (*models.ClassDetail, error)
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	Update(ctx context.Context, class *models.Class) error
	UpdateJoinCode(ctx context.Context, id, code string) error
	Delete(ctx context.Context, id string) error
	AddStudents(ctx context.Context, classID string, studentIDs []string) (int, error)
	RemoveStudent(ctx context.Context, classID, studentID string) (bool, error)
	ListStudents(ctx context.Context, classID string) ([]models.ClassMember, error)
	IsEnrolled(ctx context.Context, classID, studentID string) (bool, error)
	HasLinkedChild(ctx context.Context, classID, parentID string) (bool, error)
	TeachesStudent(ctx context.Context, teacherID, studentID string) (bool, error)
}

type classUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

type dashboardInvalidator interface {
	InvalidateDashboards(ctx context.Context)
}

// ClassService manages classes and rosters and answers membership questions
// for the other class-scoped features.
type ClassService struct {
	repo      classRepository
	users     classUserLookup
	audit     auditRecorder
	cache     dashboardInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs a ClassService.
func NewClassService(repo classRepository, users classUserLookup, audit auditRecorder, cache dashboardInvalidator, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ClassService{repo: repo, users: users, audit: audit, cache: cache, validator: validate, logger: logger}
}

// Create adds a class owned by the calling teacher, or by req.TeacherID when an admin creates it.
func (s *ClassService) Create(ctx context.Context, actor models.Actor, req models.CreateClassRequest) (*models.ClassDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	teacherID := actor.ID
	switch actor.Role {
	case models.RoleTeacher:
	case models.RoleAdmin:
		if req.TeacherID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "teacher_id is required")
		}
		teacher, err := s.users.FindByID(ctx, req.TeacherID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "teacher not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
		}
		if teacher.Role != models.RoleTeacher || !teacher.Active {
			return nil, appErrors.Clone(appErrors.ErrValidation, "teacher_id must reference an active teacher")
		}
		teacherID = teacher.ID
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers and admins can create classes")
	}

	class := &models.Class{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Subject:     strings.TrimSpace(req.Subject),
		TeacherID:   teacherID,
	}

	var err error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		if class.JoinCode, err = randomCode(joinCodeLength); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate join code")
		}
		class.ID = ""
		err = s.repo.Create(ctx, class)
		if !errors.Is(err, repository.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}

	s.cache.InvalidateDashboards(ctx)
	return s.load(ctx, class.ID)
}

// List returns the classes visible to actor.
func (s *ClassService) List(ctx context.Context, actor models.Actor, filter models.ClassFilter) ([]models.ClassDetail, *models.Pagination, error) {
	filter.TeacherID, filter.StudentID, filter.ParentID = "", "", ""
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		filter.TeacherID = actor.ID
	case models.RoleStudent:
		filter.StudentID = actor.ID
	case models.RoleParent:
		filter.ParentID = actor.ID
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot list classes")
	}

	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a class the actor may view.
func (s *ClassService) Get(ctx context.Context, actor models.Actor, id string) (*models.ClassDetail, error) {
	return s.Authorize(ctx, actor, id, false)
}

// Update edits a class owned by the actor.
func (s *ClassService) Update(ctx context.Context, actor models.Actor, id string, req models.UpdateClassRequest) (*models.ClassDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	detail, err := s.Authorize(ctx, actor, id, true)
	if err != nil {
		return nil, err
	}

	class := detail.Class
	class.Name = strings.TrimSpace(req.Name)
	class.Description = req.Description
	class.Subject = strings.TrimSpace(req.Subject)
	if err := s.repo.Update(ctx, &class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return s.load(ctx, id)
}

// Delete removes a class and everything scoped to it.
func (s *ClassService) Delete(ctx context.Context, actor models.Actor, id string, meta models.RequestMeta) error {
	detail, err := s.Authorize(ctx, actor, id, true)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"name": detail.Name, "teacher_id": detail.TeacherID, "students": detail.StudentCount})
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionClassDelete,
		Resource:   "classes",
		ResourceID: &detail.ID,
		OldValues:  oldPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record class delete audit log", zap.Error(err))
	}
	s.cache.InvalidateDashboards(ctx)
	return nil
}

// AddStudents enrols active students. Ids that are not active students are
// rejected as a whole; ids already on the roster are skipped.
func (s *ClassService) AddStudents(ctx context.Context, actor models.Actor, classID string, req models.AddStudentsRequest) (*models.AddStudentsResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student list")
	}
	if _, err := s.Authorize(ctx, actor, classID, true); err != nil {
		return nil, err
	}

	ids := uniqueStrings(req.StudentIDs)
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	valid := make(map[string]bool, len(users))
	for _, u := range users {
		if u.Role == models.RoleStudent && u.Active {
			valid[u.ID] = true
		}
	}
	var invalid []string
	for _, id := range ids {
		if !valid[id] {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "not active students: "+strings.Join(invalid, ", "))
	}

	added, err := s.repo.AddStudents(ctx, classID, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add students")
	}
	if added > 0 {
		s.cache.InvalidateDashboards(ctx)
	}
	return &models.AddStudentsResult{Added: added, Skipped: len(ids) - added}, nil
}

// RemoveStudent drops a student from the roster.
func (s *ClassService) RemoveStudent(ctx context.Context, actor models.Actor, classID, studentID string) error {
	if _, err := s.Authorize(ctx, actor, classID, true); err != nil {
		return err
	}
	removed, err := s.repo.RemoveStudent(ctx, classID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove student")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "student is not enrolled in this class")
	}
	s.cache.InvalidateDashboards(ctx)
	return nil
}

// ListStudents returns the roster of a class the actor may view.
func (s *ClassService) ListStudents(ctx context.Context, actor models.Actor, classID string) ([]models.ClassMember, error) {
	if _, err := s.Authorize(ctx, actor, classID, false); err != nil {
		return nil, err
	}
	members, err := s.repo.ListStudents(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	if members == nil {
		members = []models.ClassMember{}
	}
	return members, nil
}

// Join enrols the calling student using a join code.
func (s *ClassService) Join(ctx context.Context, actor models.Actor, req models.JoinClassRequest) (*models.ClassDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid join code")
	}
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can join classes")
	}
	class, err := s.repo.FindByJoinCode(ctx, strings.TrimSpace(req.JoinCode))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "join code not recognised")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up join code")
	}
	added, err := s.repo.AddStudents(ctx, class.ID, []string{actor.ID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to join class")
	}
	if added == 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "already enrolled in this class")
	}
	s.cache.InvalidateDashboards(ctx)
	return s.load(ctx, class.ID)
}

// RegenerateJoinCode replaces the join code, invalidating the old one.
func (s *ClassService) RegenerateJoinCode(ctx context.Context, actor models.Actor, classID string) (*models.ClassDetail, error) {
	if _, err := s.Authorize(ctx, actor, classID, true); err != nil {
		return nil, err
	}
	var err error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		var code string
		if code, err = randomCode(joinCodeLength); err != nil {
			break
		}
		err = s.repo.UpdateJoinCode(ctx, classID, code)
		if !errors.Is(err, repository.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to regenerate join code")
	}
	return s.load(ctx, classID)
}

// Authorize loads a class and checks the actor's access to it. With manage
// set only the owning teacher and admins pass; otherwise enrolled students
// and parents of enrolled students are admitted too.
func (s *ClassService) Authorize(ctx context.Context, actor models.Actor, classID string, manage bool) (*models.ClassDetail, error) {
	class, err := s.load(ctx, classID)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || (actor.Role == models.RoleTeacher && class.TeacherID == actor.ID) {
		return class, nil
	}
	if manage {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the class teacher can manage this class")
	}

	var member bool
	switch actor.Role {
	case models.RoleStudent:
		member, err = s.repo.IsEnrolled(ctx, classID, actor.ID)
	case models.RoleParent:
		member, err = s.repo.HasLinkedChild(ctx, classID, actor.ID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class membership")
	}
	if !member {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this class")
	}
	return class, nil
}

// IsEnrolled reports whether studentID is on the roster of classID.
func (s *ClassService) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	return s.repo.IsEnrolled(ctx, classID, studentID)
}

// TeachesStudent reports whether teacherID owns a class studentID attends.
func (s *ClassService) TeachesStudent(ctx context.Context, teacherID, studentID string) (bool, error) {
	return s.repo.TeachesStudent(ctx, teacherID, studentID)
}

// CanJoin authorizes websocket subscriptions to class rooms and the community forum.
func (s *ClassService) CanJoin(ctx context.Context, who realtime.Identity, room string) (bool, error) {
	if room == realtime.CommunityRoom {
		return true, nil
	}
	kind, id, ok := realtime.ParseRoom(room)
	if !ok || kind != "class" {
		return false, nil
	}
	actor := models.Actor{ID: who.UserID, Role: models.UserRole(who.Role), Name: who.Name}
	if _, err := s.Authorize(ctx, actor, id, false); err != nil {
		appErr := appErrors.FromError(err)
		if appErr.Status < 500 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *ClassService) load(ctx context.Context, id string) (*models.ClassDetail, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
