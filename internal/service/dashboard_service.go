package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/smart-classroom-api/internal/dto"
	"github.com/noah-isme/smart-classroom-api/internal/models"
	appErrors "github.com/noah-isme/smart-classroom-api/pkg/errors"
)

const (
	upcomingWindow     = 7 * 24 * time.Hour
	adminAttendanceLag = 7 * 24 * time.Hour
	dashboardClassCap  = 100
)

// DashboardRepository describes the aggregate queries behind dashboards.
type DashboardRepository interface {
	CountClasses(ctx context.Context) (int, error)
	AttendanceRateSince(ctx context.Context, since time.Time) (float64, error)
	TeacherClassStats(ctx context.Context, teacherID string, dayStart time.Time) ([]dto.TeacherClassStat, error)
}

type userCounter interface {
	CountByRole(ctx context.Context) (map[models.UserRole]int, error)
}

type invitationCounter interface {
	CountActive(ctx context.Context) (int, error)
}

type upcomingLister interface {
	Upcoming(ctx context.Context, studentID string, window time.Duration) ([]dto.UpcomingAssignment, error)
}

type childLister interface {
	ListChildren(ctx context.Context, parentID string) ([]models.UserSummary, error)
}

// DashboardService builds role-specific overviews with cache integration.
type DashboardService struct {
	repo        DashboardRepository
	users       userCounter
	invitations invitationCounter
	classes     classLister
	attendance  attendanceSummarizer
	assignments upcomingLister
	children    childLister
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// DashboardDeps groups the collaborators of DashboardService.
type DashboardDeps struct {
	Repo        DashboardRepository
	Users       userCounter
	Invitations invitationCounter
	Classes     classLister
	Attendance  attendanceSummarizer
	Assignments upcomingLister
	Children    childLister
}

// NewDashboardService constructs a dashboard service. cache and metrics may be nil.
func NewDashboardService(deps DashboardDeps, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		repo:        deps.Repo,
		users:       deps.Users,
		invitations: deps.Invitations,
		classes:     deps.Classes,
		attendance:  deps.Attendance,
		assignments: deps.Assignments,
		children:    deps.Children,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Dashboard returns the overview for the actor's role. The boolean reports a cache hit.
func (s *DashboardService) Dashboard(ctx context.Context, actor models.Actor) (interface{}, bool, error) {
	switch actor.Role {
	case models.RoleAdmin:
		var payload dto.AdminDashboard
		return cached(ctx, s, actor, &payload, s.admin)
	case models.RoleTeacher:
		var payload dto.TeacherDashboard
		return cached(ctx, s, actor, &payload, s.teacher)
	case models.RoleStudent:
		var payload dto.StudentDashboard
		return cached(ctx, s, actor, &payload, s.student)
	case models.RoleParent:
		var payload dto.ParentDashboard
		return cached(ctx, s, actor, &payload, s.parent)
	default:
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "no dashboard for this role")
	}
}

// SystemMetrics returns the instrumentation snapshot shown to admins.
func (s *DashboardService) SystemMetrics() models.SystemMetrics {
	if s.metrics == nil {
		return models.SystemMetrics{GeneratedAt: s.now().UTC()}
	}
	return s.metrics.Snapshot()
}

func cached[T any](ctx context.Context, s *DashboardService, actor models.Actor, dest *T, build func(context.Context, models.Actor) (*T, error)) (interface{}, bool, error) {
	key := DashboardKey(actor.Role, actor.ID)
	if hit, err := s.cache.Get(ctx, key, dest); err == nil && hit {
		return dest, true, nil
	}

	start := time.Now()
	payload, err := build(ctx, actor)
	if err != nil {
		return nil, false, err
	}
	s.metrics.ObserveDBQuery("dashboard_"+string(actor.Role), time.Since(start))

	if err := s.cache.Set(ctx, key, payload, 0); err != nil {
		s.logger.Warn("cache dashboard", zap.String("key", key), zap.Error(err))
	}
	return payload, false, nil
}

func (s *DashboardService) admin(ctx context.Context, _ models.Actor) (*dto.AdminDashboard, error) {
	now := s.now().UTC()
	byRole, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, dashboardErr(err, "count users")
	}
	classes, err := s.repo.CountClasses(ctx)
	if err != nil {
		return nil, dashboardErr(err, "count classes")
	}
	rate, err := s.repo.AttendanceRateSince(ctx, now.Add(-adminAttendanceLag))
	if err != nil {
		return nil, dashboardErr(err, "attendance rate")
	}
	invites, err := s.invitations.CountActive(ctx)
	if err != nil {
		return nil, dashboardErr(err, "count invitations")
	}
	for _, role := range []models.UserRole{models.RoleAdmin, models.RoleTeacher, models.RoleStudent, models.RoleParent} {
		if _, ok := byRole[role]; !ok {
			byRole[role] = 0
		}
	}
	return &dto.AdminDashboard{
		UsersByRole:       byRole,
		ClassCount:        classes,
		AttendanceRate7d:  rate,
		ActiveInvitations: invites,
		GeneratedAt:       now,
	}, nil
}

func (s *DashboardService) teacher(ctx context.Context, actor models.Actor) (*dto.TeacherDashboard, error) {
	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	stats, err := s.repo.TeacherClassStats(ctx, actor.ID, dayStart)
	if err != nil {
		return nil, dashboardErr(err, "teacher class stats")
	}
	out := &dto.TeacherDashboard{Classes: stats, GeneratedAt: now}
	if out.Classes == nil {
		out.Classes = []dto.TeacherClassStat{}
	}
	for _, c := range stats {
		out.TotalStudents += c.StudentCount
		out.CheckInsToday += c.CheckInsToday
		out.PendingSubmissions += c.PendingGrading
	}
	return out, nil
}

func (s *DashboardService) student(ctx context.Context, actor models.Actor) (*dto.StudentDashboard, error) {
	classes, _, err := s.classes.List(ctx, models.ClassFilter{StudentID: actor.ID, PageSize: dashboardClassCap})
	if err != nil {
		return nil, dashboardErr(err, "student classes")
	}
	summary, err := s.attendance.Summary(ctx, actor.ID, nil)
	if err != nil {
		return nil, err
	}
	upcoming, err := s.assignments.Upcoming(ctx, actor.ID, upcomingWindow)
	if err != nil {
		return nil, err
	}
	if classes == nil {
		classes = []models.ClassDetail{}
	}
	return &dto.StudentDashboard{
		Classes:     classes,
		Attendance:  *summary,
		Upcoming:    upcoming,
		GeneratedAt: s.now().UTC(),
	}, nil
}

func (s *DashboardService) parent(ctx context.Context, actor models.Actor) (*dto.ParentDashboard, error) {
	children, err := s.children.ListChildren(ctx, actor.ID)
	if err != nil {
		return nil, dashboardErr(err, "list children")
	}
	out := &dto.ParentDashboard{Children: make([]dto.ChildDashboard, 0, len(children)), GeneratedAt: s.now().UTC()}
	for _, child := range children {
		summary, err := s.attendance.Summary(ctx, child.ID, nil)
		if err != nil {
			return nil, err
		}
		upcoming, err := s.assignments.Upcoming(ctx, child.ID, upcomingWindow)
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, dto.ChildDashboard{Student: child, Attendance: *summary, Upcoming: upcoming})
	}
	return out, nil
}

func dashboardErr(err error, what string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dashboard: "+what)
}
