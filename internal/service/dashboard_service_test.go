package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-classroom-api/internal/dto"
	"github.com/noah-isme/smart-classroom-api/internal/models"
	appErrors "github.com/noah-isme/smart-classroom-api/pkg/errors"
)

type stubDashboardRepo struct {
	classCount int
	rate       float64
	stats      []dto.TeacherClassStat
	since      time.Time
	dayStart   time.Time
	calls      int
}

func (s *stubDashboardRepo) CountClasses(ctx context.Context) (int, error) {
	s.calls++
	return s.classCount, nil
}

func (s *stubDashboardRepo) AttendanceRateSince(ctx context.Context, since time.Time) (float64, error) {
	s.since = since
	return s.rate, nil
}

func (s *stubDashboardRepo) TeacherClassStats(ctx context.Context, teacherID string, dayStart time.Time) ([]dto.TeacherClassStat, error) {
	s.calls++
	s.dayStart = dayStart
	return s.stats, nil
}

type stubCounts struct {
	byRole map[models.UserRole]int
	active int
}

func (s *stubCounts) CountByRole(ctx context.Context) (map[models.UserRole]int, error) {
	out := make(map[models.UserRole]int, len(s.byRole))
	for k, v := range s.byRole {
		out[k] = v
	}
	return out, nil
}

func (s *stubCounts) CountActive(ctx context.Context) (int, error) { return s.active, nil }

type stubUpcoming struct {
	byStudent map[string][]dto.UpcomingAssignment
}

func (s *stubUpcoming) Upcoming(ctx context.Context, studentID string, window time.Duration) ([]dto.UpcomingAssignment, error) {
	return s.byStudent[studentID], nil
}

type stubChildren struct {
	children []models.UserSummary
}

func (s *stubChildren) ListChildren(ctx context.Context, parentID string) ([]models.UserSummary, error) {
	return s.children, nil
}

func newTestDashboardService(cacheRepo *memoryCacheRepo) (*DashboardService, *stubDashboardRepo) {
	repo := &stubDashboardRepo{
		classCount: 4,
		rate:       91.5,
		stats: []dto.TeacherClassStat{
			{ClassID: "c1", Name: "Physics", StudentCount: 20, CheckInsToday: 18, PendingGrading: 3},
			{ClassID: "c2", Name: "Chemistry", StudentCount: 12, CheckInsToday: 0, PendingGrading: 5},
		},
	}
	counts := &stubCounts{byRole: map[models.UserRole]int{models.RoleStudent: 30, models.RoleTeacher: 3}, active: 2}
	classes := newMemoryClassRepo()
	classes.seed("c1", "teacher-1", "student-1")

	var cache *CacheService
	if cacheRepo != nil {
		cache = NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	}
	svc := NewDashboardService(DashboardDeps{
		Repo:        repo,
		Users:       counts,
		Invitations: counts,
		Classes:     classes,
		Attendance:  &fixedSummary{summary: models.AttendanceSummary{Present: 9, Late: 1, Total: 10, Rate: 100}},
		Assignments: &stubUpcoming{byStudent: map[string][]dto.UpcomingAssignment{
			"student-1": {{AssignmentID: "a1", Title: "Lab report"}},
		}},
		Children: &stubChildren{children: []models.UserSummary{{ID: "student-1", FullName: "Sam"}}},
	}, cache, NewMetricsService(), nil)
	svc.now = func() time.Time { return time.Date(2026, 5, 4, 15, 30, 0, 0, time.UTC) }
	return svc, repo
}

func TestDashboardAdmin(t *testing.T) {
	svc, repo := newTestDashboardService(nil)

	payload, hit, err := svc.Dashboard(context.Background(), adminActor)
	require.NoError(t, err)
	assert.False(t, hit)
	admin, ok := payload.(*dto.AdminDashboard)
	require.True(t, ok)
	assert.Equal(t, 30, admin.UsersByRole[models.RoleStudent])
	assert.Equal(t, 0, admin.UsersByRole[models.RoleParent])
	assert.Contains(t, admin.UsersByRole, models.RoleAdmin)
	assert.Equal(t, 4, admin.ClassCount)
	assert.Equal(t, 91.5, admin.AttendanceRate7d)
	assert.Equal(t, 2, admin.ActiveInvitations)
	assert.Equal(t, time.Date(2026, 4, 27, 15, 30, 0, 0, time.UTC), repo.since)
}

func TestDashboardTeacherTotals(t *testing.T) {
	svc, repo := newTestDashboardService(nil)

	payload, _, err := svc.Dashboard(context.Background(), teacherActor)
	require.NoError(t, err)
	teacher := payload.(*dto.TeacherDashboard)
	assert.Equal(t, 32, teacher.TotalStudents)
	assert.Equal(t, 18, teacher.CheckInsToday)
	assert.Equal(t, 8, teacher.PendingSubmissions)
	assert.Equal(t, time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), repo.dayStart)
}

func TestDashboardStudentAndParent(t *testing.T) {
	svc, _ := newTestDashboardService(nil)
	ctx := context.Background()

	payload, _, err := svc.Dashboard(ctx, studentActor)
	require.NoError(t, err)
	student := payload.(*dto.StudentDashboard)
	require.Len(t, student.Classes, 1)
	assert.Equal(t, 9, student.Attendance.Present)
	require.Len(t, student.Upcoming, 1)

	payload, _, err = svc.Dashboard(ctx, parentActor)
	require.NoError(t, err)
	parent := payload.(*dto.ParentDashboard)
	require.Len(t, parent.Children, 1)
	assert.Equal(t, "Sam", parent.Children[0].Student.FullName)
	assert.Equal(t, "Lab report", parent.Children[0].Upcoming[0].Title)
}

func TestDashboardCachesPerUser(t *testing.T) {
	cacheRepo := newMemoryCacheRepo()
	svc, repo := newTestDashboardService(cacheRepo)
	ctx := context.Background()

	_, hit, err := svc.Dashboard(ctx, teacherActor)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Contains(t, cacheRepo.items, DashboardKey(models.RoleTeacher, "teacher-1"))

	payload, hit, err := svc.Dashboard(ctx, teacherActor)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 32, payload.(*dto.TeacherDashboard).TotalStudents)
	assert.Equal(t, 1, repo.calls)

	svc.cache.InvalidateDashboards(ctx)
	_, hit, err = svc.Dashboard(ctx, teacherActor)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, repo.calls)
}

func TestDashboardUnknownRole(t *testing.T) {
	svc, _ := newTestDashboardService(nil)
	_, _, err := svc.Dashboard(context.Background(), models.Actor{ID: "x", Role: "GUEST"})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDashboardSystemMetrics(t *testing.T) {
	svc, _ := newTestDashboardService(nil)
	svc.metrics.RecordCheckIn(CheckInAccepted)
	snapshot := svc.SystemMetrics()
	assert.Equal(t, uint64(1), snapshot.CheckIns[CheckInAccepted])
}
