package service

import (
	"context"
	"database/sql"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-classroom-api/internal/dto"
	"github.com/noah-isme/smart-classroom-api/internal/models"
	"github.com/noah-isme/smart-classroom-api/internal/repository"
	appErrors "github.com/noah-isme/smart-classroom-api/pkg/errors"
	"github.com/noah-isme/smart-classroom-api/pkg/storage"
)

type memoryAssignmentRepo struct {
	assignments map[string]*models.AssignmentDetail
	submissions map[string]*models.SubmissionDetail
	deleted     []string
}

func newMemoryAssignmentRepo() *memoryAssignmentRepo {
	return &memoryAssignmentRepo{
		assignments: map[string]*models.AssignmentDetail{},
		submissions: map[string]*models.SubmissionDetail{},
	}
}

func (r *memoryAssignmentRepo) Create(ctx context.Context, a *models.Assignment) error {
	a.ID = "asg-1"
	r.assignments[a.ID] = &models.AssignmentDetail{Assignment: *a}
	return nil
}

func (r *memoryAssignmentRepo) FindByID(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	if a, ok := r.assignments[id]; ok {
		out := *a
		return &out, nil
	}
	return nil, sql.ErrNoRows
}

func (r *memoryAssignmentRepo) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error) {
	var out []models.AssignmentDetail
	for _, a := range r.assignments {
		if a.ClassID == filter.ClassID {
			out = append(out, *a)
		}
	}
	return out, len(out), nil
}

func (r *memoryAssignmentRepo) Update(ctx context.Context, a *models.Assignment) error {
	r.assignments[a.ID].Assignment = *a
	return nil
}

func (r *memoryAssignmentRepo) Delete(ctx context.Context, id string) error {
	delete(r.assignments, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *memoryAssignmentRepo) ListFilePaths(ctx context.Context, assignmentID string) ([]string, error) {
	var out []string
	for _, s := range r.submissions {
		if s.AssignmentID == assignmentID && s.FilePath != nil {
			out = append(out, *s.FilePath)
		}
	}
	return out, nil
}

func (r *memoryAssignmentRepo) UpsertSubmission(ctx context.Context, sub *models.Submission) error {
	for _, existing := range r.submissions {
		if existing.AssignmentID == sub.AssignmentID && existing.StudentID == sub.StudentID {
			if existing.Graded() {
				return repository.ErrSubmissionGraded
			}
			sub.ID = existing.ID
			existing.Submission = *sub
			return nil
		}
	}
	if sub.ID == "" {
		sub.ID = "sub-" + sub.StudentID
	}
	a := r.assignments[sub.AssignmentID]
	r.submissions[sub.ID] = &models.SubmissionDetail{Submission: *sub, MaxScore: a.MaxScore, ClassID: a.ClassID, AssignmentTitle: a.Title}
	return nil
}

func (r *memoryAssignmentRepo) FindSubmission(ctx context.Context, id string) (*models.SubmissionDetail, error) {
	if s, ok := r.submissions[id]; ok {
		out := *s
		return &out, nil
	}
	return nil, sql.ErrNoRows
}

func (r *memoryAssignmentRepo) FindStudentSubmission(ctx context.Context, assignmentID, studentID string) (*models.SubmissionDetail, error) {
	for _, s := range r.submissions {
		if s.AssignmentID == assignmentID && s.StudentID == studentID {
			out := *s
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *memoryAssignmentRepo) Grade(ctx context.Context, id string, score float64, feedback *string, gradedBy string, gradedAt time.Time) error {
	s := r.submissions[id]
	s.Score = &score
	s.Feedback = feedback
	s.GradedBy = &gradedBy
	s.GradedAt = &gradedAt
	return nil
}

func (r *memoryAssignmentRepo) ListSubmissions(ctx context.Context, assignmentID string) ([]models.SubmissionDetail, error) {
	var out []models.SubmissionDetail
	for _, s := range r.submissions {
		if s.AssignmentID == assignmentID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memoryAssignmentRepo) ListStudentSubmissions(ctx context.Context, studentID string, limit int) ([]models.SubmissionDetail, error) {
	var out []models.SubmissionDetail
	for _, s := range r.submissions {
		if s.StudentID == studentID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memoryAssignmentRepo) Upcoming(ctx context.Context, studentID string, from, to time.Time) ([]dto.UpcomingAssignment, error) {
	var out []dto.UpcomingAssignment
	for _, a := range r.assignments {
		if a.DueAt.After(from) && a.DueAt.Before(to) {
			out = append(out, dto.UpcomingAssignment{AssignmentID: a.ID, ClassID: a.ClassID, Title: a.Title, DueAt: a.DueAt})
		}
	}
	return out, nil
}

type memoryFileStore struct {
	files   map[string]string
	deleted []string
}

func (m *memoryFileStore) Save(key string, r io.Reader, maxBytes int64) (int64, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return 0, storage.ErrTooLarge
	}
	m.files[key] = string(body)
	return int64(len(body)), nil
}

func (m *memoryFileStore) Delete(key string) error {
	delete(m.files, key)
	m.deleted = append(m.deleted, key)
	return nil
}

type assignmentFixture struct {
	svc       *AssignmentService
	repo      *memoryAssignmentRepo
	files     *memoryFileStore
	audit     *stubAudit
	publisher *recordingPublisher
	clock     time.Time
}

const assignmentClassID = "66666666-6666-6666-6666-666666666666"

func newAssignmentFixture() *assignmentFixture {
	classSvc, classRepo, _, _ := newTestClassService()
	classRepo.seed(assignmentClassID, "teacher-1", "student-1")

	f := &assignmentFixture{
		repo:      newMemoryAssignmentRepo(),
		files:     &memoryFileStore{files: map[string]string{}},
		audit:     &stubAudit{},
		publisher: &recordingPublisher{},
		clock:     time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewAssignmentService(
		f.repo, classSvc, f.files,
		storage.NewSignedURLSigner("file-secret", time.Minute),
		f.audit, &countingInvalidator{}, f.publisher, nil, nil,
		AssignmentConfig{MaxFileSize: 16},
	)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *assignmentFixture) create(t *testing.T, due time.Time) *models.AssignmentDetail {
	t.Helper()
	a, err := f.svc.Create(context.Background(), teacherActor, models.CreateAssignmentRequest{
		ClassID: assignmentClassID,
		Title:   "Essay",
		DueAt:   due,
	})
	require.NoError(t, err)
	return a
}

func TestAssignmentCreateDefaultsAndBroadcasts(t *testing.T) {
	f := newAssignmentFixture()
	a := f.create(t, f.clock.Add(48*time.Hour))

	assert.Equal(t, float64(defaultMaxScore), a.MaxScore)
	assert.Equal(t, "teacher-1", a.CreatedBy)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, EventAssignmentCreated, f.publisher.events[0].Type)

	_, err := f.svc.Create(context.Background(), studentActor, models.CreateAssignmentRequest{
		ClassID: assignmentClassID, Title: "Nope", DueAt: f.clock,
	})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAssignmentSubmitLifecycle(t *testing.T) {
	f := newAssignmentFixture()
	a := f.create(t, f.clock.Add(time.Hour))
	ctx := context.Background()

	sub, err := f.svc.Submit(ctx, studentActor, a.ID, models.SubmitRequest{Content: "draft"}, &UploadedFile{Name: "../my essay.pdf", Reader: strings.NewReader("v1")})
	require.NoError(t, err)
	assert.False(t, sub.Late)
	require.NotNil(t, sub.FilePath)
	assert.Equal(t, "my_essay.pdf", *sub.FileName)
	assert.True(t, strings.HasPrefix(*sub.FilePath, "submissions/"+a.ID+"/student-1/"))
	firstPath := *sub.FilePath

	f.clock = f.clock.Add(2 * time.Hour)
	resub, err := f.svc.Submit(ctx, studentActor, a.ID, models.SubmitRequest{Content: "final"}, nil)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, resub.ID)
	assert.True(t, resub.Late)
	assert.Equal(t, firstPath, *resub.FilePath)
	assert.Contains(t, f.files.files, firstPath)

	replaced, err := f.svc.Submit(ctx, studentActor, a.ID, models.SubmitRequest{}, &UploadedFile{Name: "v2.txt", Reader: strings.NewReader("v2")})
	require.NoError(t, err)
	assert.NotEqual(t, firstPath, *replaced.FilePath)
	assert.Contains(t, f.files.deleted, firstPath)

	score := 88.0
	_, err = f.svc.Grade(ctx, teacherActor, sub.ID, models.GradeRequest{Score: &score}, models.RequestMeta{})
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, studentActor, a.ID, models.SubmitRequest{Content: "late edit"}, nil)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAssignmentSubmitRejections(t *testing.T) {
	f := newAssignmentFixture()
	a := f.create(t, f.clock.Add(time.Hour))
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, studentActor, a.ID, models.SubmitRequest{Content: "  "}, nil)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Submit(ctx, models.Actor{ID: "student-2", Role: models.RoleStudent}, a.ID, models.SubmitRequest{Content: "hi"}, nil)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Submit(ctx, teacherActor, a.ID, models.SubmitRequest{Content: "hi"}, nil)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Submit(ctx, studentActor, a.ID, models.SubmitRequest{}, &UploadedFile{Name: "big.bin", Reader: strings.NewReader(strings.Repeat("x", 32))})
	assert.Equal(t, appErrors.ErrPayloadTooLarge.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Submit(ctx, studentActor, "missing", models.SubmitRequest{Content: "hi"}, nil)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAssignmentGradeBoundsAndAudit(t *testing.T) {
	f := newAssignmentFixture()
	a := f.create(t, f.clock.Add(time.Hour))
	ctx := context.Background()
	sub, err := f.svc.Submit(ctx, studentActor, a.ID, models.SubmitRequest{Content: "answer"}, nil)
	require.NoError(t, err)

	over := 101.0
	_, err = f.svc.Grade(ctx, teacherActor, sub.ID, models.GradeRequest{Score: &over}, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	negative := -1.0
	_, err = f.svc.Grade(ctx, teacherActor, sub.ID, models.GradeRequest{Score: &negative}, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Grade(ctx, teacherActor, sub.ID, models.GradeRequest{}, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	full := 100.0
	_, err = f.svc.Grade(ctx, studentActor, sub.ID, models.GradeRequest{Score: &full}, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	feedback := "well argued"
	graded, err := f.svc.Grade(ctx, teacherActor, sub.ID, models.GradeRequest{Score: &full, Feedback: &feedback}, models.RequestMeta{IP: "10.1.1.1"})
	require.NoError(t, err)
	assert.Equal(t, 100.0, *graded.Score)
	assert.True(t, graded.Graded())

	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, models.AuditActionSubmissionGrade, f.audit.logs[0].Action)
	last := f.publisher.events[len(f.publisher.events)-1]
	assert.Equal(t, EventSubmissionGraded, last.Type)
	assert.Equal(t, "user:student-1", last.Room)
}

func TestAssignmentSubmissionDownloadURL(t *testing.T) {
	f := newAssignmentFixture()
	a := f.create(t, f.clock.Add(time.Hour))
	ctx := context.Background()

	textOnly, err := f.svc.Submit(ctx, studentActor, a.ID, models.SubmitRequest{Content: "text"}, nil)
	require.NoError(t, err)
	_, err = f.svc.SubmissionDownloadURL(ctx, studentActor, textOnly.ID)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	sub, err := f.svc.Submit(ctx, studentActor, a.ID, models.SubmitRequest{}, &UploadedFile{Name: "notes.txt", Reader: strings.NewReader("abc")})
	require.NoError(t, err)

	link, err := f.svc.SubmissionDownloadURL(ctx, teacherActor, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", link.FileName)
	require.True(t, strings.HasPrefix(link.URL, "/api/files?token="))

	parsed, err := url.Parse(link.URL)
	require.NoError(t, err)
	token, err := storage.NewSignedURLSigner("file-secret", time.Minute).Parse(parsed.Query().Get("token"))
	require.NoError(t, err)
	assert.Equal(t, *sub.FilePath, token.Key)

	_, err = f.svc.SubmissionDownloadURL(ctx, models.Actor{ID: "student-2", Role: models.RoleStudent}, sub.ID)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAssignmentDeleteRemovesFiles(t *testing.T) {
	f := newAssignmentFixture()
	a := f.create(t, f.clock.Add(time.Hour))
	ctx := context.Background()
	sub, err := f.svc.Submit(ctx, studentActor, a.ID, models.SubmitRequest{}, &UploadedFile{Name: "a.txt", Reader: strings.NewReader("a")})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, teacherActor, a.ID))
	assert.Equal(t, []string{a.ID}, f.repo.deleted)
	assert.Contains(t, f.files.deleted, *sub.FilePath)
}

func TestAssignmentUpcomingAndListing(t *testing.T) {
	f := newAssignmentFixture()
	f.create(t, f.clock.Add(72*time.Hour))
	ctx := context.Background()

	upcoming, err := f.svc.Upcoming(ctx, "student-1", 7*24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, upcoming, 1)

	items, page, err := f.svc.ListByClass(ctx, studentActor, models.AssignmentFilter{ClassID: assignmentClassID})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, page.TotalCount)

	_, _, err = f.svc.ListByClass(ctx, models.Actor{ID: "student-2", Role: models.RoleStudent}, models.AssignmentFilter{ClassID: assignmentClassID})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	mine, err := f.svc.MySubmissions(ctx, studentActor)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestCleanFileName(t *testing.T) {
	assert.Equal(t, "report.pdf", cleanFileName("C:\\Users\\me\\report.pdf"))
	assert.Equal(t, "upload", cleanFileName("..."))
	assert.Equal(t, "a_b.txt", cleanFileName("a b.txt"))
}
