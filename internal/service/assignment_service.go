package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-classroom-api/internal/dto"
	"github.com/noah-isme/smart-classroom-api/internal/models"
	"github.com/noah-isme/smart-classroom-api/internal/repository"
	appErrors "github.com/noah-isme/smart-classroom-api/pkg/errors"
	"github.com/noah-isme/smart-classroom-api/pkg/realtime"
	"github.com/noah-isme/smart-classroom-api/pkg/storage"
)

const (
	// EventAssignmentCreated is broadcast to the class room when coursework is published.
	EventAssignmentCreated = "assignment.created"
	// EventSubmissionGraded is pushed to the student's private room.
	EventSubmissionGraded = "submission.graded"

	defaultMaxScore       = 100
	mySubmissionsLimit    = 100
	maxStoredFileNameRune = 120
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type assignmentRepository interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	FindByID(ctx context.Context, id string) (*models.AssignmentDetail, error)
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error)
	Update(ctx context.Context, assignment *models.Assignment) error
	Delete(ctx context.Context, id string) error
	ListFilePaths(ctx context.Context, assignmentID string) ([]string, error)
	UpsertSubmission(ctx context.Context, submission *models.Submission) error
	FindSubmission(ctx context.Context, id string) (*models.SubmissionDetail, error)
	FindStudentSubmission(ctx context.Context, assignmentID, studentID string) (*models.SubmissionDetail, error)
	Grade(ctx context.Context, id string, score float64, feedback *string, gradedBy string, gradedAt time.Time) error
	ListSubmissions(ctx context.Context, assignmentID string) ([]models.SubmissionDetail, error)
	ListStudentSubmissions(ctx context.Context, studentID string, limit int) ([]models.SubmissionDetail, error)
	Upcoming(ctx context.Context, studentID string, from, to time.Time) ([]dto.UpcomingAssignment, error)
}

type fileStore interface {
	Save(key string, r io.Reader, maxBytes int64) (int64, error)
	Delete(key string) error
}

type fileSigner interface {
	Generate(ownerID, key string) (string, time.Time, error)
}

// UploadedFile is an attachment streamed from a multipart request.
type UploadedFile struct {
	Name   string
	Reader io.Reader
}

// AssignmentConfig bounds uploads and shapes download links.
type AssignmentConfig struct {
	MaxFileSize  int64
	DownloadPath string
}

// AssignmentService manages coursework, submissions and grading.
type AssignmentService struct {
	repo      assignmentRepository
	classes   classAccess
	files     fileStore
	signer    fileSigner
	audit     auditRecorder
	cache     dashboardInvalidator
	publisher realtime.Publisher
	validator *validator.Validate
	logger    *zap.Logger
	config    AssignmentConfig
	now       func() time.Time
}

// NewAssignmentService constructs an AssignmentService. publisher may be nil.
func NewAssignmentService(
	repo assignmentRepository,
	classes classAccess,
	files fileStore,
	signer fileSigner,
	audit auditRecorder,
	cache dashboardInvalidator,
	publisher realtime.Publisher,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg AssignmentConfig,
) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.DownloadPath == "" {
		cfg.DownloadPath = "/api/files"
	}
	return &AssignmentService{
		repo:      repo,
		classes:   classes,
		files:     files,
		signer:    signer,
		audit:     audit,
		cache:     cache,
		publisher: publisher,
		validator: validate,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}
}

// Create publishes an assignment to a class the actor manages.
func (s *AssignmentService) Create(ctx context.Context, actor models.Actor, req models.CreateAssignmentRequest) (*models.AssignmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if _, err := s.classes.Authorize(ctx, actor, req.ClassID, true); err != nil {
		return nil, err
	}

	assignment := &models.Assignment{
		ClassID:     req.ClassID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		DueAt:       req.DueAt.UTC(),
		MaxScore:    req.MaxScore,
		CreatedBy:   actor.ID,
	}
	if assignment.MaxScore == 0 {
		assignment.MaxScore = defaultMaxScore
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	detail, err := s.load(ctx, assignment.ID)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateDashboards(ctx)
	if s.publisher != nil {
		s.publisher.Publish(realtime.ClassRoom(detail.ClassID), realtime.Event{Type: EventAssignmentCreated, Data: detail})
	}
	return detail, nil
}

// Get returns an assignment visible to the actor.
func (s *AssignmentService) Get(ctx context.Context, actor models.Actor, id string) (*models.AssignmentDetail, error) {
	detail, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.classes.Authorize(ctx, actor, detail.ClassID, false); err != nil {
		return nil, err
	}
	return detail, nil
}

// ListByClass lists a class's assignments for any class member.
func (s *AssignmentService) ListByClass(ctx context.Context, actor models.Actor, filter models.AssignmentFilter) ([]models.AssignmentDetail, *models.Pagination, error) {
	if _, err := s.classes.Authorize(ctx, actor, filter.ClassID, false); err != nil {
		return nil, nil, err
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Update edits an assignment. Lowering max_score below an existing grade is allowed.
func (s *AssignmentService) Update(ctx context.Context, actor models.Actor, id string, req models.UpdateAssignmentRequest) (*models.AssignmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	detail, err := s.authorizeManage(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	assignment := detail.Assignment
	assignment.Title = strings.TrimSpace(req.Title)
	assignment.Description = req.Description
	assignment.DueAt = req.DueAt.UTC()
	assignment.MaxScore = req.MaxScore
	if err := s.repo.Update(ctx, &assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}
	s.cache.InvalidateDashboards(ctx)
	return s.load(ctx, id)
}

// Delete removes an assignment, its submissions and their stored files.
func (s *AssignmentService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if _, err := s.authorizeManage(ctx, actor, id); err != nil {
		return err
	}
	paths, err := s.repo.ListFilePaths(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submission files")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	for _, p := range paths {
		s.removeFile(p)
	}
	s.cache.InvalidateDashboards(ctx)
	return nil
}

// Submit stores or replaces the calling student's submission. A new file
// replaces the previous one; a text-only resubmission keeps it.
func (s *AssignmentService) Submit(ctx context.Context, actor models.Actor, assignmentID string, req models.SubmitRequest, file *UploadedFile) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission")
	}
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can submit")
	}
	if strings.TrimSpace(req.Content) == "" && file == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "content or file is required")
	}

	assignment, err := s.load(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	enrolled, err := s.classes.IsEnrolled(ctx, assignment.ClassID, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrolment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not enrolled in this class")
	}

	previous, err := s.repo.FindStudentSubmission(ctx, assignmentID, actor.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if previous != nil && previous.Graded() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "submission already graded")
	}

	now := s.now().UTC()
	submission := &models.Submission{
		AssignmentID: assignmentID,
		StudentID:    actor.ID,
		Content:      req.Content,
		SubmittedAt:  now,
		Late:         now.After(assignment.DueAt),
	}
	if previous != nil {
		submission.ID = previous.ID
		submission.FilePath = previous.FilePath
		submission.FileName = previous.FileName
	}

	var storedKey string
	if file != nil {
		name := cleanFileName(file.Name)
		storedKey = path.Join("submissions", assignmentID, actor.ID, uuid.NewString(), name)
		if _, err := s.files.Save(storedKey, file.Reader, s.config.MaxFileSize); err != nil {
			if errors.Is(err, storage.ErrTooLarge) {
				return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, "file exceeds the upload limit")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
		}
		submission.FilePath = &storedKey
		submission.FileName = &name
	}

	if err := s.repo.UpsertSubmission(ctx, submission); err != nil {
		if storedKey != "" {
			s.removeFile(storedKey)
		}
		if errors.Is(err, repository.ErrSubmissionGraded) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "submission already graded")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save submission")
	}
	if storedKey != "" && previous != nil && previous.FilePath != nil {
		s.removeFile(*previous.FilePath)
	}
	s.cache.InvalidateDashboards(ctx)
	return submission, nil
}

// ListSubmissions returns every submission of an assignment to its class teacher.
func (s *AssignmentService) ListSubmissions(ctx context.Context, actor models.Actor, assignmentID string) ([]models.SubmissionDetail, error) {
	if _, err := s.authorizeManage(ctx, actor, assignmentID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListSubmissions(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	if items == nil {
		items = []models.SubmissionDetail{}
	}
	return items, nil
}

// MySubmissions returns the calling student's most recent submissions.
func (s *AssignmentService) MySubmissions(ctx context.Context, actor models.Actor) ([]models.SubmissionDetail, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students have submissions")
	}
	return s.RecentSubmissions(ctx, actor.ID, mySubmissionsLimit)
}

// RecentSubmissions lists a student's latest submissions without access checks.
func (s *AssignmentService) RecentSubmissions(ctx context.Context, studentID string, limit int) ([]models.SubmissionDetail, error) {
	items, err := s.repo.ListStudentSubmissions(ctx, studentID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	if items == nil {
		items = []models.SubmissionDetail{}
	}
	return items, nil
}

// Upcoming lists a student's assignments due within window from now.
func (s *AssignmentService) Upcoming(ctx context.Context, studentID string, window time.Duration) ([]dto.UpcomingAssignment, error) {
	now := s.now().UTC()
	items, err := s.repo.Upcoming(ctx, studentID, now, now.Add(window))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list upcoming assignments")
	}
	if items == nil {
		items = []dto.UpcomingAssignment{}
	}
	return items, nil
}

// Grade scores a submission within [0, max_score].
func (s *AssignmentService) Grade(ctx context.Context, actor models.Actor, submissionID string, req models.GradeRequest, meta models.RequestMeta) (*models.SubmissionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade")
	}
	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.classes.Authorize(ctx, actor, submission.ClassID, true); err != nil {
		return nil, err
	}
	if *req.Score > submission.MaxScore {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score exceeds the assignment maximum")
	}

	now := s.now().UTC()
	if err := s.repo.Grade(ctx, submissionID, *req.Score, req.Feedback, actor.ID, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grade submission")
	}

	var oldScore interface{}
	if submission.Score != nil {
		oldScore = *submission.Score
	}
	oldPayload, _ := json.Marshal(map[string]interface{}{"score": oldScore})
	newPayload, _ := json.Marshal(map[string]interface{}{"score": *req.Score, "student_id": submission.StudentID})
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionSubmissionGrade,
		Resource:   "submissions",
		ResourceID: &submission.ID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record grade audit log", zap.Error(err))
	}

	s.cache.InvalidateDashboards(ctx)
	graded, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if s.publisher != nil {
		s.publisher.Publish(realtime.UserRoom(graded.StudentID), realtime.Event{
			Type: EventSubmissionGraded,
			Data: map[string]interface{}{
				"submission_id": graded.ID,
				"assignment_id": graded.AssignmentID,
				"title":         graded.AssignmentTitle,
				"score":         graded.Score,
			},
		})
	}
	return graded, nil
}

// SubmissionDownloadURL signs a short-lived link to a submission's file for
// the submitting student or the class teacher.
func (s *AssignmentService) SubmissionDownloadURL(ctx context.Context, actor models.Actor, submissionID string) (*models.FileDownload, error) {
	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if actor.ID != submission.StudentID {
		if _, err := s.classes.Authorize(ctx, actor, submission.ClassID, true); err != nil {
			return nil, err
		}
	}
	if submission.FilePath == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "submission has no file")
	}

	token, expiresAt, err := s.signer.Generate(actor.ID, *submission.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	name := path.Base(*submission.FilePath)
	if submission.FileName != nil {
		name = *submission.FileName
	}
	return &models.FileDownload{
		URL:       s.config.DownloadPath + "?token=" + url.QueryEscape(token),
		FileName:  name,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *AssignmentService) authorizeManage(ctx context.Context, actor models.Actor, id string) (*models.AssignmentDetail, error) {
	detail, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.classes.Authorize(ctx, actor, detail.ClassID, true); err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *AssignmentService) load(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return detail, nil
}

func (s *AssignmentService) loadSubmission(ctx context.Context, id string) (*models.SubmissionDetail, error) {
	submission, err := s.repo.FindSubmission(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	return submission, nil
}

func (s *AssignmentService) removeFile(key string) {
	if err := s.files.Delete(key); err != nil {
		s.logger.Warn("failed to delete stored file", zap.String("key", key), zap.Error(err))
	}
}

func cleanFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Trim(unsafeFileChars.ReplaceAllString(name, "_"), "._")
	if name == "" {
		return "upload"
	}
	if runes := []rune(name); len(runes) > maxStoredFileNameRune {
		name = string(runes[len(runes)-maxStoredFileNameRune:])
	}
	return name
}
