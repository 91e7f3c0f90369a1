package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-classroom-api/internal/models"
	"github.com/noah-isme/smart-classroom-api/internal/repository"
	appErrors "github.com/noah-isme/smart-classroom-api/pkg/errors"
	"github.com/noah-isme/smart-classroom-api/pkg/export"
	"github.com/noah-isme/smart-classroom-api/pkg/qrcode"
	"github.com/noah-isme/smart-classroom-api/pkg/realtime"
)

// EventAttendanceCheckedIn is broadcast to the class room after a check-in.
const EventAttendanceCheckedIn = "attendance.checked_in"

type attendanceRepository interface {
	CreateSession(ctx context.Context, session *models.AttendanceSession) error
	FindSession(ctx context.Context, id string) (*models.AttendanceSession, error)
	CreateCheckIn(ctx context.Context, record *models.Attendance) error
	FindBySession(ctx context.Context, studentID, sessionID string) (*models.Attendance, error)
	UpsertManual(ctx context.Context, record *models.Attendance) error
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	Summary(ctx context.Context, filter models.AttendanceFilter) (*models.AttendanceSummary, error)
}

type classAccess interface {
	Authorize(ctx context.Context, actor models.Actor, classID string, manage bool) (*models.ClassDetail, error)
	IsEnrolled(ctx context.Context, classID, studentID string) (bool, error)
	TeachesStudent(ctx context.Context, teacherID, studentID string) (bool, error)
}

type parentLinks interface {
	IsLinked(ctx context.Context, parentID, studentID string) (bool, error)
}

// AttendanceTokenConfig configures QR token signing.
type AttendanceTokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// AttendanceService issues QR tokens and records attendance.
type AttendanceService struct {
	repo      attendanceRepository
	classes   classAccess
	parents   parentLinks
	cache     dashboardInvalidator
	publisher realtime.Publisher
	metrics   *MetricsService
	qr        *qrcode.Encoder
	validator *validator.Validate
	logger    *zap.Logger
	config    AttendanceTokenConfig
	now       func() time.Time
}

// NewAttendanceService wires the attendance flow. publisher and metrics may be nil.
func NewAttendanceService(
	repo attendanceRepository,
	classes classAccess,
	parents parentLinks,
	cache dashboardInvalidator,
	publisher realtime.Publisher,
	metrics *MetricsService,
	qr *qrcode.Encoder,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg AttendanceTokenConfig,
) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if qr == nil {
		qr = qrcode.NewEncoder(0)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	return &AttendanceService{
		repo:      repo,
		classes:   classes,
		parents:   parents,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		qr:        qr,
		validator: validate,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}
}

// IssueToken opens a new attendance session for a class and returns its signed token.
func (s *AttendanceService) IssueToken(ctx context.Context, actor models.Actor, req models.IssueTokenRequest) (*models.AttendanceToken, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid token request")
	}
	if _, err := s.classes.Authorize(ctx, actor, req.ClassID, true); err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Second)
	session := &models.AttendanceSession{
		ID:        uuid.NewString(),
		ClassID:   req.ClassID,
		IssuedBy:  actor.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.config.TTL),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open attendance session")
	}

	token, err := s.sign(session)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign attendance token")
	}
	png, err := s.qr.DataURL(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render QR code")
	}

	return &models.AttendanceToken{
		Token:     token,
		SessionID: session.ID,
		ClassID:   session.ClassID,
		ExpiresAt: session.ExpiresAt,
		QRCode:    png,
	}, nil
}

// SessionQR renders the QR image of a session while it is still valid.
func (s *AttendanceService) SessionQR(ctx context.Context, actor models.Actor, sessionID string) ([]byte, error) {
	session, err := s.repo.FindSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance session")
	}
	if _, err := s.classes.Authorize(ctx, actor, session.ClassID, true); err != nil {
		return nil, err
	}
	if !s.now().Before(session.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrGone, "attendance session expired")
	}

	token, err := s.sign(session)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign attendance token")
	}
	png, err := s.qr.PNG(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render QR code")
	}
	return png, nil
}

// CheckIn records a student's attendance from a scanned token.
func (s *AttendanceService) CheckIn(ctx context.Context, actor models.Actor, req models.CheckInRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordCheckIn(CheckInInvalid)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "token is required")
	}
	if actor.Role != models.RoleStudent {
		s.metrics.RecordCheckIn(CheckInForbidden)
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can check in")
	}

	claims, err := s.parse(req.Token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			s.metrics.RecordCheckIn(CheckInExpired)
			return nil, appErrors.Clone(appErrors.ErrGone, "attendance token expired")
		}
		s.metrics.RecordCheckIn(CheckInInvalid)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance token")
	}

	enrolled, err := s.classes.IsEnrolled(ctx, claims.ClassID, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrolment")
	}
	if !enrolled {
		s.metrics.RecordCheckIn(CheckInForbidden)
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not enrolled in this class")
	}

	sessionID := claims.ID
	record := &models.Attendance{
		ClassID:   claims.ClassID,
		StudentID: actor.ID,
		SessionID: &sessionID,
		Status:    models.AttendancePresent,
		MarkedAt:  s.now().UTC(),
		MarkedBy:  actor.ID,
	}
	if err := s.repo.CreateCheckIn(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.metrics.RecordCheckIn(CheckInDuplicate)
			existing, findErr := s.repo.FindBySession(ctx, actor.ID, sessionID)
			if findErr != nil {
				return nil, appErrors.Wrap(findErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing check-in")
			}
			return existing, appErrors.Clone(appErrors.ErrConflict, "already checked in for this session")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record check-in")
	}

	s.metrics.RecordCheckIn(CheckInAccepted)
	s.cache.InvalidateDashboards(ctx)
	if s.publisher != nil {
		s.publisher.Publish(realtime.ClassRoom(record.ClassID), realtime.Event{
			Type: EventAttendanceCheckedIn,
			Data: map[string]interface{}{
				"student_id":   actor.ID,
				"student_name": actor.Name,
				"session_id":   sessionID,
				"marked_at":    record.MarkedAt,
			},
		})
	}
	return record, nil
}

// Mark stores a teacher's manual attendance mark for one student and day.
func (s *AttendanceService) Mark(ctx context.Context, actor models.Actor, req models.MarkAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance mark")
	}
	if _, err := s.classes.Authorize(ctx, actor, req.ClassID, true); err != nil {
		return nil, err
	}
	enrolled, err := s.classes.IsEnrolled(ctx, req.ClassID, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrolment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is not enrolled in this class")
	}

	markedAt := s.now().UTC()
	if req.Date != nil {
		markedAt = req.Date.UTC()
	}
	record := &models.Attendance{
		ClassID:   req.ClassID,
		StudentID: req.StudentID,
		Status:    req.Status,
		MarkedAt:  markedAt,
		MarkedBy:  actor.ID,
		Notes:     req.Notes,
	}
	if err := s.repo.UpsertManual(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}
	s.cache.InvalidateDashboards(ctx)
	return record, nil
}

// ClassRecords lists attendance for a class the actor manages.
func (s *AttendanceService) ClassRecords(ctx context.Context, actor models.Actor, filter models.AttendanceFilter) ([]models.AttendanceRecord, *models.Pagination, error) {
	if _, err := s.classes.Authorize(ctx, actor, filter.ClassID, true); err != nil {
		return nil, nil, err
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid attendance status")
	}
	filter.Unpaged = false
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// StudentHistory returns a student's attendance with summary. Visible to the
// student, their teachers, linked parents and admins.
func (s *AttendanceService) StudentHistory(ctx context.Context, actor models.Actor, studentID string, from, to *time.Time) (*models.StudentAttendanceHistory, error) {
	if err := s.canViewStudent(ctx, actor, studentID); err != nil {
		return nil, err
	}

	filter := models.AttendanceFilter{StudentID: studentID, From: from, To: to, Unpaged: true}
	records, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	summary, err := s.repo.Summary(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}
	return &models.StudentAttendanceHistory{StudentID: studentID, Summary: *summary, Records: records}, nil
}

// Summary aggregates attendance for a student over a window without access checks.
func (s *AttendanceService) Summary(ctx context.Context, studentID string, from *time.Time) (*models.AttendanceSummary, error) {
	summary, err := s.repo.Summary(ctx, models.AttendanceFilter{StudentID: studentID, From: from})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	return summary, nil
}

// ExportClass renders a class attendance report.
func (s *AttendanceService) ExportClass(ctx context.Context, actor models.Actor, classID string, from, to *time.Time, format export.Format) ([]byte, string, error) {
	class, err := s.classes.Authorize(ctx, actor, classID, true)
	if err != nil {
		return nil, "", err
	}
	records, _, err := s.repo.List(ctx, models.AttendanceFilter{ClassID: classID, From: from, To: to, Unpaged: true})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}

	dataset := export.Dataset{
		Title:    "Attendance - " + class.Name,
		Subtitle: exportWindow(from, to),
		Headers:  []string{"Date", "Student", "Status", "Source", "Notes"},
		Rows:     make([]map[string]string, 0, len(records)),
	}
	for _, r := range records {
		source := "manual"
		if r.SessionID != nil {
			source = "qr"
		}
		notes := ""
		if r.Notes != nil {
			notes = *r.Notes
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":    r.MarkedAt.Format("2006-01-02 15:04"),
			"Student": r.StudentName,
			"Status":  string(r.Status),
			"Source":  source,
			"Notes":   notes,
		})
	}

	body, err := export.Render(format, dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render attendance export")
	}
	filename := fmt.Sprintf("attendance-%s-%s.%s", classID, strconv.FormatInt(s.now().Unix(), 10), format)
	return body, filename, nil
}

func (s *AttendanceService) canViewStudent(ctx context.Context, actor models.Actor, studentID string) error {
	var (
		ok  bool
		err error
	)
	switch actor.Role {
	case models.RoleAdmin:
		ok = true
	case models.RoleStudent:
		ok = actor.ID == studentID
	case models.RoleTeacher:
		ok, err = s.classes.TeachesStudent(ctx, actor.ID, studentID)
	case models.RoleParent:
		ok, err = s.parents.IsLinked(ctx, actor.ID, studentID)
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check access")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot view this student's attendance")
	}
	return nil
}

func (s *AttendanceService) sign(session *models.AttendanceSession) (string, error) {
	claims := models.AttendanceTokenClaims{
		ClassID: session.ClassID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

func (s *AttendanceService) parse(raw string) (*models.AttendanceTokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}

	claims := &models.AttendanceTokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.ClassID == "" || claims.ID == "" {
		return nil, errors.New("attendance token missing class or session")
	}
	return claims, nil
}

func exportWindow(from, to *time.Time) string {
	const layout = "2006-01-02"
	switch {
	case from != nil && to != nil:
		return from.Format(layout) + " to " + to.Format(layout)
	case from != nil:
		return "since " + from.Format(layout)
	case to != nil:
		return "until " + to.Format(layout)
	default:
		return "all records"
	}
}
