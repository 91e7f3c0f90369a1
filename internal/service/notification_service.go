package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-classroom-api/internal/models"
	"github.com/noah-isme/smart-classroom-api/pkg/config"
	"github.com/noah-isme/smart-classroom-api/pkg/jobs"
	"github.com/noah-isme/smart-classroom-api/pkg/mailer"
)

const (
	jobTypePasswordReset = "email.password_reset"
	jobTypeInvitation    = "email.invitation"
)

var errUnexpectedPayload = errors.New("unexpected email job payload")

// NotificationService renders transactional emails and hands them to a
// background queue so request paths never wait on the mail provider.
type NotificationService struct {
	mailer mailer.Mailer
	cfg    config.MailConfig
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService builds the service and its delivery queue. Start must
// be called before emails are accepted.
func NewNotificationService(m mailer.Mailer, cfg config.MailConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{mailer: m, cfg: cfg, logger: logger}
	s.queue = jobs.NewQueue("email", s.deliver, jobs.QueueConfig{
		Workers:    2,
		BufferSize: 256,
		MaxRetries: cfg.WorkerRetries,
		RetryDelay: time.Second,
		Logger:     logger,
	})
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains in-flight deliveries.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Stats reports delivery queue counters.
func (s *NotificationService) Stats() jobs.Stats {
	return s.queue.Stats()
}

// PasswordReset enqueues the reset link for user.
func (s *NotificationService) PasswordReset(ctx context.Context, user *models.User, token string, expiresAt time.Time) error {
	link := withQuery(s.cfg.ResetPasswordURL, "token", token)
	msg := mailer.Message{
		To:      []mailer.Address{{Name: user.FullName, Email: user.Email}},
		Subject: "Reset your Smart Classroom password",
		Text: fmt.Sprintf("Hi %s,\n\nUse the link below to choose a new password. It expires at %s.\n\n%s\n\nIf you did not ask for this you can ignore this email.\n",
			user.FullName, expiresAt.UTC().Format(time.RFC1123), link),
		HTML: fmt.Sprintf(`<p>Hi %s,</p><p>Use the link below to choose a new password. It expires at %s.</p><p><a href="%s">Reset password</a></p><p>If you did not ask for this you can ignore this email.</p>`,
			user.FullName, expiresAt.UTC().Format(time.RFC1123), link),
	}
	return s.enqueue(jobTypePasswordReset, msg)
}

// Invitation enqueues an invitation code email.
func (s *NotificationService) Invitation(ctx context.Context, inv *models.InvitationCode) error {
	if inv.Email == nil || *inv.Email == "" {
		return nil
	}
	link := withQuery(s.cfg.SignupURL, "code", inv.Code)
	msg := mailer.Message{
		To:      []mailer.Address{{Email: *inv.Email}},
		Subject: "You're invited to Smart Classroom",
		Text: fmt.Sprintf("You have been invited to join Smart Classroom as %s.\n\nInvitation code: %s\nSign up: %s\n\nThe code expires at %s.\n",
			inv.Role, inv.Code, link, inv.ExpiresAt.UTC().Format(time.RFC1123)),
		HTML: fmt.Sprintf(`<p>You have been invited to join Smart Classroom as <strong>%s</strong>.</p><p>Invitation code: <code>%s</code></p><p><a href="%s">Create your account</a></p><p>The code expires at %s.</p>`,
			inv.Role, inv.Code, link, inv.ExpiresAt.UTC().Format(time.RFC1123)),
	}
	return s.enqueue(jobTypeInvitation, msg)
}

func (s *NotificationService) enqueue(jobType string, msg mailer.Message) error {
	job := jobs.Job{ID: uuid.NewString(), Type: jobType, Payload: msg}
	if err := s.queue.Enqueue(job); err != nil {
		return fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(mailer.Message)
	if !ok {
		return errUnexpectedPayload
	}
	sendCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := s.mailer.Send(sendCtx, msg); err != nil {
		return err
	}
	s.logger.Info("email delivered", zap.String("type", job.Type), zap.String("job_id", job.ID))
	return nil
}

func withQuery(base, key, value string) string {
	u, err := url.Parse(base)
	if err != nil || base == "" {
		return fmt.Sprintf("%s?%s=%s", base, key, url.QueryEscape(value))
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
