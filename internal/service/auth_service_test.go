package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/smart-classroom-api/internal/models"
	"github.com/noah-isme/smart-classroom-api/internal/repository"
	appErrors "github.com/noah-isme/smart-classroom-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail         *models.User
	userByID            *models.User
	findByEmailErr      error
	findByIDErr         error
	created             []*models.User
	consumedInvitation  string
	createErr           error
	refreshTokens       map[string]*models.RefreshToken
	refreshTokenErr     error
	createRefreshErr    error
	revokeRefreshErr    error
	revokeUserTokensErr error
	revokedUsers        []string
	updatePasswordErr   error
	resets              map[string]*models.PasswordReset
	auditLogs           []*models.AuditLog
	lastLoginUpdated    bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.userByID != nil {
		return m.userByID, nil
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, user)
	return nil
}

func (m *mockAuthRepo) CreateWithInvitation(ctx context.Context, user *models.User, invitationID string) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, user)
	m.consumedInvitation = invitationID
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.updatePasswordErr != nil {
		return m.updatePasswordErr
	}
	if m.userByEmail != nil && m.userByEmail.ID == id {
		m.userByEmail.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedUsers = append(m.revokedUsers, userID)
	return m.revokeUserTokensErr
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if m.refreshTokenErr != nil {
		return nil, m.refreshTokenErr
	}
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	if m.revokeRefreshErr != nil {
		return m.revokeRefreshErr
	}
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreatePasswordReset(ctx context.Context, reset *models.PasswordReset) error {
	if m.resets == nil {
		m.resets = make(map[string]*models.PasswordReset)
	}
	m.resets[reset.TokenHash] = reset
	return nil
}

func (m *mockAuthRepo) FindPasswordReset(ctx context.Context, tokenHash string) (*models.PasswordReset, error) {
	reset, ok := m.resets[tokenHash]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return reset, nil
}

func (m *mockAuthRepo) MarkPasswordResetUsed(ctx context.Context, id string, usedAt time.Time) (bool, error) {
	for _, reset := range m.resets {
		if reset.ID == id {
			if reset.UsedAt != nil {
				return false, nil
			}
			reset.UsedAt = &usedAt
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type stubInvitationValidator struct {
	inv *models.InvitationCode
	err error
}

func (s *stubInvitationValidator) Validate(ctx context.Context, code, email string) (*models.InvitationCode, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.inv, nil
}

type stubResetNotifier struct {
	tokens []string
}

func (s *stubResetNotifier) PasswordReset(ctx context.Context, user *models.User, token string, expiresAt time.Time) error {
	s.tokens = append(s.tokens, token)
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, RefreshTokenExpiry: 24 * time.Hour}
}

func newTestAuthService(repo *mockAuthRepo, invitations invitationValidator, notifier passwordResetNotifier) *AuthService {
	return NewAuthService(repo, invitations, notifier, validator.New(), zap.NewNop(), testAuthConfig())
}

func TestAuthServiceRegisterStudentByDefault(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newTestAuthService(repo, &stubInvitationValidator{}, nil)

	res, err := svc.Register(context.Background(), models.RegisterRequest{Email: "Ana@Example.com", Password: "password1", FullName: "Ana"}, models.RequestMeta{})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "ana@example.com", repo.created[0].Email)
	assert.Equal(t, models.RoleStudent, res.User.Role)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, models.AuditActionRegister, repo.auditLogs[0].Action)
}

func TestAuthServiceRegisterTeacherRequiresInvitation(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newTestAuthService(repo, &stubInvitationValidator{}, nil)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "t@example.com", Password: "password1", FullName: "T", Role: models.RoleTeacher}, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestAuthServiceRegisterWithInvitation(t *testing.T) {
	repo := &mockAuthRepo{}
	invitations := &stubInvitationValidator{inv: &models.InvitationCode{ID: "inv-1", Code: "ABCDEFGHJK", Role: models.RoleTeacher}}
	svc := newTestAuthService(repo, invitations, nil)

	res, err := svc.Register(context.Background(), models.RegisterRequest{Email: "t@example.com", Password: "password1", FullName: "T", InvitationCode: "abcdefghjk"}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, res.User.Role)
	assert.Equal(t, "inv-1", repo.consumedInvitation)
	require.Len(t, repo.auditLogs, 2)
	assert.Equal(t, models.AuditActionInvitationConsume, repo.auditLogs[1].Action)
}

func TestAuthServiceRegisterInvitationRoleMismatch(t *testing.T) {
	repo := &mockAuthRepo{}
	invitations := &stubInvitationValidator{inv: &models.InvitationCode{ID: "inv-1", Role: models.RoleTeacher}}
	svc := newTestAuthService(repo, invitations, nil)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "t@example.com", Password: "password1", FullName: "T", Role: models.RoleAdmin, InvitationCode: "ABCDEFGHJK"}, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterInvitationConsumedConcurrently(t *testing.T) {
	repo := &mockAuthRepo{createErr: repository.ErrInvitationUnavailable}
	invitations := &stubInvitationValidator{inv: &models.InvitationCode{ID: "inv-1", Role: models.RoleTeacher}}
	svc := newTestAuthService(repo, invitations, nil)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "t@example.com", Password: "password1", FullName: "T", InvitationCode: "ABCDEFGHJK"}, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrGone.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "ana@example.com"}}
	svc := newTestAuthService(repo, &stubInvitationValidator{}, nil)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "ana@example.com", Password: "password1", FullName: "Ana"}, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), Active: true, Role: models.RoleAdmin}}
	svc := newTestAuthService(repo, nil, nil)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"}, models.RequestMeta{IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.True(t, repo.lastLoginUpdated)
	assert.Equal(t, "10.0.0.1", repo.refreshTokens[res.RefreshToken].IPAddress)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), Active: false}}
	svc := newTestAuthService(repo, nil, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"}, models.RequestMeta{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), Active: true}}
	svc := newTestAuthService(repo, nil, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "nope"}, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshToken(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: make(map[string]*models.RefreshToken)}
	user := &models.User{ID: "u1", Email: "user@example.com", PasswordHash: "hash", Active: true, Role: models.RoleAdmin}
	repo.userByEmail = user
	repo.userByID = user
	token := &models.RefreshToken{ID: "rt1", UserID: user.ID, Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	repo.refreshTokens[token.Token] = token

	svc := newTestAuthService(repo, nil, nil)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"}, models.RequestMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["token"].Revoked)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"}, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogoutForeignToken(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{"tok": {ID: "rt1", UserID: "someone-else", Token: "tok"}}}
	svc := newTestAuthService(repo, nil, nil)

	err := svc.Logout(context.Background(), "tok", "u1", models.RequestMeta{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePassword(t *testing.T) {
	oldHash, _ := bcrypt.GenerateFromPassword([]byte("oldpassword"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", PasswordHash: string(oldHash), Active: true}}
	svc := newTestAuthService(repo, nil, nil)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "oldpassword", NewPassword: "newpassword"}, models.RequestMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, string(oldHash), repo.userByEmail.PasswordHash)
	assert.Equal(t, []string{"u1"}, repo.revokedUsers)
}

func TestAuthServiceForgotAndResetPassword(t *testing.T) {
	oldHash, _ := bcrypt.GenerateFromPassword([]byte("oldpassword"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "ana@example.com", PasswordHash: string(oldHash), Active: true}}
	notifier := &stubResetNotifier{}
	svc := newTestAuthService(repo, nil, notifier)
	ctx := context.Background()

	require.NoError(t, svc.ForgotPassword(ctx, models.ForgotPasswordRequest{Email: "ana@example.com"}))
	require.Len(t, notifier.tokens, 1)
	token := notifier.tokens[0]
	_, stored := repo.resets[token]
	assert.False(t, stored, "only the token hash is persisted")

	require.NoError(t, svc.ResetPassword(ctx, models.ResetPasswordRequest{Token: token, NewPassword: "brandnewpass"}, models.RequestMeta{}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.userByEmail.PasswordHash), []byte("brandnewpass")))

	err := svc.ResetPassword(ctx, models.ResetPasswordRequest{Token: token, NewPassword: "anotherpass"}, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrGone.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceForgotPasswordUnknownEmail(t *testing.T) {
	repo := &mockAuthRepo{}
	notifier := &stubResetNotifier{}
	svc := newTestAuthService(repo, nil, notifier)

	require.NoError(t, svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "ghost@example.com"}))
	assert.Empty(t, notifier.tokens)
}

func TestAuthServiceResetPasswordExpired(t *testing.T) {
	repo := &mockAuthRepo{resets: map[string]*models.PasswordReset{
		hashToken("stale"): {ID: "r1", UserID: "u1", TokenHash: hashToken("stale"), ExpiresAt: time.Now().Add(-time.Minute)},
	}}
	svc := newTestAuthService(repo, nil, nil)

	err := svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Token: "stale", NewPassword: "brandnewpass"}, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrGone.Code, appErrors.FromError(err).Code)
}

func TestValidateToken(t *testing.T) {
	svc := newTestAuthService(&mockAuthRepo{}, nil, nil)
	user := &models.User{ID: "u1", Email: "user@example.com", Role: models.RoleAdmin}
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestValidateTokenChecksIssuer(t *testing.T) {
	cfg := testAuthConfig()
	cfg.Issuer = "classroom"
	svc := NewAuthService(&mockAuthRepo{}, nil, nil, validator.New(), zap.NewNop(), cfg)
	user := &models.User{ID: "u1", Email: "user@example.com", Role: models.RoleTeacher}

	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{
		UserID:           "u1",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "elsewhere", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	signed, err := foreign.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsOtherAlgorithms(t *testing.T) {
	svc := newTestAuthService(&mockAuthRepo{}, nil, nil)
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, &models.JWTClaims{UserID: "u1"})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}
