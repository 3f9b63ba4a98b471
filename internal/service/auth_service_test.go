package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/unihub-dev/clearance-api/internal/models"
	appErrors "github.com/unihub-dev/clearance-api/pkg/errors"
)

type mockAuthRepo struct {
	users       map[string]models.User
	byEmail     map[string]string
	tokens      map[string]models.RefreshToken
	revoked     []string
	revokedAll  []string
	lastLogin   map[string]time.Time
	passwords   map[string]string
	auditLogged []models.AuditLog
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		users:     map[string]models.User{},
		byEmail:   map[string]string{},
		tokens:    map[string]models.RefreshToken{},
		lastLogin: map[string]time.Time{},
		passwords: map[string]string{},
	}
}

func (m *mockAuthRepo) addUser(user models.User) {
	m.users[user.ID] = user
	m.byEmail[user.Email] = user.ID
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if id, ok := m.byEmail[email]; ok {
		u := m.users[id]
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLogin[id] = ts
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwords[id] = passwordHash
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.tokens[token.Token] = *token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.tokens[token]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.revoked = append(m.revoked, id)
	for key, t := range m.tokens {
		if t.ID == id {
			t.Revoked = true
			m.tokens[key] = t
		}
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAll = append(m.revokedAll, userID)
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogged = append(m.auditLogged, *log)
	return nil
}

func seedUser(t *testing.T, repo *mockAuthRepo, password string, active bool) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := models.User{
		ID:           "usr-1",
		Email:        "student@unihub.edu",
		PasswordHash: string(hash),
		FullName:     "Test Student",
		Role:         models.RoleStudent,
		Active:       active,
	}
	repo.addUser(user)
	return user
}

func newTestAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, nil, nil, AuthServiceConfig{JWTSecret: "test-secret"})
}

func TestLoginIssuesTokens(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "secret123", true)
	svc := newTestAuthService(repo)

	result, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@unihub.edu", Password: "secret123"})
	require.NoError(t, err)

	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, models.RoleStudent, result.User.Role)
	assert.Contains(t, repo.lastLogin, "usr-1")
	require.Len(t, repo.auditLogged, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogged[0].Action)

	claims, err := svc.ParseToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "usr-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "secret123", true)
	svc := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@unihub.edu", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "secret123", false)
	svc := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@unihub.edu", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "secret123", true)
	svc := newTestAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@unihub.edu", Password: "secret123"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	require.Len(t, repo.revoked, 1)

	// The rotated-out token is rejected on reuse.
	_, err = svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "secret123", true)
	repo.tokens["stale"] = models.RefreshToken{
		ID:        "tok-1",
		UserID:    "usr-1",
		Token:     "stale",
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	svc := newTestAuthService(repo)

	_, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "secret123", true)
	svc := newTestAuthService(repo)

	err := svc.ChangePassword(context.Background(), &models.JWTClaims{UserID: "usr-1", Role: models.RoleStudent}, models.ChangePasswordRequest{
		OldPassword: "secret123",
		NewPassword: "evenmoresecret",
	})
	require.NoError(t, err)
	assert.Contains(t, repo.passwords, "usr-1")
	assert.Contains(t, repo.revokedAll, "usr-1")
}

func TestParseTokenRejectsTampering(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(t, repo, "secret123", true)
	svc := newTestAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@unihub.edu", Password: "secret123"})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, nil, AuthServiceConfig{JWTSecret: "other-secret"})
	_, err = other.ParseToken(login.AccessToken)
	require.Error(t, err)
}
