package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/unihub-dev/clearance-api/internal/models"
	appErrors "github.com/unihub-dev/clearance-api/pkg/errors"
)

type mockUserRepo struct {
	users           map[string]models.User
	byEmail         map[string]string
	studentProfiles map[string]models.StudentProfile
	officerProfiles map[string]models.OfficerProfile
	revokedAll      []string
	auditLogged     []models.AuditLog
	seq             int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:           map[string]models.User{},
		byEmail:         map[string]string{},
		studentProfiles: map[string]models.StudentProfile{},
		officerProfiles: map[string]models.OfficerProfile{},
	}
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if id, ok := m.byEmail[email]; ok {
		u := m.users[id]
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	m.seq++
	user.ID = fmt.Sprintf("usr-%d", m.seq)
	m.users[user.ID] = *user
	m.byEmail[user.Email] = user.ID
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	m.users[user.ID] = *user
	return nil
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, u := range m.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		out = append(out, u)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) FindStudentProfile(ctx context.Context, userID string) (*models.StudentProfile, error) {
	if p, ok := m.studentProfiles[userID]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) UpsertStudentProfile(ctx context.Context, profile *models.StudentProfile) error {
	m.studentProfiles[profile.UserID] = *profile
	return nil
}

func (m *mockUserRepo) FindOfficerProfile(ctx context.Context, userID string) (*models.OfficerProfile, error) {
	if p, ok := m.officerProfiles[userID]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) UpsertOfficerProfile(ctx context.Context, profile *models.OfficerProfile) error {
	m.officerProfiles[profile.UserID] = *profile
	return nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAll = append(m.revokedAll, userID)
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogged = append(m.auditLogged, *log)
	return nil
}

func (m *mockUserRepo) ListAuditLogs(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int, error) {
	return m.auditLogged, len(m.auditLogged), nil
}

func TestCreateStudentStoresProfile(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, nil, nil)

	user, err := svc.Create(context.Background(), adminClaims(), CreateUserRequest{
		Email:    "ada@unihub.edu",
		Password: "secret123",
		FullName: "Ada Obi",
		Role:     models.RoleStudent,
		Profile: &StudentProfileRequest{
			MatricNo: "CSC/19/001",
			Level:    models.Level400,
			Faculty:  "Science",
		},
	})
	require.NoError(t, err)

	assert.True(t, user.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret123")))
	profile, ok := repo.studentProfiles[user.ID]
	require.True(t, ok)
	assert.Equal(t, "CSC/19/001", profile.MatricNo)
	require.Len(t, repo.auditLogged, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogged[0].Action)
}

func TestCreateStudentRequiresProfile(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), nil, nil)

	_, err := svc.Create(context.Background(), adminClaims(), CreateUserRequest{
		Email:    "ada@unihub.edu",
		Password: "secret123",
		FullName: "Ada Obi",
		Role:     models.RoleStudent,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["usr-0"] = models.User{ID: "usr-0", Email: "taken@unihub.edu"}
	repo.byEmail["taken@unihub.edu"] = "usr-0"
	svc := NewUserService(repo, nil, nil)

	_, err := svc.Create(context.Background(), adminClaims(), CreateUserRequest{
		Email:    "taken@unihub.edu",
		Password: "secret123",
		FullName: "Someone Else",
		Role:     models.RoleAdmin,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUpdateDeactivationRevokesSessions(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["off-1"] = models.User{ID: "off-1", Email: "officer@unihub.edu", FullName: "Officer One", Role: models.RoleOfficer, Active: true}
	svc := NewUserService(repo, nil, nil)

	inactive := false
	user, err := svc.Update(context.Background(), adminClaims(), "off-1", UpdateUserRequest{
		FullName: "Officer One",
		Active:   &inactive,
		Scope:    &OfficerScopeRequest{AssignedType: "library"},
	})
	require.NoError(t, err)

	assert.False(t, user.Active)
	assert.Contains(t, repo.revokedAll, "off-1")
	assert.Equal(t, "library", repo.officerProfiles["off-1"].AssignedType)

	// Updating an already inactive account does not revoke again.
	_, err = svc.Update(context.Background(), adminClaims(), "off-1", UpdateUserRequest{FullName: "Officer One", Active: &inactive})
	require.NoError(t, err)
	assert.Len(t, repo.revokedAll, 1)
}

func TestGetStudentRejectsOtherRoles(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["adm-1"] = models.User{ID: "adm-1", Role: models.RoleAdmin}
	svc := NewUserService(repo, nil, nil)

	_, err := svc.GetStudent(context.Background(), "adm-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGetStudentIncludesProfile(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["stu-1"] = models.User{ID: "stu-1", Role: models.RoleStudent, FullName: "Ada Obi", CreatedAt: time.Now()}
	repo.studentProfiles["stu-1"] = models.StudentProfile{UserID: "stu-1", MatricNo: "CSC/19/001", Level: models.Level400}
	svc := NewUserService(repo, nil, nil)

	detail, err := svc.GetStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "CSC/19/001", detail.Profile.MatricNo)
}
