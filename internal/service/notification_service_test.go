package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unihub-dev/clearance-api/internal/models"
)

type mockStatusChanges struct {
	decisions   []models.StatusChange
	submissions []models.StatusChange

	scopeType    string
	scopeFaculty string
	since        time.Time
}

func (m *mockStatusChanges) RecentDecisionsByStudent(ctx context.Context, studentID string, since time.Time, limit int) ([]models.StatusChange, error) {
	m.since = since
	return m.decisions, nil
}

func (m *mockStatusChanges) RecentSubmissionsForScope(ctx context.Context, typeSlug, faculty string, since time.Time, limit int) ([]models.StatusChange, error) {
	m.scopeType = typeSlug
	m.scopeFaculty = faculty
	m.since = since
	return m.submissions, nil
}

type mockScopes struct {
	officers map[string]models.OfficerProfile
}

func (m *mockScopes) FindOfficerProfile(ctx context.Context, userID string) (*models.OfficerProfile, error) {
	if p, ok := m.officers[userID]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func TestNotificationsForStudentIncludeRejectionReason(t *testing.T) {
	reason := "Outstanding fines"
	changes := &mockStatusChanges{decisions: []models.StatusChange{
		{RequestID: "CLR-AAAA1111", Type: "library", Status: models.StatusApproved, ChangedAt: time.Now()},
		{RequestID: "CLR-BBBB2222", Type: "hostel", Status: models.StatusRejected, RejectionReason: &reason, ChangedAt: time.Now()},
	}}
	svc := NewNotificationService(changes, &mockScopes{}, nil, NotificationServiceConfig{})

	items, err := svc.ForUser(context.Background(), &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Contains(t, items[0].Message, "approved")
	assert.Contains(t, items[1].Message, "rejected")
	assert.Contains(t, items[1].Message, reason)
}

func TestNotificationsLookbackWindow(t *testing.T) {
	changes := &mockStatusChanges{}
	svc := NewNotificationService(changes, &mockScopes{}, nil, NotificationServiceConfig{LookbackDays: 14})

	_, err := svc.ForUser(context.Background(), &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	require.NoError(t, err)

	expected := time.Now().UTC().AddDate(0, 0, -14)
	assert.WithinDuration(t, expected, changes.since, time.Minute)
}

func TestNotificationsForOfficerApplyScope(t *testing.T) {
	changes := &mockStatusChanges{submissions: []models.StatusChange{
		{RequestID: "CLR-CCCC3333", Type: "library", Status: models.StatusPending, ChangedAt: time.Now()},
	}}
	scopes := &mockScopes{officers: map[string]models.OfficerProfile{
		"off-1": {UserID: "off-1", AssignedType: "library", AssignedFaculty: "Science"},
	}}
	svc := NewNotificationService(changes, scopes, nil, NotificationServiceConfig{})

	items, err := svc.ForUser(context.Background(), &models.JWTClaims{UserID: "off-1", Role: models.RoleOfficer})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "library", changes.scopeType)
	assert.Equal(t, "Science", changes.scopeFaculty)
	assert.Contains(t, items[0].Message, "awaiting review")
}

type failingScopes struct {
	err error
}

func (f *failingScopes) FindOfficerProfile(ctx context.Context, userID string) (*models.OfficerProfile, error) {
	return nil, f.err
}

func TestNotificationsForOfficerFailClosedOnScopeError(t *testing.T) {
	changes := &mockStatusChanges{submissions: []models.StatusChange{
		{RequestID: "CLR-DDDD4444", Type: "library", Status: models.StatusPending, ChangedAt: time.Now()},
	}}
	scopes := &failingScopes{err: errors.New("connection reset by peer")}
	svc := NewNotificationService(changes, scopes, nil, NotificationServiceConfig{})

	items, err := svc.ForUser(context.Background(), &models.JWTClaims{UserID: "off-1", Role: models.RoleOfficer})
	require.Error(t, err)
	assert.Nil(t, items)
	// The scoped query must not run with widened filters.
	assert.Empty(t, changes.scopeType)
	assert.Empty(t, changes.scopeFaculty)
}

func TestNotificationsForUnscopedOfficerSeeEverything(t *testing.T) {
	changes := &mockStatusChanges{}
	svc := NewNotificationService(changes, &mockScopes{}, nil, NotificationServiceConfig{})

	_, err := svc.ForUser(context.Background(), &models.JWTClaims{UserID: "off-2", Role: models.RoleOfficer})
	require.NoError(t, err)
	assert.Empty(t, changes.scopeType)
	assert.Empty(t, changes.scopeFaculty)
}
