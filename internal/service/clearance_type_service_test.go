package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unihub-dev/clearance-api/internal/models"
	appErrors "github.com/unihub-dev/clearance-api/pkg/errors"
)

type mockTypeRepo struct {
	types   map[string]models.ClearanceType
	bySlug  map[string]string
	created *models.ClearanceType
	updated *models.ClearanceType
	active  map[string]bool
}

func (m *mockTypeRepo) List(ctx context.Context, includeInactive bool) ([]models.ClearanceType, error) {
	var out []models.ClearanceType
	for _, ct := range m.types {
		if !includeInactive && !ct.Active {
			continue
		}
		out = append(out, ct)
	}
	return out, nil
}

func (m *mockTypeRepo) FindByID(ctx context.Context, id string) (*models.ClearanceType, error) {
	if ct, ok := m.types[id]; ok {
		return &ct, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTypeRepo) FindBySlug(ctx context.Context, slug string) (*models.ClearanceType, error) {
	if id, ok := m.bySlug[slug]; ok {
		ct := m.types[id]
		return &ct, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTypeRepo) Create(ctx context.Context, ct *models.ClearanceType) error {
	if m.types == nil {
		m.types = make(map[string]models.ClearanceType)
		m.bySlug = make(map[string]string)
	}
	if ct.ID == "" {
		ct.ID = "type-new"
	}
	m.types[ct.ID] = *ct
	m.bySlug[ct.Name] = ct.ID
	m.created = ct
	return nil
}

func (m *mockTypeRepo) Update(ctx context.Context, ct *models.ClearanceType) error {
	m.types[ct.ID] = *ct
	m.updated = ct
	return nil
}

func (m *mockTypeRepo) SetActive(ctx context.Context, id string, active bool) error {
	if m.active == nil {
		m.active = make(map[string]bool)
	}
	m.active[id] = active
	ct := m.types[id]
	ct.Active = active
	m.types[id] = ct
	return nil
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin}
}

func TestCreateClearanceType(t *testing.T) {
	repo := &mockTypeRepo{}
	audit := &mockAudit{}
	svc := NewClearanceTypeService(repo, audit, nil, nil)

	ct, err := svc.Create(context.Background(), adminClaims(), CreateClearanceTypeRequest{
		Name:        "library",
		DisplayName: "Library Clearance",
		Requirements: []models.DocumentRequirement{
			{Name: "Clearance slip", Required: true},
		},
	})
	require.NoError(t, err)
	assert.True(t, ct.Active)
	reqs, err := ct.DocumentRequirements()
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionTypeCreate, audit.logs[0].Action)
}

func TestCreateClearanceTypeRejectsDuplicateSlug(t *testing.T) {
	repo := &mockTypeRepo{
		types:  map[string]models.ClearanceType{"type-1": {ID: "type-1", Name: "library", Active: true}},
		bySlug: map[string]string{"library": "type-1"},
	}
	svc := NewClearanceTypeService(repo, &mockAudit{}, nil, nil)

	_, err := svc.Create(context.Background(), adminClaims(), CreateClearanceTypeRequest{Name: "library", DisplayName: "Library"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestDeactivateClearanceType(t *testing.T) {
	repo := &mockTypeRepo{
		types:  map[string]models.ClearanceType{"type-1": {ID: "type-1", Name: "library", Active: true}},
		bySlug: map[string]string{"library": "type-1"},
	}
	audit := &mockAudit{}
	svc := NewClearanceTypeService(repo, audit, nil, nil)

	ct, err := svc.SetActive(context.Background(), adminClaims(), "type-1", false)
	require.NoError(t, err)
	assert.False(t, ct.Active)
	assert.Equal(t, models.AuditActionTypeDeactivate, audit.logs[0].Action)

	// Toggling to the current state is a no-op.
	_, err = svc.SetActive(context.Background(), adminClaims(), "type-1", false)
	require.NoError(t, err)
	assert.Len(t, audit.logs, 1)
}

func TestEligibleForStudentFilters(t *testing.T) {
	repo := &mockTypeRepo{
		types: map[string]models.ClearanceType{
			"type-1": {ID: "type-1", Name: "library", Active: true},
			"type-2": {ID: "type-2", Name: "final", Active: true, TargetLevel: models.LevelFinal},
			"type-3": {ID: "type-3", Name: "faculty", Active: true, FacultyBased: true},
		},
		bySlug: map[string]string{"library": "type-1", "final": "type-2", "faculty": "type-3"},
	}
	svc := NewClearanceTypeService(repo, &mockAudit{}, nil, nil)

	// No faculty on the profile: faculty-based types are excluded.
	eligible, err := svc.EligibleForStudent(context.Background(), models.StudentProfile{Level: models.Level300})
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "library", eligible[0].Name)

	eligible, err = svc.EligibleForStudent(context.Background(), models.StudentProfile{Level: models.LevelFinal, Faculty: "Science"})
	require.NoError(t, err)
	assert.Len(t, eligible, 3)
}

func TestClearanceTypeEligibilityRules(t *testing.T) {
	inactive := models.ClearanceType{Active: false}
	assert.False(t, inactive.IsEligible(models.StudentProfile{Level: models.Level100}))

	gated := models.ClearanceType{Active: true, TargetLevel: models.LevelFinal}
	assert.False(t, gated.IsEligible(models.StudentProfile{Level: models.Level100}))
	assert.True(t, gated.IsEligible(models.StudentProfile{Level: models.LevelFinal}))

	facultyBased := models.ClearanceType{Active: true, FacultyBased: true}
	assert.False(t, facultyBased.IsEligible(models.StudentProfile{}))
	assert.True(t, facultyBased.IsEligible(models.StudentProfile{Faculty: "Science"}))
}
