package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/unihub-dev/clearance-api/internal/models"
	appErrors "github.com/unihub-dev/clearance-api/pkg/errors"
)

type clearanceTypeRepository interface {
	List(ctx context.Context, includeInactive bool) ([]models.ClearanceType, error)
	FindByID(ctx context.Context, id string) (*models.ClearanceType, error)
	FindBySlug(ctx context.Context, slug string) (*models.ClearanceType, error)
	Create(ctx context.Context, ct *models.ClearanceType) error
	Update(ctx context.Context, ct *models.ClearanceType) error
	SetActive(ctx context.Context, id string, active bool) error
}

// CreateClearanceTypeRequest describes a new clearance category.
type CreateClearanceTypeRequest struct {
	Name         string                       `json:"name" validate:"required,lowercase,excludesall= "`
	DisplayName  string                       `json:"display_name" validate:"required"`
	FacultyBased bool                         `json:"faculty_based"`
	TargetLevel  models.StudentLevel          `json:"target_level" validate:"omitempty,oneof=100 200 300 400 FINAL"`
	Requirements []models.DocumentRequirement `json:"requirements" validate:"dive"`
}

// UpdateClearanceTypeRequest rewrites the mutable fields of a type. The
// name slug is immutable once created.
type UpdateClearanceTypeRequest struct {
	DisplayName  string                       `json:"display_name" validate:"required"`
	FacultyBased bool                         `json:"faculty_based"`
	TargetLevel  models.StudentLevel          `json:"target_level" validate:"omitempty,oneof=100 200 300 400 FINAL"`
	Requirements []models.DocumentRequirement `json:"requirements" validate:"dive"`
}

// ClearanceTypeService manages the admin-owned clearance type catalogue.
type ClearanceTypeService struct {
	repo      clearanceTypeRepository
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClearanceTypeService constructs the service.
func NewClearanceTypeService(repo clearanceTypeRepository, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *ClearanceTypeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClearanceTypeService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns the catalogue. Students only see active types.
func (s *ClearanceTypeService) List(ctx context.Context, includeInactive bool) ([]models.ClearanceType, error) {
	types, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clearance types")
	}
	return types, nil
}

// GetByID returns one clearance type.
func (s *ClearanceTypeService) GetByID(ctx context.Context, id string) (*models.ClearanceType, error) {
	ct, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clearance type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clearance type")
	}
	return ct, nil
}

// Create adds a clearance type to the catalogue. The name slug must be
// unique across active and deactivated types.
func (s *ClearanceTypeService) Create(ctx context.Context, actor *models.JWTClaims, req CreateClearanceTypeRequest) (*models.ClearanceType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clearance type payload")
	}
	slug := strings.TrimSpace(req.Name)

	if _, err := s.repo.FindBySlug(ctx, slug); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a clearance type with this name already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check clearance type name")
	}

	ct := &models.ClearanceType{
		Name:         slug,
		DisplayName:  req.DisplayName,
		FacultyBased: req.FacultyBased,
		TargetLevel:  req.TargetLevel,
		Active:       true,
	}
	if err := ct.SetDocumentRequirements(req.Requirements); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document requirements")
	}
	if err := s.repo.Create(ctx, ct); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create clearance type")
	}

	s.recordAudit(ctx, actor, models.AuditActionTypeCreate, ct)
	return ct, nil
}

// Update rewrites a clearance type's mutable fields.
func (s *ClearanceTypeService) Update(ctx context.Context, actor *models.JWTClaims, id string, req UpdateClearanceTypeRequest) (*models.ClearanceType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clearance type payload")
	}
	ct, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ct.DisplayName = req.DisplayName
	ct.FacultyBased = req.FacultyBased
	ct.TargetLevel = req.TargetLevel
	if err := ct.SetDocumentRequirements(req.Requirements); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document requirements")
	}
	if err := s.repo.Update(ctx, ct); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update clearance type")
	}

	s.recordAudit(ctx, actor, models.AuditActionTypeUpdate, ct)
	return ct, nil
}

// SetActive toggles availability. Deactivation hides the type from new
// submissions but leaves historical requests untouched.
func (s *ClearanceTypeService) SetActive(ctx context.Context, actor *models.JWTClaims, id string, active bool) (*models.ClearanceType, error) {
	ct, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ct.Active == active {
		return ct, nil
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update clearance type status")
	}
	ct.Active = active

	action := models.AuditActionTypeDeactivate
	if active {
		action = models.AuditActionTypeUpdate
	}
	s.recordAudit(ctx, actor, action, ct)
	return ct, nil
}

// EligibleForStudent filters the active catalogue down to types the given
// profile may apply for.
func (s *ClearanceTypeService) EligibleForStudent(ctx context.Context, profile models.StudentProfile) ([]models.ClearanceType, error) {
	types, err := s.repo.List(ctx, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clearance types")
	}
	eligible := make([]models.ClearanceType, 0, len(types))
	for _, ct := range types {
		if ct.IsEligible(profile) {
			eligible = append(eligible, ct)
		}
	}
	return eligible, nil
}

func (s *ClearanceTypeService) recordAudit(ctx context.Context, actor *models.JWTClaims, action string, ct *models.ClearanceType) {
	if s.audit == nil || actor == nil {
		return
	}
	payload, _ := json.Marshal(ct)
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		ActorRole:  string(actor.Role),
		Action:     action,
		Resource:   "clearance_type",
		ResourceID: &ct.ID,
		NewValues:  payload,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
