package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/unihub-dev/clearance-api/internal/dto"
	"github.com/unihub-dev/clearance-api/internal/models"
	appErrors "github.com/unihub-dev/clearance-api/pkg/errors"
)

// Allow-listed configuration keys. Updates to anything else are rejected.
const (
	ConfigKeySubmissionsOpen    = "submissions_open"
	ConfigKeyClearanceDeadline  = "clearance_deadline"
	ConfigKeyMaxPendingPerType  = "max_pending_per_type"
	ConfigKeySupportEmail       = "support_email"
	ConfigKeyAnnouncementBanner = "announcement_banner"
)

type configurationRepository interface {
	ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error)
	Get(ctx context.Context, key string) (*models.Configuration, error)
	Upsert(ctx context.Context, cfg *models.Configuration) error
}

// ConfigurationService manages the typed, allow-listed system settings.
type ConfigurationService struct {
	repo      configurationRepository
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	allowed   map[string]models.ConfigurationType
}

// NewConfigurationService constructs the service.
func NewConfigurationService(repo configurationRepository, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *ConfigurationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigurationService{
		repo:      repo,
		audit:     audit,
		validator: validate,
		logger:    logger,
		allowed: map[string]models.ConfigurationType{
			ConfigKeySubmissionsOpen:    models.ConfigurationTypeBoolean,
			ConfigKeyClearanceDeadline:  models.ConfigurationTypeString,
			ConfigKeyMaxPendingPerType:  models.ConfigurationTypeInteger,
			ConfigKeySupportEmail:       models.ConfigurationTypeString,
			ConfigKeyAnnouncementBanner: models.ConfigurationTypeString,
		},
	}
}

// List returns all allow-listed settings, including ones not yet stored.
func (s *ConfigurationService) List(ctx context.Context) ([]dto.ConfigurationItem, error) {
	keys := make([]string, 0, len(s.allowed))
	for key := range s.allowed {
		keys = append(keys, key)
	}
	stored, err := s.repo.ListByKeys(ctx, keys)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list configuration")
	}

	byKey := make(map[string]models.Configuration, len(stored))
	for _, cfg := range stored {
		byKey[cfg.Key] = cfg
	}

	items := make([]dto.ConfigurationItem, 0, len(keys))
	for _, key := range keys {
		item := dto.ConfigurationItem{Key: key, Type: string(s.allowed[key])}
		if cfg, ok := byKey[key]; ok {
			item.Value = cfg.Value
			if cfg.Description != nil {
				item.Description = *cfg.Description
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// Get returns one setting by key.
func (s *ConfigurationService) Get(ctx context.Context, key string) (*dto.ConfigurationItem, error) {
	valueType, ok := s.allowed[key]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown configuration key")
	}
	item := &dto.ConfigurationItem{Key: key, Type: string(valueType)}
	cfg, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return item, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load configuration")
	}
	item.Value = cfg.Value
	if cfg.Description != nil {
		item.Description = *cfg.Description
	}
	return item, nil
}

// Update writes a setting after validating the value against its type.
func (s *ConfigurationService) Update(ctx context.Context, actor *models.JWTClaims, key string, req dto.UpdateConfigurationRequest) (*dto.ConfigurationItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid configuration payload")
	}
	valueType, ok := s.allowed[key]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown configuration key")
	}
	if err := validateConfigValue(valueType, req.Value); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid configuration value")
	}

	cfg := &models.Configuration{Key: key, Value: req.Value, Type: valueType}
	if actor != nil {
		cfg.UpdatedBy = &actor.UserID
	}
	if err := s.repo.Upsert(ctx, cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store configuration")
	}

	s.recordAudit(ctx, actor, key, req.Value)
	return &dto.ConfigurationItem{Key: key, Value: cfg.Value, Type: string(valueType)}, nil
}

func validateConfigValue(valueType models.ConfigurationType, value string) error {
	switch valueType {
	case models.ConfigurationTypeBoolean:
		_, err := strconv.ParseBool(value)
		return err
	case models.ConfigurationTypeInteger:
		_, err := strconv.Atoi(value)
		return err
	default:
		return nil
	}
}

func (s *ConfigurationService) recordAudit(ctx context.Context, actor *models.JWTClaims, key, value string) {
	if s.audit == nil || actor == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"key": key, "value": value})
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		ActorRole:  string(actor.Role),
		Action:     models.AuditActionConfigUpdate,
		Resource:   "configuration",
		ResourceID: &key,
		NewValues:  payload,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", models.AuditActionConfigUpdate), zap.Error(err))
	}
}
