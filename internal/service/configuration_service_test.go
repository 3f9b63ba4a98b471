package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unihub-dev/clearance-api/internal/dto"
	"github.com/unihub-dev/clearance-api/internal/models"
	appErrors "github.com/unihub-dev/clearance-api/pkg/errors"
)

type mockConfigRepo struct {
	stored map[string]models.Configuration
}

func (m *mockConfigRepo) ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error) {
	var out []models.Configuration
	for _, key := range keys {
		if cfg, ok := m.stored[key]; ok {
			out = append(out, cfg)
		}
	}
	return out, nil
}

func (m *mockConfigRepo) Get(ctx context.Context, key string) (*models.Configuration, error) {
	if cfg, ok := m.stored[key]; ok {
		return &cfg, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockConfigRepo) Upsert(ctx context.Context, cfg *models.Configuration) error {
	if m.stored == nil {
		m.stored = make(map[string]models.Configuration)
	}
	m.stored[cfg.Key] = *cfg
	return nil
}

func TestConfigurationUpdateValidatesType(t *testing.T) {
	repo := &mockConfigRepo{}
	svc := NewConfigurationService(repo, &mockAudit{}, nil, nil)

	_, err := svc.Update(context.Background(), adminClaims(), ConfigKeySubmissionsOpen, dto.UpdateConfigurationRequest{Value: "maybe"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	item, err := svc.Update(context.Background(), adminClaims(), ConfigKeySubmissionsOpen, dto.UpdateConfigurationRequest{Value: "true"})
	require.NoError(t, err)
	assert.Equal(t, "true", item.Value)
	assert.Equal(t, string(models.ConfigurationTypeBoolean), item.Type)
}

func TestConfigurationUpdateRejectsUnknownKey(t *testing.T) {
	svc := NewConfigurationService(&mockConfigRepo{}, &mockAudit{}, nil, nil)

	_, err := svc.Update(context.Background(), adminClaims(), "rogue_key", dto.UpdateConfigurationRequest{Value: "1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestConfigurationUpdateValidatesInteger(t *testing.T) {
	svc := NewConfigurationService(&mockConfigRepo{}, &mockAudit{}, nil, nil)

	_, err := svc.Update(context.Background(), adminClaims(), ConfigKeyMaxPendingPerType, dto.UpdateConfigurationRequest{Value: "three"})
	require.Error(t, err)

	item, err := svc.Update(context.Background(), adminClaims(), ConfigKeyMaxPendingPerType, dto.UpdateConfigurationRequest{Value: "3"})
	require.NoError(t, err)
	assert.Equal(t, "3", item.Value)
}

func TestConfigurationListIncludesUnsetKeys(t *testing.T) {
	repo := &mockConfigRepo{stored: map[string]models.Configuration{
		ConfigKeySubmissionsOpen: {Key: ConfigKeySubmissionsOpen, Value: "true", Type: models.ConfigurationTypeBoolean},
	}}
	svc := NewConfigurationService(repo, &mockAudit{}, nil, nil)

	items, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 5)

	found := map[string]string{}
	for _, item := range items {
		found[item.Key] = item.Value
	}
	assert.Equal(t, "true", found[ConfigKeySubmissionsOpen])
	assert.Empty(t, found[ConfigKeySupportEmail])
}

func TestConfigurationGetUnsetKeyReturnsEmptyItem(t *testing.T) {
	svc := NewConfigurationService(&mockConfigRepo{}, &mockAudit{}, nil, nil)

	item, err := svc.Get(context.Background(), ConfigKeyAnnouncementBanner)
	require.NoError(t, err)
	assert.Empty(t, item.Value)
	assert.Equal(t, string(models.ConfigurationTypeString), item.Type)
}
