package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unihub-dev/clearance-api/internal/models"
)

// ClearanceTypeRepository handles persistence of clearance type configuration.
type ClearanceTypeRepository struct {
	db *sqlx.DB
}

// NewClearanceTypeRepository constructs the repository.
func NewClearanceTypeRepository(db *sqlx.DB) *ClearanceTypeRepository {
	return &ClearanceTypeRepository{db: db}
}

const typeColumns = `id, name, display_name, faculty_based, target_level, active, requirements, created_at, updated_at`

// List returns clearance types, optionally including deactivated ones.
func (r *ClearanceTypeRepository) List(ctx context.Context, includeInactive bool) ([]models.ClearanceType, error) {
	query := fmt.Sprintf(`SELECT %s FROM clearance_types`, typeColumns)
	if !includeInactive {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY name ASC`
	var types []models.ClearanceType
	if err := r.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("list clearance types: %w", err)
	}
	return types, nil
}

// FindByID returns a clearance type by identifier.
func (r *ClearanceTypeRepository) FindByID(ctx context.Context, id string) (*models.ClearanceType, error) {
	query := fmt.Sprintf(`SELECT %s FROM clearance_types WHERE id = $1`, typeColumns)
	var ct models.ClearanceType
	if err := r.db.GetContext(ctx, &ct, query, id); err != nil {
		return nil, err
	}
	return &ct, nil
}

// FindBySlug returns a clearance type by its unique name slug.
func (r *ClearanceTypeRepository) FindBySlug(ctx context.Context, slug string) (*models.ClearanceType, error) {
	query := fmt.Sprintf(`SELECT %s FROM clearance_types WHERE name = $1`, typeColumns)
	var ct models.ClearanceType
	if err := r.db.GetContext(ctx, &ct, query, slug); err != nil {
		return nil, err
	}
	return &ct, nil
}

// Create persists a new clearance type.
func (r *ClearanceTypeRepository) Create(ctx context.Context, ct *models.ClearanceType) error {
	if ct.ID == "" {
		ct.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	ct.CreatedAt = now
	ct.UpdatedAt = now
	const query = `INSERT INTO clearance_types (id, name, display_name, faculty_based, target_level, active, requirements, created_at, updated_at)
        VALUES (:id, :name, :display_name, :faculty_based, :target_level, :active, :requirements, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ct); err != nil {
		return fmt.Errorf("create clearance type: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a clearance type.
func (r *ClearanceTypeRepository) Update(ctx context.Context, ct *models.ClearanceType) error {
	ct.UpdatedAt = time.Now().UTC()
	const query = `UPDATE clearance_types
        SET display_name = :display_name, faculty_based = :faculty_based, target_level = :target_level, requirements = :requirements, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, ct); err != nil {
		return fmt.Errorf("update clearance type: %w", err)
	}
	return nil
}

// SetActive toggles the soft-delete flag.
func (r *ClearanceTypeRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE clearance_types SET active = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC()); err != nil {
		return fmt.Errorf("set clearance type active: %w", err)
	}
	return nil
}
