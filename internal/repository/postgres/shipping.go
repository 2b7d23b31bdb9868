package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spokeworks/bikeshop/internal/domain"
	"github.com/spokeworks/bikeshop/pkg/database"
	apperrors "github.com/spokeworks/bikeshop/pkg/errors"
)

// settingsRowID pins the single shop-wide settings row.
const settingsRowID = 1

// ShippingSettingsRepository implements repository.ShippingSettingsRepository
// using PostgreSQL.
type ShippingSettingsRepository struct {
	db database.DBTX
}

// NewShippingSettingsRepository creates a PostgreSQL-backed settings repository.
func NewShippingSettingsRepository(db database.DBTX) *ShippingSettingsRepository {
	return &ShippingSettingsRepository{db: db}
}

// Get returns the current shipping settings. A not-found error means the shop
// has never been configured; callers must surface that as an unknown shipping
// quote, not free shipping.
func (r *ShippingSettingsRepository) Get(ctx context.Context) (*domain.ShippingSettings, error) {
	query := `
		SELECT shipping_charge, free_shipping_threshold, updated_at
		FROM shipping_settings
		WHERE id = $1`

	var s domain.ShippingSettings
	err := r.db.QueryRow(ctx, query, settingsRowID).Scan(
		&s.ShippingCharge,
		&s.FreeShippingThreshold,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("shipping settings", "default")
		}
		return nil, fmt.Errorf("get shipping settings: %w", err)
	}

	return &s, nil
}

// Upsert writes the settings, creating the row on first save.
func (r *ShippingSettingsRepository) Upsert(ctx context.Context, s *domain.ShippingSettings) error {
	query := `
		INSERT INTO shipping_settings (id, shipping_charge, free_shipping_threshold, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET shipping_charge = EXCLUDED.shipping_charge,
		    free_shipping_threshold = EXCLUDED.free_shipping_threshold,
		    updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		settingsRowID,
		s.ShippingCharge,
		s.FreeShippingThreshold,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert shipping settings: %w", err)
	}

	return nil
}
