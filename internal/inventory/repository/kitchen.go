package repository

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/pantrymind/pantrymind-backend/pkg/database"
	"github.com/pantrymind/pantrymind-backend/pkg/errors"
)

const kitchenColumns = `id, name, alert_time_hour, alert_time_minute, alerts_enabled, timezone, created_at, updated_at`

// KitchenRepository handles kitchen alert settings. Kitchens are owned by the
// user service; rows here are created on first use.
type KitchenRepository struct {
	db *database.DB
}

// NewKitchenRepository creates a new kitchen repository
func NewKitchenRepository(db *database.DB) *KitchenRepository {
	return &KitchenRepository{db: db}
}

// Ensure creates the kitchen row with default alert settings if it does not exist
func (r *KitchenRepository) Ensure(ctx context.Context, id string) error {
	_, err := r.db.Q(ctx).ExecContext(ctx, `INSERT INTO kitchens (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id)
	return err
}

// GetByID gets a kitchen by ID
func (r *KitchenRepository) GetByID(ctx context.Context, id string) (*Kitchen, error) {
	var k Kitchen
	if err := r.db.Q(ctx).GetContext(ctx, &k, `SELECT `+kitchenColumns+` FROM kitchens WHERE id = $1`, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("kitchen")
		}
		return nil, err
	}
	return &k, nil
}

// UpsertAlertSettings stores the alert schedule of a kitchen, creating the row
// if needed. An empty Timezone keeps the stored one.
func (r *KitchenRepository) UpsertAlertSettings(ctx context.Context, k *Kitchen) error {
	query := `
		INSERT INTO kitchens (id, alert_time_hour, alert_time_minute, alerts_enabled, timezone)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			alert_time_hour = EXCLUDED.alert_time_hour,
			alert_time_minute = EXCLUDED.alert_time_minute,
			alerts_enabled = EXCLUDED.alerts_enabled,
			timezone = COALESCE(NULLIF(EXCLUDED.timezone, ''), kitchens.timezone),
			updated_at = NOW()
		RETURNING ` + kitchenColumns

	return r.db.Q(ctx).QueryRowxContext(ctx, query,
		k.ID, k.AlertTimeHour, k.AlertTimeMinute, k.AlertsEnabled, k.Timezone,
	).StructScan(k)
}

// ListAlertsEnabled lists the kitchens that want scheduled alerts
func (r *KitchenRepository) ListAlertsEnabled(ctx context.Context) ([]*Kitchen, error) {
	var kitchens []*Kitchen
	query := `SELECT ` + kitchenColumns + ` FROM kitchens WHERE alerts_enabled = true ORDER BY id`
	if err := r.db.Q(ctx).SelectContext(ctx, &kitchens, query); err != nil {
		return nil, err
	}
	return kitchens, nil
}
