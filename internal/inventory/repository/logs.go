package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pantrymind/pantrymind-backend/pkg/database"
)

// UsageLogRepository appends consumption records
type UsageLogRepository struct {
	db *database.DB
}

// NewUsageLogRepository creates a new usage log repository
func NewUsageLogRepository(db *database.DB) *UsageLogRepository {
	return &UsageLogRepository{db: db}
}

// Create appends a usage log entry
func (r *UsageLogRepository) Create(ctx context.Context, l *UsageLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}

	query := `
		INSERT INTO usage_logs (
			id, batch_id, group_id, kitchen_id, user_id, quantity_used, usage_type, meal_log_id, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING used_at
	`

	return r.db.Q(ctx).QueryRowxContext(ctx, query,
		l.ID, l.BatchID, l.GroupID, l.KitchenID, l.UserID, l.QuantityUsed, l.UsageType, l.MealLogID, l.Notes,
	).Scan(&l.UsedAt)
}

// WasteLogRepository appends waste records
type WasteLogRepository struct {
	db *database.DB
}

// NewWasteLogRepository creates a new waste log repository
func NewWasteLogRepository(db *database.DB) *WasteLogRepository {
	return &WasteLogRepository{db: db}
}

// Create appends a waste log entry
func (r *WasteLogRepository) Create(ctx context.Context, l *WasteLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}

	query := `
		INSERT INTO waste_logs (
			id, batch_id, group_id, kitchen_id, item_name, reported_by, quantity_wasted,
			waste_reason, estimated_value, expiry_date, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING wasted_at
	`

	return r.db.Q(ctx).QueryRowxContext(ctx, query,
		l.ID, l.BatchID, l.GroupID, l.KitchenID, l.ItemName, l.ReportedBy, l.QuantityWasted,
		l.WasteReason, l.EstimatedValue, l.ExpiryDate, l.Notes,
	).Scan(&l.WastedAt)
}

// ListExpiredByKitchen lists the items a kitchen lost to expiry, newest first
func (r *WasteLogRepository) ListExpiredByKitchen(ctx context.Context, kitchenID string) ([]*WasteLog, error) {
	var logs []*WasteLog
	query := `
		SELECT id, batch_id, group_id, kitchen_id, item_name, reported_by, quantity_wasted,
			waste_reason, estimated_value, expiry_date, notes, wasted_at
		FROM waste_logs
		WHERE kitchen_id = $1 AND waste_reason = 'EXPIRED'
		ORDER BY wasted_at DESC
	`
	if err := r.db.Q(ctx).SelectContext(ctx, &logs, query, kitchenID); err != nil {
		return nil, err
	}
	return logs, nil
}
