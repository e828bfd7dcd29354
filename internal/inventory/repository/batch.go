package repository

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/pantrymind/pantrymind-backend/pkg/database"
	"github.com/pantrymind/pantrymind-backend/pkg/errors"
)

const batchColumns = `id, group_id, description, original_quantity, current_quantity, status,
	is_active, expiry_date, price, location, created_by, created_at, updated_at`

// datedBatchQuery selects active batches that carry an expiry date together
// with the group and kitchen fields used to evaluate them.
const datedBatchQuery = `
	SELECT b.id AS batch_id, b.group_id, g.kitchen_id, g.name AS item_name, b.status,
		b.expiry_date, g.min_expiry_days_alert, COALESCE(k.timezone, '') AS timezone
	FROM inventory_batches b
	JOIN inventory_groups g ON g.id = b.group_id
	LEFT JOIN kitchens k ON k.id = g.kitchen_id
	WHERE b.is_active AND b.expiry_date IS NOT NULL
`

// BatchRepository handles batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create creates a new batch
func (r *BatchRepository) Create(ctx context.Context, b *Batch) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}

	query := `
		INSERT INTO inventory_batches (
			id, group_id, description, original_quantity, current_quantity, status,
			is_active, expiry_date, price, location, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	return r.db.Q(ctx).QueryRowxContext(ctx, query,
		b.ID, b.GroupID, b.Description, b.OriginalQuantity, b.CurrentQuantity, b.Status,
		b.IsActive, b.ExpiryDate, b.Price, b.Location, b.CreatedBy,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
}

// GetByID gets a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*Batch, error) {
	return r.get(ctx, id, `SELECT `+batchColumns+` FROM inventory_batches WHERE id = $1`)
}

// GetForUpdate gets a batch and locks its row
func (r *BatchRepository) GetForUpdate(ctx context.Context, id string) (*Batch, error) {
	return r.get(ctx, id, `SELECT `+batchColumns+` FROM inventory_batches WHERE id = $1 FOR UPDATE`)
}

func (r *BatchRepository) get(ctx context.Context, id, query string) (*Batch, error) {
	if !validID(id) {
		return nil, errors.BatchNotFound(id)
	}
	var b Batch
	if err := r.db.Q(ctx).GetContext(ctx, &b, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.BatchNotFound(id)
		}
		return nil, err
	}
	return &b, nil
}

// ListActiveFIFO lists the active batches of a group in consumption order:
// earliest expiry first, undated batches last, oldest purchase first on ties.
func (r *BatchRepository) ListActiveFIFO(ctx context.Context, groupID string) ([]*Batch, error) {
	var batches []*Batch
	query := `
		SELECT ` + batchColumns + ` FROM inventory_batches
		WHERE group_id = $1 AND is_active = true
		ORDER BY expiry_date ASC NULLS LAST, created_at ASC, id ASC
	`
	if err := r.db.Q(ctx).SelectContext(ctx, &batches, query, groupID); err != nil {
		return nil, err
	}
	return batches, nil
}

// SumActive returns the summed current quantity and the number of active batches of a group
func (r *BatchRepository) SumActive(ctx context.Context, groupID string) (int64, int, error) {
	var row struct {
		Total int64 `db:"total"`
		Count int   `db:"count"`
	}
	query := `
		SELECT COALESCE(SUM(current_quantity), 0) AS total, COUNT(*) AS count
		FROM inventory_batches
		WHERE group_id = $1 AND is_active = true
	`
	if err := r.db.Q(ctx).GetContext(ctx, &row, query, groupID); err != nil {
		return 0, 0, err
	}
	return row.Total, row.Count, nil
}

// UpdateState writes the mutable state of a batch: quantity, status and activity
func (r *BatchRepository) UpdateState(ctx context.Context, b *Batch) error {
	query := `
		UPDATE inventory_batches SET current_quantity = $2, status = $3, is_active = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.Q(ctx).QueryRowxContext(ctx, query, b.ID, b.CurrentQuantity, b.Status, b.IsActive).Scan(&b.UpdatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.BatchNotFound(b.ID)
	}
	return err
}

// MarkExpiringSoon moves a FRESH batch to EXPIRING_SOON. It reports whether
// the batch changed.
func (r *BatchRepository) MarkExpiringSoon(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE inventory_batches SET status = 'EXPIRING_SOON', updated_at = NOW()
		WHERE id = $1 AND status = 'FRESH' AND is_active = true
	`
	result, err := r.db.Q(ctx).ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// Delete deletes a batch
func (r *BatchRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return errors.BatchNotFound(id)
	}
	result, err := r.db.Q(ctx).ExecContext(ctx, `DELETE FROM inventory_batches WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.BatchNotFound(id)
	}
	return nil
}

// CountByGroup counts all batches of a group, active or not
func (r *BatchRepository) CountByGroup(ctx context.Context, groupID string) (int, error) {
	var n int
	if err := r.db.Q(ctx).GetContext(ctx, &n, `SELECT COUNT(*) FROM inventory_batches WHERE group_id = $1`, groupID); err != nil {
		return 0, err
	}
	return n, nil
}

// ListDated lists every active dated batch across all kitchens, soonest expiry first
func (r *BatchRepository) ListDated(ctx context.Context) ([]*DatedBatch, error) {
	var batches []*DatedBatch
	if err := r.db.Q(ctx).SelectContext(ctx, &batches, datedBatchQuery+` ORDER BY b.expiry_date, b.id`); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListDatedByKitchen lists the active dated batches of one kitchen
func (r *BatchRepository) ListDatedByKitchen(ctx context.Context, kitchenID string) ([]*DatedBatch, error) {
	var batches []*DatedBatch
	query := datedBatchQuery + ` AND g.kitchen_id = $1 ORDER BY b.expiry_date, b.id`
	if err := r.db.Q(ctx).SelectContext(ctx, &batches, query, kitchenID); err != nil {
		return nil, err
	}
	return batches, nil
}
