package repository

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/pantrymind/pantrymind-backend/pkg/database"
	"github.com/pantrymind/pantrymind-backend/pkg/errors"
)

const groupColumns = `id, name, normalized_name, category_id, base_unit, kitchen_id,
	total_quantity, item_count, min_stock, min_expiry_days_alert, created_at, updated_at`

// GroupRepository handles inventory group persistence
type GroupRepository struct {
	db *database.DB
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db *database.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// GetByID gets a group by ID
func (r *GroupRepository) GetByID(ctx context.Context, id string) (*Group, error) {
	return r.get(ctx, id, `SELECT `+groupColumns+` FROM inventory_groups WHERE id = $1`)
}

// GetForUpdate gets a group and locks its row until the surrounding
// transaction ends. Aggregate updates must hold this lock.
func (r *GroupRepository) GetForUpdate(ctx context.Context, id string) (*Group, error) {
	return r.get(ctx, id, `SELECT `+groupColumns+` FROM inventory_groups WHERE id = $1 FOR UPDATE`)
}

func (r *GroupRepository) get(ctx context.Context, id, query string) (*Group, error) {
	if !validID(id) {
		return nil, errors.GroupNotFound(id)
	}
	var g Group
	if err := r.db.Q(ctx).GetContext(ctx, &g, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.GroupNotFound(id)
		}
		return nil, err
	}
	return &g, nil
}

// FindByKey looks a group up by its unique key. It returns nil, nil when
// no such group exists.
func (r *GroupRepository) FindByKey(ctx context.Context, key GroupKey) (*Group, error) {
	var g Group
	query := `
		SELECT ` + groupColumns + ` FROM inventory_groups
		WHERE normalized_name = $1 AND category_id = $2 AND base_unit = $3 AND kitchen_id = $4
	`
	err := r.db.Q(ctx).GetContext(ctx, &g, query, key.NormalizedName, key.CategoryID, key.BaseUnit, key.KitchenID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListInScope lists the groups of a kitchen sharing a category and base unit,
// oldest first, so fuzzy matching prefers the longest-standing group.
func (r *GroupRepository) ListInScope(ctx context.Context, kitchenID, categoryID, baseUnit string) ([]*Group, error) {
	var groups []*Group
	query := `
		SELECT ` + groupColumns + ` FROM inventory_groups
		WHERE kitchen_id = $1 AND category_id = $2 AND base_unit = $3
		ORDER BY created_at, id
	`
	if err := r.db.Q(ctx).SelectContext(ctx, &groups, query, kitchenID, categoryID, baseUnit); err != nil {
		return nil, err
	}
	return groups, nil
}

// CreateIfAbsent inserts g unless a group with the same key exists.
// It reports false, without error, when another writer got there first.
func (r *GroupRepository) CreateIfAbsent(ctx context.Context, g *Group) (bool, error) {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}

	query := `
		INSERT INTO inventory_groups (
			id, name, normalized_name, category_id, base_unit, kitchen_id,
			total_quantity, item_count, min_stock, min_expiry_days_alert
		) VALUES ($1, $2, $3, $4, $5, $6, 0, 0, $7, $8)
		ON CONFLICT ON CONSTRAINT inventory_groups_key_unique DO NOTHING
		RETURNING created_at, updated_at
	`

	err := r.db.Q(ctx).QueryRowxContext(ctx, query,
		g.ID, g.Name, g.NormalizedName, g.CategoryID, g.BaseUnit, g.KitchenID,
		g.MinStock, g.MinExpiryDaysAlert,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateTotals writes the derived aggregates of a group
func (r *GroupRepository) UpdateTotals(ctx context.Context, id string, total int64, itemCount int) error {
	query := `
		UPDATE inventory_groups SET total_quantity = $2, item_count = $3, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.Q(ctx).ExecContext(ctx, query, id, total, itemCount)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.GroupNotFound(id)
	}
	return nil
}

// UpdateThresholds updates the alert thresholds of a group
func (r *GroupRepository) UpdateThresholds(ctx context.Context, g *Group) error {
	query := `
		UPDATE inventory_groups SET min_stock = $2, min_expiry_days_alert = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.Q(ctx).QueryRowxContext(ctx, query, g.ID, g.MinStock, g.MinExpiryDaysAlert).Scan(&g.UpdatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.GroupNotFound(g.ID)
	}
	return err
}

// Delete deletes a group
func (r *GroupRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return errors.GroupNotFound(id)
	}
	result, err := r.db.Q(ctx).ExecContext(ctx, `DELETE FROM inventory_groups WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.GroupNotFound(id)
	}
	return nil
}

// ListByKitchen lists the groups of a kitchen that hold active stock,
// soonest-expiring first.
func (r *GroupRepository) ListByKitchen(ctx context.Context, kitchenID string) ([]*GroupSummary, error) {
	var groups []*GroupSummary
	query := `
		SELECT g.id, g.name, g.normalized_name, g.category_id, g.base_unit, g.kitchen_id,
			g.total_quantity, g.item_count, g.min_stock, g.min_expiry_days_alert,
			g.created_at, g.updated_at, MIN(b.expiry_date) AS earliest_expiry
		FROM inventory_groups g
		JOIN inventory_batches b ON b.group_id = g.id AND b.is_active
		WHERE g.kitchen_id = $1
		GROUP BY g.id
		ORDER BY earliest_expiry NULLS LAST, g.name
	`
	if err := r.db.Q(ctx).SelectContext(ctx, &groups, query, kitchenID); err != nil {
		return nil, err
	}
	return groups, nil
}

// ListLowStock lists the groups of a kitchen below their minimum stock.
// A group that never received a batch, left behind by a failed purchase, is
// not stock that ran low.
func (r *GroupRepository) ListLowStock(ctx context.Context, kitchenID string) ([]*Group, error) {
	var groups []*Group
	query := `
		SELECT ` + groupColumns + ` FROM inventory_groups g
		WHERE g.kitchen_id = $1 AND g.total_quantity < g.min_stock
			AND EXISTS (SELECT 1 FROM inventory_batches b WHERE b.group_id = g.id)
		ORDER BY g.name
	`
	if err := r.db.Q(ctx).SelectContext(ctx, &groups, query, kitchenID); err != nil {
		return nil, err
	}
	return groups, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
