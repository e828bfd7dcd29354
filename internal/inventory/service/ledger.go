package service

import (
	"context"
	"fmt"

	"github.com/pantrymind/pantrymind-backend/internal/inventory/repository"
	"github.com/pantrymind/pantrymind-backend/pkg/logger"
	"github.com/pantrymind/pantrymind-backend/pkg/metrics"
)

// Ledger is the only writer of a group's derived totals.
type Ledger struct {
	groups  GroupStore
	batches BatchStore
	logger  *logger.Logger
}

// NewLedger creates a new ledger
func NewLedger(groups GroupStore, batches BatchStore, log *logger.Logger) *Ledger {
	return &Ledger{
		groups:  groups,
		batches: batches,
		logger:  log.WithComponent("ledger"),
	}
}

// RecomputeTotals sets total_quantity and item_count of a group from its
// active batches and returns the updated group. It must run in the same
// transaction as the batch mutation that made it necessary; the group row is
// locked for the rest of that transaction.
//
// Active batches summing to zero violate the batch invariant. The total is
// then forced to 1 so the group stays visible, and the repair is logged and
// counted.
func (l *Ledger) RecomputeTotals(ctx context.Context, groupID string) (*repository.Group, error) {
	g, err := l.groups.GetForUpdate(ctx, groupID)
	if err != nil {
		return nil, err
	}

	sum, count, err := l.batches.SumActive(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("sum active batches: %w", err)
	}

	total := sum
	if sum == 0 && count > 0 {
		total = 1
		metrics.IntegrityRepairs.Inc()
		l.logger.Warn().
			Str("group_id", groupID).
			Str("kitchen_id", g.KitchenID).
			Int("active_batches", count).
			Msg("data integrity repair: active batches sum to zero, forcing total to 1")
	}

	if err := l.groups.UpdateTotals(ctx, groupID, total, count); err != nil {
		return nil, err
	}

	g.TotalQuantity = total
	g.ItemCount = count
	return g, nil
}
