package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pantrymind/pantrymind-backend/internal/inventory/repository"
	"github.com/pantrymind/pantrymind-backend/pkg/errors"
)

// DefaultConsumptionNotes is recorded when a consumption carries no notes
const DefaultConsumptionNotes = "Manual consumption"

// ConsumeRequest asks for quantity base units of a group
type ConsumeRequest struct {
	GroupID   string  `json:"-" validate:"required"`
	KitchenID string  `json:"-"`
	UserID    string  `json:"-" validate:"required"`
	Quantity  int64   `json:"quantity" validate:"gt=0"`
	UsageType string  `json:"usage_type,omitempty" validate:"omitempty,oneof=COOKING DIRECT_CONSUMPTION SHARING OTHER"`
	MealLogID *string `json:"meal_log_id,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// Allocation is the part of a consumption drawn from one batch
type Allocation struct {
	BatchID     string     `json:"batch_id"`
	Taken       int64      `json:"quantity_taken"`
	Remaining   int64      `json:"remaining"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	AddedBy     string     `json:"added_by"`
	AddedByName string     `json:"added_by_name,omitempty"`
}

// Allocator depletes groups FIFO by expiry
type Allocator struct {
	groups  GroupStore
	batches BatchStore
	usage   UsageLogStore
	ledger  *Ledger
}

// NewAllocator creates a new allocator
func NewAllocator(groups GroupStore, batches BatchStore, usage UsageLogStore, ledger *Ledger) *Allocator {
	return &Allocator{
		groups:  groups,
		batches: batches,
		usage:   usage,
		ledger:  ledger,
	}
}

// Allocate takes req.Quantity from the group's active batches, earliest
// expiry first and undated batches last, and returns the updated group with
// one allocation per batch touched. It runs inside the caller's transaction.
// If the active batches hold less than requested nothing is written and
// InsufficientQuantity is returned.
func (a *Allocator) Allocate(ctx context.Context, req ConsumeRequest) (*repository.Group, []Allocation, error) {
	g, err := a.groups.GetForUpdate(ctx, req.GroupID)
	if err != nil {
		return nil, nil, err
	}
	if req.KitchenID != "" && g.KitchenID != req.KitchenID {
		return nil, nil, errors.GroupNotFound(req.GroupID)
	}

	batches, err := a.batches.ListActiveFIFO(ctx, g.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list active batches: %w", err)
	}

	var available int64
	for _, b := range batches {
		available += b.CurrentQuantity
	}
	if req.Quantity > available {
		return nil, nil, errors.InsufficientQuantity(req.Quantity, available)
	}

	usageType := req.UsageType
	if usageType == "" {
		usageType = repository.UsageDirectConsumption
	}
	notes := req.Notes
	if notes == nil {
		n := DefaultConsumptionNotes
		notes = &n
	}

	remaining := req.Quantity
	allocations := make([]Allocation, 0, len(batches))
	for _, b := range batches {
		if remaining == 0 {
			break
		}
		take := min(remaining, b.CurrentQuantity)
		if take <= 0 {
			continue
		}

		b.Take(take)
		if err := a.batches.UpdateState(ctx, b); err != nil {
			return nil, nil, fmt.Errorf("update batch %s: %w", b.ID, err)
		}

		entry := &repository.UsageLog{
			BatchID:      b.ID,
			GroupID:      g.ID,
			KitchenID:    g.KitchenID,
			UserID:       req.UserID,
			QuantityUsed: take,
			UsageType:    usageType,
			MealLogID:    req.MealLogID,
			Notes:        notes,
		}
		if err := a.usage.Create(ctx, entry); err != nil {
			return nil, nil, fmt.Errorf("write usage log: %w", err)
		}

		allocations = append(allocations, Allocation{
			BatchID:    b.ID,
			Taken:      take,
			Remaining:  b.CurrentQuantity,
			ExpiryDate: b.ExpiryDate,
			AddedBy:    b.CreatedBy,
		})
		remaining -= take
	}

	g, err = a.ledger.RecomputeTotals(ctx, g.ID)
	if err != nil {
		return nil, nil, err
	}
	return g, allocations, nil
}
