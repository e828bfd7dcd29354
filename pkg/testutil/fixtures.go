package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/repository"
)

// FixtureFactory creates test fixtures with unique values
type FixtureFactory struct {
	mu       sync.Mutex
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sequence++
	return f.sequence
}

// Group creates a group fixture with defaults: a mass item with no stock
func (f *FixtureFactory) Group(opts ...func(*repository.Group)) *repository.Group {
	seq := f.nextSeq()
	now := time.Now().UTC()

	g := &repository.Group{
		ID:                 uuid.New().String(),
		Name:               fmt.Sprintf("Item %d", seq),
		NormalizedName:     fmt.Sprintf("item %d", seq),
		CategoryID:         "dairy",
		BaseUnit:           "grams",
		KitchenID:          "kitchen-1",
		MinStock:           250,
		MinExpiryDaysAlert: 3,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// WithGroupName sets the display and canonical name of a group
func WithGroupName(name, normalized string) func(*repository.Group) {
	return func(g *repository.Group) {
		g.Name = name
		g.NormalizedName = normalized
	}
}

// WithGroupUnit sets the base unit and minimum stock of a group
func WithGroupUnit(baseUnit string, minStock int64) func(*repository.Group) {
	return func(g *repository.Group) {
		g.BaseUnit = baseUnit
		g.MinStock = minStock
	}
}

// Batch creates an active FRESH batch fixture for the group
func (f *FixtureFactory) Batch(groupID string, qty int64, opts ...func(*repository.Batch)) *repository.Batch {
	f.nextSeq()
	now := time.Now().UTC()

	b := &repository.Batch{
		ID:               uuid.New().String(),
		GroupID:          groupID,
		OriginalQuantity: qty,
		CurrentQuantity:  qty,
		Status:           repository.StatusFresh,
		IsActive:         true,
		CreatedBy:        "user-1",
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// WithExpiry sets the expiry date of a batch to a calendar date
func WithExpiry(date time.Time) func(*repository.Batch) {
	return func(b *repository.Batch) {
		d := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
		b.ExpiryDate = &d
	}
}

// WithRemaining sets the current quantity of a batch
func WithRemaining(qty int64) func(*repository.Batch) {
	return func(b *repository.Batch) {
		b.CurrentQuantity = qty
	}
}
