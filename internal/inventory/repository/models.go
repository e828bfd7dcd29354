package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// Batch statuses
const (
	StatusFresh        = "FRESH"
	StatusExpiringSoon = "EXPIRING_SOON"
	StatusExpired      = "EXPIRED"
	StatusConsumed     = "CONSUMED"
	StatusWasted       = "WASTED"
)

// Usage types
const (
	UsageCooking           = "COOKING"
	UsageDirectConsumption = "DIRECT_CONSUMPTION"
	UsageSharing           = "SHARING"
	UsageOther             = "OTHER"
)

// Waste reasons
const (
	WasteExpired           = "EXPIRED"
	WasteSpoiled           = "SPOILED"
	WasteOvercooked        = "OVERCOOKED"
	WasteLeftoverDiscarded = "LEFTOVER_DISCARDED"
	WasteAccidental        = "ACCIDENTAL"
	WasteOther             = "OTHER"
)

// Group is the canonical item a kitchen's batches aggregate under.
// TotalQuantity and ItemCount are derived and only written by the ledger.
type Group struct {
	ID                 string    `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	NormalizedName     string    `db:"normalized_name" json:"normalized_name"`
	CategoryID         string    `db:"category_id" json:"category_id"`
	BaseUnit           string    `db:"base_unit" json:"base_unit"`
	KitchenID          string    `db:"kitchen_id" json:"kitchen_id"`
	TotalQuantity      int64     `db:"total_quantity" json:"total_quantity"`
	ItemCount          int       `db:"item_count" json:"item_count"`
	MinStock           int64     `db:"min_stock" json:"min_stock"`
	MinExpiryDaysAlert int       `db:"min_expiry_days_alert" json:"min_expiry_days_alert"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// GroupKey is the unique identity of a group.
type GroupKey struct {
	NormalizedName string
	CategoryID     string
	BaseUnit       string
	KitchenID      string
}

// Key returns the unique identity of g.
func (g *Group) Key() GroupKey {
	return GroupKey{
		NormalizedName: g.NormalizedName,
		CategoryID:     g.CategoryID,
		BaseUnit:       g.BaseUnit,
		KitchenID:      g.KitchenID,
	}
}

// IsLowStock reports whether the group is under its reorder threshold.
func (g *Group) IsLowStock() bool {
	return g.TotalQuantity < g.MinStock
}

// GroupSummary is a group listed with its earliest active expiry.
type GroupSummary struct {
	Group
	EarliestExpiry *time.Time `db:"earliest_expiry" json:"earliest_expiry,omitempty"`
}

// Batch is one purchased lot.
type Batch struct {
	ID               string              `db:"id" json:"id"`
	GroupID          string              `db:"group_id" json:"group_id"`
	Description      *string             `db:"description" json:"description,omitempty"`
	OriginalQuantity int64               `db:"original_quantity" json:"original_quantity"`
	CurrentQuantity  int64               `db:"current_quantity" json:"current_quantity"`
	Status           string              `db:"status" json:"status"`
	IsActive         bool                `db:"is_active" json:"is_active"`
	ExpiryDate       *time.Time          `db:"expiry_date" json:"expiry_date,omitempty"`
	Price            decimal.NullDecimal `db:"price" json:"price"`
	Location         *string             `db:"location" json:"location,omitempty"`
	CreatedBy        string              `db:"created_by" json:"created_by"`
	CreatedAt        time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time           `db:"updated_at" json:"updated_at"`
}

// Take removes qty from the batch. A batch emptied this way is CONSUMED.
func (b *Batch) Take(qty int64) {
	b.CurrentQuantity -= qty
	if b.CurrentQuantity <= 0 {
		b.CurrentQuantity = 0
		b.Status = StatusConsumed
		b.IsActive = false
	}
}

// Discard removes qty as waste. A batch emptied this way is WASTED.
func (b *Batch) Discard(qty int64) {
	b.CurrentQuantity -= qty
	if b.CurrentQuantity <= 0 {
		b.CurrentQuantity = 0
		b.Status = StatusWasted
		b.IsActive = false
	}
}

// ValueOf is the share of the batch price that qty units represent, rounded
// to cents. Zero when there is no price or no original quantity.
func (b *Batch) ValueOf(qty int64) decimal.Decimal {
	if !b.Price.Valid || b.OriginalQuantity <= 0 {
		return decimal.Zero
	}
	return b.Price.Decimal.
		Mul(decimal.NewFromInt(qty)).
		Div(decimal.NewFromInt(b.OriginalQuantity)).
		Round(2)
}

// DatedBatch is an active batch with an expiry date, joined with the
// group and kitchen fields the expiry sweep and alert pass need.
type DatedBatch struct {
	BatchID            string    `db:"batch_id"`
	GroupID            string    `db:"group_id"`
	KitchenID          string    `db:"kitchen_id"`
	ItemName           string    `db:"item_name"`
	Status             string    `db:"status"`
	ExpiryDate         time.Time `db:"expiry_date"`
	MinExpiryDaysAlert int       `db:"min_expiry_days_alert"`
	Timezone           string    `db:"timezone"`
}

// UsageLog records one allocation from one batch.
type UsageLog struct {
	ID           string    `db:"id" json:"id"`
	BatchID      string    `db:"batch_id" json:"batch_id"`
	GroupID      string    `db:"group_id" json:"group_id"`
	KitchenID    string    `db:"kitchen_id" json:"kitchen_id"`
	UserID       string    `db:"user_id" json:"user_id"`
	QuantityUsed int64     `db:"quantity_used" json:"quantity_used"`
	UsageType    string    `db:"usage_type" json:"usage_type"`
	MealLogID    *string   `db:"meal_log_id" json:"meal_log_id,omitempty"`
	Notes        *string   `db:"notes" json:"notes,omitempty"`
	UsedAt       time.Time `db:"used_at" json:"used_at"`
}

// WasteLog records quantity leaving a batch as waste.
type WasteLog struct {
	ID             string          `db:"id" json:"id"`
	BatchID        string          `db:"batch_id" json:"batch_id"`
	GroupID        string          `db:"group_id" json:"group_id"`
	KitchenID      string          `db:"kitchen_id" json:"kitchen_id"`
	ItemName       string          `db:"item_name" json:"item_name"`
	ReportedBy     *string         `db:"reported_by" json:"reported_by,omitempty"`
	QuantityWasted int64           `db:"quantity_wasted" json:"quantity_wasted"`
	WasteReason    string          `db:"waste_reason" json:"waste_reason"`
	EstimatedValue decimal.Decimal `db:"estimated_value" json:"estimated_value"`
	ExpiryDate     *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	Notes          *string         `db:"notes" json:"notes,omitempty"`
	WastedAt       time.Time       `db:"wasted_at" json:"wasted_at"`
}

// Kitchen holds the per-kitchen alert schedule.
type Kitchen struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	AlertTimeHour   int       `db:"alert_time_hour" json:"alert_time_hour"`
	AlertTimeMinute int       `db:"alert_time_minute" json:"alert_time_minute"`
	AlertsEnabled   bool      `db:"alerts_enabled" json:"alerts_enabled"`
	Timezone        string    `db:"timezone" json:"timezone,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Notification is a kitchen-scoped event.
type Notification struct {
	ID            string    `db:"id" json:"id"`
	KitchenID     string    `db:"kitchen_id" json:"kitchen_id"`
	Type          string    `db:"type" json:"type"`
	Title         string    `db:"title" json:"title"`
	Severity      string    `db:"severity" json:"severity"`
	Message       string    `db:"message" json:"message"`
	RelatedItemID *string   `db:"related_item_id" json:"related_item_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// UserNotification is a notification as seen by one user.
type UserNotification struct {
	Notification
	Read bool `db:"read" json:"read"`
}

// CachedUser is the display data kept for users referenced by batches and logs.
type CachedUser struct {
	UserID string  `db:"user_id" json:"user_id"`
	Name   string  `db:"name" json:"name"`
	Email  *string `db:"email" json:"email,omitempty"`
}
