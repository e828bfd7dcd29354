package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pantrymind/pantrymind-backend/internal/inventory/catalog"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/events"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/repository"
	"github.com/pantrymind/pantrymind-backend/pkg/config"
	"github.com/pantrymind/pantrymind-backend/pkg/errors"
	"github.com/pantrymind/pantrymind-backend/pkg/logger"
	"github.com/pantrymind/pantrymind-backend/pkg/messaging"
	"github.com/pantrymind/pantrymind-backend/pkg/metrics"
	"github.com/shopspring/decimal"
)

// Options tunes the inventory service
type Options struct {
	TxTimeout          time.Duration
	MaxRetries         int
	FuzzyMaxDistance   int
	MinExpiryDaysAlert int
	// Location is used for kitchens without a time zone of their own.
	Location *time.Location
	Units    catalog.UnitTable
}

// DefaultOptions matches the configuration defaults
func DefaultOptions() Options {
	return Options{
		TxTimeout:          30 * time.Second,
		MaxRetries:         3,
		FuzzyMaxDistance:   catalog.DefaultMaxDistance,
		MinExpiryDaysAlert: 3,
		Location:           time.Local,
	}
}

// OptionsFromConfig builds Options from the loaded configuration
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	loc, err := cfg.Jobs.Location()
	if err != nil {
		return Options{}, err
	}
	return Options{
		TxTimeout:          cfg.Inventory.TxTimeout,
		MaxRetries:         cfg.Inventory.MaxRetries,
		FuzzyMaxDistance:   cfg.Inventory.FuzzyMaxDistance,
		MinExpiryDaysAlert: cfg.Inventory.MinExpiryDaysAlert,
		Location:           loc,
	}, nil
}

// InventoryService handles inventory business logic
type InventoryService struct {
	stores    Stores
	units     *catalog.UnitConverter
	resolver  *GroupResolver
	ledger    *Ledger
	allocator *Allocator
	notifier  *Notifier
	sweeper   *ExpirySweeper
	alerts    *AlertEngine
	publisher *events.InventoryEventPublisher
	tx        txPolicy
	opts      Options
	logger    *logger.Logger
}

// NewInventoryService wires the inventory components onto stores.
// publisher may be nil.
func NewInventoryService(stores Stores, publisher *events.InventoryEventPublisher, opts Options, log *logger.Logger) *InventoryService {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	log = log.WithComponent("inventory-service")
	units := catalog.NewUnitConverter(opts.Units)
	ledger := NewLedger(stores.Groups, stores.Batches, log)
	notifier := NewNotifier(stores.Notifications, publisher, log)
	tz := newZones(opts.Location, log)
	tx := txPolicy{
		runner:     stores.Tx,
		timeout:    opts.TxTimeout,
		maxRetries: opts.MaxRetries,
		logger:     log,
	}

	return &InventoryService{
		stores:    stores,
		units:     units,
		resolver:  NewGroupResolver(stores.Groups, units, catalog.NewMatcher(opts.FuzzyMaxDistance), opts.MinExpiryDaysAlert, log),
		ledger:    ledger,
		allocator: NewAllocator(stores.Groups, stores.Batches, stores.Usage, ledger),
		notifier:  notifier,
		sweeper: &ExpirySweeper{
			groups:    stores.Groups,
			batches:   stores.Batches,
			waste:     stores.Waste,
			ledger:    ledger,
			notifier:  notifier,
			publisher: publisher,
			tx:        tx,
			zones:     tz,
			logger:    log.WithComponent("expiry-sweeper"),
		},
		alerts: &AlertEngine{
			kitchens:      stores.Kitchens,
			groups:        stores.Groups,
			batches:       stores.Batches,
			notifications: stores.Notifications,
			notifier:      notifier,
			tx:            tx,
			zones:         tz,
			logger:        log.WithComponent("alert-engine"),
		},
		publisher: publisher,
		tx:        tx,
		opts:      opts,
		logger:    log,
	}
}

// Units returns the unit converter in use
func (s *InventoryService) Units() *catalog.UnitConverter {
	return s.units
}

// Purchases

// PurchaseRequest records one purchased lot
type PurchaseRequest struct {
	Name        string           `json:"name" validate:"required,notblank,max=200"`
	CategoryID  string           `json:"category_id" validate:"required,max=100"`
	Quantity    float64          `json:"quantity" validate:"gt=0"`
	Unit        string           `json:"unit" validate:"required,max=50"`
	ExpiryDate  *time.Time       `json:"expiry_date,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Location    *string          `json:"location,omitempty" validate:"omitempty,max=200"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=500"`
	KitchenID   string           `json:"-" validate:"required"`
	CreatedBy   string           `json:"-" validate:"required"`
}

// PurchaseResult is the stored batch and the group it joined
type PurchaseResult struct {
	Batch *repository.Batch `json:"batch"`
	Group *repository.Group `json:"group"`
}

// PurchaseBatch converts the purchase to the base unit, resolves its group
// and stores it as a FRESH batch. Batch insert and total recompute commit
// together.
func (s *InventoryService) PurchaseBatch(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	qty := s.units.ToBaseUnit(req.Quantity, req.Unit)
	if qty <= 0 {
		return nil, errors.Validation(map[string]string{"quantity": "must be at least one base unit"})
	}
	if req.Price != nil && req.Price.IsNegative() {
		return nil, errors.Validation(map[string]string{"price": "must not be negative"})
	}

	if err := s.stores.Kitchens.Ensure(ctx, req.KitchenID); err != nil {
		return nil, fmt.Errorf("ensure kitchen: %w", err)
	}

	batch := &repository.Batch{
		OriginalQuantity: qty,
		CurrentQuantity:  qty,
		Status:           repository.StatusFresh,
		IsActive:         true,
		Location:         req.Location,
		Description:      req.Description,
		CreatedBy:        req.CreatedBy,
	}
	if req.ExpiryDate != nil {
		d := civilDate(*req.ExpiryDate)
		batch.ExpiryDate = &d
	}
	if req.Price != nil {
		batch.Price = decimal.NewNullDecimal(req.Price.Round(2))
	}

	var group *repository.Group
	var err error
	// A group resolved here can be deleted by a concurrent RemoveBatch before
	// the transaction locks it; resolve again in that case.
	for attempt := 0; attempt < s.opts.MaxRetries; attempt++ {
		group, err = s.resolver.Resolve(ctx, req.Name, req.CategoryID, req.Unit, req.KitchenID)
		if err != nil {
			return nil, err
		}

		batch.ID = ""
		err = s.tx.run(ctx, "purchase", func(ctx context.Context) error {
			if _, err := s.stores.Groups.GetForUpdate(ctx, group.ID); err != nil {
				return err
			}
			batch.GroupID = group.ID
			if err := s.stores.Batches.Create(ctx, batch); err != nil {
				return fmt.Errorf("create batch: %w", err)
			}
			updated, err := s.ledger.RecomputeTotals(ctx, group.ID)
			if err != nil {
				return err
			}
			group = updated
			return nil
		})
		if !errors.Is(err, errors.ErrGroupNotFound) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("batch_id", batch.ID).
		Str("group_id", group.ID).
		Str("kitchen_id", group.KitchenID).
		Int64("quantity", qty).
		Str("base_unit", group.BaseUnit).
		Msg("batch purchased")

	s.publisher.PublishStockPurchased(ctx, group, batch)
	return &PurchaseResult{Batch: batch, Group: group}, nil
}

// Consumption

// ConsumeResult describes a committed consumption
type ConsumeResult struct {
	GroupID     string       `json:"group_id"`
	ItemName    string       `json:"item_name"`
	BaseUnit    string       `json:"base_unit"`
	Consumed    int64        `json:"consumed"`
	Remaining   int64        `json:"remaining"`
	Allocations []Allocation `json:"allocations"`
}

// Consume takes req.Quantity from a group FIFO by expiry. It is all or
// nothing: on InsufficientQuantity no batch changes.
func (s *InventoryService) Consume(ctx context.Context, req ConsumeRequest) (*ConsumeResult, error) {
	if req.Quantity <= 0 {
		return nil, errors.Validation(map[string]string{"quantity": "must be greater than 0"})
	}
	if req.UsageType != "" && !validUsageType(req.UsageType) {
		return nil, errors.Validation(map[string]string{"usage_type": "must be one of: COOKING, DIRECT_CONSUMPTION, SHARING, OTHER"})
	}

	var group *repository.Group
	var allocations []Allocation
	err := s.tx.run(ctx, "consume", func(ctx context.Context) error {
		var err error
		group, allocations, err = s.allocator.Allocate(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.attachNames(ctx, allocations)
	metrics.ConsumedQuantity.WithLabelValues(group.BaseUnit).Add(float64(req.Quantity))

	s.logger.Info().
		Str("group_id", group.ID).
		Str("user_id", req.UserID).
		Int64("quantity", req.Quantity).
		Int("batches", len(allocations)).
		Msg("stock consumed")

	usageType := req.UsageType
	if usageType == "" {
		usageType = repository.UsageDirectConsumption
	}
	event := messaging.StockConsumedEvent{
		KitchenID: group.KitchenID,
		GroupID:   group.ID,
		ItemName:  group.Name,
		Quantity:  req.Quantity,
		Remaining: group.TotalQuantity,
		UserID:    req.UserID,
		UsageType: usageType,
	}
	for _, a := range allocations {
		event.Allocation = append(event.Allocation, messaging.BatchAllocated{BatchID: a.BatchID, Quantity: a.Taken})
	}
	s.publisher.PublishStockConsumed(ctx, event)

	return &ConsumeResult{
		GroupID:     group.ID,
		ItemName:    group.Name,
		BaseUnit:    group.BaseUnit,
		Consumed:    req.Quantity,
		Remaining:   group.TotalQuantity,
		Allocations: allocations,
	}, nil
}

// ConsumptionInfo lists what a group can give, in the order Consume would take it
type ConsumptionInfo struct {
	GroupID   string       `json:"group_id"`
	ItemName  string       `json:"item_name"`
	BaseUnit  string       `json:"base_unit"`
	Available int64        `json:"available"`
	Batches   []Allocation `json:"batches"`
}

// ConsumptionInfo returns the active batches of a group in FIFO order.
// Each entry's Remaining is what the batch currently holds.
func (s *InventoryService) ConsumptionInfo(ctx context.Context, kitchenID, groupID string) (*ConsumptionInfo, error) {
	g, err := s.kitchenGroup(ctx, kitchenID, groupID)
	if err != nil {
		return nil, err
	}

	batches, err := s.stores.Batches.ListActiveFIFO(ctx, g.ID)
	if err != nil {
		return nil, err
	}

	info := &ConsumptionInfo{
		GroupID:  g.ID,
		ItemName: g.Name,
		BaseUnit: g.BaseUnit,
		Batches:  make([]Allocation, 0, len(batches)),
	}
	for _, b := range batches {
		info.Available += b.CurrentQuantity
		info.Batches = append(info.Batches, Allocation{
			BatchID:    b.ID,
			Remaining:  b.CurrentQuantity,
			ExpiryDate: b.ExpiryDate,
			AddedBy:    b.CreatedBy,
		})
	}
	s.attachNames(ctx, info.Batches)
	return info, nil
}

// attachNames fills AddedByName from the user cache. A cache failure only
// leaves the names empty.
func (s *InventoryService) attachNames(ctx context.Context, allocations []Allocation) {
	if len(allocations) == 0 || s.stores.Users == nil {
		return
	}

	seen := make(map[string]bool)
	ids := make([]string, 0, len(allocations))
	for _, a := range allocations {
		if a.AddedBy != "" && !seen[a.AddedBy] {
			seen[a.AddedBy] = true
			ids = append(ids, a.AddedBy)
		}
	}

	names, err := s.stores.Users.Names(ctx, ids)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to resolve user names")
		return
	}
	for i := range allocations {
		allocations[i].AddedByName = names[allocations[i].AddedBy]
	}
}

// Waste

// ReportWasteRequest reports part or all of a batch as waste
type ReportWasteRequest struct {
	BatchID   string  `json:"-" validate:"required"`
	KitchenID string  `json:"-"`
	UserID    string  `json:"-" validate:"required"`
	Quantity  int64   `json:"quantity" validate:"gt=0"`
	Reason    string  `json:"reason" validate:"required,oneof=EXPIRED SPOILED OVERCOOKED LEFTOVER_DISCARDED ACCIDENTAL OTHER"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// ReportWaste moves quantity of a batch to waste with a value proportional
// to the batch price. An emptied batch becomes WASTED.
func (s *InventoryService) ReportWaste(ctx context.Context, req ReportWasteRequest) (*repository.WasteLog, error) {
	if req.Quantity <= 0 {
		return nil, errors.Validation(map[string]string{"quantity": "must be greater than 0"})
	}
	if !validWasteReason(req.Reason) {
		return nil, errors.Validation(map[string]string{"reason": "must be one of: EXPIRED, SPOILED, OVERCOOKED, LEFTOVER_DISCARDED, ACCIDENTAL, OTHER"})
	}

	var entry *repository.WasteLog
	var group *repository.Group
	err := s.tx.run(ctx, "report_waste", func(ctx context.Context) error {
		b, err := s.stores.Batches.GetByID(ctx, req.BatchID)
		if err != nil {
			return err
		}
		g, err := s.stores.Groups.GetForUpdate(ctx, b.GroupID)
		if err != nil {
			return err
		}
		if req.KitchenID != "" && g.KitchenID != req.KitchenID {
			return errors.BatchNotFound(req.BatchID)
		}
		if b, err = s.stores.Batches.GetForUpdate(ctx, req.BatchID); err != nil {
			return err
		}

		available := b.CurrentQuantity
		if !b.IsActive {
			available = 0
		}
		if req.Quantity > available {
			return errors.InsufficientQuantity(req.Quantity, available)
		}

		value := b.ValueOf(req.Quantity)
		b.Discard(req.Quantity)
		if err := s.stores.Batches.UpdateState(ctx, b); err != nil {
			return fmt.Errorf("update batch: %w", err)
		}

		reporter := req.UserID
		entry = &repository.WasteLog{
			BatchID:        b.ID,
			GroupID:        g.ID,
			KitchenID:      g.KitchenID,
			ItemName:       g.Name,
			ReportedBy:     &reporter,
			QuantityWasted: req.Quantity,
			WasteReason:    req.Reason,
			EstimatedValue: value,
			ExpiryDate:     b.ExpiryDate,
			Notes:          req.Notes,
		}
		if err := s.stores.Waste.Create(ctx, entry); err != nil {
			return fmt.Errorf("write waste log: %w", err)
		}

		group, err = s.ledger.RecomputeTotals(ctx, g.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.BatchesWasted.WithLabelValues(req.Reason).Inc()
	s.logger.Info().
		Str("batch_id", req.BatchID).
		Str("user_id", req.UserID).
		Int64("quantity", req.Quantity).
		Str("reason", req.Reason).
		Msg("waste reported")

	related := req.BatchID
	message := fmt.Sprintf("%d %s of %s was wasted", req.Quantity, group.BaseUnit, group.Name)
	if _, err := s.notifier.Raise(ctx, group.KitchenID, NotifyItemWasted, message, &related); err != nil {
		s.logger.Error().Err(err).Str("batch_id", req.BatchID).Msg("failed to raise waste notification")
	}
	s.publisher.PublishStockWasted(ctx, entry)

	return entry, nil
}

// ListExpiredWaste lists the batches a kitchen lost to expiry
func (s *InventoryService) ListExpiredWaste(ctx context.Context, kitchenID string) ([]*repository.WasteLog, error) {
	logs, err := s.stores.Waste.ListExpiredByKitchen(ctx, kitchenID)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []*repository.WasteLog{}
	}
	return logs, nil
}

// Batches and groups

// RemoveBatch deletes a batch. Its usage and waste logs are kept. Removing
// the last batch of a group deletes the group.
func (s *InventoryService) RemoveBatch(ctx context.Context, kitchenID, batchID string) error {
	return s.tx.run(ctx, "remove_batch", func(ctx context.Context) error {
		b, err := s.stores.Batches.GetByID(ctx, batchID)
		if err != nil {
			return err
		}
		g, err := s.stores.Groups.GetForUpdate(ctx, b.GroupID)
		if err != nil {
			return err
		}
		if kitchenID != "" && g.KitchenID != kitchenID {
			return errors.BatchNotFound(batchID)
		}

		if err := s.stores.Batches.Delete(ctx, batchID); err != nil {
			return err
		}

		left, err := s.stores.Batches.CountByGroup(ctx, g.ID)
		if err != nil {
			return err
		}
		if left == 0 {
			s.logger.Info().Str("group_id", g.ID).Msg("last batch removed, deleting group")
			return s.stores.Groups.Delete(ctx, g.ID)
		}

		_, err = s.ledger.RecomputeTotals(ctx, g.ID)
		return err
	})
}

// GroupDetail is a group with its active batches in FIFO order
type GroupDetail struct {
	*repository.Group
	Batches []*repository.Batch `json:"batches"`
}

// GetGroup gets a group of the kitchen with its active batches
func (s *InventoryService) GetGroup(ctx context.Context, kitchenID, groupID string) (*GroupDetail, error) {
	g, err := s.kitchenGroup(ctx, kitchenID, groupID)
	if err != nil {
		return nil, err
	}
	batches, err := s.stores.Batches.ListActiveFIFO(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	if batches == nil {
		batches = []*repository.Batch{}
	}
	return &GroupDetail{Group: g, Batches: batches}, nil
}

// ListGroups lists the groups of a kitchen that hold active stock
func (s *InventoryService) ListGroups(ctx context.Context, kitchenID string) ([]*repository.GroupSummary, error) {
	groups, err := s.stores.Groups.ListByKitchen(ctx, kitchenID)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []*repository.GroupSummary{}
	}
	return groups, nil
}

// ThresholdsRequest changes the alert thresholds of a group. Nil fields are kept.
type ThresholdsRequest struct {
	MinStock           *int64 `json:"min_stock,omitempty" validate:"omitempty,gte=0"`
	MinExpiryDaysAlert *int   `json:"min_expiry_days_alert,omitempty" validate:"omitempty,gte=0,lte=365"`
}

// UpdateGroupThresholds updates min stock and the expiry warning window of a group
func (s *InventoryService) UpdateGroupThresholds(ctx context.Context, kitchenID, groupID string, req ThresholdsRequest) (*repository.Group, error) {
	if req.MinStock != nil && *req.MinStock < 0 {
		return nil, errors.Validation(map[string]string{"min_stock": "must not be negative"})
	}
	if req.MinExpiryDaysAlert != nil && *req.MinExpiryDaysAlert < 0 {
		return nil, errors.Validation(map[string]string{"min_expiry_days_alert": "must not be negative"})
	}

	var group *repository.Group
	err := s.tx.run(ctx, "update_thresholds", func(ctx context.Context) error {
		g, err := s.stores.Groups.GetForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		if kitchenID != "" && g.KitchenID != kitchenID {
			return errors.GroupNotFound(groupID)
		}
		if req.MinStock != nil {
			g.MinStock = *req.MinStock
		}
		if req.MinExpiryDaysAlert != nil {
			g.MinExpiryDaysAlert = *req.MinExpiryDaysAlert
		}
		if err := s.stores.Groups.UpdateThresholds(ctx, g); err != nil {
			return err
		}
		group = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

func (s *InventoryService) kitchenGroup(ctx context.Context, kitchenID, groupID string) (*repository.Group, error) {
	g, err := s.stores.Groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if kitchenID != "" && g.KitchenID != kitchenID {
		return nil, errors.GroupNotFound(groupID)
	}
	return g, nil
}

// Kitchens

// AlertSettingsRequest sets when a kitchen receives its daily alerts
type AlertSettingsRequest struct {
	KitchenID string `json:"-" validate:"required"`
	Hour      int    `json:"hour" validate:"gte=0,lte=23"`
	Minute    int    `json:"minute" validate:"gte=0,lte=59"`
	Enabled   bool   `json:"enabled"`
	Timezone  string `json:"timezone,omitempty" validate:"omitempty,max=64"`
}

// GetAlertSettings returns the alert schedule of a kitchen
func (s *InventoryService) GetAlertSettings(ctx context.Context, kitchenID string) (*repository.Kitchen, error) {
	return s.stores.Kitchens.GetByID(ctx, kitchenID)
}

// UpdateAlertSettings stores the alert schedule of a kitchen
func (s *InventoryService) UpdateAlertSettings(ctx context.Context, req AlertSettingsRequest) (*repository.Kitchen, error) {
	details := map[string]string{}
	if req.Hour < 0 || req.Hour > 23 {
		details["hour"] = "must be between 0 and 23"
	}
	if req.Minute < 0 || req.Minute > 59 {
		details["minute"] = "must be between 0 and 59"
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			details["timezone"] = "must be an IANA time zone name"
		}
	}
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	k := &repository.Kitchen{
		ID:              req.KitchenID,
		AlertTimeHour:   req.Hour,
		AlertTimeMinute: req.Minute,
		AlertsEnabled:   req.Enabled,
		Timezone:        req.Timezone,
	}
	if err := s.stores.Kitchens.UpsertAlertSettings(ctx, k); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("kitchen_id", k.ID).
		Int("hour", k.AlertTimeHour).
		Int("minute", k.AlertTimeMinute).
		Bool("enabled", k.AlertsEnabled).
		Msg("alert settings updated")
	return k, nil
}

// Scheduled jobs

// RunExpirySweep runs one pass of the expiry state machine at now
func (s *InventoryService) RunExpirySweep(ctx context.Context, now time.Time) (SweepReport, error) {
	return s.sweeper.RunExpirySweep(ctx, now)
}

// RunAlertPass runs one pass of the alert engine at now
func (s *InventoryService) RunAlertPass(ctx context.Context, now time.Time) (AlertReport, error) {
	return s.alerts.RunAlertPass(ctx, now)
}

// Jobs returns the two periodic jobs bound to this service
func (s *InventoryService) Jobs(log *logger.Logger) (expiry *Job, alerts *Job) {
	expiry = NewJob(JobExpirySweep, func(ctx context.Context, now time.Time) error {
		report, err := s.RunExpirySweep(ctx, now)
		if err == nil && report.Failed > 0 {
			err = fmt.Errorf("%d of %d batches failed", report.Failed, report.Scanned)
		}
		return err
	}, log)

	alerts = NewJob(JobAlertPass, func(ctx context.Context, now time.Time) error {
		report, err := s.RunAlertPass(ctx, now)
		if err == nil && report.Failed > 0 {
			err = fmt.Errorf("%d alert evaluations failed", report.Failed)
		}
		return err
	}, log)

	return expiry, alerts
}

// Notifications

// Notifications returns the notifier for per-user notification state
func (s *InventoryService) Notifications() *Notifier {
	return s.notifier
}

func validUsageType(t string) bool {
	switch t {
	case repository.UsageCooking, repository.UsageDirectConsumption, repository.UsageSharing, repository.UsageOther:
		return true
	}
	return false
}

func validWasteReason(r string) bool {
	switch r {
	case repository.WasteExpired, repository.WasteSpoiled, repository.WasteOvercooked,
		repository.WasteLeftoverDiscarded, repository.WasteAccidental, repository.WasteOther:
		return true
	}
	return false
}
