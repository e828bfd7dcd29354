package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/repository"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/service"
	"github.com/pantrymind/pantrymind-backend/pkg/errors"
)

// memDB is an in-memory stand-in for the Postgres repositories. Transactions
// are serialized and roll back by restoring a snapshot.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex
	now  time.Time
	seq  int

	groups        map[string]*repository.Group
	batches       map[string]*repository.Batch
	usage         []*repository.UsageLog
	waste         []*repository.WasteLog
	kitchens      map[string]*repository.Kitchen
	notifications []*repository.Notification
	readBy        map[string]bool
	deletedBy     map[string]bool
	users         map[string]string

	// conflicts makes the next n transactions fail with a serialization failure.
	conflicts int
	// usageErr is returned by every usage log insert when set.
	usageErr error
	// updateErr fails UpdateState for the keyed batch ids.
	updateErr map[string]error
	// markErr fails MarkExpiringSoon for the keyed batch ids.
	markErr map[string]error
	// lowStockErr fails ListLowStock for the keyed kitchens.
	lowStockErr map[string]error
	// beforeCreate runs before CreateIfAbsent checks the key.
	beforeCreate func()
	txCount      int
	dedupLocks   int
}

type memTxKey struct{}

type memSnapshot struct {
	groups        map[string]*repository.Group
	batches       map[string]*repository.Batch
	usage         []*repository.UsageLog
	waste         []*repository.WasteLog
	kitchens      map[string]*repository.Kitchen
	notifications []*repository.Notification
	readBy        map[string]bool
	deletedBy     map[string]bool
}

func newMemDB(now time.Time) *memDB {
	return &memDB{
		now:       now,
		groups:    make(map[string]*repository.Group),
		batches:   make(map[string]*repository.Batch),
		kitchens:  make(map[string]*repository.Kitchen),
		readBy:    make(map[string]bool),
		deletedBy: make(map[string]bool),
		users:     make(map[string]string),
	}
}

func (d *memDB) stores() service.Stores {
	return service.Stores{
		Tx:            d,
		Groups:        memGroups{d},
		Batches:       memBatches{d},
		Usage:         memUsage{d},
		Waste:         memWaste{d},
		Kitchens:      memKitchens{d},
		Notifications: memNotifications{d},
		Users:         memUsers{d},
	}
}

func (d *memDB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	d.txMu.Lock()
	defer d.txMu.Unlock()

	d.mu.Lock()
	d.txCount++
	if d.conflicts > 0 {
		d.conflicts--
		d.mu.Unlock()
		return &pq.Error{Code: "40001", Message: "could not serialize access due to concurrent update"}
	}
	snap := d.snapshot()
	d.mu.Unlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		d.mu.Lock()
		d.restore(snap)
		d.mu.Unlock()
		return err
	}
	return nil
}

func (d *memDB) snapshot() memSnapshot {
	s := memSnapshot{
		groups:    make(map[string]*repository.Group, len(d.groups)),
		batches:   make(map[string]*repository.Batch, len(d.batches)),
		kitchens:  make(map[string]*repository.Kitchen, len(d.kitchens)),
		readBy:    make(map[string]bool, len(d.readBy)),
		deletedBy: make(map[string]bool, len(d.deletedBy)),
	}
	for id, g := range d.groups {
		c := *g
		s.groups[id] = &c
	}
	for id, b := range d.batches {
		c := *b
		s.batches[id] = &c
	}
	for id, k := range d.kitchens {
		c := *k
		s.kitchens[id] = &c
	}
	for k, v := range d.readBy {
		s.readBy[k] = v
	}
	for k, v := range d.deletedBy {
		s.deletedBy[k] = v
	}
	s.usage = append([]*repository.UsageLog(nil), d.usage...)
	s.waste = append([]*repository.WasteLog(nil), d.waste...)
	s.notifications = append([]*repository.Notification(nil), d.notifications...)
	return s
}

func (d *memDB) restore(s memSnapshot) {
	d.groups = s.groups
	d.batches = s.batches
	d.kitchens = s.kitchens
	d.readBy = s.readBy
	d.deletedBy = s.deletedBy
	d.usage = s.usage
	d.waste = s.waste
	d.notifications = s.notifications
}

// stamp returns a strictly increasing timestamp around now
func (d *memDB) stamp() time.Time {
	d.seq++
	return d.now.Add(time.Duration(d.seq) * time.Microsecond)
}

// activeSum checks the group total invariant against the batches
func (d *memDB) activeSum(groupID string) (int64, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var sum int64
	var n int
	for _, b := range d.batches {
		if b.GroupID == groupID && b.IsActive {
			sum += b.CurrentQuantity
			n++
		}
	}
	return sum, n
}

// hasBatch reports whether any batch, active or not, belongs to the group.
// The caller holds d.mu.
func (d *memDB) hasBatch(groupID string) bool {
	for _, b := range d.batches {
		if b.GroupID == groupID {
			return true
		}
	}
	return false
}

func (d *memDB) group(id string) *repository.Group {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.groups[id]
	if !ok {
		return nil
	}
	c := *g
	return &c
}

func (d *memDB) batch(id string) *repository.Batch {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.batches[id]
	if !ok {
		return nil
	}
	c := *b
	return &c
}

// putBatch stores a batch directly, bypassing the service
func (d *memDB) putBatch(b *repository.Batch) *repository.Batch {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = d.stamp()
	}
	c := *b
	d.batches[b.ID] = &c
	return b
}

// putGroup stores a group directly, bypassing the service
func (d *memDB) putGroup(g *repository.Group) *repository.Group {
	d.mu.Lock()
	defer d.mu.Unlock()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	g.CreatedAt = d.stamp()
	c := *g
	d.groups[g.ID] = &c
	return g
}

// Groups

type memGroups struct{ d *memDB }

func (s memGroups) GetByID(ctx context.Context, id string) (*repository.Group, error) {
	if g := s.d.group(id); g != nil {
		return g, nil
	}
	return nil, errors.GroupNotFound(id)
}

func (s memGroups) GetForUpdate(ctx context.Context, id string) (*repository.Group, error) {
	return s.GetByID(ctx, id)
}

func (s memGroups) FindByKey(ctx context.Context, key repository.GroupKey) (*repository.Group, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	for _, g := range s.d.groups {
		if g.Key() == key {
			c := *g
			return &c, nil
		}
	}
	return nil, nil
}

func (s memGroups) ListInScope(ctx context.Context, kitchenID, categoryID, baseUnit string) ([]*repository.Group, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	var out []*repository.Group
	for _, g := range s.d.groups {
		if g.KitchenID == kitchenID && g.CategoryID == categoryID && g.BaseUnit == baseUnit {
			c := *g
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s memGroups) CreateIfAbsent(ctx context.Context, g *repository.Group) (bool, error) {
	if s.d.beforeCreate != nil {
		s.d.beforeCreate()
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	for _, existing := range s.d.groups {
		if existing.Key() == g.Key() {
			return false, nil
		}
	}
	g.ID = uuid.NewString()
	g.CreatedAt = s.d.stamp()
	g.UpdatedAt = g.CreatedAt
	c := *g
	s.d.groups[g.ID] = &c
	return true, nil
}

func (s memGroups) UpdateTotals(ctx context.Context, id string, total int64, itemCount int) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	g, ok := s.d.groups[id]
	if !ok {
		return errors.GroupNotFound(id)
	}
	g.TotalQuantity = total
	g.ItemCount = itemCount
	return nil
}

func (s memGroups) UpdateThresholds(ctx context.Context, g *repository.Group) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	stored, ok := s.d.groups[g.ID]
	if !ok {
		return errors.GroupNotFound(g.ID)
	}
	stored.MinStock = g.MinStock
	stored.MinExpiryDaysAlert = g.MinExpiryDaysAlert
	return nil
}

func (s memGroups) Delete(ctx context.Context, id string) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if _, ok := s.d.groups[id]; !ok {
		return errors.GroupNotFound(id)
	}
	delete(s.d.groups, id)
	for bid, b := range s.d.batches {
		if b.GroupID == id {
			delete(s.d.batches, bid)
		}
	}
	return nil
}

func (s memGroups) ListByKitchen(ctx context.Context, kitchenID string) ([]*repository.GroupSummary, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	var out []*repository.GroupSummary
	for _, g := range s.d.groups {
		if g.KitchenID != kitchenID {
			continue
		}
		var active bool
		var earliest *time.Time
		for _, b := range s.d.batches {
			if b.GroupID != g.ID || !b.IsActive {
				continue
			}
			active = true
			if b.ExpiryDate != nil && (earliest == nil || b.ExpiryDate.Before(*earliest)) {
				e := *b.ExpiryDate
				earliest = &e
			}
		}
		if active {
			out = append(out, &repository.GroupSummary{Group: *g, EarliestExpiry: earliest})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s memGroups) ListLowStock(ctx context.Context, kitchenID string) ([]*repository.Group, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if err := s.d.lowStockErr[kitchenID]; err != nil {
		return nil, err
	}
	var out []*repository.Group
	for _, g := range s.d.groups {
		if g.KitchenID == kitchenID && g.IsLowStock() && s.d.hasBatch(g.ID) {
			c := *g
			out = append(out, &c)
		}
	}
	return out, nil
}

// Batches

type memBatches struct{ d *memDB }

func (s memBatches) Create(ctx context.Context, b *repository.Batch) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if _, ok := s.d.groups[b.GroupID]; !ok {
		return errors.GroupNotFound(b.GroupID)
	}
	b.ID = uuid.NewString()
	b.CreatedAt = s.d.stamp()
	b.UpdatedAt = b.CreatedAt
	c := *b
	s.d.batches[b.ID] = &c
	return nil
}

func (s memBatches) GetByID(ctx context.Context, id string) (*repository.Batch, error) {
	if b := s.d.batch(id); b != nil {
		return b, nil
	}
	return nil, errors.BatchNotFound(id)
}

func (s memBatches) GetForUpdate(ctx context.Context, id string) (*repository.Batch, error) {
	return s.GetByID(ctx, id)
}

func (s memBatches) ListActiveFIFO(ctx context.Context, groupID string) ([]*repository.Batch, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	var out []*repository.Batch
	for _, b := range s.d.batches {
		if b.GroupID == groupID && b.IsActive {
			c := *b
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.ExpiryDate != nil && b.ExpiryDate == nil:
			return true
		case a.ExpiryDate == nil && b.ExpiryDate != nil:
			return false
		case a.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ExpiryDate.Before(*b.ExpiryDate)
		case !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.Before(b.CreatedAt)
		default:
			return a.ID < b.ID
		}
	})
	return out, nil
}

func (s memBatches) SumActive(ctx context.Context, groupID string) (int64, int, error) {
	sum, n := s.d.activeSum(groupID)
	return sum, n, nil
}

func (s memBatches) UpdateState(ctx context.Context, b *repository.Batch) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if err := s.d.updateErr[b.ID]; err != nil {
		return err
	}
	stored, ok := s.d.batches[b.ID]
	if !ok {
		return errors.BatchNotFound(b.ID)
	}
	if b.CurrentQuantity < 0 || b.CurrentQuantity > stored.OriginalQuantity {
		return &pq.Error{Code: "23514", Constraint: "inventory_batches_current_quantity_check"}
	}
	stored.CurrentQuantity = b.CurrentQuantity
	stored.Status = b.Status
	stored.IsActive = b.IsActive
	return nil
}

func (s memBatches) MarkExpiringSoon(ctx context.Context, id string) (bool, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if err := s.d.markErr[id]; err != nil {
		return false, err
	}
	b, ok := s.d.batches[id]
	if !ok || !b.IsActive || b.Status != repository.StatusFresh {
		return false, nil
	}
	b.Status = repository.StatusExpiringSoon
	return true, nil
}

func (s memBatches) Delete(ctx context.Context, id string) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if _, ok := s.d.batches[id]; !ok {
		return errors.BatchNotFound(id)
	}
	delete(s.d.batches, id)
	return nil
}

func (s memBatches) CountByGroup(ctx context.Context, groupID string) (int, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	var n int
	for _, b := range s.d.batches {
		if b.GroupID == groupID {
			n++
		}
	}
	return n, nil
}

func (s memBatches) ListDated(ctx context.Context) ([]*repository.DatedBatch, error) {
	return s.dated("")
}

func (s memBatches) ListDatedByKitchen(ctx context.Context, kitchenID string) ([]*repository.DatedBatch, error) {
	return s.dated(kitchenID)
}

func (s memBatches) dated(kitchenID string) ([]*repository.DatedBatch, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	var out []*repository.DatedBatch
	for _, b := range s.d.batches {
		if !b.IsActive || b.ExpiryDate == nil {
			continue
		}
		g := s.d.groups[b.GroupID]
		if kitchenID != "" && g.KitchenID != kitchenID {
			continue
		}
		var tz string
		if k, ok := s.d.kitchens[g.KitchenID]; ok {
			tz = k.Timezone
		}
		out = append(out, &repository.DatedBatch{
			BatchID:            b.ID,
			GroupID:            g.ID,
			KitchenID:          g.KitchenID,
			ItemName:           g.Name,
			Status:             b.Status,
			ExpiryDate:         *b.ExpiryDate,
			MinExpiryDaysAlert: g.MinExpiryDaysAlert,
			Timezone:           tz,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiryDate.Equal(out[j].ExpiryDate) {
			return out[i].ExpiryDate.Before(out[j].ExpiryDate)
		}
		return out[i].BatchID < out[j].BatchID
	})
	return out, nil
}

// Logs

type memUsage struct{ d *memDB }

func (s memUsage) Create(ctx context.Context, l *repository.UsageLog) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if s.d.usageErr != nil {
		return s.d.usageErr
	}
	l.ID = uuid.NewString()
	l.UsedAt = s.d.stamp()
	c := *l
	s.d.usage = append(s.d.usage, &c)
	return nil
}

type memWaste struct{ d *memDB }

func (s memWaste) Create(ctx context.Context, l *repository.WasteLog) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	l.ID = uuid.NewString()
	l.WastedAt = s.d.stamp()
	c := *l
	s.d.waste = append(s.d.waste, &c)
	return nil
}

func (s memWaste) ListExpiredByKitchen(ctx context.Context, kitchenID string) ([]*repository.WasteLog, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	var out []*repository.WasteLog
	for i := len(s.d.waste) - 1; i >= 0; i-- {
		l := s.d.waste[i]
		if l.KitchenID == kitchenID && l.WasteReason == repository.WasteExpired {
			c := *l
			out = append(out, &c)
		}
	}
	return out, nil
}

// Kitchens

type memKitchens struct{ d *memDB }

func (s memKitchens) Ensure(ctx context.Context, id string) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if _, ok := s.d.kitchens[id]; !ok {
		s.d.kitchens[id] = &repository.Kitchen{ID: id, AlertTimeHour: 9, AlertsEnabled: true}
	}
	return nil
}

func (s memKitchens) GetByID(ctx context.Context, id string) (*repository.Kitchen, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	k, ok := s.d.kitchens[id]
	if !ok {
		return nil, errors.NotFound("kitchen")
	}
	c := *k
	return &c, nil
}

func (s memKitchens) UpsertAlertSettings(ctx context.Context, k *repository.Kitchen) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	stored, ok := s.d.kitchens[k.ID]
	if !ok {
		stored = &repository.Kitchen{ID: k.ID}
		s.d.kitchens[k.ID] = stored
	}
	stored.AlertTimeHour = k.AlertTimeHour
	stored.AlertTimeMinute = k.AlertTimeMinute
	stored.AlertsEnabled = k.AlertsEnabled
	if k.Timezone != "" {
		stored.Timezone = k.Timezone
	}
	*k = *stored
	return nil
}

func (s memKitchens) ListAlertsEnabled(ctx context.Context) ([]*repository.Kitchen, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	var out []*repository.Kitchen
	for _, k := range s.d.kitchens {
		if k.AlertsEnabled {
			c := *k
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Notifications

type memNotifications struct{ d *memDB }

func (s memNotifications) Create(ctx context.Context, n *repository.Notification) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	n.ID = uuid.NewString()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.d.stamp()
	}
	c := *n
	s.d.notifications = append(s.d.notifications, &c)
	return nil
}

func (s memNotifications) ExistsSince(ctx context.Context, kitchenID, notificationType string, since time.Time) (bool, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	for _, n := range s.d.notifications {
		if n.KitchenID == kitchenID && n.Type == notificationType && n.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

// LockDedup only counts calls; memDB transactions are already serialized.
func (s memNotifications) LockDedup(ctx context.Context, kitchenID, notificationType string) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.dedupLocks++
	return nil
}

func (s memNotifications) ListForUser(ctx context.Context, kitchenID, userID string, unreadOnly bool, limit int) ([]*repository.UserNotification, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	var out []*repository.UserNotification
	for i := len(s.d.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		n := s.d.notifications[i]
		if n.KitchenID != kitchenID || s.d.deletedBy[n.ID+"|"+userID] {
			continue
		}
		read := s.d.readBy[n.ID+"|"+userID]
		if unreadOnly && read {
			continue
		}
		out = append(out, &repository.UserNotification{Notification: *n, Read: read})
	}
	return out, nil
}

func (s memNotifications) visible(kitchenID, id string) bool {
	for _, n := range s.d.notifications {
		if n.ID == id && n.KitchenID == kitchenID {
			return true
		}
	}
	return false
}

func (s memNotifications) MarkRead(ctx context.Context, kitchenID, id, userID string) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if !s.visible(kitchenID, id) {
		return errors.NotFound("notification")
	}
	s.d.readBy[id+"|"+userID] = true
	return nil
}

func (s memNotifications) MarkAllRead(ctx context.Context, kitchenID, userID string) (int64, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	var n int64
	for _, notification := range s.d.notifications {
		key := notification.ID + "|" + userID
		if notification.KitchenID == kitchenID && !s.d.readBy[key] {
			s.d.readBy[key] = true
			n++
		}
	}
	return n, nil
}

func (s memNotifications) Delete(ctx context.Context, kitchenID, id, userID string) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if !s.visible(kitchenID, id) {
		return errors.NotFound("notification")
	}
	s.d.deletedBy[id+"|"+userID] = true
	return nil
}

// Users

type memUsers struct{ d *memDB }

func (s memUsers) Names(ctx context.Context, userIDs []string) (map[string]string, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	names := make(map[string]string)
	for _, id := range userIDs {
		if name, ok := s.d.users[id]; ok {
			names[id] = name
		}
	}
	return names, nil
}
