package service

import (
	"context"
	"time"

	"github.com/pantrymind/pantrymind-backend/internal/inventory/repository"
	"github.com/pantrymind/pantrymind-backend/pkg/database"
)

// TxRunner runs fn in a transaction carried by ctx. *database.DB satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// GroupStore is the group persistence used by the service
type GroupStore interface {
	GetByID(ctx context.Context, id string) (*repository.Group, error)
	GetForUpdate(ctx context.Context, id string) (*repository.Group, error)
	FindByKey(ctx context.Context, key repository.GroupKey) (*repository.Group, error)
	ListInScope(ctx context.Context, kitchenID, categoryID, baseUnit string) ([]*repository.Group, error)
	CreateIfAbsent(ctx context.Context, g *repository.Group) (bool, error)
	UpdateTotals(ctx context.Context, id string, total int64, itemCount int) error
	UpdateThresholds(ctx context.Context, g *repository.Group) error
	Delete(ctx context.Context, id string) error
	ListByKitchen(ctx context.Context, kitchenID string) ([]*repository.GroupSummary, error)
	ListLowStock(ctx context.Context, kitchenID string) ([]*repository.Group, error)
}

// BatchStore is the batch persistence used by the service
type BatchStore interface {
	Create(ctx context.Context, b *repository.Batch) error
	GetByID(ctx context.Context, id string) (*repository.Batch, error)
	GetForUpdate(ctx context.Context, id string) (*repository.Batch, error)
	ListActiveFIFO(ctx context.Context, groupID string) ([]*repository.Batch, error)
	SumActive(ctx context.Context, groupID string) (int64, int, error)
	UpdateState(ctx context.Context, b *repository.Batch) error
	MarkExpiringSoon(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
	CountByGroup(ctx context.Context, groupID string) (int, error)
	ListDated(ctx context.Context) ([]*repository.DatedBatch, error)
	ListDatedByKitchen(ctx context.Context, kitchenID string) ([]*repository.DatedBatch, error)
}

// UsageLogStore appends usage records
type UsageLogStore interface {
	Create(ctx context.Context, l *repository.UsageLog) error
}

// WasteLogStore appends and lists waste records
type WasteLogStore interface {
	Create(ctx context.Context, l *repository.WasteLog) error
	ListExpiredByKitchen(ctx context.Context, kitchenID string) ([]*repository.WasteLog, error)
}

// KitchenStore holds per-kitchen alert settings
type KitchenStore interface {
	Ensure(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*repository.Kitchen, error)
	UpsertAlertSettings(ctx context.Context, k *repository.Kitchen) error
	ListAlertsEnabled(ctx context.Context) ([]*repository.Kitchen, error)
}

// NotificationStore persists notifications and per-user read/delete state
type NotificationStore interface {
	Create(ctx context.Context, n *repository.Notification) error
	LockDedup(ctx context.Context, kitchenID, notificationType string) error
	ExistsSince(ctx context.Context, kitchenID, notificationType string, since time.Time) (bool, error)
	ListForUser(ctx context.Context, kitchenID, userID string, unreadOnly bool, limit int) ([]*repository.UserNotification, error)
	MarkRead(ctx context.Context, kitchenID, id, userID string) error
	MarkAllRead(ctx context.Context, kitchenID, userID string) (int64, error)
	Delete(ctx context.Context, kitchenID, id, userID string) error
}

// UserDirectory resolves user display names
type UserDirectory interface {
	Names(ctx context.Context, userIDs []string) (map[string]string, error)
}

// Stores bundles the persistence the inventory components need
type Stores struct {
	Tx            TxRunner
	Groups        GroupStore
	Batches       BatchStore
	Usage         UsageLogStore
	Waste         WasteLogStore
	Kitchens      KitchenStore
	Notifications NotificationStore
	Users         UserDirectory
}

// NewPostgresStores wires the sqlx repositories onto db
func NewPostgresStores(db *database.DB) Stores {
	return Stores{
		Tx:            db,
		Groups:        repository.NewGroupRepository(db),
		Batches:       repository.NewBatchRepository(db),
		Usage:         repository.NewUsageLogRepository(db),
		Waste:         repository.NewWasteLogRepository(db),
		Kitchens:      repository.NewKitchenRepository(db),
		Notifications: repository.NewNotificationRepository(db),
		Users:         repository.NewUserCacheRepository(db),
	}
}
