package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pantrymind/pantrymind-backend/internal/inventory/events"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/repository"
	"github.com/pantrymind/pantrymind-backend/pkg/errors"
	"github.com/pantrymind/pantrymind-backend/pkg/logger"
	"github.com/pantrymind/pantrymind-backend/pkg/metrics"
)

// Notification types
const (
	NotifyLowStock          = "LOW_STOCK"
	NotifyCriticalStock     = "CRITICAL_STOCK"
	NotifyExpiryWarning     = "EXPIRY_WARNING"
	NotifyItemExpired       = "ITEM_EXPIRED"
	NotifyItemsExpired      = "ITEMS_EXPIRED"
	NotifyItemExpiredWasted = "ITEM_EXPIRED_WASTED"
	NotifyItemWasted        = "ITEM_WASTED"
)

// Severities
const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityCritical = "CRITICAL"
)

const defaultNotificationLimit = 50

// SeverityFor returns the severity a notification type is raised with
func SeverityFor(notificationType string) string {
	switch notificationType {
	case NotifyItemExpired, NotifyItemsExpired, NotifyItemExpiredWasted, NotifyCriticalStock:
		return SeverityCritical
	case NotifyExpiryWarning, NotifyLowStock:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// TitleFor returns the headline shown for a notification type
func TitleFor(notificationType string) string {
	switch notificationType {
	case NotifyLowStock:
		return "Low Stock Alert"
	case NotifyCriticalStock:
		return "Critical Stock Alert"
	case NotifyExpiryWarning:
		return "Expiry Warning"
	case NotifyItemExpired, NotifyItemExpiredWasted:
		return "Item Expired"
	case NotifyItemsExpired:
		return "Items Expired"
	case NotifyItemWasted:
		return "Item Wasted"
	default:
		return "Notification"
	}
}

// Notifier stores kitchen notifications and hands them to the notification sink
type Notifier struct {
	notifications NotificationStore
	publisher     *events.InventoryEventPublisher
	logger        *logger.Logger
}

// NewNotifier creates a new notifier. publisher may be nil.
func NewNotifier(store NotificationStore, publisher *events.InventoryEventPublisher, log *logger.Logger) *Notifier {
	return &Notifier{
		notifications: store,
		publisher:     publisher,
		logger:        log.WithComponent("notifier"),
	}
}

// Raise persists a notification and publishes it. Severity and title are
// derived from the type.
func (n *Notifier) Raise(ctx context.Context, kitchenID, notificationType, message string, relatedItemID *string) (*repository.Notification, error) {
	return n.RaiseAt(ctx, time.Time{}, kitchenID, notificationType, message, relatedItemID)
}

// RaiseAt is Raise with an explicit creation time. A zero at means now.
func (n *Notifier) RaiseAt(ctx context.Context, at time.Time, kitchenID, notificationType, message string, relatedItemID *string) (*repository.Notification, error) {
	notification, err := n.store(ctx, at, kitchenID, notificationType, message, relatedItemID)
	if err != nil {
		return nil, err
	}
	n.announce(ctx, notification)
	return notification, nil
}

// store persists a notification without announcing it. Callers inside a
// transaction announce once it commits.
func (n *Notifier) store(ctx context.Context, at time.Time, kitchenID, notificationType, message string, relatedItemID *string) (*repository.Notification, error) {
	notification := &repository.Notification{
		CreatedAt:     at,
		KitchenID:     kitchenID,
		Type:          notificationType,
		Title:         TitleFor(notificationType),
		Severity:      SeverityFor(notificationType),
		Message:       message,
		RelatedItemID: relatedItemID,
	}
	if err := n.notifications.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}
	return notification, nil
}

func (n *Notifier) announce(ctx context.Context, notification *repository.Notification) {
	metrics.NotificationsRaised.WithLabelValues(notification.Type, notification.Severity).Inc()
	n.logger.Info().
		Str("notification_id", notification.ID).
		Str("kitchen_id", notification.KitchenID).
		Str("type", notification.Type).
		Str("severity", notification.Severity).
		Msg("notification raised")

	n.publisher.PublishNotification(ctx, notification)
}

// ListForUser lists the notifications a user can see in a kitchen
func (n *Notifier) ListForUser(ctx context.Context, kitchenID, userID string, unreadOnly bool, limit int) ([]*repository.UserNotification, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultNotificationLimit
	}
	list, err := n.notifications.ListForUser(ctx, kitchenID, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*repository.UserNotification{}
	}
	return list, nil
}

// MarkRead marks a notification read for one user only
func (n *Notifier) MarkRead(ctx context.Context, kitchenID, id, userID string) error {
	return n.notifications.MarkRead(ctx, kitchenID, id, userID)
}

// MarkAllRead marks every notification of the kitchen read for one user
func (n *Notifier) MarkAllRead(ctx context.Context, kitchenID, userID string) (int64, error) {
	return n.notifications.MarkAllRead(ctx, kitchenID, userID)
}

// Delete hides a notification from one user only
func (n *Notifier) Delete(ctx context.Context, kitchenID, id, userID string) error {
	if id == "" {
		return errors.NotFound("notification")
	}
	return n.notifications.Delete(ctx, kitchenID, id, userID)
}
