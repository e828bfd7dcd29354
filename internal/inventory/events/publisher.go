package events

import (
	"context"
	"strings"

	"github.com/pantrymind/pantrymind-backend/internal/inventory/repository"
	"github.com/pantrymind/pantrymind-backend/pkg/logger"
	"github.com/pantrymind/pantrymind-backend/pkg/messaging"
)

// Broker publishes one event; the event type doubles as routing key.
// *messaging.Publisher satisfies it.
type Broker interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// InventoryEventPublisher publishes inventory events onto the inventory
// exchange. Publishing is fire-and-forget: failures are logged, never
// returned. A nil publisher discards everything.
type InventoryEventPublisher struct {
	broker Broker
	logger *logger.Logger
}

// NewInventoryEventPublisher creates a publisher backed by RabbitMQ
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}
	return NewWithBroker(publisher, log), nil
}

// NewWithBroker creates a publisher on top of any broker
func NewWithBroker(b Broker, log *logger.Logger) *InventoryEventPublisher {
	return &InventoryEventPublisher{
		broker: b,
		logger: log.WithComponent("event-publisher"),
	}
}

// NotificationRoutingKey returns the routing key of a notification type,
// e.g. inventory.notification.low_stock
func NotificationRoutingKey(notificationType string) string {
	return messaging.EventNotificationPrefix + strings.ToLower(notificationType)
}

// PublishNotification hands a stored notification to the notification sink
func (p *InventoryEventPublisher) PublishNotification(ctx context.Context, n *repository.Notification) {
	if p == nil {
		return
	}

	data := messaging.NotificationEvent{
		NotificationID: n.ID,
		KitchenID:      n.KitchenID,
		Type:           n.Type,
		Severity:       n.Severity,
		Title:          n.Title,
		Message:        n.Message,
		RelatedItemID:  n.RelatedItemID,
		Timestamp:      n.CreatedAt,
	}

	if err := p.broker.Publish(ctx, NotificationRoutingKey(n.Type), data); err != nil {
		p.logger.Error().Err(err).
			Str("notification_id", n.ID).
			Str("type", n.Type).
			Msg("failed to publish notification event")
	}
}

// PublishStockPurchased publishes a stock purchased event
func (p *InventoryEventPublisher) PublishStockPurchased(ctx context.Context, g *repository.Group, b *repository.Batch) {
	if p == nil {
		return
	}

	data := messaging.StockPurchasedEvent{
		KitchenID: g.KitchenID,
		GroupID:   g.ID,
		BatchID:   b.ID,
		ItemName:  g.Name,
		Quantity:  b.OriginalQuantity,
		BaseUnit:  g.BaseUnit,
		CreatedBy: b.CreatedBy,
	}

	if err := p.broker.Publish(ctx, messaging.EventStockPurchased, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", b.ID).Msg("failed to publish stock purchased event")
	}
}

// PublishStockConsumed publishes a stock consumed event
func (p *InventoryEventPublisher) PublishStockConsumed(ctx context.Context, data messaging.StockConsumedEvent) {
	if p == nil {
		return
	}

	if err := p.broker.Publish(ctx, messaging.EventStockConsumed, data); err != nil {
		p.logger.Error().Err(err).Str("group_id", data.GroupID).Msg("failed to publish stock consumed event")
	}
}

// PublishStockWasted publishes a stock wasted event
func (p *InventoryEventPublisher) PublishStockWasted(ctx context.Context, w *repository.WasteLog) {
	if p == nil {
		return
	}

	data := messaging.StockWastedEvent{
		KitchenID:      w.KitchenID,
		GroupID:        w.GroupID,
		BatchID:        w.BatchID,
		ItemName:       w.ItemName,
		Quantity:       w.QuantityWasted,
		Reason:         w.WasteReason,
		EstimatedValue: w.EstimatedValue.StringFixed(2),
	}

	if err := p.broker.Publish(ctx, messaging.EventStockWasted, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", w.BatchID).Msg("failed to publish stock wasted event")
	}
}
