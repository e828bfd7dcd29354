package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// User events (consumed for the user display-name cache)
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"

	// Inventory events
	EventStockPurchased     = "inventory.stock.purchased"
	EventStockConsumed      = "inventory.stock.consumed"
	EventStockWasted        = "inventory.stock.wasted"
	EventNotificationPrefix = "inventory.notification."
)

// Exchange names
const (
	ExchangeUserEvents      = "user.events"
	ExchangeInventoryEvents = "inventory.events"
)

// Event is the envelope of every message on the pantry exchanges. Data holds
// one of the payload types below, selected by Type.
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent wraps data in a fresh envelope stamped with the current UTC time
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}

	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData decodes Data into v
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// User Events

// UserCreatedEvent is published by the user service when an account is created
type UserCreatedEvent struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	KitchenID string `json:"kitchen_id,omitempty"`
}

// UserUpdatedEvent carries changed fields as {"field": {"from": x, "to": y}}
type UserUpdatedEvent struct {
	UserID string         `json:"user_id"`
	Fields map[string]any `json:"fields"`
}

// UserDeletedEvent is published when a user is deleted
type UserDeletedEvent struct {
	UserID string `json:"user_id"`
}

// Inventory Events

// StockPurchasedEvent is published after a batch has been added to a group
type StockPurchasedEvent struct {
	KitchenID string `json:"kitchen_id"`
	GroupID   string `json:"group_id"`
	BatchID   string `json:"batch_id"`
	ItemName  string `json:"item_name"`
	Quantity  int64  `json:"quantity"`
	BaseUnit  string `json:"base_unit"`
	CreatedBy string `json:"created_by"`
}

// StockConsumedEvent is published after a FIFO consumption commits
type StockConsumedEvent struct {
	KitchenID  string           `json:"kitchen_id"`
	GroupID    string           `json:"group_id"`
	ItemName   string           `json:"item_name"`
	Quantity   int64            `json:"quantity"`
	Remaining  int64            `json:"remaining"`
	UserID     string           `json:"user_id"`
	UsageType  string           `json:"usage_type"`
	Allocation []BatchAllocated `json:"allocation"`
}

// BatchAllocated is one FIFO step of a consumption
type BatchAllocated struct {
	BatchID  string `json:"batch_id"`
	Quantity int64  `json:"quantity"`
}

// StockWastedEvent is published after a batch (or part of it) moved to waste
type StockWastedEvent struct {
	KitchenID      string `json:"kitchen_id"`
	GroupID        string `json:"group_id"`
	BatchID        string `json:"batch_id"`
	ItemName       string `json:"item_name"`
	Quantity       int64  `json:"quantity"`
	Reason         string `json:"reason"`
	EstimatedValue string `json:"estimated_value"`
}

// NotificationEvent is the payload delivered to the notification sink.
// Delivery is at-least-once, consumers dedupe on NotificationID.
type NotificationEvent struct {
	NotificationID string    `json:"notification_id"`
	KitchenID      string    `json:"kitchen_id"`
	Type           string    `json:"type"`
	Severity       string    `json:"severity"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	RelatedItemID  *string   `json:"related_item_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
