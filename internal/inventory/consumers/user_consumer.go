package consumers

import (
	"context"

	"github.com/pantrymind/pantrymind-backend/internal/inventory/repository"
	"github.com/pantrymind/pantrymind-backend/pkg/errors"
	"github.com/pantrymind/pantrymind-backend/pkg/logger"
	"github.com/pantrymind/pantrymind-backend/pkg/messaging"
)

// UserCache stores the display data of users. *repository.UserCacheRepository satisfies it.
type UserCache interface {
	Set(ctx context.Context, user *repository.CachedUser) error
	Get(ctx context.Context, userID string) (*repository.CachedUser, error)
	Delete(ctx context.Context, userID string) error
}

// UserEventConsumer keeps the user display-name cache in step with the user service
type UserEventConsumer struct {
	consumer *messaging.Consumer
	users    UserCache
	logger   *logger.Logger
}

// NewUserEventConsumer creates a new user event consumer bound to the user exchange
func NewUserEventConsumer(rmq *messaging.RabbitMQ, users UserCache, log *logger.Logger) (*UserEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "inventory-service.user-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeUserEvents, "user.#"); err != nil {
		return nil, err
	}

	c := NewUserEventHandler(users, log)
	c.consumer = consumer
	for eventType, h := range c.Handlers() {
		consumer.RegisterHandler(eventType, h)
	}

	return c, nil
}

// NewUserEventHandler creates the event handling half of the consumer without a broker
func NewUserEventHandler(users UserCache, log *logger.Logger) *UserEventConsumer {
	return &UserEventConsumer{
		users:  users,
		logger: log.WithComponent("user-consumer"),
	}
}

// Handlers returns the handler for each consumed event type
func (c *UserEventConsumer) Handlers() map[string]messaging.MessageHandler {
	return map[string]messaging.MessageHandler{
		messaging.EventUserCreated: c.handleUserCreated,
		messaging.EventUserUpdated: c.handleUserUpdated,
		messaging.EventUserDeleted: c.handleUserDeleted,
	}
}

// Start starts consuming messages
func (c *UserEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// Done is closed when consuming has stopped
func (c *UserEventConsumer) Done() <-chan struct{} {
	return c.consumer.Done()
}

func (c *UserEventConsumer) handleUserCreated(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserCreatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Msg("received user created event")

	user := &repository.CachedUser{UserID: data.UserID, Name: data.Name}
	if data.Email != "" {
		user.Email = &data.Email
	}
	return c.users.Set(ctx, user)
}

func (c *UserEventConsumer) handleUserUpdated(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserUpdatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Msg("received user updated event")

	existing, err := c.users.Get(ctx, data.UserID)
	if errors.Is(err, errors.ErrNotFound) {
		// Never seen; the next created event or purchase will fill it in.
		return nil
	}
	if err != nil {
		return err
	}

	changed := false
	if name, ok := changedTo(data.Fields, "name"); ok {
		existing.Name = name
		changed = true
	}
	if email, ok := changedTo(data.Fields, "email"); ok {
		existing.Email = &email
		changed = true
	}
	if !changed {
		return nil
	}

	return c.users.Set(ctx, existing)
}

func (c *UserEventConsumer) handleUserDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserDeletedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("user_id", data.UserID).
		Msg("received user deleted event")

	return c.users.Delete(ctx, data.UserID)
}

// changedTo reads the new value of a {"from": x, "to": y} field change
func changedTo(fields map[string]any, field string) (string, bool) {
	change, ok := fields[field].(map[string]any)
	if !ok {
		return "", false
	}
	to, ok := change["to"].(string)
	return to, ok
}
