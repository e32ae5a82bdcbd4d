// Package consumers keeps the local user directory in step with the identity service.
package consumers

import (
	"context"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
)

// QueueName is the queue the pharmacy service reads user events from
const QueueName = "pharmacy-service.user-events"

// UserDirectory is the store the handlers write to
type UserDirectory interface {
	Upsert(ctx context.Context, user *domain.User) error
	UpdateProfile(ctx context.Context, userID string, firstName, lastName, email *string) error
	Delete(ctx context.Context, userID string) error
}

// UserEventHandlers applies user events to the directory
type UserEventHandlers struct {
	directory UserDirectory
	logger    *logger.Logger
}

// NewUserEventHandlers creates the user event handlers
func NewUserEventHandlers(directory UserDirectory, log *logger.Logger) *UserEventHandlers {
	return &UserEventHandlers{
		directory: directory,
		logger:    log.WithComponent("user-consumer"),
	}
}

// Register attaches the handlers to reg
func (h *UserEventHandlers) Register(reg messaging.HandlerRegistry) {
	reg.RegisterHandler(messaging.EventUserCreated, h.handleUserCreated)
	reg.RegisterHandler(messaging.EventUserUpdated, h.handleUserUpdated)
	reg.RegisterHandler(messaging.EventUserDeleted, h.handleUserDeleted)
}

// UserEventConsumer consumes user events
type UserEventConsumer struct {
	consumer *messaging.Consumer
}

// NewUserEventConsumer declares the queue, binds it to the user exchange and
// registers the directory handlers
func NewUserEventConsumer(rmq *messaging.RabbitMQ, directory UserDirectory, log *logger.Logger) (*UserEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, QueueName, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeUserEvents, "user.#"); err != nil {
		return nil, err
	}

	NewUserEventHandlers(directory, log).Register(consumer)

	return &UserEventConsumer{consumer: consumer}, nil
}

// Start starts consuming messages
func (c *UserEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (h *UserEventHandlers) handleUserCreated(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserCreatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	h.logger.Info().
		Str("user_id", data.UserID).
		Str("role", data.RoleName).
		Msg("received user created event")

	return h.directory.Upsert(ctx, &domain.User{
		ID:        data.UserID,
		FirstName: data.FirstName,
		LastName:  data.LastName,
		Email:     data.Email,
		RoleName:  data.RoleName,
	})
}

func (h *UserEventHandlers) handleUserUpdated(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserUpdatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	firstName := changedTo(data.Fields, "first_name")
	lastName := changedTo(data.Fields, "last_name")
	email := changedTo(data.Fields, "email")
	if firstName == nil && lastName == nil && email == nil {
		return nil
	}

	h.logger.Info().
		Str("user_id", data.UserID).
		Msg("received user updated event")

	err := h.directory.UpdateProfile(ctx, data.UserID, firstName, lastName, email)
	if errors.Is(err, errors.ErrNotFound) {
		// Users created before the pharmacy service subscribed arrive as updates first
		h.logger.Debug().Str("user_id", data.UserID).Msg("user not in directory, ignoring update")
		return nil
	}
	return err
}

func (h *UserEventHandlers) handleUserDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.UserDeletedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	h.logger.Info().
		Str("user_id", data.UserID).
		Msg("received user deleted event")

	return h.directory.Delete(ctx, data.UserID)
}

// changedTo returns the new value of a {"from","to"} field change, if present
func changedTo(fields map[string]any, name string) *string {
	change, ok := fields[name].(map[string]interface{})
	if !ok {
		return nil
	}
	to, ok := change["to"].(string)
	if !ok {
		return nil
	}
	return &to
}
