package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrMalformedEvent marks a message that can never be handled and is
// skipped instead of retried
var ErrMalformedEvent = errors.New("malformed event")

// EventPublisher handles publishing domain events
type EventPublisher struct {
	writer MessageWriter
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(writer MessageWriter) *EventPublisher {
	return &EventPublisher{writer: writer}
}

// NewBaseEvent stamps a fresh event id and time
func NewBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

func (ep *EventPublisher) publish(ctx context.Context, key, eventType string, event interface{}) error {
	if err := ep.writer.PublishEvent(ctx, key, event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(eventType).Inc()
		return err
	}
	return nil
}

// PublishUserRegistered publishes UserRegistered event
func (ep *EventPublisher) PublishUserRegistered(ctx context.Context, event *models.UserRegisteredEvent) error {
	return ep.publish(ctx, "user-"+event.UserID, event.EventType, event)
}

// PublishCheckoutCreated publishes CheckoutCreated event
func (ep *EventPublisher) PublishCheckoutCreated(ctx context.Context, event *models.CheckoutCreatedEvent) error {
	return ep.publish(ctx, "checkout-"+event.CheckoutID, event.EventType, event)
}

// PublishCheckoutPaid publishes CheckoutPaid event
func (ep *EventPublisher) PublishCheckoutPaid(ctx context.Context, event *models.CheckoutPaidEvent) error {
	return ep.publish(ctx, "checkout-"+event.CheckoutID, event.EventType, event)
}

// PublishOrderPlaced publishes ORDER_CREATED or ORDER_FINALIZED
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return ep.publish(ctx, "order-"+event.OrderID, event.EventType, event)
}

// PublishOrderStatusChanged publishes OrderStatusChanged event
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return ep.publish(ctx, "order-"+event.OrderID, event.EventType, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onOrderPlaced func(context.Context, *models.OrderPlacedEvent) error
	logger        *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderPlaced registers a handler for ORDER_CREATED and ORDER_FINALIZED events
func (eh *EventHandler) OnOrderPlaced(handler func(context.Context, *models.OrderPlacedEvent) error) {
	eh.onOrderPlaced = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("%w: base event: %v", ErrMalformedEvent, err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderCreated, models.EventTypeOrderFinalized:
		if eh.onOrderPlaced != nil {
			var event models.OrderPlacedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("%w: %s event: %v", ErrMalformedEvent, baseEvent.EventType, err)
			}
			return eh.onOrderPlaced(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
