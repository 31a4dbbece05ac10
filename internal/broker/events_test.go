package broker

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMessageRoutesOrderEvents(t *testing.T) {
	var got []*models.OrderPlacedEvent
	h := NewEventHandler()
	h.OnOrderPlaced(func(_ context.Context, e *models.OrderPlacedEvent) error {
		got = append(got, e)
		return nil
	})

	bus := NewEventPublisher(NewLocalBus(h.HandleMessage))
	ctx := context.Background()

	placed := &models.OrderPlacedEvent{
		BaseEvent: NewBaseEvent(models.EventTypeOrderFinalized),
		OrderID:   "o1",
		Items:     []models.OrderItemData{{ProductID: "p1", Quantity: 2, UnitPrice: 10}},
	}
	require.NoError(t, bus.PublishOrderPlaced(ctx, placed))

	paid := &models.CheckoutPaidEvent{BaseEvent: NewBaseEvent(models.EventTypeCheckoutPaid), CheckoutID: "c1"}
	require.NoError(t, bus.PublishCheckoutPaid(ctx, paid))

	require.Len(t, got, 1)
	assert.Equal(t, "o1", got[0].OrderID)
	assert.Equal(t, placed.EventID, got[0].EventID)
	assert.Equal(t, 2, got[0].Items[0].Quantity)
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	h := NewEventHandler()
	err := h.HandleMessage(context.Background(), kafka.Message{Value: []byte("{")})
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestHandlerErrorSurfacesThroughLocalBus(t *testing.T) {
	h := NewEventHandler()
	h.OnOrderPlaced(func(context.Context, *models.OrderPlacedEvent) error {
		return errors.New("projection down")
	})
	bus := NewEventPublisher(NewLocalBus(h.HandleMessage))

	err := bus.PublishOrderPlaced(context.Background(), &models.OrderPlacedEvent{
		BaseEvent: NewBaseEvent(models.EventTypeOrderCreated),
		OrderID:   "o2",
	})
	assert.Error(t, err)
}

func TestLocalBusWithoutHandlerDrops(t *testing.T) {
	bus := NewEventPublisher(NewLocalBus(nil))
	assert.NoError(t, bus.PublishUserRegistered(context.Background(), &models.UserRegisteredEvent{
		BaseEvent: NewBaseEvent(models.EventTypeUserRegistered),
		UserID:    "u1",
	}))
}
