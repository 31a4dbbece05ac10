package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestConsumer() *Consumer {
	return &Consumer{logger: zap.NewNop(), retryBase: time.Millisecond, retryMax: 4 * time.Millisecond}
}

func TestConsumerRetriesUntilHandled(t *testing.T) {
	c := newTestConsumer()
	calls := 0
	handler := func(context.Context, kafka.Message) error {
		calls++
		if calls < 4 {
			return errors.New("projection down")
		}
		return nil
	}

	require.NoError(t, c.handle(context.Background(), handler, kafka.Message{Offset: 7}))
	assert.Equal(t, 4, calls)
}

func TestConsumerSkipsMalformedMessage(t *testing.T) {
	c := newTestConsumer()
	h := NewEventHandler()

	calls := 0
	handler := func(ctx context.Context, msg kafka.Message) error {
		calls++
		return h.HandleMessage(ctx, msg)
	}

	require.NoError(t, c.handle(context.Background(), handler, kafka.Message{Value: []byte("{")}))
	assert.Equal(t, 1, calls)
}

func TestConsumerStopsRetryingOnCancel(t *testing.T) {
	c := newTestConsumer()
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	handler := func(context.Context, kafka.Message) error {
		calls++
		if calls == 3 {
			cancel()
		}
		return errors.New("projection down")
	}

	err := c.handle(ctx, handler, kafka.Message{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, calls)
}
