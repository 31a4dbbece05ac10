package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is anything events can be published to
type MessageWriter interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
	Close() error
}

type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		AllowAutoTopicCreation: true,
	}

	return &Producer{writer: writer, logger: util.GetLogger()}
}

// PublishEvent publishes an event to Kafka
func (p *Producer) PublishEvent(ctx context.Context, key string, event interface{}) error {
	msg, err := encode(key, event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	p.logger.Debug("Published event", zap.String("key", key), zap.String("type", fmt.Sprintf("%T", event)))
	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

func encode(key string, event interface{}) (kafka.Message, error) {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(key),
		Value: eventBytes,
		Time:  time.Now(),
	}, nil
}

// LocalBus delivers events to an in-process handler. Used when Kafka is
// disabled so projections still run.
type LocalBus struct {
	handler MessageHandler
	logger  *zap.Logger
}

// NewLocalBus creates a bus that hands every event to handler; a nil
// handler drops events
func NewLocalBus(handler MessageHandler) *LocalBus {
	return &LocalBus{handler: handler, logger: util.GetLogger()}
}

func (b *LocalBus) PublishEvent(ctx context.Context, key string, event interface{}) error {
	if b.handler == nil {
		return nil
	}
	msg, err := encode(key, event)
	if err != nil {
		return err
	}
	return b.handler(ctx, msg)
}

func (b *LocalBus) Close() error { return nil }

// Consumer represents a Kafka consumer
type Consumer struct {
	reader    *kafka.Reader
	logger    *zap.Logger
	retryBase time.Duration
	retryMax  time.Duration
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})

	return &Consumer{
		reader:    reader,
		logger:    util.GetLogger(),
		retryBase: 500 * time.Millisecond,
		retryMax:  30 * time.Second,
	}
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// MessageHandler is a function type for handling messages
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// StartConsuming starts consuming messages with a handler. A message whose
// handler fails is retried with backoff before the next one is fetched, so
// no later offset is committed past it. If ctx is cancelled mid-retry the
// message stays uncommitted and is redelivered to the group.
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Starting Kafka consumer", zap.String("topic", c.reader.Config().Topic))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer context cancelled, stopping")
			return ctx.Err()
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Warn("Error fetching message", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}

			if err := c.handle(ctx, handler, msg); err != nil {
				return err
			}

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Warn("Error committing message", zap.Error(err))
			}
		}
	}
}

// handle runs handler until it succeeds, reports a malformed message, or
// ctx is cancelled
func (c *Consumer) handle(ctx context.Context, handler MessageHandler, msg kafka.Message) error {
	delay := c.retryBase
	for attempt := 1; ; attempt++ {
		err := handler(ctx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrMalformedEvent) {
			c.logger.Error("Skipping malformed message",
				zap.String("key", string(msg.Key)),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			return nil
		}

		c.logger.Warn("Error handling message, retrying",
			zap.String("key", string(msg.Key)),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > c.retryMax {
			delay = c.retryMax
		}
	}
}
