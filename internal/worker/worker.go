package worker

import (
	"context"

	"storefront/internal/broker"
	"storefront/internal/service"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// SalesWorker keeps the best-seller counters in step with placed orders
type SalesWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewEventHandler routes order events to the sales projector. The same
// handler serves the Kafka consumer and the in-process bus.
func NewEventHandler(projector *service.SalesProjector) *broker.EventHandler {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPlaced(projector.HandleOrderPlaced)
	return eventHandler
}

// NewSalesWorker creates a new sales worker
func NewSalesWorker(consumer *broker.Consumer, projector *service.SalesProjector) *SalesWorker {
	return &SalesWorker{
		consumer:     consumer,
		eventHandler: NewEventHandler(projector),
		logger:       util.GetLogger(),
	}
}

// Start blocks consuming events until ctx is cancelled
func (w *SalesWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting sales worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SalesWorker) Stop() error {
	w.logger.Info("Stopping sales worker")
	return w.consumer.Close()
}
