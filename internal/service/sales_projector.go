package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const processedEventTTL = 7 * 24 * time.Hour

// SalesProjector maintains each product's sold counter from order events
type SalesProjector struct {
	products ProductRepository
	dedup    EventDeduper
	logger   *zap.Logger
}

// NewSalesProjector creates a projector. Without a deduper, processed
// events are remembered in memory for the life of the process.
func NewSalesProjector(products ProductRepository, dedup EventDeduper) *SalesProjector {
	if dedup == nil {
		dedup = newMemoryDeduper()
	}
	return &SalesProjector{products: products, dedup: dedup, logger: util.GetLogger()}
}

// HandleOrderPlaced adds the order's quantities to the sold counters.
// Redelivered events are ignored.
func (p *SalesProjector) HandleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	ctx, span := util.StartSpan(ctx, "SalesProjector.HandleOrderPlaced")
	defer span.End()

	first, err := p.dedup.MarkEventProcessed(ctx, event.EventID, processedEventTTL)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if !first {
		p.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	for _, item := range event.Items {
		id, err := primitive.ObjectIDFromHex(item.ProductID)
		if err != nil {
			p.logger.Warn("Skipping item with malformed product id", zap.String("product_id", item.ProductID))
			continue
		}
		if err := p.products.IncrementSold(ctx, id, item.Quantity); err != nil {
			if clearErr := p.dedup.ClearEventProcessed(ctx, event.EventID); clearErr != nil {
				p.logger.Error("Failed to clear processed marker", zap.Error(clearErr))
			}
			return fmt.Errorf("failed to increment sold for %s: %w", item.ProductID, err)
		}
	}

	p.logger.Debug("Sales projected",
		zap.String("order_id", event.OrderID),
		zap.Int("items", len(event.Items)))
	return nil
}

type memoryDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemoryDeduper() *memoryDeduper {
	return &memoryDeduper{seen: make(map[string]bool)}
}

func (d *memoryDeduper) MarkEventProcessed(_ context.Context, eventID string, _ time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[eventID] {
		return false, nil
	}
	d.seen[eventID] = true
	return true, nil
}

func (d *memoryDeduper) ClearEventProcessed(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, eventID)
	return nil
}
