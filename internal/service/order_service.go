package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	idempotencyTTL     = 24 * time.Hour
	idempotencyLockTTL = 30 * time.Second
)

// OrderService handles order business logic
type OrderService struct {
	orders         OrderRepository
	users          UserRepository
	catalog        *CatalogService
	idempotency    IdempotencyStore
	eventPublisher EventPublisher
	logger         *zap.Logger
}

// NewOrderService creates a new order service; idempotency may be nil
func NewOrderService(
	orders OrderRepository,
	users UserRepository,
	catalog *CatalogService,
	idempotency IdempotencyStore,
	eventPublisher EventPublisher,
) *OrderService {
	return &OrderService{
		orders:         orders,
		users:          users,
		catalog:        catalog,
		idempotency:    idempotency,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// CreateOrderInput is the body of a direct order request
type CreateOrderInput struct {
	Items           []ItemInput
	ShippingAddress models.ShippingAddress
	PaymentMethod   string
	TotalPrice      float64
	IdempotencyKey  string
}

// OrderCustomer is the user summary joined onto an order
type OrderCustomer struct {
	ID    primitive.ObjectID `json:"_id"`
	Name  string             `json:"name"`
	Email string             `json:"email"`
}

// OrderDetail is an order with its customer expanded
type OrderDetail struct {
	models.Order
	User *OrderCustomer `json:"user"`
}

// CreateDirect creates an unpaid order straight from submitted items,
// bypassing checkout. A repeated Idempotency-Key returns the first order
// and replayed=true.
func (s *OrderService) CreateDirect(ctx context.Context, user *models.User, in CreateOrderInput) (order *models.Order, replayed bool, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateDirect")
	defer span.End()

	if len(in.Items) == 0 {
		return nil, false, invalidRequest("No order items")
	}

	if in.IdempotencyKey != "" && s.idempotency != nil {
		key := "order:" + user.ID.Hex() + ":" + in.IdempotencyKey
		existing, err := s.replay(ctx, key)
		if err != nil || existing != nil {
			return existing, existing != nil, err
		}

		locked, lockErr := s.idempotency.AcquireLock(ctx, key, idempotencyLockTTL)
		switch {
		case lockErr != nil:
			s.logger.Warn("Idempotency lock unavailable, creating without it", zap.Error(lockErr))
		case !locked:
			return nil, false, ErrRequestInProgress
		default:
			defer func() {
				if err := s.idempotency.ReleaseLock(context.WithoutCancel(ctx), key); err != nil {
					s.logger.Warn("Failed to release idempotency lock", zap.Error(err))
				}
			}()
			// a request holding the lock before us may have finished in between
			existing, err := s.replay(ctx, key)
			if err != nil || existing != nil {
				return existing, existing != nil, err
			}
		}

		order, err := s.createDirect(ctx, user, in)
		if err != nil {
			return nil, false, err
		}
		if err := s.idempotency.SetIdempotencyKey(ctx, key, order.ID.Hex(), idempotencyTTL); err != nil {
			s.logger.Warn("Failed to store idempotency key",
				zap.String("idempotency_key", in.IdempotencyKey),
				zap.Error(err))
		}
		return order, false, nil
	}

	order, err = s.createDirect(ctx, user, in)
	return order, false, err
}

func (s *OrderService) replay(ctx context.Context, key string) (*models.Order, error) {
	orderHex, err := s.idempotency.GetIdempotencyKey(ctx, key)
	if errors.Is(err, redisclient.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		s.logger.Warn("Idempotency lookup failed, creating without it", zap.Error(err))
		return nil, nil
	}

	id, err := primitive.ObjectIDFromHex(orderHex)
	if err != nil {
		return nil, nil
	}
	order, err := s.orders.GetOrderByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Duplicate order request detected",
		zap.String("order_id", order.ID.Hex()))
	return order, nil
}

func (s *OrderService) createDirect(ctx context.Context, user *models.User, in CreateOrderInput) (*models.Order, error) {
	ids := make([]primitive.ObjectID, 0, len(in.Items))
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return nil, invalidRequest("Item quantity must be positive")
		}
		ids = append(ids, it.ProductID)
	}
	products, err := s.catalog.ResolveLive(ctx, ids)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	items := make([]models.OrderItem, len(in.Items))
	for i, it := range in.Items {
		p := products[it.ProductID]
		price := p.EffectivePrice()
		total = total.Add(lineTotal(price, it.Quantity))
		items[i] = models.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Image:     p.FirstImage(),
			Price:     price,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
		}
	}

	order := &models.Order{
		UserID:          user.ID,
		Items:           items,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		TotalPrice:      roundMoney(total),
		PaymentStatus:   models.PaymentStatusPending,
		Status:          models.OrderStatusProcessing,
	}
	if in.TotalPrice != 0 && !sameAmount(in.TotalPrice, order.TotalPrice) {
		util.CheckoutTotalMismatches.Inc()
		s.logger.Warn("Client total differs from catalog total",
			zap.String("user_id", user.ID.Hex()),
			zap.Float64("client_total", in.TotalPrice),
			zap.Float64("catalog_total", order.TotalPrice))
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.DirectOrdersTotal.Inc()
	s.logger.Info("Order created", zap.String("order_id", order.ID.Hex()))

	event := &models.OrderPlacedEvent{
		BaseEvent:  broker.NewBaseEvent(models.EventTypeOrderCreated),
		OrderID:    order.ID.Hex(),
		UserID:     user.ID.Hex(),
		TotalPrice: order.TotalPrice,
		Items:      orderItemData(order.Items),
	}
	if err := s.eventPublisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return order, nil
}

// ListMine returns the caller's orders, newest first
func (s *OrderService) ListMine(ctx context.Context, user *models.User) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListMine")
	defer span.End()

	orders, err := s.orders.ListOrdersByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if err := s.joinCatalog(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Get returns one order to its owner or to a role that may read any order
func (s *OrderService) Get(ctx context.Context, user *models.User, id primitive.ObjectID) (*OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Get")
	defer span.End()

	order, err := s.orders.GetOrderByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.UserID != user.ID && !user.Role.Can(models.CapReadAnyOrder) {
		return nil, ErrOrderNotFound
	}

	orders := []models.Order{*order}
	if err := s.joinCatalog(ctx, orders); err != nil {
		return nil, err
	}
	detail := &OrderDetail{Order: orders[0]}

	customer, err := s.users.GetUserByID(ctx, order.UserID)
	switch {
	case err == nil:
		detail.User = &OrderCustomer{ID: customer.ID, Name: customer.Name, Email: customer.Email}
	case errors.Is(err, store.ErrNotFound):
		detail.User = &OrderCustomer{ID: order.UserID}
	default:
		return nil, fmt.Errorf("failed to load order customer: %w", err)
	}
	return detail, nil
}

// joinCatalog refreshes item names and images from the catalog. Items
// whose product is gone keep their snapshot.
func (s *OrderService) joinCatalog(ctx context.Context, orders []models.Order) error {
	var ids []primitive.ObjectID
	for _, o := range orders {
		for _, it := range o.Items {
			ids = append(ids, it.ProductID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	products, err := s.catalog.Lookup(ctx, ids)
	if err != nil {
		return err
	}
	for i := range orders {
		for j := range orders[i].Items {
			item := &orders[i].Items[j]
			if p, ok := products[item.ProductID]; ok {
				item.Name = p.Name
				if img := p.FirstImage(); img != "" {
					item.Image = img
				}
			}
		}
	}
	return nil
}

// ListAll returns every order, newest first
func (s *OrderService) ListAll(ctx context.Context) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListAll")
	defer span.End()

	return s.orders.ListOrders(ctx)
}

// UpdateStatus moves an order through fulfilment
func (s *OrderService) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	st, ok := models.ParseOrderStatus(status)
	if !ok {
		return nil, invalidRequest("Invalid order status")
	}

	order, err := s.orders.UpdateOrderStatus(ctx, id, st, time.Now().UTC())
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", id.Hex()),
		zap.String("status", string(st)))

	event := &models.OrderStatusChangedEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:   id.Hex(),
		Status:    string(st),
	}
	if err := s.eventPublisher.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}
	return order, nil
}

// Delete removes an order
func (s *OrderService) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, span := util.StartSpan(ctx, "OrderService.Delete")
	defer span.End()

	err := s.orders.DeleteOrder(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrOrderNotFound
	}
	return err
}
