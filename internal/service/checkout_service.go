package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CheckoutService moves a purchase from intent through payment to an order
type CheckoutService struct {
	checkouts      CheckoutRepository
	orders         OrderRepository
	carts          CartRepository
	catalog        *CatalogService
	verifier       payment.Verifier
	eventPublisher EventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	checkouts CheckoutRepository,
	orders OrderRepository,
	carts CartRepository,
	catalog *CatalogService,
	verifier payment.Verifier,
	eventPublisher EventPublisher,
) *CheckoutService {
	return &CheckoutService{
		checkouts:      checkouts,
		orders:         orders,
		carts:          carts,
		catalog:        catalog,
		verifier:       verifier,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// ItemInput is a product line submitted by the client. Names and prices
// always come from the catalog.
type ItemInput struct {
	ProductID primitive.ObjectID
	Quantity  int
	Size      string
	Color     string
}

// CreateCheckoutInput is the body of a checkout request
type CreateCheckoutInput struct {
	Items           []ItemInput
	ShippingAddress models.ShippingAddress
	PaymentMethod   string
	TotalPrice      float64
}

// PayInput reports the outcome of a payment
type PayInput struct {
	PaymentStatus  string
	PaymentDetails json.RawMessage
	Signature      string
}

// Create opens a checkout from the submitted items. The cart is left alone.
func (s *CheckoutService) Create(ctx context.Context, user *models.User, in CreateCheckoutInput) (*models.Checkout, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Create")
	defer span.End()

	if len(in.Items) == 0 {
		return nil, invalidRequest("No items in checkout")
	}

	products, err := s.resolveItems(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	items := make([]models.CheckoutItem, 0, len(in.Items))
	for _, it := range in.Items {
		p := products[it.ProductID]
		price := p.EffectivePrice()
		total = total.Add(lineTotal(price, it.Quantity))
		items = append(items, models.CheckoutItem{
			ProductID: p.ID,
			Name:      p.Name,
			Image:     p.FirstImage(),
			Price:     price,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
		})
	}

	checkout := &models.Checkout{
		UserID:          user.ID,
		Items:           items,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		TotalPrice:      roundMoney(total),
		PaymentStatus:   models.PaymentStatusPending,
	}

	if in.TotalPrice != 0 && !sameAmount(in.TotalPrice, checkout.TotalPrice) {
		util.CheckoutTotalMismatches.Inc()
		s.logger.Warn("Client total differs from catalog total",
			zap.String("user_id", user.ID.Hex()),
			zap.Float64("client_total", in.TotalPrice),
			zap.Float64("catalog_total", checkout.TotalPrice))
	}

	if err := s.checkouts.CreateCheckout(ctx, checkout); err != nil {
		return nil, fmt.Errorf("failed to create checkout: %w", err)
	}

	util.CheckoutsCreatedTotal.Inc()
	s.logger.Info("Checkout created",
		zap.String("checkout_id", checkout.ID.Hex()),
		zap.Float64("total", checkout.TotalPrice))

	event := &models.CheckoutCreatedEvent{
		BaseEvent:  broker.NewBaseEvent(models.EventTypeCheckoutCreated),
		CheckoutID: checkout.ID.Hex(),
		UserID:     user.ID.Hex(),
		TotalPrice: checkout.TotalPrice,
		ItemCount:  len(items),
	}
	if err := s.eventPublisher.PublishCheckoutCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish CheckoutCreated event", zap.Error(err))
	}

	return checkout, nil
}

func (s *CheckoutService) resolveItems(ctx context.Context, items []ItemInput) (map[primitive.ObjectID]*models.Product, error) {
	ids := make([]primitive.ObjectID, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, invalidRequest("Item quantity must be positive")
		}
		ids = append(ids, it.ProductID)
	}
	return s.catalog.ResolveLive(ctx, ids)
}

// Get returns a checkout visible to user
func (s *CheckoutService) Get(ctx context.Context, user *models.User, id primitive.ObjectID) (*models.Checkout, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Get")
	defer span.End()

	return s.load(ctx, user, id)
}

// load hides checkouts of other users behind ErrCheckoutNotFound
func (s *CheckoutService) load(ctx context.Context, user *models.User, id primitive.ObjectID) (*models.Checkout, error) {
	checkout, err := s.checkouts.GetCheckoutByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCheckoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkout: %w", err)
	}
	if checkout.UserID != user.ID && !user.Role.Can(models.CapManageOrders) {
		return nil, ErrCheckoutNotFound
	}
	return checkout, nil
}

// Pay records a verified payment. Only the status "paid" is accepted, and a
// finalized checkout can no longer change.
func (s *CheckoutService) Pay(ctx context.Context, user *models.User, id primitive.ObjectID, in PayInput) (*models.Checkout, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Pay")
	defer span.End()

	checkout, err := s.load(ctx, user, id)
	if err != nil {
		return nil, err
	}

	if models.PaymentStatus(in.PaymentStatus) != models.PaymentStatusPaid {
		util.PaymentsRejectedTotal.WithLabelValues("invalid_status").Inc()
		return nil, ErrInvalidPaymentStatus
	}
	if checkout.IsFinalized {
		util.PaymentsRejectedTotal.WithLabelValues("finalized").Inc()
		return nil, ErrAlreadyFinalized
	}
	if checkout.IsPaid {
		return checkout, nil
	}

	err = s.verifier.Verify(ctx, payment.Confirmation{
		CheckoutID: checkout.ID.Hex(),
		Status:     in.PaymentStatus,
		Amount:     checkout.TotalPrice,
		Details:    in.PaymentDetails,
		Signature:  in.Signature,
	})
	if err != nil {
		s.logger.Warn("Payment verification failed",
			zap.String("checkout_id", checkout.ID.Hex()),
			zap.String("verifier", s.verifier.Name()),
			zap.Error(err))
		switch {
		case errors.Is(err, payment.ErrRejected):
			util.PaymentsRejectedTotal.WithLabelValues("unverified").Inc()
			return nil, ErrPaymentRejected
		case errors.Is(err, payment.ErrGatewayUnavailable):
			util.PaymentsRejectedTotal.WithLabelValues("gateway_unavailable").Inc()
			return nil, ErrPaymentUnavailable
		}
		return nil, fmt.Errorf("payment verification: %w", err)
	}

	paidAt := s.now()
	ok, err := s.checkouts.MarkCheckoutPaid(ctx, checkout.ID, in.PaymentDetails, paidAt)
	if err != nil {
		return nil, fmt.Errorf("failed to mark checkout paid: %w", err)
	}
	if !ok {
		util.PaymentsRejectedTotal.WithLabelValues("finalized").Inc()
		return nil, ErrAlreadyFinalized
	}

	util.PaymentsAcceptedTotal.Inc()
	s.logger.Info("Checkout paid", zap.String("checkout_id", checkout.ID.Hex()))

	event := &models.CheckoutPaidEvent{
		BaseEvent:  broker.NewBaseEvent(models.EventTypeCheckoutPaid),
		CheckoutID: checkout.ID.Hex(),
		UserID:     checkout.UserID.Hex(),
		TotalPrice: checkout.TotalPrice,
		PaidAt:     paidAt,
	}
	if err := s.eventPublisher.PublishCheckoutPaid(ctx, event); err != nil {
		s.logger.Error("Failed to publish CheckoutPaid event", zap.Error(err))
	}

	return s.checkouts.GetCheckoutByID(ctx, checkout.ID)
}

// Finalize converts a paid checkout into an order and deletes the owner's
// cart (best effort, after the order is stored). Every product is resolved
// from the store before anything is written. The checkout is claimed with a
// conditional update, so concurrent callers produce at most one order and
// all but one see ErrAlreadyFinalized.
func (s *CheckoutService) Finalize(ctx context.Context, user *models.User, id primitive.ObjectID) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Finalize")
	defer span.End()

	start := time.Now()
	defer func() {
		util.FinalizeLatency.Observe(time.Since(start).Seconds())
	}()

	checkout, err := s.load(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if checkout.IsFinalized {
		util.FinalizeFailedTotal.WithLabelValues("already_finalized").Inc()
		return nil, ErrAlreadyFinalized
	}
	if !checkout.IsPaid {
		util.FinalizeFailedTotal.WithLabelValues("unpaid").Inc()
		return nil, ErrPaymentRequired
	}

	ids := make([]primitive.ObjectID, len(checkout.Items))
	for i, it := range checkout.Items {
		ids[i] = it.ProductID
	}
	products, err := s.catalog.ResolveLive(ctx, ids)
	if err != nil {
		util.FinalizeFailedTotal.WithLabelValues("product_missing").Inc()
		return nil, err
	}

	items := make([]models.OrderItem, len(checkout.Items))
	for i, it := range checkout.Items {
		p := products[it.ProductID]
		items[i] = models.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Image:     p.FirstImage(),
			Price:     p.EffectivePrice(),
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
		}
	}

	checkoutID := checkout.ID
	order := &models.Order{
		ID:              primitive.NewObjectID(),
		UserID:          checkout.UserID,
		CheckoutID:      &checkoutID,
		Items:           items,
		ShippingAddress: checkout.ShippingAddress,
		PaymentMethod:   checkout.PaymentMethod,
		TotalPrice:      checkout.TotalPrice,
		IsPaid:          true,
		PaidAt:          checkout.PaidAt,
		IsDelivered:     false,
		PaymentStatus:   models.PaymentStatusPaid,
		PaymentDetails:  checkout.PaymentDetails,
		Status:          models.OrderStatusProcessing,
	}

	claimed, err := s.checkouts.ClaimCheckoutFinalize(ctx, checkout.ID, order.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to claim checkout: %w", err)
	}
	if !claimed {
		util.FinalizeFailedTotal.WithLabelValues("already_finalized").Inc()
		return nil, ErrAlreadyFinalized
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		util.FinalizeFailedTotal.WithLabelValues("order_insert").Inc()
		if relErr := s.checkouts.ReleaseCheckoutFinalize(ctx, checkout.ID, order.ID); relErr != nil {
			s.logger.Error("Failed to release finalize claim; checkout needs manual repair",
				zap.String("checkout_id", checkout.ID.Hex()),
				zap.String("order_id", order.ID.Hex()),
				zap.Error(relErr))
		}
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrAlreadyFinalized
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	// The order is committed at this point; a leftover cart is counted and
	// logged but does not fail the request.
	owner := models.CartOwner{UserID: &checkout.UserID}
	if err := s.carts.DeleteCart(ctx, owner); err != nil && !errors.Is(err, store.ErrNotFound) {
		util.FinalizeCartCleanupFailedTotal.Inc()
		s.logger.Error("Failed to delete cart after finalize",
			zap.String("user_id", checkout.UserID.Hex()),
			zap.Error(err))
	}

	util.OrdersFinalizedTotal.Inc()
	s.logger.Info("Checkout finalized",
		zap.String("checkout_id", checkout.ID.Hex()),
		zap.String("order_id", order.ID.Hex()))

	event := &models.OrderPlacedEvent{
		BaseEvent:  broker.NewBaseEvent(models.EventTypeOrderFinalized),
		OrderID:    order.ID.Hex(),
		CheckoutID: checkout.ID.Hex(),
		UserID:     order.UserID.Hex(),
		TotalPrice: order.TotalPrice,
		Items:      orderItemData(order.Items),
	}
	if err := s.eventPublisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderFinalized event", zap.Error(err))
	}

	return order, nil
}

func orderItemData(items []models.OrderItem) []models.OrderItemData {
	out := make([]models.OrderItemData, len(items))
	for i, it := range items {
		out[i] = models.OrderItemData{
			ProductID: it.ProductID.Hex(),
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
		}
	}
	return out
}
