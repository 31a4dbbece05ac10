package service

import (
	"context"
	"encoding/json"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserRepository persists accounts
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SetRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id primitive.ObjectID) error
	ListUsers(ctx context.Context) ([]models.User, error)
}

// ProductRepository persists the catalog
type ProductRepository interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProductByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
	ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error)
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id primitive.ObjectID) error
	IncrementSold(ctx context.Context, id primitive.ObjectID, quantity int) error
}

// CartRepository persists carts keyed by owner
type CartRepository interface {
	GetCart(ctx context.Context, owner models.CartOwner) (*models.Cart, error)
	SaveCart(ctx context.Context, cart *models.Cart) error
	DeleteCart(ctx context.Context, owner models.CartOwner) error
}

// CheckoutRepository persists checkouts. MarkCheckoutPaid and
// ClaimCheckoutFinalize are conditional single-document updates and
// report whether they matched.
type CheckoutRepository interface {
	CreateCheckout(ctx context.Context, c *models.Checkout) error
	GetCheckoutByID(ctx context.Context, id primitive.ObjectID) (*models.Checkout, error)
	MarkCheckoutPaid(ctx context.Context, id primitive.ObjectID, details json.RawMessage, paidAt time.Time) (bool, error)
	ClaimCheckoutFinalize(ctx context.Context, id, orderID primitive.ObjectID, at time.Time) (bool, error)
	ReleaseCheckoutFinalize(ctx context.Context, id, orderID primitive.ObjectID) error
}

// OrderRepository persists orders
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id primitive.ObjectID, status models.OrderStatus, at time.Time) (*models.Order, error)
	DeleteOrder(ctx context.Context, id primitive.ObjectID) error
}

// SubscriberRepository persists newsletter subscriptions
type SubscriberRepository interface {
	CreateSubscriber(ctx context.Context, sub *models.Subscriber) error
}

// Repository is everything the services need from a backing store.
// Both store.Store and store.MemoryStore satisfy it.
type Repository interface {
	UserRepository
	ProductRepository
	CartRepository
	CheckoutRepository
	OrderRepository
	SubscriberRepository
	Ping(ctx context.Context) error
}

var (
	_ Repository = (*store.Store)(nil)
	_ Repository = (*store.MemoryStore)(nil)
)

// EventPublisher publishes domain events; broker.EventPublisher satisfies it
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event *models.UserRegisteredEvent) error
	PublishCheckoutCreated(ctx context.Context, event *models.CheckoutCreatedEvent) error
	PublishCheckoutPaid(ctx context.Context, event *models.CheckoutPaidEvent) error
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}

// ProductCache is a read-through cache in front of the catalog
type ProductCache interface {
	GetProducts(ctx context.Context, ids []string) (map[string]*models.Product, error)
	SetProducts(ctx context.Context, products ...*models.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

// IdempotencyStore remembers which order an Idempotency-Key produced
type IdempotencyStore interface {
	GetIdempotencyKey(ctx context.Context, key string) (string, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// EventDeduper records processed event ids
type EventDeduper interface {
	MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	ClearEventProcessed(ctx context.Context, eventID string) error
}
