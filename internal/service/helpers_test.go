package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/store"

	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	placed []*models.OrderPlacedEvent
}

func (r *recordingPublisher) record(t string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, t)
}

func (r *recordingPublisher) PublishUserRegistered(_ context.Context, e *models.UserRegisteredEvent) error {
	r.record(e.EventType)
	return nil
}

func (r *recordingPublisher) PublishCheckoutCreated(_ context.Context, e *models.CheckoutCreatedEvent) error {
	r.record(e.EventType)
	return nil
}

func (r *recordingPublisher) PublishCheckoutPaid(_ context.Context, e *models.CheckoutPaidEvent) error {
	r.record(e.EventType)
	return nil
}

func (r *recordingPublisher) PublishOrderPlaced(_ context.Context, e *models.OrderPlacedEvent) error {
	r.record(e.EventType)
	r.mu.Lock()
	r.placed = append(r.placed, e)
	r.mu.Unlock()
	return nil
}

func (r *recordingPublisher) PublishOrderStatusChanged(_ context.Context, e *models.OrderStatusChangedEvent) error {
	r.record(e.EventType)
	return nil
}

func (r *recordingPublisher) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type testEnv struct {
	store     *store.MemoryStore
	events    *recordingPublisher
	issuer    *auth.Issuer
	clock     *time.Time
	auth      *AuthService
	catalog   *CatalogService
	carts     *CartService
	checkouts *CheckoutService
	orders    *OrderService
	users     *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	now := time.Now()
	env := &testEnv{
		store:  store.NewMemoryStore(),
		events: &recordingPublisher{},
		clock:  &now,
	}
	env.issuer = auth.NewIssuer(auth.IssuerConfig{
		AccessSecret:  "access",
		RefreshSecret: "refresh",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}).WithClock(func() time.Time { return *env.clock })

	hasher := auth.NewPasswordHasher(4)
	env.auth = NewAuthService(env.store, env.issuer, hasher, env.events)
	env.catalog = NewCatalogService(env.store, nil)
	env.carts = NewCartService(env.store, env.catalog)
	env.checkouts = NewCheckoutService(env.store, env.store, env.store, env.catalog, payment.TrustVerifier{}, env.events)
	env.orders = NewOrderService(env.store, env.store, env.catalog, nil, env.events)
	env.users = NewUserService(env.store, hasher)
	return env
}

func (e *testEnv) product(t *testing.T, name string, price float64) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:     name,
		SKU:      "SKU-" + name,
		Category: "Top Wear",
		Gender:   "Men",
		Price:    price,
		Images:   []models.ProductImage{{URL: "https://img.example/" + name + ".jpg"}},
	}
	_, err := e.catalog.Create(context.Background(), p)
	require.NoError(t, err)
	return p
}

func (e *testEnv) customer(t *testing.T, email string) *models.User {
	t.Helper()
	s, err := e.auth.Register(context.Background(), "Customer", email, "secret123")
	require.NoError(t, err)
	return s.User
}

func (e *testEnv) admin(t *testing.T) *models.User {
	t.Helper()
	u, err := e.users.Create(context.Background(), UserInput{
		Name: "Admin", Email: "admin@example.com", Password: "secret123", Role: "admin",
	})
	require.NoError(t, err)
	return u
}

// paidCheckout creates and pays a checkout for user over products
func (e *testEnv) paidCheckout(t *testing.T, user *models.User, products ...*models.Product) *models.Checkout {
	t.Helper()
	ctx := context.Background()

	items := make([]ItemInput, len(products))
	for i, p := range products {
		items[i] = ItemInput{ProductID: p.ID, Quantity: 1, Size: "M", Color: "Blue"}
	}
	c, err := e.checkouts.Create(ctx, user, CreateCheckoutInput{
		Items:           items,
		ShippingAddress: models.ShippingAddress{City: "X", Country: "Y"},
		PaymentMethod:   "PayPal",
	})
	require.NoError(t, err)

	c, err = e.checkouts.Pay(ctx, user, c.ID, PayInput{PaymentStatus: "paid"})
	require.NoError(t, err)
	return c
}
