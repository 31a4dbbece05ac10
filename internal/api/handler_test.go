package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/auth"
	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *gin.Engine
	store  *store.MemoryStore
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T, deps map[string]Pinger) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := store.NewMemoryStore()
	projector := service.NewSalesProjector(mem, nil)
	events := broker.NewEventPublisher(broker.NewLocalBus(worker.NewEventHandler(projector).HandleMessage))

	issuer := auth.NewIssuer(auth.IssuerConfig{
		AccessSecret:  "access",
		RefreshSecret: "refresh",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	})
	hasher := auth.NewPasswordHasher(4)
	catalog := service.NewCatalogService(mem, nil)

	h := NewHandler(Services{
		Auth:        service.NewAuthService(mem, issuer, hasher, events),
		Users:       service.NewUserService(mem, hasher),
		Catalog:     catalog,
		Carts:       service.NewCartService(mem, catalog),
		Checkouts:   service.NewCheckoutService(mem, mem, mem, catalog, payment.TrustVerifier{}, events),
		Orders:      service.NewOrderService(mem, mem, catalog, nil, events),
		Subscribers: service.NewSubscriberService(mem),
	}, Options{AuthPerMinute: 600, AuthBurst: 100, Dependencies: deps})
	t.Cleanup(h.Close)

	router := gin.New()
	h.SetupRoutes(router)
	return &testServer{router: router, store: mem}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func (s *testServer) seedProduct(t *testing.T, name string, price float64) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, SKU: "SKU-" + name, Category: "Top Wear", Price: price, IsPublished: true}
	require.NoError(t, s.store.CreateProduct(context.Background(), p))
	return p
}

type sessionBody struct {
	User         models.User `json:"user"`
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
}

func (s *testServer) register(t *testing.T, email string) sessionBody {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/users/register", "", gin.H{
		"name": "Jane", "email": email, "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body sessionBody
	decode(t, rec, &body)
	return body
}

func messageOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	decode(t, rec, &body)
	return body.Message
}

func TestCheckoutHappyPath(t *testing.T) {
	s := newTestServer(t, nil)
	p := s.seedProduct(t, "Tee", 20)
	s.register(t, "jane@example.com")

	rec := s.do(t, http.MethodPost, "/api/users/login", "", gin.H{"email": "jane@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, rec.Code)
	var session sessionBody
	decode(t, rec, &session)
	require.NotEmpty(t, session.Token)

	rec = s.do(t, http.MethodPost, "/api/checkout", session.Token, gin.H{
		"checkoutItems":   []gin.H{{"productId": p.ID.Hex(), "quantity": 2, "size": "M", "color": "Red"}},
		"shippingAddress": gin.H{"address": "1 Main", "city": "Town", "postalCode": "1000", "country": "US"},
		"paymentMethod":   "PayPal",
		"totalPrice":      40,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var checkout models.Checkout
	decode(t, rec, &checkout)
	assert.Equal(t, 40.0, checkout.TotalPrice)
	assert.False(t, checkout.IsPaid)

	rec = s.do(t, http.MethodPut, "/api/checkout/"+checkout.ID.Hex()+"/pay", session.Token, gin.H{
		"paymentStatus": "paid", "paymentDetails": gin.H{"transactionId": "tx-1"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &checkout)
	assert.True(t, checkout.IsPaid)
	assert.NotNil(t, checkout.PaidAt)

	rec = s.do(t, http.MethodPost, "/api/checkout/"+checkout.ID.Hex()+"/finalize", session.Token, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order models.Order
	decode(t, rec, &order)
	assert.True(t, order.IsPaid)
	assert.Equal(t, 40.0, order.TotalPrice)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)

	rec = s.do(t, http.MethodPost, "/api/checkout/"+checkout.ID.Hex()+"/finalize", session.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Checkout already finalized", messageOf(t, rec))

	rec = s.do(t, http.MethodGet, "/api/orders/my-orders", session.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []models.Order
	decode(t, rec, &mine)
	assert.Len(t, mine, 1)

	sold, err := s.store.GetProductByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sold.Sold)
}

func TestPayWithRefundedStatus(t *testing.T) {
	s := newTestServer(t, nil)
	p := s.seedProduct(t, "Tee", 20)
	session := s.register(t, "jane@example.com")

	rec := s.do(t, http.MethodPost, "/api/checkout", session.Token, gin.H{
		"checkoutItems": []gin.H{{"productId": p.ID.Hex(), "quantity": 1}},
		"paymentMethod": "PayPal",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var checkout models.Checkout
	decode(t, rec, &checkout)

	rec = s.do(t, http.MethodPut, "/api/checkout/"+checkout.ID.Hex()+"/pay", session.Token, gin.H{"paymentStatus": "refunded"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid Payment Status", messageOf(t, rec))

	rec = s.do(t, http.MethodGet, "/api/checkout/"+checkout.ID.Hex(), session.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &checkout)
	assert.False(t, checkout.IsPaid)

	rec = s.do(t, http.MethodPost, "/api/checkout/"+checkout.ID.Hex()+"/finalize", session.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthGate(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/users/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token not found", messageOf(t, rec))

	rec = s.do(t, http.MethodGet, "/api/users/profile", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	session := s.register(t, "jane@example.com")
	rec = s.do(t, http.MethodGet, "/api/users/profile", session.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile models.User
	decode(t, rec, &profile)
	assert.Equal(t, "jane@example.com", profile.Email)
	assert.NotContains(t, rec.Body.String(), "password")

	require.NoError(t, s.store.DeleteUser(context.Background(), session.User.ID))
	rec = s.do(t, http.MethodGet, "/api/users/profile", session.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "User not found", messageOf(t, rec))
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t, nil)
	customer := s.register(t, "jane@example.com")

	rec := s.do(t, http.MethodGet, "/api/admin/users", customer.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Access denied: admin only", messageOf(t, rec))

	rec = s.do(t, http.MethodPost, "/api/admin/products", customer.Token, gin.H{"name": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := s.register(t, "boss@example.com")
	promoted, err := s.store.GetUserByID(context.Background(), admin.User.ID)
	require.NoError(t, err)
	promoted.Role = models.RoleAdmin
	require.NoError(t, s.store.UpdateUser(context.Background(), promoted))

	// the role is re-read on every request, so the old token now carries admin rights
	rec = s.do(t, http.MethodGet, "/api/admin/users", admin.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var users []models.User
	decode(t, rec, &users)
	assert.Len(t, users, 2)

	rec = s.do(t, http.MethodPost, "/api/admin/products", admin.Token, gin.H{
		"name": "Jacket", "description": "Warm", "price": 99.5, "sku": "JKT-1", "category": "Outer Wear",
		"sizes": []string{"M"}, "colors": []string{"Black"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestRefreshAndLogout(t *testing.T) {
	s := newTestServer(t, nil)
	session := s.register(t, "jane@example.com")

	rec := s.do(t, http.MethodPost, "/api/users/refresh", "", gin.H{})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "No refresh token provided", messageOf(t, rec))

	rec = s.do(t, http.MethodPost, "/api/users/refresh", "", gin.H{"refreshToken": session.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Token string `json:"token"`
	}
	decode(t, rec, &body)
	assert.NotEmpty(t, body.Token)

	rec = s.do(t, http.MethodPost, "/api/users/logout", session.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/users/refresh", "", gin.H{"refreshToken": session.RefreshToken})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOrderIsHiddenFromOtherCustomers(t *testing.T) {
	s := newTestServer(t, nil)
	p := s.seedProduct(t, "Tee", 20)
	owner := s.register(t, "jane@example.com")
	other := s.register(t, "john@example.com")

	rec := s.do(t, http.MethodPost, "/api/orders", owner.Token, gin.H{
		"orderItems":    []gin.H{{"productId": p.ID.Hex(), "quantity": 1}},
		"paymentMethod": "COD",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order models.Order
	decode(t, rec, &order)

	rec = s.do(t, http.MethodGet, "/api/orders/"+order.ID.Hex(), other.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/orders/"+order.ID.Hex(), owner.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		ID   string `json:"_id"`
		User struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	decode(t, rec, &detail)
	assert.Equal(t, order.ID.Hex(), detail.ID)
	assert.Equal(t, "jane@example.com", detail.User.Email)

	rec = s.do(t, http.MethodGet, "/api/orders/not-an-id", owner.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGuestCartMergesOnLogin(t *testing.T) {
	s := newTestServer(t, nil)
	p := s.seedProduct(t, "Tee", 20)

	rec := s.do(t, http.MethodPost, "/api/cart", "", gin.H{"productId": p.ID.Hex(), "quantity": 2, "guestId": "guest_1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/cart?guestId=guest_1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cart models.Cart
	decode(t, rec, &cart)
	assert.Equal(t, 40.0, cart.TotalPrice)

	rec = s.do(t, http.MethodGet, "/api/cart", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	session := s.register(t, "jane@example.com")
	rec = s.do(t, http.MethodPost, "/api/cart/merge", session.Token, gin.H{"guestId": "guest_1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/cart", session.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &cart)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestProductEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	s.seedProduct(t, "Cheap", 10)
	s.seedProduct(t, "Pricey", 90)

	rec := s.do(t, http.MethodGet, "/api/products?sortBy=priceDesc&maxPrice=95", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var products []models.Product
	decode(t, rec, &products)
	require.Len(t, products, 2)
	assert.Equal(t, "Pricey", products[0].Name)

	rec = s.do(t, http.MethodGet, "/api/products/best-seller", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/products/"+products[1].ID.Hex(), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/products/0123456789abcdef01234567", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReadiness(t *testing.T) {
	s := newTestServer(t, map[string]Pinger{"store": store.NewMemoryStore()})
	rec := s.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	s = newTestServer(t, map[string]Pinger{"redis": downPinger{}})
	rec = s.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"down"`)
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(1, 2)
	defer rl.Stop()

	router := gin.New()
	router.GET("/limited", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 3)
	for i := range codes {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/limited", nil))
		codes[i] = rec.Code
		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
