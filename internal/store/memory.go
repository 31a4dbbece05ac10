package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore keeps every collection in process memory. It honours the same
// uniqueness and conditional-update rules as Store and backs tests and the
// STORE_DRIVER=memory mode.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[primitive.ObjectID]*models.User
	products    map[primitive.ObjectID]*models.Product
	carts       map[primitive.ObjectID]*models.Cart
	checkouts   map[primitive.ObjectID]*models.Checkout
	orders      map[primitive.ObjectID]*models.Order
	subscribers map[string]*models.Subscriber
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[primitive.ObjectID]*models.User),
		products:    make(map[primitive.ObjectID]*models.Product),
		carts:       make(map[primitive.ObjectID]*models.Cart),
		checkouts:   make(map[primitive.ObjectID]*models.Checkout),
		orders:      make(map[primitive.ObjectID]*models.Order),
		subscribers: make(map[string]*models.Subscriber),
	}
}

// Ping always succeeds
func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

// CreateUser inserts a user; the email must be unused
func (m *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == user.Email {
			return ErrDuplicate
		}
	}
	ts := now()
	user.ID = primitive.NewObjectID()
	user.CreatedAt, user.UpdatedAt = ts, ts
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

// GetUserByID returns a copy of the user
func (m *MemoryStore) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// GetUserByEmail looks a user up by email
func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// SetRefreshToken stores the user's current refresh token
func (m *MemoryStore) SetRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.RefreshToken = token
	u.UpdatedAt = now()
	return nil
}

// UpdateUser saves a user's name, email, role and password hash
func (m *MemoryStore) UpdateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	for id, other := range m.users {
		if id != user.ID && other.Email == user.Email {
			return ErrDuplicate
		}
	}
	user.UpdatedAt = now()
	u.Name, u.Email, u.Role, u.PasswordHash, u.UpdatedAt = user.Name, user.Email, user.Role, user.PasswordHash, user.UpdatedAt
	return nil
}

// DeleteUser removes a user
func (m *MemoryStore) DeleteUser(ctx context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

// ListUsers returns every user
func (m *MemoryStore) ListUsers(ctx context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return newer(users[i].CreatedAt, users[j].CreatedAt, users[i].ID, users[j].ID) })
	return users, nil
}

// CreateProduct inserts a product; the SKU must be unused
func (m *MemoryStore) CreateProduct(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.products {
		if existing.SKU == p.SKU {
			return ErrDuplicate
		}
	}
	ts := now()
	p.ID = primitive.NewObjectID()
	p.CreatedAt, p.UpdatedAt = ts, ts
	m.products[p.ID] = cloneProduct(p)
	return nil
}

// GetProductByID returns a copy of the product
func (m *MemoryStore) GetProductByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneProduct(p), nil
}

// GetProductsByIDs returns the products that exist among ids
func (m *MemoryStore) GetProductsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[primitive.ObjectID]bool, len(ids))
	products := []models.Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok && !seen[id] {
			seen[id] = true
			products = append(products, *cloneProduct(p))
		}
	}
	return products, nil
}

// ListProducts filters, sorts and limits the catalog
func (m *MemoryStore) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	products := []models.Product{}
	for _, p := range m.products {
		if f.matches(p) {
			products = append(products, *cloneProduct(p))
		}
	}

	sort.Slice(products, func(i, j int) bool {
		a, b := products[i], products[j]
		switch f.Sort {
		case SortPriceAsc:
			return a.Price < b.Price
		case SortPriceDesc:
			return a.Price > b.Price
		case SortPopularity:
			if a.Sold != b.Sold {
				return a.Sold > b.Sold
			}
			return a.Rating > b.Rating
		}
		return newer(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})

	if f.Limit > 0 && int64(len(products)) > f.Limit {
		products = products[:f.Limit]
	}
	return products, nil
}

func (f ProductFilter) matches(p *models.Product) bool {
	if f.Category != "" && p.Category != f.Category ||
		f.Gender != "" && p.Gender != f.Gender ||
		f.Brand != "" && p.Brand != f.Brand ||
		f.Collection != "" && p.Collections != f.Collection ||
		f.Material != "" && p.Material != f.Material {
		return false
	}
	if f.Color != "" && !contains(p.Colors, f.Color) || f.Size != "" && !contains(p.Sizes, f.Size) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.Description), q) {
			return false
		}
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice || f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	if f.ExcludeID != nil && p.ID == *f.ExcludeID {
		return false
	}
	return !f.PublishedOnly || p.IsPublished
}

// UpdateProduct replaces a product, keeping the SKU unique
func (m *MemoryStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.products[p.ID]
	if !ok {
		return ErrNotFound
	}
	for id, other := range m.products {
		if id != p.ID && other.SKU == p.SKU {
			return ErrDuplicate
		}
	}
	p.CreatedAt = existing.CreatedAt
	p.Sold = existing.Sold
	p.UpdatedAt = now()
	m.products[p.ID] = cloneProduct(p)
	return nil
}

// DeleteProduct removes a product
func (m *MemoryStore) DeleteProduct(ctx context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[id]; !ok {
		return ErrNotFound
	}
	delete(m.products, id)
	return nil
}

// IncrementSold adds quantity to a product's sold counter
func (m *MemoryStore) IncrementSold(ctx context.Context, id primitive.ObjectID, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.products[id]; ok {
		p.Sold += int64(quantity)
	}
	return nil
}

func (m *MemoryStore) findCart(owner models.CartOwner) *models.Cart {
	for _, c := range m.carts {
		if owner.UserID != nil && c.UserID != nil && *c.UserID == *owner.UserID {
			return c
		}
		if owner.UserID == nil && owner.GuestID != "" && c.GuestID == owner.GuestID {
			return c
		}
	}
	return nil
}

// GetCart returns the owner's cart
func (m *MemoryStore) GetCart(ctx context.Context, owner models.CartOwner) (*models.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := m.findCart(owner)
	if c == nil {
		return nil, ErrNotFound
	}
	return cloneCart(c), nil
}

// SaveCart inserts or replaces a cart
func (m *MemoryStore) SaveCart(ctx context.Context, cart *models.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := now()
	if cart.ID.IsZero() {
		cart.ID = primitive.NewObjectID()
		cart.CreatedAt = ts
	}
	cart.UpdatedAt = ts
	m.carts[cart.ID] = cloneCart(cart)
	return nil
}

// DeleteCart removes the owner's cart
func (m *MemoryStore) DeleteCart(ctx context.Context, owner models.CartOwner) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.findCart(owner)
	if c == nil {
		return ErrNotFound
	}
	delete(m.carts, c.ID)
	return nil
}

// CartCount reports how many cart documents exist
func (m *MemoryStore) CartCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.carts)
}

// CreateCheckout inserts a checkout
func (m *MemoryStore) CreateCheckout(ctx context.Context, c *models.Checkout) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := now()
	c.ID = primitive.NewObjectID()
	c.CreatedAt, c.UpdatedAt = ts, ts
	m.checkouts[c.ID] = cloneCheckout(c)
	return nil
}

// GetCheckoutByID returns a copy of the checkout
func (m *MemoryStore) GetCheckoutByID(ctx context.Context, id primitive.ObjectID) (*models.Checkout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.checkouts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCheckout(c), nil
}

// MarkCheckoutPaid marks an unfinalized checkout paid
func (m *MemoryStore) MarkCheckoutPaid(ctx context.Context, id primitive.ObjectID, details json.RawMessage, paidAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.checkouts[id]
	if !ok || c.IsFinalized {
		return false, nil
	}
	c.IsPaid = true
	c.PaymentStatus = models.PaymentStatusPaid
	c.PaymentDetails = append(json.RawMessage(nil), details...)
	c.PaidAt = &paidAt
	c.UpdatedAt = now()
	return true, nil
}

// ClaimCheckoutFinalize claims a paid, unfinalized checkout for orderID
func (m *MemoryStore) ClaimCheckoutFinalize(ctx context.Context, id, orderID primitive.ObjectID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.checkouts[id]
	if !ok || !c.IsPaid || c.IsFinalized {
		return false, nil
	}
	c.IsFinalized = true
	c.FinalizedAt = &at
	c.OrderID = &orderID
	c.UpdatedAt = now()
	return true, nil
}

// ReleaseCheckoutFinalize undoes a claim still held by orderID
func (m *MemoryStore) ReleaseCheckoutFinalize(ctx context.Context, id, orderID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.checkouts[id]
	if !ok || c.OrderID == nil || *c.OrderID != orderID {
		return nil
	}
	c.IsFinalized = false
	c.FinalizedAt = nil
	c.OrderID = nil
	c.UpdatedAt = now()
	return nil
}

// CreateOrder inserts an order; one per checkout
func (m *MemoryStore) CreateOrder(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if order.CheckoutID != nil {
		for _, o := range m.orders {
			if o.CheckoutID != nil && *o.CheckoutID == *order.CheckoutID {
				return ErrDuplicate
			}
		}
	}
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	if _, exists := m.orders[order.ID]; exists {
		return ErrDuplicate
	}
	ts := now()
	order.CreatedAt, order.UpdatedAt = ts, ts
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

// GetOrderByID returns a copy of the order
func (m *MemoryStore) GetOrderByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

// ListOrdersByUser returns the user's orders, newest first
func (m *MemoryStore) ListOrdersByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return m.listOrders(func(o *models.Order) bool { return o.UserID == userID }), nil
}

// ListOrders returns every order, newest first
func (m *MemoryStore) ListOrders(ctx context.Context) ([]models.Order, error) {
	return m.listOrders(func(*models.Order) bool { return true }), nil
}

// CountOrdersByCheckout counts orders created from a checkout
func (m *MemoryStore) CountOrdersByCheckout(ctx context.Context, checkoutID primitive.ObjectID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, o := range m.orders {
		if o.CheckoutID != nil && *o.CheckoutID == checkoutID {
			n++
		}
	}
	return n, nil
}

// OrderCount reports how many orders exist
func (m *MemoryStore) OrderCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders)
}

func (m *MemoryStore) listOrders(keep func(*models.Order) bool) []models.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()

	orders := []models.Order{}
	for _, o := range m.orders {
		if keep(o) {
			orders = append(orders, *cloneOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return newer(orders[i].CreatedAt, orders[j].CreatedAt, orders[i].ID, orders[j].ID)
	})
	return orders
}

// UpdateOrderStatus sets an order's status and returns the result
func (m *MemoryStore) UpdateOrderStatus(ctx context.Context, id primitive.ObjectID, status models.OrderStatus, at time.Time) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o.Status = status
	if status == models.OrderStatusDelivered {
		o.IsDelivered = true
		o.DeliveredAt = &at
	}
	o.UpdatedAt = now()
	return cloneOrder(o), nil
}

// DeleteOrder removes an order
func (m *MemoryStore) DeleteOrder(ctx context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[id]; !ok {
		return ErrNotFound
	}
	delete(m.orders, id)
	return nil
}

// CreateSubscriber inserts a subscriber; the email must be unused
func (m *MemoryStore) CreateSubscriber(ctx context.Context, sub *models.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subscribers[sub.Email]; ok {
		return ErrDuplicate
	}
	sub.ID = primitive.NewObjectID()
	sub.SubscribedAt = now()
	cp := *sub
	m.subscribers[sub.Email] = &cp
	return nil
}

func newer(a, b time.Time, aID, bID primitive.ObjectID) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return aID.Hex() > bID.Hex()
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func cloneProduct(p *models.Product) *models.Product {
	cp := *p
	cp.Sizes = append([]string(nil), p.Sizes...)
	cp.Colors = append([]string(nil), p.Colors...)
	cp.Tags = append([]string(nil), p.Tags...)
	cp.Images = append([]models.ProductImage(nil), p.Images...)
	return &cp
}

func cloneCart(c *models.Cart) *models.Cart {
	cp := *c
	cp.Items = append([]models.CartItem(nil), c.Items...)
	return &cp
}

func cloneCheckout(c *models.Checkout) *models.Checkout {
	cp := *c
	cp.Items = append([]models.CheckoutItem(nil), c.Items...)
	cp.PaymentDetails = append(json.RawMessage(nil), c.PaymentDetails...)
	return &cp
}

func cloneOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	cp.PaymentDetails = append(json.RawMessage(nil), o.PaymentDetails...)
	return &cp
}
