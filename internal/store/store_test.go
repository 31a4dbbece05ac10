package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func setupTestStore(t *testing.T) *Store {
	if testing.Short() {
		t.Skip("Integration test - requires docker")
	}
	ctx := context.Background()

	container, err := mongodb.RunContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	s, err := NewStore(ctx, uri, "storefront_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })

	require.NoError(t, s.EnsureIndexes(ctx))
	return s
}

func TestStore_UserLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	user := &models.User{Name: "Ana", Email: "ana@example.com", PasswordHash: "x", Role: models.RoleCustomer}
	require.NoError(t, s.CreateUser(ctx, user))
	assert.False(t, user.ID.IsZero())

	err := s.CreateUser(ctx, &models.User{Name: "Dup", Email: "ana@example.com", Role: models.RoleCustomer})
	assert.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, s.SetRefreshToken(ctx, user.ID, "token-1"))
	got, err := s.GetUserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "token-1", got.RefreshToken)

	require.NoError(t, s.SetRefreshToken(ctx, user.ID, ""))
	got, err = s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, got.RefreshToken)

	require.NoError(t, s.DeleteUser(ctx, user.ID))
	_, err = s.GetUserByID(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_FinalizeClaimIsConditional(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	c := &models.Checkout{UserID: primitive.NewObjectID(), PaymentStatus: models.PaymentStatusPending}
	require.NoError(t, s.CreateCheckout(ctx, c))

	won, err := s.ClaimCheckoutFinalize(ctx, c.ID, primitive.NewObjectID(), time.Now())
	require.NoError(t, err)
	assert.False(t, won)

	paid, err := s.MarkCheckoutPaid(ctx, c.ID, json.RawMessage(`{"id":"tx"}`), time.Now())
	require.NoError(t, err)
	require.True(t, paid)

	orderID := primitive.NewObjectID()
	won, err = s.ClaimCheckoutFinalize(ctx, c.ID, orderID, time.Now())
	require.NoError(t, err)
	assert.True(t, won)

	won, err = s.ClaimCheckoutFinalize(ctx, c.ID, primitive.NewObjectID(), time.Now())
	require.NoError(t, err)
	assert.False(t, won)

	got, err := s.GetCheckoutByID(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.IsFinalized)
	require.NotNil(t, got.OrderID)
	assert.Equal(t, orderID, *got.OrderID)
}

func TestStore_OrderUniquePerCheckout(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	checkoutID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	first := &models.Order{UserID: userID, CheckoutID: &checkoutID, Status: models.OrderStatusProcessing}
	require.NoError(t, s.CreateOrder(ctx, first))

	err := s.CreateOrder(ctx, &models.Order{UserID: userID, CheckoutID: &checkoutID})
	assert.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, s.CreateOrder(ctx, &models.Order{UserID: userID, Status: models.OrderStatusProcessing}))

	orders, err := s.ListOrdersByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	delivered, err := s.UpdateOrderStatus(ctx, first.ID, models.OrderStatusDelivered, time.Now())
	require.NoError(t, err)
	assert.True(t, delivered.IsDelivered)
}

func TestStore_CartDeletedEntirely(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	userID := primitive.NewObjectID()
	owner := models.CartOwner{UserID: &userID}

	cart := &models.Cart{UserID: &userID, Items: []models.CartItem{{ProductID: primitive.NewObjectID(), Quantity: 1}}}
	require.NoError(t, s.SaveCart(ctx, cart))

	require.NoError(t, s.DeleteCart(ctx, owner))
	_, err := s.GetCart(ctx, owner)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListProductsByFilter(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateProduct(ctx, &models.Product{Name: "Linen Shirt", SKU: "L-1", Price: 40, Category: "Top Wear", Colors: []string{"White"}}))
	require.NoError(t, s.CreateProduct(ctx, &models.Product{Name: "Cargo Pants", SKU: "C-1", Price: 55, Category: "Bottom Wear", Colors: []string{"Olive"}}))

	got, err := s.ListProducts(ctx, ProductFilter{Search: "linen", Color: "White"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "L-1", got[0].SKU)
}
