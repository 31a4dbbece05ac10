package redisclient

import (
	"context"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	c, err := NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestProductCache(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	p := &models.Product{ID: primitive.NewObjectID(), Name: "Linen Shirt", Price: 49.5}
	found, err := c.GetProducts(ctx, []string{p.ID.Hex()})
	require.NoError(t, err)
	assert.Empty(t, found)

	require.NoError(t, c.SetProducts(ctx, p))
	found, err = c.GetProducts(ctx, []string{p.ID.Hex()})
	require.NoError(t, err)
	require.Contains(t, found, p.ID.Hex())
	assert.Equal(t, p.Name, found[p.ID.Hex()].Name)
	assert.Equal(t, p.Price, found[p.ID.Hex()].Price)

	other := primitive.NewObjectID().Hex()
	found, err = c.GetProducts(ctx, []string{p.ID.Hex(), other})
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Contains(t, found, p.ID.Hex())

	require.NoError(t, c.DeleteProduct(ctx, p.ID.Hex()))
	assert.False(t, mr.Exists(productKey(p.ID.Hex())))

	require.NoError(t, c.SetProducts(ctx, p))
	mr.FastForward(11 * time.Minute)
	assert.False(t, mr.Exists(productKey(p.ID.Hex())))
}

func TestFlushProducts(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	products := make([]*models.Product, 150)
	for i := range products {
		products[i] = &models.Product{ID: primitive.NewObjectID(), Name: "tee"}
	}
	require.NoError(t, c.SetProducts(ctx, products...))
	require.NoError(t, c.SetIdempotencyKey(ctx, "k1", "order-1", time.Hour))

	n, err := c.FlushProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 150, n)
	assert.False(t, mr.Exists(productKey(products[0].ID.Hex())))
	assert.True(t, mr.Exists("idempotency:k1"))

	n, err = c.FlushProducts(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIdempotencyKey(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.GetIdempotencyKey(ctx, "k1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.SetIdempotencyKey(ctx, "k1", "order-1", time.Hour))
	v, err := c.GetIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", v)

	_, err = c.GetIdempotencyKey(ctx, "k2")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMarkEventProcessed(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	first, err := c.MarkEventProcessed(ctx, "evt-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := c.MarkEventProcessed(ctx, "evt-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestLock(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	ok, err := c.AcquireLock(ctx, "order:k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AcquireLock(ctx, "order:k", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, "order:k"))
	ok, err = c.AcquireLock(ctx, "order:k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}
