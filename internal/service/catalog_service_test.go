package service

import (
	"context"
	"testing"

	"storefront/internal/models"
	"storefront/internal/redisclient"
	"storefront/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCatalogReadsThroughCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := redisclient.NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)

	mem := store.NewMemoryStore()
	catalog := NewCatalogService(mem, rc)
	ctx := context.Background()

	p := &models.Product{Name: "tee", SKU: "T-1", Category: "Top Wear", Price: 10}
	_, err = catalog.Create(ctx, p)
	require.NoError(t, err)

	got, err := catalog.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "tee", got.Name)
	assert.True(t, mr.Exists("product:"+p.ID.Hex()))

	p.Price = 12
	_, err = catalog.Update(ctx, p.ID, p)
	require.NoError(t, err)
	assert.False(t, mr.Exists("product:"+p.ID.Hex()))

	got, err = catalog.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 12.0, got.Price)

	require.NoError(t, catalog.Delete(ctx, p.ID))
	_, err = catalog.Get(ctx, p.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCatalogFallsBackWhenCacheIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := redisclient.NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)

	mem := store.NewMemoryStore()
	catalog := NewCatalogService(mem, rc)
	ctx := context.Background()

	p := &models.Product{Name: "tee", SKU: "T-1", Category: "Top Wear", Price: 10}
	_, err = catalog.Create(ctx, p)
	require.NoError(t, err)

	mr.Close()
	found, err := catalog.Resolve(ctx, []primitive.ObjectID{p.ID, p.ID})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestCatalogShelves(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.product(t, "a", 10)
	b := env.product(t, "b", 20)
	other := &models.Product{Name: "skirt", SKU: "S-1", Category: "Bottom Wear", Gender: "Women", Price: 30}
	_, err := env.catalog.Create(ctx, other)
	require.NoError(t, err)

	similar, err := env.catalog.Similar(ctx, a.ID, 0)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, b.ID, similar[0].ID)

	fresh, err := env.catalog.NewArrivals(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, fresh, 2)

	minPrice := 15.0
	list, err := env.catalog.List(ctx, store.ProductFilter{MinPrice: &minPrice, Sort: store.SortPriceAsc})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)

	_, err = env.catalog.Create(ctx, &models.Product{Name: "dup", SKU: a.SKU, Category: "Top Wear"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = env.catalog.Create(ctx, &models.Product{Name: "", SKU: "X", Category: "Top Wear"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSubscribe(t *testing.T) {
	svc := NewSubscriberService(store.NewMemoryStore())
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, " News@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "news@example.com", sub.Email)

	_, err = svc.Subscribe(ctx, "news@example.com")
	assert.ErrorIs(t, err, ErrAlreadySubscribed)

	_, err = svc.Subscribe(ctx, "not an email")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestUserAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.users.Create(ctx, UserInput{Name: "x", Email: "x@example.com", Password: "p", Role: "superuser"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	admin, err := env.users.EnsureAdmin(ctx, "Root", "root@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)

	customer := env.customer(t, "c@example.com")
	promoted, err := env.users.EnsureAdmin(ctx, "Promoted", "c@example.com", "newpass")
	require.NoError(t, err)
	assert.Equal(t, customer.ID, promoted.ID)
	assert.Equal(t, models.RoleAdmin, promoted.Role)

	_, err = env.auth.Login(ctx, "c@example.com", "newpass")
	require.NoError(t, err)

	_, err = env.users.Update(ctx, customer.ID, UserInput{Email: "root@example.com"})
	assert.ErrorIs(t, err, ErrUserExists)

	users, err := env.users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	assert.ErrorIs(t, env.users.Delete(ctx, primitive.NewObjectID()), ErrUserNotFound)
}
