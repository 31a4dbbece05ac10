package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	defaultShelfLimit   = 8
	defaultSimilarLimit = 4
)

// CatalogService serves the product catalog
type CatalogService struct {
	products ProductRepository
	cache    ProductCache
	logger   *zap.Logger
}

// NewCatalogService creates a catalog service; cache may be nil
func NewCatalogService(products ProductRepository, cache ProductCache) *CatalogService {
	return &CatalogService{
		products: products,
		cache:    cache,
		logger:   util.GetLogger(),
	}
}

// List returns products matching the filter
func (s *CatalogService) List(ctx context.Context, filter store.ProductFilter) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.List")
	defer span.End()

	return s.products.ListProducts(ctx, filter)
}

// Get returns a single product
func (s *CatalogService) Get(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Get")
	defer span.End()

	found, err := s.Resolve(ctx, []primitive.ObjectID{id})
	if err != nil {
		return nil, err
	}
	return found[id], nil
}

// BestSellers returns the most sold products
func (s *CatalogService) BestSellers(ctx context.Context, limit int64) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.BestSellers")
	defer span.End()

	return s.products.ListProducts(ctx, store.ProductFilter{Sort: store.SortPopularity, Limit: shelf(limit, defaultShelfLimit)})
}

// NewArrivals returns the most recently added products
func (s *CatalogService) NewArrivals(ctx context.Context, limit int64) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.NewArrivals")
	defer span.End()

	return s.products.ListProducts(ctx, store.ProductFilter{Sort: store.SortNewest, Limit: shelf(limit, defaultShelfLimit)})
}

// Similar returns products of the same category and gender, excluding id
func (s *CatalogService) Similar(ctx context.Context, id primitive.ObjectID, limit int64) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Similar")
	defer span.End()

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.products.ListProducts(ctx, store.ProductFilter{
		Category:  p.Category,
		Gender:    p.Gender,
		ExcludeID: &p.ID,
		Limit:     shelf(limit, defaultSimilarLimit),
	})
}

func shelf(limit, def int64) int64 {
	if limit <= 0 || limit > 100 {
		return def
	}
	return limit
}

// Create adds a product
func (s *CatalogService) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Create")
	defer span.End()

	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if err := s.products.CreateProduct(ctx, p); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, invalidRequest("A product with this SKU already exists")
		}
		return nil, err
	}

	s.logger.Info("Product created", zap.String("product_id", p.ID.Hex()), zap.String("sku", p.SKU))
	return p, nil
}

// Update replaces a product's editable fields
func (s *CatalogService) Update(ctx context.Context, id primitive.ObjectID, p *models.Product) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Update")
	defer span.End()

	if err := validateProduct(p); err != nil {
		return nil, err
	}
	p.ID = id
	if err := s.products.UpdateProduct(ctx, p); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrProductNotFound
		case errors.Is(err, store.ErrDuplicate):
			return nil, invalidRequest("A product with this SKU already exists")
		}
		return nil, err
	}
	s.invalidate(ctx, id)

	return s.products.GetProductByID(ctx, id)
}

// Delete removes a product. Orders keep their own item snapshots.
func (s *CatalogService) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.Delete")
	defer span.End()

	if err := s.products.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrProductNotFound
		}
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *CatalogService) invalidate(ctx context.Context, id primitive.ObjectID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteProduct(ctx, id.Hex()); err != nil {
		s.logger.Warn("Failed to invalidate cached product", zap.String("product_id", id.Hex()), zap.Error(err))
	}
}

func validateProduct(p *models.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	p.SKU = strings.TrimSpace(p.SKU)
	switch {
	case p.Name == "":
		return invalidRequest("Product name is required")
	case p.SKU == "":
		return invalidRequest("Product SKU is required")
	case p.Category == "":
		return invalidRequest("Product category is required")
	case p.Price < 0 || p.DiscountPrice < 0:
		return invalidRequest("Product price must not be negative")
	case p.CountInStock < 0:
		return invalidRequest("Stock count must not be negative")
	}
	return nil
}

// Lookup returns whichever of ids exist, reading through the cache
func (s *CatalogService) Lookup(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Lookup")
	defer span.End()

	found := make(map[primitive.ObjectID]*models.Product, len(ids))
	missing := uniqueIDs(ids)

	if s.cache != nil && len(missing) > 0 {
		keys := make([]string, len(missing))
		for i, id := range missing {
			keys[i] = id.Hex()
		}
		cached, err := s.cache.GetProducts(ctx, keys)
		if err != nil {
			util.ProductCacheTotal.WithLabelValues("error").Inc()
			s.logger.Warn("Product cache unavailable, reading from store", zap.Error(err))
		} else {
			rest := missing[:0]
			for _, id := range missing {
				if p, ok := cached[id.Hex()]; ok {
					util.ProductCacheTotal.WithLabelValues("hit").Inc()
					found[id] = p
					continue
				}
				util.ProductCacheTotal.WithLabelValues("miss").Inc()
				rest = append(rest, id)
			}
			missing = rest
		}
	}

	if len(missing) == 0 {
		return found, nil
	}

	products, err := s.products.GetProductsByIDs(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	fetched := make([]*models.Product, 0, len(products))
	for i := range products {
		p := &products[i]
		found[p.ID] = p
		fetched = append(fetched, p)
	}

	if s.cache != nil && len(fetched) > 0 {
		if err := s.cache.SetProducts(ctx, fetched...); err != nil {
			s.logger.Warn("Failed to cache products", zap.Error(err))
		}
	}
	return found, nil
}

// Resolve is Lookup that fails with ErrProductNotFound, naming the first
// absent id, unless every id exists
func (s *CatalogService) Resolve(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Product, error) {
	found, err := s.Lookup(ctx, ids)
	if err != nil {
		return nil, err
	}
	return found, requireAll(ids, found)
}

// ResolveLive is Resolve against the store, bypassing the cache. Paths that
// price or materialize orders use it. Fresh copies are written back to the
// cache and products that no longer exist are evicted from it.
func (s *CatalogService) ResolveLive(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ResolveLive")
	defer span.End()

	unique := uniqueIDs(ids)
	products, err := s.products.GetProductsByIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	found := make(map[primitive.ObjectID]*models.Product, len(products))
	fetched := make([]*models.Product, 0, len(products))
	for i := range products {
		p := &products[i]
		found[p.ID] = p
		fetched = append(fetched, p)
	}

	if s.cache != nil {
		if len(fetched) > 0 {
			if err := s.cache.SetProducts(ctx, fetched...); err != nil {
				s.logger.Warn("Failed to cache products", zap.Error(err))
			}
		}
		for _, id := range unique {
			if _, ok := found[id]; !ok {
				s.invalidate(ctx, id)
			}
		}
	}
	return found, requireAll(ids, found)
}

func requireAll(ids []primitive.ObjectID, found map[primitive.ObjectID]*models.Product) error {
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return fmt.Errorf("%w: %s", ErrProductNotFound, id.Hex())
		}
	}
	return nil
}

func uniqueIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
