package store

import (
	"context"
	"fmt"
	"regexp"

	"storefront/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ProductSort orders catalog listings
type ProductSort string

const (
	SortNewest     ProductSort = "newest"
	SortPriceAsc   ProductSort = "priceAsc"
	SortPriceDesc  ProductSort = "priceDesc"
	SortPopularity ProductSort = "popularity"
)

// ProductFilter narrows catalog listings; zero values match everything
type ProductFilter struct {
	Category      string
	Gender        string
	Color         string
	Size          string
	Brand         string
	Collection    string
	Material      string
	Search        string
	MinPrice      *float64
	MaxPrice      *float64
	ExcludeID     *primitive.ObjectID
	PublishedOnly bool
	Sort          ProductSort
	Limit         int64
}

func (f ProductFilter) query() bson.M {
	q := bson.M{}
	eq := map[string]string{
		"category":    f.Category,
		"gender":      f.Gender,
		"brand":       f.Brand,
		"collections": f.Collection,
		"material":    f.Material,
		"colors":      f.Color,
		"sizes":       f.Size,
	}
	for field, v := range eq {
		if v != "" {
			q[field] = v
		}
	}
	if f.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		q["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"description": pattern},
		}
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		price := bson.M{}
		if f.MinPrice != nil {
			price["$gte"] = *f.MinPrice
		}
		if f.MaxPrice != nil {
			price["$lte"] = *f.MaxPrice
		}
		q["price"] = price
	}
	if f.ExcludeID != nil {
		q["_id"] = bson.M{"$ne": *f.ExcludeID}
	}
	if f.PublishedOnly {
		q["isPublished"] = true
	}
	return q
}

func (f ProductFilter) sort() bson.D {
	switch f.Sort {
	case SortPriceAsc:
		return bson.D{{Key: "price", Value: 1}}
	case SortPriceDesc:
		return bson.D{{Key: "price", Value: -1}}
	case SortPopularity:
		return bson.D{{Key: "sold", Value: -1}, {Key: "rating", Value: -1}}
	}
	return bson.D{{Key: "createdAt", Value: -1}}
}

// CreateProduct inserts a product; the SKU must be unique
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	ts := now()
	p.ID = primitive.NewObjectID()
	p.CreatedAt, p.UpdatedAt = ts, ts

	if _, err := s.products.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("failed to create product: %w", translate(err))
	}
	return nil
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var p models.Product
	if err := s.products.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// GetProductsByIDs retrieves the products that exist among ids
func (s *Store) GetProductsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	cur, err := s.products.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}

	products := []models.Product{}
	if err := cur.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, nil
}

// ListProducts returns products matching the filter
func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	opts := options.Find().SetSort(f.sort())
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}

	cur, err := s.products.Find(ctx, f.query(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products := []models.Product{}
	if err := cur.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, nil
}

// UpdateProduct replaces the editable fields of a product
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	existing, err := s.GetProductByID(ctx, p.ID)
	if err != nil {
		return err
	}
	p.CreatedAt = existing.CreatedAt
	p.Sold = existing.Sold
	p.UpdatedAt = now()

	res, err := s.products.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", translate(err))
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProduct removes a product
func (s *Store) DeleteProduct(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.products.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementSold bumps the best-seller counter
func (s *Store) IncrementSold(ctx context.Context, id primitive.ObjectID, quantity int) error {
	_, err := s.products.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"sold": quantity}})
	if err != nil {
		return fmt.Errorf("failed to increment sold count: %w", err)
	}
	return nil
}
