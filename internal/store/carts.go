package store

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ownerFilter(owner models.CartOwner) bson.M {
	if owner.UserID != nil {
		return bson.M{"user": *owner.UserID}
	}
	return bson.M{"guestId": owner.GuestID}
}

// GetCart retrieves the cart of a user or guest
func (s *Store) GetCart(ctx context.Context, owner models.CartOwner) (*models.Cart, error) {
	var cart models.Cart
	if err := s.carts.FindOne(ctx, ownerFilter(owner)).Decode(&cart); err != nil {
		return nil, translate(err)
	}
	return &cart, nil
}

// SaveCart inserts a new cart or replaces an existing one
func (s *Store) SaveCart(ctx context.Context, cart *models.Cart) error {
	ts := now()
	if cart.ID.IsZero() {
		cart.ID = primitive.NewObjectID()
		cart.CreatedAt = ts
	}
	cart.UpdatedAt = ts

	opts := options.Replace().SetUpsert(true)
	if _, err := s.carts.ReplaceOne(ctx, bson.M{"_id": cart.ID}, cart, opts); err != nil {
		return fmt.Errorf("failed to save cart: %w", translate(err))
	}
	return nil
}

// DeleteCart removes the cart document entirely
func (s *Store) DeleteCart(ctx context.Context, owner models.CartOwner) error {
	res, err := s.carts.DeleteOne(ctx, ownerFilter(owner))
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
