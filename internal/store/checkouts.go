package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CreateCheckout inserts a checkout
func (s *Store) CreateCheckout(ctx context.Context, c *models.Checkout) error {
	ts := now()
	c.ID = primitive.NewObjectID()
	c.CreatedAt, c.UpdatedAt = ts, ts

	if _, err := s.checkouts.InsertOne(ctx, c); err != nil {
		return fmt.Errorf("failed to create checkout: %w", err)
	}
	return nil
}

// GetCheckoutByID retrieves a checkout by ID
func (s *Store) GetCheckoutByID(ctx context.Context, id primitive.ObjectID) (*models.Checkout, error) {
	var c models.Checkout
	if err := s.checkouts.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// MarkCheckoutPaid records payment unless the checkout is already finalized.
// It reports whether a document was updated.
func (s *Store) MarkCheckoutPaid(ctx context.Context, id primitive.ObjectID, details json.RawMessage, paidAt time.Time) (bool, error) {
	res, err := s.checkouts.UpdateOne(ctx,
		bson.M{"_id": id, "isFinalized": false},
		bson.M{"$set": bson.M{
			"isPaid":         true,
			"paymentStatus":  models.PaymentStatusPaid,
			"paymentDetails": details,
			"paidAt":         paidAt,
			"updatedAt":      now(),
		}})
	if err != nil {
		return false, fmt.Errorf("failed to mark checkout paid: %w", err)
	}
	return res.MatchedCount == 1, nil
}

// ClaimCheckoutFinalize flips isFinalized false->true on a paid checkout in
// one conditional update. Only one caller can win for a given checkout.
func (s *Store) ClaimCheckoutFinalize(ctx context.Context, id, orderID primitive.ObjectID, at time.Time) (bool, error) {
	res, err := s.checkouts.UpdateOne(ctx,
		bson.M{"_id": id, "isPaid": true, "isFinalized": false},
		bson.M{"$set": bson.M{
			"isFinalized": true,
			"finalizeAt":  at,
			"orderId":     orderID,
			"updatedAt":   now(),
		}})
	if err != nil {
		return false, fmt.Errorf("failed to claim checkout: %w", err)
	}
	return res.MatchedCount == 1, nil
}

// ReleaseCheckoutFinalize undoes a claim whose order could not be written
func (s *Store) ReleaseCheckoutFinalize(ctx context.Context, id, orderID primitive.ObjectID) error {
	_, err := s.checkouts.UpdateOne(ctx,
		bson.M{"_id": id, "orderId": orderID},
		bson.M{
			"$set":   bson.M{"isFinalized": false, "updatedAt": now()},
			"$unset": bson.M{"finalizeAt": "", "orderId": ""},
		})
	if err != nil {
		return fmt.Errorf("failed to release checkout claim: %w", err)
	}
	return nil
}
