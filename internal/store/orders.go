package store

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateOrder inserts an order. A preset ID is kept so callers can
// reference the order before it exists.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	ts := now()
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	order.CreatedAt, order.UpdatedAt = ts, ts

	if _, err := s.orders.InsertOne(ctx, order); err != nil {
		return fmt.Errorf("failed to create order: %w", translate(err))
	}
	return nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var order models.Order
	if err := s.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// ListOrdersByUser retrieves orders for a user, newest first
func (s *Store) ListOrdersByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return s.findOrders(ctx, bson.M{"user": userID})
}

// ListOrders retrieves every order, newest first
func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.findOrders(ctx, bson.M{})
}

// CountOrdersByCheckout returns how many orders reference a checkout
func (s *Store) CountOrdersByCheckout(ctx context.Context, checkoutID primitive.ObjectID) (int64, error) {
	return s.orders.CountDocuments(ctx, bson.M{"checkoutId": checkoutID})
}

func (s *Store) findOrders(ctx context.Context, filter bson.M) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.orders.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	orders := []models.Order{}
	if err := cur.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

// UpdateOrderStatus moves an order to a new fulfilment status
func (s *Store) UpdateOrderStatus(ctx context.Context, id primitive.ObjectID, status models.OrderStatus, at time.Time) (*models.Order, error) {
	set := bson.M{"status": status, "updatedAt": now()}
	if status == models.OrderStatusDelivered {
		set["isDelivered"] = true
		set["deliveredAt"] = at
	}

	res, err := s.orders.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return s.GetOrderByID(ctx, id)
}

// DeleteOrder removes an order
func (s *Store) DeleteOrder(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.orders.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSubscriber stores a newsletter subscription; emails are unique
func (s *Store) CreateSubscriber(ctx context.Context, sub *models.Subscriber) error {
	sub.ID = primitive.NewObjectID()
	sub.SubscribedAt = now()
	if _, err := s.subscribers.InsertOne(ctx, sub); err != nil {
		return fmt.Errorf("failed to create subscriber: %w", translate(err))
	}
	return nil
}
