package store

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateUser inserts a new user; the email must be unique
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	ts := now()
	user.ID = primitive.NewObjectID()
	user.CreatedAt, user.UpdatedAt = ts, ts

	if _, err := s.users.InsertOne(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", translate(err))
	}
	return nil
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by normalized email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// SetRefreshToken overwrites the stored refresh token; "" clears it
func (s *Store) SetRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error {
	update := bson.M{"$set": bson.M{"refreshToken": token, "updatedAt": now()}}
	if token == "" {
		update = bson.M{"$unset": bson.M{"refreshToken": ""}, "$set": bson.M{"updatedAt": now()}}
	}

	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateUser writes name, email, role and password hash
func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = now()
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{
		"name":      user.Name,
		"email":     user.Email,
		"role":      user.Role,
		"password":  user.PasswordHash,
		"updatedAt": user.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", translate(err))
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes a user
func (s *Store) DeleteUser(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsers returns every user, newest first
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	cur, err := s.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := []models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}
