package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// UserService is the admin view of accounts
type UserService struct {
	users  UserRepository
	hasher *auth.PasswordHasher
	logger *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(users UserRepository, hasher *auth.PasswordHasher) *UserService {
	return &UserService{users: users, hasher: hasher, logger: util.GetLogger()}
}

// UserInput carries admin edits; empty fields are left unchanged on update
type UserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.List")
	defer span.End()

	return s.users.ListUsers(ctx)
}

// Create adds an account with an explicit role; role defaults to customer
func (s *UserService) Create(ctx context.Context, in UserInput) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Create")
	defer span.End()

	role := models.RoleCustomer
	if in.Role != "" {
		r, err := models.ParseRole(in.Role)
		if err != nil {
			return nil, invalidRequest("Invalid role")
		}
		role = r
	}

	name, email := strings.TrimSpace(in.Name), normalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, invalidRequest("Name, email and password are required")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Name: name, Email: email, PasswordHash: hash, Role: role}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User created by admin",
		zap.String("user_id", user.ID.Hex()),
		zap.String("role", string(role)))
	return user, nil
}

// Update edits name, email, role and optionally the password. A role
// change applies from the user's next request.
func (s *UserService) Update(ctx context.Context, id primitive.ObjectID, in UserInput) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Update")
	defer span.End()

	user, err := s.users.GetUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		user.Name = name
	}
	if email := normalizeEmail(in.Email); email != "" {
		user.Email = email
	}
	if in.Role != "" {
		role, err := models.ParseRole(in.Role)
		if err != nil {
			return nil, invalidRequest("Invalid role")
		}
		user.Role = role
	}
	if in.Password != "" {
		if user.PasswordHash, err = s.hasher.Hash(in.Password); err != nil {
			return nil, err
		}
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return nil, ErrUserExists
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, span := util.StartSpan(ctx, "UserService.Delete")
	defer span.End()

	err := s.users.DeleteUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// EnsureAdmin creates an admin account or promotes an existing one
func (s *UserService) EnsureAdmin(ctx context.Context, name, email, password string) (*models.User, error) {
	existing, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	switch {
	case err == nil:
		return s.Update(ctx, existing.ID, UserInput{Name: name, Password: password, Role: string(models.RoleAdmin)})
	case errors.Is(err, store.ErrNotFound):
		return s.Create(ctx, UserInput{Name: name, Email: email, Password: password, Role: string(models.RoleAdmin)})
	default:
		return nil, err
	}
}
