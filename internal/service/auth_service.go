package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/auth"
	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// AuthService handles accounts, credentials and tokens
type AuthService struct {
	users          UserRepository
	tokens         *auth.Issuer
	hasher         *auth.PasswordHasher
	eventPublisher EventPublisher
	logger         *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(
	users UserRepository,
	tokens *auth.Issuer,
	hasher *auth.PasswordHasher,
	eventPublisher EventPublisher,
) *AuthService {
	return &AuthService{
		users:          users,
		tokens:         tokens,
		hasher:         hasher,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// Session is returned by register and login
type Session struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a customer account and signs it in
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*Session, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Register")
	defer span.End()

	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if name == "" || email == "" || password == "" {
		return nil, invalidRequest("Name, email and password are required")
	}

	_, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleCustomer,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	util.UsersRegisteredTotal.Inc()
	s.logger.Info("User registered", zap.String("user_id", user.ID.Hex()))

	event := &models.UserRegisteredEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeUserRegistered),
		UserID:    user.ID.Hex(),
		Email:     user.Email,
	}
	if err := s.eventPublisher.PublishUserRegistered(ctx, event); err != nil {
		s.logger.Error("Failed to publish UserRegistered event", zap.Error(err))
	}

	return s.startSession(ctx, user)
}

// Login verifies credentials. The new refresh token replaces the stored
// one, so any earlier refresh token stops working.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		util.LoginsTotal.WithLabelValues("unknown_user").Inc()
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			util.LoginsTotal.WithLabelValues("bad_password").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	util.LoginsTotal.WithLabelValues("success").Inc()
	return s.startSession(ctx, user)
}

func (s *AuthService) startSession(ctx context.Context, user *models.User) (*Session, error) {
	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(user)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetRefreshToken(ctx, user.ID, refresh); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	user.RefreshToken = refresh

	return &Session{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh exchanges the user's current refresh token for a new access
// token. The refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, presented string) (string, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Refresh")
	defer span.End()

	if presented == "" {
		util.TokenRefreshesTotal.WithLabelValues("missing").Inc()
		return "", ErrRefreshTokenMissing
	}

	userID, err := s.tokens.VerifyRefreshToken(presented)
	if err != nil {
		util.TokenRefreshesTotal.WithLabelValues("invalid").Inc()
		return "", ErrRefreshTokenExpired
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		util.TokenRefreshesTotal.WithLabelValues("invalid").Inc()
		return "", ErrRefreshTokenInvalid
	}
	if err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}
	if user.RefreshToken == "" || user.RefreshToken != presented {
		util.TokenRefreshesTotal.WithLabelValues("superseded").Inc()
		return "", ErrRefreshTokenInvalid
	}

	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return "", err
	}
	util.TokenRefreshesTotal.WithLabelValues("success").Inc()
	return access, nil
}

// Logout forgets the stored refresh token
func (s *AuthService) Logout(ctx context.Context, userID primitive.ObjectID) error {
	ctx, span := util.StartSpan(ctx, "AuthService.Logout")
	defer span.End()

	err := s.users.SetRefreshToken(ctx, userID, "")
	if errors.Is(err, store.ErrNotFound) {
		return ErrUnauthenticated
	}
	return err
}

// Authenticate resolves an access token to the current user record. The
// user is re-read on every call so deletions and role changes apply to the
// next request.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Authenticate")
	defer span.End()

	if token == "" {
		return nil, ErrTokenMissing
	}

	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}
