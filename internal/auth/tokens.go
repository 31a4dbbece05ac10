package auth

import (
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

type tokenUser struct {
	ID   string      `json:"id"`
	Role models.Role `json:"role,omitempty"`
}

type tokenClaims struct {
	User tokenUser `json:"user"`
	Kind string    `json:"typ"`
	jwt.RegisteredClaims
}

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

// Claims is what a verified access token carries
type Claims struct {
	UserID primitive.ObjectID
	Role   models.Role
}

// IssuerConfig configures token signing
type IssuerConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Issuer signs and verifies access and refresh tokens. Access and refresh
// tokens use distinct secrets, so one can never stand in for the other.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewIssuer creates a token issuer
func NewIssuer(cfg IssuerConfig) *Issuer {
	return &Issuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
}

// WithClock replaces the time source; used by tests
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// IssueAccessToken encodes user id and role with the short expiry
func (i *Issuer) IssueAccessToken(user *models.User) (string, error) {
	return i.sign(tokenUser{ID: user.ID.Hex(), Role: user.Role}, kindAccess, i.accessTTL, i.accessSecret)
}

// IssueRefreshToken encodes the user id only, with the long expiry
func (i *Issuer) IssueRefreshToken(user *models.User) (string, error) {
	return i.sign(tokenUser{ID: user.ID.Hex()}, kindRefresh, i.refreshTTL, i.refreshSecret)
}

func (i *Issuer) sign(u tokenUser, kind string, ttl time.Duration, secret []byte) (string, error) {
	issuedAt := i.now()
	claims := tokenClaims{
		User: u,
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	return signed, nil
}

// VerifyAccessToken validates an access token and returns its claims
func (i *Issuer) VerifyAccessToken(token string) (*Claims, error) {
	c, err := i.parse(token, kindAccess, i.accessSecret)
	if err != nil {
		return nil, err
	}
	role := c.User.Role
	if !role.Valid() {
		return nil, ErrTokenInvalid
	}
	return &Claims{UserID: mustObjectID(c.User.ID), Role: role}, nil
}

// VerifyRefreshToken validates a refresh token and returns the user id
func (i *Issuer) VerifyRefreshToken(token string) (primitive.ObjectID, error) {
	c, err := i.parse(token, kindRefresh, i.refreshSecret)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return mustObjectID(c.User.ID), nil
}

func (i *Issuer) parse(token, kind string, secret []byte) (*tokenClaims, error) {
	var c tokenClaims
	_, err := jwt.ParseWithClaims(token, &c,
		func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if c.Kind != kind {
		return nil, ErrTokenInvalid
	}
	if _, err := primitive.ObjectIDFromHex(c.User.ID); err != nil {
		return nil, ErrTokenInvalid
	}
	return &c, nil
}

func mustObjectID(hex string) primitive.ObjectID {
	id, _ := primitive.ObjectIDFromHex(hex)
	return id
}
