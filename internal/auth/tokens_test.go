package auth

import (
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestIssuer(clock *time.Time) *Issuer {
	return NewIssuer(IssuerConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}).WithClock(func() time.Time { return *clock })
}

func TestAccessTokenRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(&now)
	user := &models.User{ID: primitive.NewObjectID(), Role: models.RoleAdmin}

	token, err := issuer.IssueAccessToken(user)
	require.NoError(t, err)

	claims, err := issuer.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAccessTokenExpiresAfterFifteenMinutes(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(&now)
	user := &models.User{ID: primitive.NewObjectID(), Role: models.RoleCustomer}

	token, err := issuer.IssueAccessToken(user)
	require.NoError(t, err)

	now = now.Add(14 * time.Minute)
	_, err = issuer.VerifyAccessToken(token)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = issuer.VerifyAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRefreshTokenExpiresAfterSevenDays(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(&now)
	user := &models.User{ID: primitive.NewObjectID(), Role: models.RoleCustomer}

	token, err := issuer.IssueRefreshToken(user)
	require.NoError(t, err)

	now = now.Add(6 * 24 * time.Hour)
	id, err := issuer.VerifyRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	now = now.Add(2 * 24 * time.Hour)
	_, err = issuer.VerifyRefreshToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	now := time.Now()
	issuer := newTestIssuer(&now)
	user := &models.User{ID: primitive.NewObjectID(), Role: models.RoleCustomer}

	access, err := issuer.IssueAccessToken(user)
	require.NoError(t, err)
	refresh, err := issuer.IssueRefreshToken(user)
	require.NoError(t, err)

	_, err = issuer.VerifyRefreshToken(access)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = issuer.VerifyAccessToken(refresh)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenWithForeignSecretOrAlgorithmIsInvalid(t *testing.T) {
	now := time.Now()
	issuer := newTestIssuer(&now)
	user := &models.User{ID: primitive.NewObjectID(), Role: models.RoleCustomer}

	other := NewIssuer(IssuerConfig{AccessSecret: "other", RefreshSecret: "other-r", AccessTTL: time.Minute, RefreshTTL: time.Hour})
	forged, err := other.IssueAccessToken(user)
	require.NoError(t, err)
	_, err = issuer.VerifyAccessToken(forged)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"user": map[string]string{"id": user.ID.Hex(), "role": "admin"},
		"typ":  "access",
		"exp":  now.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.VerifyAccessToken(unsigned)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = issuer.VerifyAccessToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestSuccessiveTokensDiffer(t *testing.T) {
	now := time.Now()
	issuer := newTestIssuer(&now)
	user := &models.User{ID: primitive.NewObjectID(), Role: models.RoleCustomer}

	a, err := issuer.IssueRefreshToken(user)
	require.NoError(t, err)
	b, err := issuer.IssueRefreshToken(user)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(4)
	hash, err := h.Hash("s3cret!")
	require.NoError(t, err)

	assert.NoError(t, h.Compare(hash, "s3cret!"))
	assert.ErrorIs(t, h.Compare(hash, "wrong"), ErrPasswordMismatch)
}
