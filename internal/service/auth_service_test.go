package service

import (
	"context"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s, err := env.auth.Register(ctx, "Ann", "  Ann@Example.com ", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", s.User.Email)
	assert.Equal(t, models.RoleCustomer, s.User.Role)
	assert.NotEmpty(t, s.AccessToken)
	assert.NotEmpty(t, s.RefreshToken)
	assert.Equal(t, 1, env.events.count(models.EventTypeUserRegistered))

	_, err = env.auth.Register(ctx, "Ann", "ann@example.com", "other")
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = env.auth.Login(ctx, "ann@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.auth.Login(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	logged, err := env.auth.Login(ctx, "ANN@example.com", "secret123")
	require.NoError(t, err)

	user, err := env.auth.Authenticate(ctx, logged.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, user.ID)
}

func TestSecondLoginInvalidatesFirstRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.customer(t, "a@example.com")

	first, err := env.auth.Login(ctx, "a@example.com", "secret123")
	require.NoError(t, err)
	_, err = env.auth.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)

	second, err := env.auth.Login(ctx, "a@example.com", "secret123")
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = env.auth.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenInvalid)

	token, err := env.auth.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestRefreshFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Refresh(ctx, "")
	assert.ErrorIs(t, err, ErrRefreshTokenMissing)

	_, err = env.auth.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, ErrRefreshTokenExpired)

	s, err := env.auth.Register(ctx, "B", "b@example.com", "secret123")
	require.NoError(t, err)

	_, err = env.auth.Refresh(ctx, s.AccessToken)
	assert.ErrorIs(t, err, ErrRefreshTokenExpired)

	*env.clock = env.clock.Add(8 * 24 * time.Hour)
	_, err = env.auth.Refresh(ctx, s.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenExpired)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s, err := env.auth.Register(ctx, "C", "c@example.com", "secret123")
	require.NoError(t, err)
	require.NoError(t, env.auth.Logout(ctx, s.User.ID))

	_, err = env.auth.Refresh(ctx, s.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenInvalid)
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrTokenMissing)

	_, err = env.auth.Authenticate(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	s, err := env.auth.Register(ctx, "D", "d@example.com", "secret123")
	require.NoError(t, err)

	*env.clock = env.clock.Add(16 * time.Minute)
	_, err = env.auth.Authenticate(ctx, s.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestAuthenticateReadsCurrentUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.admin(t)
	s, err := env.auth.Login(ctx, admin.Email, "secret123")
	require.NoError(t, err)

	user, err := env.auth.Authenticate(ctx, s.AccessToken)
	require.NoError(t, err)
	assert.True(t, user.Role.Can(models.CapManageCatalog))

	_, err = env.users.Update(ctx, admin.ID, UserInput{Role: "customer"})
	require.NoError(t, err)

	user, err = env.auth.Authenticate(ctx, s.AccessToken)
	require.NoError(t, err)
	assert.False(t, user.Role.Can(models.CapManageCatalog))

	require.NoError(t, env.users.Delete(ctx, admin.ID))
	_, err = env.auth.Authenticate(ctx, s.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
