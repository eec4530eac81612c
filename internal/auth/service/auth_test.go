package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coursearc/authcore/internal/auth/cache"
	"github.com/coursearc/authcore/internal/auth/domain"
	"github.com/coursearc/authcore/internal/auth/service"
	"github.com/coursearc/authcore/internal/auth/store"
	"github.com/coursearc/authcore/pkg/idx"
)

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token carries user, session and role", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.register(t, "alice", "open-sesame", true)
		result := env.login(t, "alice", "open-sesame")

		auth, err := env.Auth.Authenticate(ctx, result.Tokens.AccessToken)
		require.NoError(t, err)
		require.Equal(t, user.ID, auth.UserID)
		require.Equal(t, result.Session.ID, auth.SessionID)
		require.Equal(t, result.Tokens.RefreshTokenHash, auth.RefreshTokenHash)
		require.True(t, auth.Admin)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.Auth.Authenticate(ctx, "not-a-token")
		require.ErrorIs(t, err, service.ErrInvalidToken)
	})

	t.Run("token expires with the access TTL", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "alice", "open-sesame", false)
		result := env.login(t, "alice", "open-sesame")

		env.Clock.Advance(14 * time.Minute)
		_, err := env.Auth.Authenticate(ctx, result.Tokens.AccessToken)
		require.NoError(t, err)

		env.Clock.Advance(2 * time.Minute)
		_, err = env.Auth.Authenticate(ctx, result.Tokens.AccessToken)
		require.ErrorIs(t, err, service.ErrInvalidToken)
	})

	t.Run("revocation is sticky for the token lifetime", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "alice", "open-sesame", false)
		result := env.login(t, "alice", "open-sesame")

		require.NoError(t, env.Sessions.Logout(ctx, result.Tokens.AccessToken))

		for range 3 {
			_, err := env.Auth.Authenticate(ctx, result.Tokens.AccessToken)
			require.ErrorIs(t, err, service.ErrInvalidToken)
		}
	})

	t.Run("unreachable revocation cache fails closed", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "alice", "open-sesame", false)
		result := env.login(t, "alice", "open-sesame")

		env.Redis.Close()

		_, err := env.Auth.Authenticate(ctx, result.Tokens.AccessToken)
		require.ErrorIs(t, err, cache.ErrUnavailable)
	})
}

func TestLoginCredentialChecks(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown username", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.Sessions.Login(ctx, service.LoginRequest{
			Username: "nobody", Password: "whatever",
		})
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
	})

	t.Run("wrong password", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "alice", "open-sesame", false)

		_, err := env.Sessions.Login(ctx, service.LoginRequest{
			Username: "alice", Password: "open-says-me",
		})
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
	})

	t.Run("account without a password", func(t *testing.T) {
		env := newTestEnv(t)

		// external-identity account, no password hash stored
		now := env.Clock.Now()
		require.NoError(t, env.Store.Users().CreateUser(ctx, domain.User{
			ID:        idx.New().String(),
			Username:  "sso-only",
			Enabled:   true,
			CreatedAt: now,
			UpdatedAt: now,
		}))

		_, err := env.Sessions.Login(ctx, service.LoginRequest{
			Username: "sso-only", Password: "",
		})
		require.ErrorIs(t, err, service.ErrInvalidCredentials)

		_, err = env.Sessions.Login(ctx, service.LoginRequest{
			Username: "sso-only", Password: "anything",
		})
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
	})

	t.Run("disabled account", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.register(t, "alice", "open-sesame", false)
		require.NoError(t, env.Store.Users().SetEnabled(ctx, user.ID, false, env.Clock.Now()))

		_, err := env.Sessions.Login(ctx, service.LoginRequest{
			Username: "alice", Password: "open-sesame",
		})
		require.ErrorIs(t, err, service.ErrUserDisabled)
	})
}

func TestInvalidateAccessTokens(t *testing.T) {
	ctx := context.Background()

	t.Run("covers every session of the user", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.register(t, "alice", "open-sesame", false)
		first := env.login(t, "alice", "open-sesame")
		second := env.login(t, "alice", "open-sesame")

		require.NoError(t, env.Store.WithTx(ctx, func(tx store.Tx) error {
			return env.Auth.InvalidateAccessTokens(ctx, tx, user.ID)
		}))

		_, err := env.Auth.Authenticate(ctx, first.Tokens.AccessToken)
		require.ErrorIs(t, err, service.ErrInvalidToken)
		_, err = env.Auth.Authenticate(ctx, second.Tokens.AccessToken)
		require.ErrorIs(t, err, service.ErrInvalidToken)
	})

	t.Run("other users are untouched", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.register(t, "alice", "open-sesame", false)
		env.register(t, "bob", "open-sesame", false)
		aliceLogin := env.login(t, "alice", "open-sesame")
		bobLogin := env.login(t, "bob", "open-sesame")

		require.NoError(t, env.Store.WithTx(ctx, func(tx store.Tx) error {
			return env.Auth.InvalidateAccessTokens(ctx, tx, alice.ID)
		}))

		_, err := env.Auth.Authenticate(ctx, aliceLogin.Tokens.AccessToken)
		require.ErrorIs(t, err, service.ErrInvalidToken)
		_, err = env.Auth.Authenticate(ctx, bobLogin.Tokens.AccessToken)
		require.NoError(t, err)
	})
}
