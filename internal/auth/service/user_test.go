package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coursearc/authcore/internal/auth/service"
	"github.com/coursearc/authcore/internal/auth/store"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an enabled account", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.register(t, "alice", "open-sesame", false)

		require.True(t, user.Enabled)
		require.False(t, user.Admin)
		require.NotEmpty(t, user.PasswordHash)
		require.NotEqual(t, "open-sesame", user.PasswordHash)

		env.login(t, "alice", "open-sesame")
	})

	t.Run("duplicate username", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "alice", "open-sesame", false)

		_, err := env.Users.Register(ctx, "alice", "something-else", false)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("requires the old password and rotates credentials", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "alice", "open-sesame", false)
		login := env.login(t, "alice", "open-sesame")

		err := env.Users.ChangePassword(
			ctx, login.Tokens.AccessToken, "", "wrong-old", "new-password")
		require.ErrorIs(t, err, service.ErrInvalidCredentials)

		err = env.Users.ChangePassword(
			ctx, login.Tokens.AccessToken, "", "open-sesame", "new-password")
		require.NoError(t, err)

		// outstanding access tokens die with the old credential
		_, err = env.Auth.Authenticate(ctx, login.Tokens.AccessToken)
		require.ErrorIs(t, err, service.ErrInvalidToken)

		_, err = env.Sessions.Login(ctx, service.LoginRequest{
			Username: "alice", Password: "open-sesame",
		})
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
		env.login(t, "alice", "new-password")
	})

	t.Run("admin skips the old password", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.register(t, "alice", "open-sesame", false)
		env.register(t, "root", "open-sesame", true)
		rootLogin := env.login(t, "root", "open-sesame")

		err := env.Users.ChangePassword(
			ctx, rootLogin.Tokens.AccessToken, alice.ID, "", "assigned-password")
		require.NoError(t, err)

		env.login(t, "alice", "assigned-password")
	})

	t.Run("non-admin cannot change another user's password", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.register(t, "alice", "open-sesame", false)
		env.register(t, "bob", "open-sesame", false)
		bobLogin := env.login(t, "bob", "open-sesame")

		err := env.Users.ChangePassword(
			ctx, bobLogin.Tokens.AccessToken, alice.ID, "open-sesame", "hijacked")
		require.ErrorIs(t, err, service.ErrForbidden)
	})
}

func TestSetEnabled(t *testing.T) {
	ctx := context.Background()

	t.Run("admin only", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.register(t, "alice", "open-sesame", false)
		aliceLogin := env.login(t, "alice", "open-sesame")

		err := env.Users.SetEnabled(ctx, aliceLogin.Tokens.AccessToken, alice.ID, false)
		require.ErrorIs(t, err, service.ErrForbidden)
	})

	t.Run("disabling locks the account out immediately", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.register(t, "alice", "open-sesame", false)
		env.register(t, "root", "open-sesame", true)
		aliceLogin := env.login(t, "alice", "open-sesame")
		rootLogin := env.login(t, "root", "open-sesame")

		err := env.Users.SetEnabled(ctx, rootLogin.Tokens.AccessToken, alice.ID, false)
		require.NoError(t, err)

		_, err = env.Auth.Authenticate(ctx, aliceLogin.Tokens.AccessToken)
		require.ErrorIs(t, err, service.ErrInvalidToken)

		_, err = env.Sessions.Login(ctx, service.LoginRequest{
			Username: "alice", Password: "open-sesame",
		})
		require.ErrorIs(t, err, service.ErrUserDisabled)

		// re-enabling restores login
		err = env.Users.SetEnabled(ctx, rootLogin.Tokens.AccessToken, alice.ID, true)
		require.NoError(t, err)
		env.login(t, "alice", "open-sesame")
	})

	t.Run("unknown user", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "root", "open-sesame", true)
		rootLogin := env.login(t, "root", "open-sesame")

		err := env.Users.SetEnabled(ctx, rootLogin.Tokens.AccessToken, "no-such-user", false)
		require.ErrorIs(t, err, service.ErrUserNotFound)
	})
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()

	t.Run("self deletion removes everything", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.register(t, "alice", "open-sesame", false)
		login := env.login(t, "alice", "open-sesame")

		require.NoError(t, env.Users.DeleteUser(ctx, login.Tokens.AccessToken, ""))

		_, err := env.Store.Users().GetUserByID(ctx, user.ID)
		require.ErrorIs(t, err, store.ErrNotFound)

		sessions, err := env.Store.Sessions().ListSessionsByUser(ctx, user.ID)
		require.NoError(t, err)
		require.Empty(t, sessions)

		_, err = env.Auth.Authenticate(ctx, login.Tokens.AccessToken)
		require.ErrorIs(t, err, service.ErrInvalidToken)
	})

	t.Run("admin deletes another user", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.register(t, "alice", "open-sesame", false)
		env.register(t, "root", "open-sesame", true)
		rootLogin := env.login(t, "root", "open-sesame")

		require.NoError(t, env.Users.DeleteUser(ctx, rootLogin.Tokens.AccessToken, alice.ID))

		_, err := env.Store.Users().GetUserByID(ctx, alice.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("non-admin cannot delete another user", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.register(t, "alice", "open-sesame", false)
		env.register(t, "bob", "open-sesame", false)
		bobLogin := env.login(t, "bob", "open-sesame")

		err := env.Users.DeleteUser(ctx, bobLogin.Tokens.AccessToken, alice.ID)
		require.ErrorIs(t, err, service.ErrForbidden)
	})
}
