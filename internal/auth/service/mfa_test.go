package service_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coursearc/authcore/internal/auth/domain"
	"github.com/coursearc/authcore/internal/auth/service"
)

var recoveryCodeShape = regexp.MustCompile(`^[A-Z0-9]{6}(-[A-Z0-9]{6}){3}$`)

func TestMFAInitialize(t *testing.T) {
	ctx := context.Background()

	t.Run("provisions a pending device", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.register(t, "alice", "open-sesame", false)
		login := env.login(t, "alice", "open-sesame")

		setup, err := env.MFA.Initialize(ctx, login.Tokens.AccessToken, "")
		require.NoError(t, err)
		require.NotEmpty(t, setup.Secret)

		devices, err := env.Store.TotpDevices().ListTotpDevicesByUser(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, devices, 1)
		require.False(t, devices[0].Enabled)
	})

	t.Run("repeat initialize resets the same device with a new secret", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.register(t, "alice", "open-sesame", false)
		login := env.login(t, "alice", "open-sesame")

		first, err := env.MFA.Initialize(ctx, login.Tokens.AccessToken, "")
		require.NoError(t, err)
		second, err := env.MFA.Initialize(ctx, login.Tokens.AccessToken, "")
		require.NoError(t, err)

		require.NotEqual(t, first.Secret, second.Secret)

		devices, err := env.Store.TotpDevices().ListTotpDevicesByUser(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, devices, 1)

		// the old secret no longer confirms
		oldCode := env.totpCode(t, first.Secret, env.Clock.Now())
		_, err = env.MFA.Enable(ctx, login.Tokens.AccessToken, "", oldCode)
		require.ErrorIs(t, err, service.ErrInvalidCode)
	})

	t.Run("refused once enabled", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "alice", "open-sesame", false)
		login := env.login(t, "alice", "open-sesame")
		enableMFA(t, env, login)

		_, err := env.MFA.Initialize(ctx, login.Tokens.AccessToken, "")
		require.ErrorIs(t, err, service.ErrMFAAlreadyEnabled)
	})

	t.Run("self-or-admin predicate", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.register(t, "alice", "open-sesame", false)
		env.register(t, "bob", "open-sesame", false)
		env.register(t, "root", "open-sesame", true)
		bobLogin := env.login(t, "bob", "open-sesame")
		rootLogin := env.login(t, "root", "open-sesame")

		_, err := env.MFA.Initialize(ctx, bobLogin.Tokens.AccessToken, alice.ID)
		require.ErrorIs(t, err, service.ErrForbidden)

		_, err = env.MFA.Initialize(ctx, rootLogin.Tokens.AccessToken, alice.ID)
		require.NoError(t, err)

		_, err = env.MFA.Initialize(ctx, rootLogin.Tokens.AccessToken, "no-such-user")
		require.ErrorIs(t, err, service.ErrUserNotFound)
	})
}

// enableMFA walks the full setup flow and returns the secret and the
// plaintext recovery code.
func enableMFA(t *testing.T, env *testEnv, login domain.LoginResult) (string, string) {
	t.Helper()
	ctx := context.Background()

	setup, err := env.MFA.Initialize(ctx, login.Tokens.AccessToken, "")
	require.NoError(t, err)

	code := env.totpCode(t, setup.Secret, env.Clock.Now())
	recoveryCode, err := env.MFA.Enable(ctx, login.Tokens.AccessToken, "", code)
	require.NoError(t, err)

	return setup.Secret, recoveryCode
}

func TestMFAEnable(t *testing.T) {
	ctx := context.Background()

	t.Run("confirms the device and issues one recovery code", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.register(t, "alice", "open-sesame", false)
		login := env.login(t, "alice", "open-sesame")

		_, recoveryCode := enableMFA(t, env, login)
		require.Regexp(t, recoveryCodeShape, recoveryCode)

		devices, err := env.Store.TotpDevices().ListTotpDevicesByUser(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, devices, 1)
		require.True(t, devices[0].Enabled)

		_, err = env.Store.RecoveryCodes().GetRecoveryCodeHash(ctx, user.ID)
		require.NoError(t, err)
	})

	t.Run("wrong code leaves the device pending", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.register(t, "alice", "open-sesame", false)
		login := env.login(t, "alice", "open-sesame")

		_, err := env.MFA.Initialize(ctx, login.Tokens.AccessToken, "")
		require.NoError(t, err)

		_, err = env.MFA.Enable(ctx, login.Tokens.AccessToken, "", "000000")
		require.ErrorIs(t, err, service.ErrInvalidCode)

		devices, err := env.Store.TotpDevices().ListTotpDevicesByUser(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, devices, 1)
		require.False(t, devices[0].Enabled)
	})

	t.Run("stale code outside the skew window", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "alice", "open-sesame", false)
		login := env.login(t, "alice", "open-sesame")

		setup, err := env.MFA.Initialize(ctx, login.Tokens.AccessToken, "")
		require.NoError(t, err)

		code := env.totpCode(t, setup.Secret, env.Clock.Now())
		env.Clock.Advance(2 * time.Minute)

		_, err = env.MFA.Enable(ctx, login.Tokens.AccessToken, "", code)
		require.ErrorIs(t, err, service.ErrInvalidCode)
	})

	t.Run("adjacent time step is accepted", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "alice", "open-sesame", false)
		login := env.login(t, "alice", "open-sesame")

		setup, err := env.MFA.Initialize(ctx, login.Tokens.AccessToken, "")
		require.NoError(t, err)

		code := env.totpCode(t, setup.Secret, env.Clock.Now())
		env.Clock.Advance(30 * time.Second)

		_, err = env.MFA.Enable(ctx, login.Tokens.AccessToken, "", code)
		require.NoError(t, err)
	})

	t.Run("without initialize", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "alice", "open-sesame", false)
		login := env.login(t, "alice", "open-sesame")

		_, err := env.MFA.Enable(ctx, login.Tokens.AccessToken, "", "000000")
		require.ErrorIs(t, err, service.ErrMFANotInitialized)
	})

	t.Run("already enabled", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "alice", "open-sesame", false)
		login := env.login(t, "alice", "open-sesame")
		secret, _ := enableMFA(t, env, login)

		code := env.totpCode(t, secret, env.Clock.Now())
		_, err := env.MFA.Enable(ctx, login.Tokens.AccessToken, "", code)
		require.ErrorIs(t, err, service.ErrMFAAlreadyEnabled)
	})
}

func TestMFALogin(t *testing.T) {
	ctx := context.Background()

	t.Run("enabled MFA demands a second factor", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "alice", "open-sesame", false)
		login := env.login(t, "alice", "open-sesame")
		secret, _ := enableMFA(t, env, login)

		_, err := env.Sessions.Login(ctx, service.LoginRequest{
			Username: "alice", Password: "open-sesame",
		})
		require.ErrorIs(t, err, service.ErrMFARequired)

		_, err = env.Sessions.Login(ctx, service.LoginRequest{
			Username: "alice", Password: "open-sesame",
			MFA: domain.MFAAuthentication{TotpCode: "000000"},
		})
		require.ErrorIs(t, err, service.ErrInvalidCode)

		code := env.totpCode(t, secret, env.Clock.Now())
		_, err = env.Sessions.Login(ctx, service.LoginRequest{
			Username: "alice", Password: "open-sesame",
			MFA: domain.MFAAuthentication{TotpCode: code},
		})
		require.NoError(t, err)
	})

	t.Run("recovery code works exactly once", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "alice", "open-sesame", false)
		login := env.login(t, "alice", "open-sesame")
		_, recoveryCode := enableMFA(t, env, login)

		_, err := env.Sessions.Login(ctx, service.LoginRequest{
			Username: "alice", Password: "open-sesame",
			MFA: domain.MFAAuthentication{RecoveryCode: recoveryCode},
		})
		require.NoError(t, err)

		_, err = env.Sessions.Login(ctx, service.LoginRequest{
			Username: "alice", Password: "open-sesame",
			MFA: domain.MFAAuthentication{RecoveryCode: recoveryCode},
		})
		require.ErrorIs(t, err, service.ErrInvalidCode)
	})

	t.Run("recovery code input is normalized", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "alice", "open-sesame", false)
		login := env.login(t, "alice", "open-sesame")
		_, recoveryCode := enableMFA(t, env, login)

		_, err := env.Sessions.Login(ctx, service.LoginRequest{
			Username: "alice", Password: "open-sesame",
			MFA: domain.MFAAuthentication{RecoveryCode: " " + recoveryCode + " "},
		})
		require.NoError(t, err)
	})

	t.Run("wrong password never consults MFA", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "alice", "open-sesame", false)
		login := env.login(t, "alice", "open-sesame")
		secret, _ := enableMFA(t, env, login)

		code := env.totpCode(t, secret, env.Clock.Now())
		_, err := env.Sessions.Login(ctx, service.LoginRequest{
			Username: "alice", Password: "wrong",
			MFA: domain.MFAAuthentication{TotpCode: code},
		})
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
	})
}

func TestMFADisable(t *testing.T) {
	ctx := context.Background()

	t.Run("removes device and recovery code", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.register(t, "alice", "open-sesame", false)
		login := env.login(t, "alice", "open-sesame")
		enableMFA(t, env, login)

		require.NoError(t, env.MFA.Disable(ctx, login.Tokens.AccessToken, ""))

		devices, err := env.Store.TotpDevices().ListTotpDevicesByUser(ctx, user.ID)
		require.NoError(t, err)
		require.Empty(t, devices)

		// password alone is enough again
		_, err = env.Sessions.Login(ctx, service.LoginRequest{
			Username: "alice", Password: "open-sesame",
		})
		require.NoError(t, err)
	})

	t.Run("not enabled", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "alice", "open-sesame", false)
		login := env.login(t, "alice", "open-sesame")

		err := env.MFA.Disable(ctx, login.Tokens.AccessToken, "")
		require.ErrorIs(t, err, service.ErrMFANotEnabled)
	})

	t.Run("pending device alone does not count as enabled", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "alice", "open-sesame", false)
		login := env.login(t, "alice", "open-sesame")

		_, err := env.MFA.Initialize(ctx, login.Tokens.AccessToken, "")
		require.NoError(t, err)

		err = env.MFA.Disable(ctx, login.Tokens.AccessToken, "")
		require.ErrorIs(t, err, service.ErrMFANotEnabled)
	})

	t.Run("admin can disable for another user", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.register(t, "alice", "open-sesame", false)
		env.register(t, "root", "open-sesame", true)
		aliceLogin := env.login(t, "alice", "open-sesame")
		rootLogin := env.login(t, "root", "open-sesame")
		enableMFA(t, env, aliceLogin)

		require.NoError(t, env.MFA.Disable(ctx, rootLogin.Tokens.AccessToken, alice.ID))
	})
}
