package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

func TestResolveToken_PrefersConnectToken(t *testing.T) {
	t.Setenv("CHAMICORE_CONNECT_TOKEN", "connect-token")
	t.Setenv("CHAMICORE_TOKEN", "shared-token")
	t.Setenv("ACCESS_TOKEN", "access-token")

	resolved, err := ResolveToken(TokenSourceOptions{AllowCLIConfigToken: false})
	require.NoError(t, err)
	require.Equal(t, "connect-token", resolved.Token)
	require.Equal(t, TokenSourceConnectEnv, resolved.Source)
}

func TestResolveToken_FallsBackToSharedToken(t *testing.T) {
	t.Setenv("CHAMICORE_CONNECT_TOKEN", "")
	t.Setenv("CHAMICORE_TOKEN", "shared-token")
	t.Setenv("ACCESS_TOKEN", "access-token")

	resolved, err := ResolveToken(TokenSourceOptions{AllowCLIConfigToken: false})
	require.NoError(t, err)
	require.Equal(t, "shared-token", resolved.Token)
	require.Equal(t, TokenSourceSharedEnv, resolved.Source)
}

func TestResolveToken_FallsBackToAccessToken(t *testing.T) {
	t.Setenv("CHAMICORE_CONNECT_TOKEN", "")
	t.Setenv("CHAMICORE_TOKEN", "")
	t.Setenv("ACCESS_TOKEN", "access-token")

	resolved, err := ResolveToken(TokenSourceOptions{AllowCLIConfigToken: false})
	require.NoError(t, err)
	require.Equal(t, "access-token", resolved.Token)
	require.Equal(t, TokenSourceAccessEnv, resolved.Source)
}

func TestResolveToken_UsesCLIConfigWhenAllowed(t *testing.T) {
	t.Setenv("CHAMICORE_CONNECT_TOKEN", "")
	t.Setenv("CHAMICORE_TOKEN", "")
	t.Setenv("ACCESS_TOKEN", "")

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := []byte("auth:\n  token: cli-token\n")
	require.NoError(t, os.WriteFile(configPath, content, 0o600))

	resolved, err := ResolveToken(TokenSourceOptions{
		AllowCLIConfigToken: true,
		CLIConfigPath:       configPath,
	})
	require.NoError(t, err)
	require.Equal(t, "cli-token", resolved.Token)
	require.Equal(t, TokenSourceCLIConfig, resolved.Source)
}

func TestResolveToken_IgnoresCLIConfigWhenNotAllowed(t *testing.T) {
	t.Setenv("CHAMICORE_CONNECT_TOKEN", "")
	t.Setenv("CHAMICORE_TOKEN", "")
	t.Setenv("ACCESS_TOKEN", "")

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := []byte("auth:\n  token: cli-token\n")
	require.NoError(t, os.WriteFile(configPath, content, 0o600))

	resolved, err := ResolveToken(TokenSourceOptions{
		AllowCLIConfigToken: false,
		CLIConfigPath:       configPath,
	})
	require.NoError(t, err)
	require.Equal(t, "", resolved.Token)
}

func TestResolveToken_MissingCLIConfigIsNotAnError(t *testing.T) {
	t.Setenv("CHAMICORE_CONNECT_TOKEN", "")
	t.Setenv("CHAMICORE_TOKEN", "")
	t.Setenv("ACCESS_TOKEN", "")

	resolved, err := ResolveToken(TokenSourceOptions{
		AllowCLIConfigToken: true,
		CLIConfigPath:       filepath.Join(t.TempDir(), "nope.yaml"),
	})
	require.NoError(t, err)
	require.Equal(t, "", resolved.Token)
}

func signedToken(t *testing.T, expiry time.Time) string {
	t.Helper()
	builder := jwt.NewBuilder().Issuer("test")
	if !expiry.IsZero() {
		builder = builder.Expiration(expiry)
	}
	token, err := builder.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, []byte("test-secret")))
	require.NoError(t, err)
	return string(signed)
}

func TestCheckExpiry_ValidToken(t *testing.T) {
	now := time.Now()
	token := signedToken(t, now.Add(time.Hour))

	remaining, err := CheckExpiry(token, now)
	require.NoError(t, err)
	require.InDelta(t, time.Hour, remaining, float64(time.Second))
}

func TestCheckExpiry_ExpiredToken(t *testing.T) {
	now := time.Now()
	token := signedToken(t, now.Add(-time.Minute))

	_, err := CheckExpiry(token, now)
	require.Error(t, err)
}

func TestCheckExpiry_NoExpClaim(t *testing.T) {
	token := signedToken(t, time.Time{})

	remaining, err := CheckExpiry(token, time.Now())
	require.NoError(t, err)
	require.Zero(t, remaining)
}

func TestCheckExpiry_OpaqueTokenPasses(t *testing.T) {
	remaining, err := CheckExpiry("not-a-jwt", time.Now())
	require.NoError(t, err)
	require.Zero(t, remaining)
}
