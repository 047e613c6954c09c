// Package auth resolves the access token used for OCHAMI API calls.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"gopkg.in/yaml.v3"
)

// TokenSource identifies where a token was resolved from.
type TokenSource string

const (
	// TokenSourceConnectEnv is CHAMICORE_CONNECT_TOKEN.
	TokenSourceConnectEnv TokenSource = "chamicore_connect_token"
	// TokenSourceSharedEnv is CHAMICORE_TOKEN.
	TokenSourceSharedEnv TokenSource = "chamicore_token"
	// TokenSourceAccessEnv is ACCESS_TOKEN, kept for site tooling that
	// exports tokens under that name.
	TokenSourceAccessEnv TokenSource = "access_token"
	// TokenSourceCLIConfig is ~/.chamicore/config.yaml auth.token.
	TokenSourceCLIConfig TokenSource = "cli_config"
)

// TokenResolution contains the resolved token and source.
type TokenResolution struct {
	Token  string
	Source TokenSource
}

// TokenSourceOptions controls token resolution.
type TokenSourceOptions struct {
	AllowCLIConfigToken bool
	CLIConfigPath       string
}

type cliConfigFile struct {
	Auth struct {
		Token string `yaml:"token"`
	} `yaml:"auth"`
}

// ResolveToken resolves the token using deterministic precedence:
// 1) CHAMICORE_CONNECT_TOKEN
// 2) CHAMICORE_TOKEN
// 3) ACCESS_TOKEN
// 4) CLI config auth.token (only when AllowCLIConfigToken=true)
func ResolveToken(opts TokenSourceOptions) (TokenResolution, error) {
	if token := strings.TrimSpace(os.Getenv("CHAMICORE_CONNECT_TOKEN")); token != "" {
		return TokenResolution{Token: token, Source: TokenSourceConnectEnv}, nil
	}

	if token := strings.TrimSpace(os.Getenv("CHAMICORE_TOKEN")); token != "" {
		return TokenResolution{Token: token, Source: TokenSourceSharedEnv}, nil
	}

	if token := strings.TrimSpace(os.Getenv("ACCESS_TOKEN")); token != "" {
		return TokenResolution{Token: token, Source: TokenSourceAccessEnv}, nil
	}

	if !opts.AllowCLIConfigToken {
		return TokenResolution{}, nil
	}

	configPath := expandPath(defaultIfEmpty(strings.TrimSpace(opts.CLIConfigPath), "~/.chamicore/config.yaml"))
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		return TokenResolution{}, nil
	default:
		return TokenResolution{}, fmt.Errorf("reading CLI config token source: %w", err)
	}

	var cfg cliConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return TokenResolution{}, fmt.Errorf("decoding CLI config token source: %w", err)
	}

	token := strings.TrimSpace(cfg.Auth.Token)
	if token == "" {
		return TokenResolution{}, nil
	}

	return TokenResolution{Token: token, Source: TokenSourceCLIConfig}, nil
}

// CheckExpiry inspects a JWT's exp claim without verifying its signature and
// reports how long it remains valid. Opaque (non-JWT) tokens pass with a zero
// duration; resolution never depends on having the signing keys locally.
func CheckExpiry(token string, now time.Time) (time.Duration, error) {
	parsed, err := jwt.ParseString(token, jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		// not a JWT; nothing to check
		return 0, nil
	}

	expiry := parsed.Expiration()
	if expiry.IsZero() {
		return 0, nil
	}
	remaining := expiry.Sub(now)
	if remaining <= 0 {
		return 0, fmt.Errorf("token expired %s ago", (-remaining).Round(time.Second))
	}
	return remaining, nil
}

func defaultIfEmpty(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/"))
	}
	return filepath.Clean(path)
}
