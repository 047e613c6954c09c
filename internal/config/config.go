// Package config loads chamicore-connect configuration from environment
// variables. CLI flags may override individual fields afterwards.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"git.cscs.ch/openchami/chamicore-connect/pkg/ochami"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultBulkMaxNodes = 20
	defaultMaxInFlight  = 10
)

// Config holds runtime configuration values.
type Config struct {
	BaseURL  string
	LogLevel string

	Timeout      time.Duration
	BulkMaxNodes int
	MaxInFlight  int

	// ProxyURL routes API traffic through an http, https or socks5 proxy.
	// The bare SOCKS5 env var is honored for compatibility with site
	// tooling that exports it without a scheme.
	ProxyURL string

	// RootCAPath points at a PEM bundle pinning the API gateway
	// certificate.
	RootCAPath string
	Insecure   bool

	AllowCLIConfigToken bool
	CLIConfigPath       string
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	cfg := Config{
		BaseURL:             strings.TrimSpace(envOrDefault("CHAMICORE_CONNECT_BASE_URL", "")),
		LogLevel:            strings.ToLower(strings.TrimSpace(envOrDefault("CHAMICORE_CONNECT_LOG_LEVEL", "info"))),
		Timeout:             envPositiveDuration("CHAMICORE_CONNECT_TIMEOUT", defaultTimeout),
		BulkMaxNodes:        envPositiveInt("CHAMICORE_CONNECT_BULK_MAX_NODES", defaultBulkMaxNodes),
		MaxInFlight:         envPositiveInt("CHAMICORE_CONNECT_MAX_IN_FLIGHT", defaultMaxInFlight),
		ProxyURL:            strings.TrimSpace(envOrDefault("CHAMICORE_CONNECT_PROXY", "")),
		RootCAPath:          strings.TrimSpace(envOrDefault("CHAMICORE_CONNECT_ROOT_CA", "")),
		Insecure:            envBool("CHAMICORE_CONNECT_INSECURE", false),
		AllowCLIConfigToken: envBool("CHAMICORE_CONNECT_ALLOW_CLI_CONFIG_TOKEN", true),
		CLIConfigPath:       strings.TrimSpace(envOrDefault("CHAMICORE_CONNECT_CLI_CONFIG", "")),
	}

	if cfg.ProxyURL == "" {
		if socks := strings.TrimSpace(os.Getenv("SOCKS5")); socks != "" {
			cfg.ProxyURL = normalizeSocksURL(socks)
		}
	}
	if cfg.ProxyURL != "" {
		if _, err := url.Parse(cfg.ProxyURL); err != nil {
			return Config{}, fmt.Errorf("invalid proxy URL %q: %w", cfg.ProxyURL, err)
		}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// BackendConfig builds the OCHAMI backend configuration, reading the pinned
// root CA bundle from disk when one is configured.
func (c Config) BackendConfig(token string) (ochami.Config, error) {
	var rootCAs []byte
	if c.RootCAPath != "" {
		data, err := os.ReadFile(c.RootCAPath)
		if err != nil {
			return ochami.Config{}, fmt.Errorf("reading root CA bundle: %w", err)
		}
		rootCAs = data
	}

	return ochami.Config{
		BaseURL:            c.BaseURL,
		Token:              token,
		Timeout:            c.Timeout,
		RootCAs:            rootCAs,
		InsecureSkipVerify: c.Insecure,
		ProxyURL:           c.ProxyURL,
		BulkMaxNodes:       c.BulkMaxNodes,
		MaxInFlight:        c.MaxInFlight,
	}, nil
}

func normalizeSocksURL(value string) string {
	if strings.Contains(value, "://") {
		return value
	}
	return "socks5://" + value
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		switch strings.ToLower(v) {
		case "yes", "on":
			return true
		case "no", "off":
			return false
		default:
			return defaultVal
		}
	}
	return b
}

func envPositiveInt(key string, defaultVal int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return defaultVal
	}
	return parsed
}

func envPositiveDuration(key string, defaultVal time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		return defaultVal
	}
	return parsed
}
