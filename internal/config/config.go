package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries all runtime settings. Every field is sourced from a
// LEKHA_-prefixed environment variable; zero values fall back to the
// defaults below.
type Config struct {
	HTTPAddr string
	GRPCAddr string // empty disables the gRPC listener

	PostgresDSN string

	AuthSecret string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	CookieSecure bool

	BlobDir string

	// Bootstrap admin created at startup when the username does not exist.
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

const (
	defaultHTTPAddr   = ":8080"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultBlobDir    = "data/models"
	defaultIssuer     = "lekha"
)

// Load reads configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:      envOr("LEKHA_HTTP_ADDR", defaultHTTPAddr),
		GRPCAddr:      strings.TrimSpace(os.Getenv("LEKHA_GRPC_ADDR")),
		PostgresDSN:   strings.TrimSpace(os.Getenv("LEKHA_PG_DSN")),
		AuthSecret:    strings.TrimSpace(os.Getenv("LEKHA_AUTH_SECRET")),
		Issuer:        envOr("LEKHA_ISSUER", defaultIssuer),
		BlobDir:       envOr("LEKHA_BLOB_DIR", defaultBlobDir),
		AdminUsername: strings.TrimSpace(os.Getenv("LEKHA_ADMIN_USERNAME")),
		AdminEmail:    strings.TrimSpace(os.Getenv("LEKHA_ADMIN_EMAIL")),
		AdminPassword: os.Getenv("LEKHA_ADMIN_PASSWORD"),
	}

	var err error
	if cfg.AccessTTL, err = envDuration("LEKHA_ACCESS_TTL", defaultAccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = envDuration("LEKHA_REFRESH_TTL", defaultRefreshTTL); err != nil {
		return Config{}, err
	}
	if cfg.CookieSecure, err = envBool("LEKHA_COOKIE_SECURE", false); err != nil {
		return Config{}, err
	}

	if cfg.AuthSecret == "" {
		return Config{}, fmt.Errorf("LEKHA_AUTH_SECRET is required")
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return Config{}, fmt.Errorf("access TTL (%s) must be shorter than refresh TTL (%s)", cfg.AccessTTL, cfg.RefreshTTL)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func envBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
