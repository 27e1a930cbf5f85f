// ABOUTME: Server configuration loaded from PIPECONF_* environment variables.
// ABOUTME: Enforces that remote access is only possible with an auth token configured.
package web

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// Configuration errors returned by ConfigFromEnv.
var (
	ErrRemoteWithoutToken = errors.New(
		"PIPECONF_ALLOW_REMOTE is true but PIPECONF_AUTH_TOKEN is not set; refusing to start without authentication",
	)
	ErrNonLoopbackBind = errors.New(
		"PIPECONF_BIND is a non-loopback address but PIPECONF_ALLOW_REMOTE is not true; set PIPECONF_ALLOW_REMOTE=true and PIPECONF_AUTH_TOKEN to allow remote access",
	)
)

// DefaultBind is the listen address used when PIPECONF_BIND is unset.
const DefaultBind = "127.0.0.1:8153"

// Config holds server configuration loaded from environment variables.
type Config struct {
	Home        string // Data directory (PIPECONF_HOME, default supplied by caller)
	Bind        string // Listen address (PIPECONF_BIND, default 127.0.0.1:8153)
	AllowRemote bool   // Allow non-loopback binds (PIPECONF_ALLOW_REMOTE)
	AuthToken   string // Bearer token (PIPECONF_AUTH_TOKEN, optional)
	DBPath      string // SQLite database (PIPECONF_DB, default <home>/pipeconf.db)
	SeedPath    string // Seed file imported at startup (PIPECONF_SEED, optional)
	Secret      string // Key material for sealing secure variables (PIPECONF_SECRET, optional)
}

// ConfigFromEnv loads configuration from PIPECONF_* environment variables.
// defaultHome is used when PIPECONF_HOME is unset.
func ConfigFromEnv(defaultHome string) (*Config, error) {
	home := envOrDefault("PIPECONF_HOME", defaultHome)
	if home == "" {
		return nil, errors.New("PIPECONF_HOME is not set and no default data directory is available")
	}
	bind := envOrDefault("PIPECONF_BIND", DefaultBind)

	// Accept the common truthy spellings
	allowRemote := false
	if v := os.Getenv("PIPECONF_ALLOW_REMOTE"); v == "true" || v == "1" || v == "yes" {
		allowRemote = true
	}
	authToken := os.Getenv("PIPECONF_AUTH_TOKEN")

	// Security: remote access requires auth token
	if allowRemote && authToken == "" {
		return nil, ErrRemoteWithoutToken
	}
	// Security: refuse non-loopback binds unless explicitly opting into remote access
	if !allowRemote {
		if err := checkLoopback(bind); err != nil {
			return nil, err
		}
	}

	return &Config{
		Home:        home,
		Bind:        bind,
		AllowRemote: allowRemote,
		AuthToken:   authToken,
		DBPath:      envOrDefault("PIPECONF_DB", filepath.Join(home, "pipeconf.db")),
		SeedPath:    os.Getenv("PIPECONF_SEED"),
		Secret:      os.Getenv("PIPECONF_SECRET"),
	}, nil
}

// checkLoopback accepts 127.0.0.0/8, ::1, and "localhost". An empty host
// listens on all interfaces and is rejected.
func checkLoopback(bind string) error {
	host, _, err := net.SplitHostPort(bind)
	if err != nil {
		return fmt.Errorf("invalid PIPECONF_BIND %q: %w", bind, err)
	}
	ip := net.ParseIP(host)
	switch {
	case host == "localhost":
		// Safe: conventional loopback hostname
		return nil
	case ip != nil && ip.IsLoopback():
		// Safe: 127.x.x.x or ::1
		return nil
	default:
		// Anything else, including 0.0.0.0 and named hosts
		return fmt.Errorf("%w: PIPECONF_BIND=%s", ErrNonLoopbackBind, bind)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
