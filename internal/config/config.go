// Package config loads the application configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hamrah-app/hamrah/pkg/guard"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "hamrah.json"

	// DefaultListen is the default serve address.
	DefaultListen = "localhost:3000"

	// DefaultIdentityURL is the default identity service base URL.
	DefaultIdentityURL = "http://localhost:8000/api"

	// DefaultSnapshotTTL is the default snapshot lifetime.
	DefaultSnapshotTTL = 24 * time.Hour
)

// Snapshot backends.
const (
	SnapshotMemory = "memory"
	SnapshotRedis  = "redis"
)

// Config is the complete hamrah.json configuration.
type Config struct {
	// Listen is the address the frontend serves on.
	Listen string `json:"listen,omitempty"`

	// IdentityURL is the base URL of the identity service API.
	IdentityURL string `json:"identity_url,omitempty"`

	// Guard configures the route guard path sets and targets.
	Guard GuardConfig `json:"guard,omitempty"`

	// Snapshots configures session snapshot persistence.
	Snapshots SnapshotConfig `json:"snapshots,omitempty"`

	// Metrics enables the Prometheus endpoint at /metrics.
	Metrics bool `json:"metrics,omitempty"`
}

// GuardConfig mirrors guard.Rules in the configuration file.
type GuardConfig struct {
	AuthPages      []string `json:"auth_pages,omitempty"`
	ProtectedPages []string `json:"protected_pages,omitempty"`
	AdminPages     []string `json:"admin_pages,omitempty"`
	LoginPath      string   `json:"login_path,omitempty"`
	HomePath       string   `json:"home_path,omitempty"`
	DashboardPath  string   `json:"dashboard_path,omitempty"`
	AuthCookie     string   `json:"auth_cookie,omitempty"`
}

// SnapshotConfig selects and tunes the snapshot backend.
type SnapshotConfig struct {
	// Backend is "memory" or "redis".
	Backend string `json:"backend,omitempty"`

	// RedisAddr is the Redis address, required for the redis backend.
	RedisAddr string `json:"redis_addr,omitempty"`

	// TTLMinutes is the snapshot lifetime in minutes.
	TTLMinutes int `json:"ttl_minutes,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	rules := guard.DefaultRules()
	return &Config{
		Listen:      DefaultListen,
		IdentityURL: DefaultIdentityURL,
		Guard: GuardConfig{
			AuthPages:      rules.AuthPages,
			ProtectedPages: rules.ProtectedPages,
			AdminPages:     rules.AdminPages,
			LoginPath:      rules.LoginPath,
			HomePath:       rules.HomePath,
			DashboardPath:  rules.DashboardPath,
			AuthCookie:     rules.AuthCookie,
		},
		Snapshots: SnapshotConfig{
			Backend:    SnapshotMemory,
			TTLMinutes: int(DefaultSnapshotTTL / time.Minute),
		},
		Metrics: true,
	}
}

// Load reads the configuration from path. A missing file yields the
// defaults; a present but invalid file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks internal consistency.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("config: listen address is empty")
	}
	if !strings.HasPrefix(c.IdentityURL, "http://") && !strings.HasPrefix(c.IdentityURL, "https://") {
		return fmt.Errorf("config: identity_url %q is not an http(s) URL", c.IdentityURL)
	}
	if c.Guard.AuthCookie == "" {
		return errors.New("config: guard.auth_cookie is empty")
	}
	for _, set := range [][]string{c.Guard.AuthPages, c.Guard.ProtectedPages, c.Guard.AdminPages} {
		for _, p := range set {
			if !strings.HasPrefix(p, "/") {
				return fmt.Errorf("config: guard path %q must start with /", p)
			}
		}
	}
	switch c.Snapshots.Backend {
	case SnapshotMemory:
	case SnapshotRedis:
		if c.Snapshots.RedisAddr == "" {
			return errors.New("config: snapshots.redis_addr required for redis backend")
		}
	default:
		return fmt.Errorf("config: unknown snapshot backend %q", c.Snapshots.Backend)
	}
	if c.Snapshots.TTLMinutes <= 0 {
		return errors.New("config: snapshots.ttl_minutes must be positive")
	}
	return nil
}

// GuardRules converts the file representation to guard.Rules.
func (c *Config) GuardRules() guard.Rules {
	return guard.Rules{
		AuthPages:      c.Guard.AuthPages,
		ProtectedPages: c.Guard.ProtectedPages,
		AdminPages:     c.Guard.AdminPages,
		LoginPath:      c.Guard.LoginPath,
		HomePath:       c.Guard.HomePath,
		DashboardPath:  c.Guard.DashboardPath,
		AuthCookie:     c.Guard.AuthCookie,
	}
}

// SnapshotTTL returns the configured snapshot lifetime.
func (c *Config) SnapshotTTL() time.Duration {
	return time.Duration(c.Snapshots.TTLMinutes) * time.Minute
}
