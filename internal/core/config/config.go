package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"github.com/neilberkman/acctabs/internal/core/contentview"
	"github.com/neilberkman/acctabs/internal/core/credential"
	"github.com/neilberkman/acctabs/internal/core/registry"
	"github.com/neilberkman/acctabs/internal/core/session"
	"github.com/neilberkman/acctabs/internal/core/storage"
)

// EnvPrefix prefixes every environment override, e.g. ACCTABS_DATA_DIR
const EnvPrefix = "ACCTABS"

const (
	EngineBrowser = "browser"
	EngineNone    = "none"
)

// DBFileName keeps the name the store has always had
const DBFileName = "accounts.db"

type Config struct {
	DataDir       string        `toml:"data_dir" envconfig:"DATA_DIR"`
	MaxSessions   int           `toml:"max_sessions" envconfig:"MAX_SESSIONS"`
	TargetURL     string        `toml:"target_url" envconfig:"TARGET_URL"`
	UserAgent     string        `toml:"user_agent" envconfig:"USER_AGENT"`
	Engine        string        `toml:"engine" envconfig:"ENGINE"`
	Browser       string        `toml:"browser" envconfig:"BROWSER"`
	BrowserFlags  []string      `toml:"browser_flags" envconfig:"BROWSER_FLAGS"`
	DigestScheme  string        `toml:"digest_scheme" envconfig:"DIGEST_SCHEME"`
	LabelTemplate string        `toml:"label_template" envconfig:"LABEL_TEMPLATE"`
	ReloadDelay   time.Duration `toml:"reload_delay" envconfig:"RELOAD_DELAY"`

	TeardownAttempts int           `toml:"teardown_attempts" envconfig:"TEARDOWN_ATTEMPTS"`
	TeardownSpacing  time.Duration `toml:"teardown_spacing" envconfig:"TEARDOWN_SPACING"`

	LogLevel       string `toml:"log_level" envconfig:"LOG_LEVEL"`
	LogDevelopment bool   `toml:"log_development" envconfig:"LOG_DEVELOPMENT"`
	MetricsAddr    string `toml:"metrics_addr" envconfig:"METRICS_ADDR"`
}

// Default returns the built-in configuration
func Default() *Config {
	dataDir := ".acctabs"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".acctabs")
	}
	return &Config{
		DataDir:          dataDir,
		MaxSessions:      registry.DefaultMaxSessions,
		TargetURL:        registry.DefaultTargetURL,
		UserAgent:        registry.DefaultUserAgent,
		Engine:           EngineBrowser,
		BrowserFlags:     append([]string(nil), contentview.DefaultFlags...),
		DigestScheme:     credential.SchemeSHA256,
		LabelTemplate:    session.DefaultLabelTemplate,
		ReloadDelay:      registry.DefaultReloadDelay,
		TeardownAttempts: storage.DefaultPolicy.Attempts,
		TeardownSpacing:  storage.DefaultPolicy.Spacing,
		LogLevel:         "info",
	}
}

// Dir returns ~/.config/acctabs
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "acctabs"), nil
}

// Load reads defaults, then the TOML file at path (or ~/.config/acctabs/config.toml
// when empty), then ACCTABS_* environment variables. A missing file is fine.
func Load(path string) (*Config, error) {
	cfg := Default()

	configDir, dirErr := Dir()
	if path == "" && dirErr == nil {
		path = filepath.Join(configDir, "config.toml")
	}

	// Load TOML config if it exists
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	// A standalone template file wins over the TOML key
	if dirErr == nil {
		if data, err := os.ReadFile(filepath.Join(configDir, "label.mustache")); err == nil {
			cfg.LabelTemplate = strings.TrimRight(string(data), "\n")
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg.DataDir = expandHome(cfg.DataDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// Validate rejects settings the registry cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir must be set"))
	}
	if c.MaxSessions <= 0 {
		errs = append(errs, fmt.Errorf("max_sessions must be positive, got %d", c.MaxSessions))
	}
	if c.TargetURL == "" {
		errs = append(errs, errors.New("target_url must be set"))
	}
	if c.ReloadDelay <= 0 {
		errs = append(errs, fmt.Errorf("reload_delay must be positive, got %s", c.ReloadDelay))
	}
	if c.TeardownAttempts <= 0 {
		errs = append(errs, fmt.Errorf("teardown_attempts must be positive, got %d", c.TeardownAttempts))
	}
	if c.TeardownSpacing <= 0 {
		errs = append(errs, fmt.Errorf("teardown_spacing must be positive, got %s", c.TeardownSpacing))
	}
	switch c.Engine {
	case EngineBrowser, EngineNone:
	default:
		errs = append(errs, fmt.Errorf("engine must be %q or %q, got %q", EngineBrowser, EngineNone, c.Engine))
	}
	if _, err := credential.New(c.DigestScheme); err != nil {
		errs = append(errs, fmt.Errorf("digest_scheme: %w", err))
	}
	return errors.Join(errs...)
}

// DBPath is the account store inside the data directory
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, DBFileName)
}

// LogPath is where the interactive UI logs
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "acctabs.log")
}

// RegistryConfig converts to the registry's policy
func (c *Config) RegistryConfig() registry.Config {
	return registry.Config{
		MaxSessions: c.MaxSessions,
		TargetURL:   c.TargetURL,
		UserAgent:   c.UserAgent,
		ReloadDelay: c.ReloadDelay,
		Teardown:    c.TeardownPolicy(),
	}
}

// TeardownPolicy is the retry policy for storage deletion
func (c *Config) TeardownPolicy() storage.Policy {
	return storage.Policy{Attempts: c.TeardownAttempts, Spacing: c.TeardownSpacing}
}
