// Package config loads service configuration from TOML files, an optional
// .env file, and INVOICE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/einstalek/invoice-ai/pkg/database"
	"github.com/einstalek/invoice-ai/pkg/events"
	"github.com/einstalek/invoice-ai/pkg/identity"
	"github.com/einstalek/invoice-ai/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"
	DotEnvFile           = ".env"

	EnvInvoiceEnv             = "INVOICE_ENV"
	EnvInvoiceShutdownTimeout = "INVOICE_SHUTDOWN_TIMEOUT"
	EnvInvoiceVersion         = "INVOICE_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "INVOICE_DB_HOST",
	Port:            "INVOICE_DB_PORT",
	Name:            "INVOICE_DB_NAME",
	User:            "INVOICE_DB_USER",
	Password:        "INVOICE_DB_PASSWORD",
	SSLMode:         "INVOICE_DB_SSL_MODE",
	MaxOpenConns:    "INVOICE_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "INVOICE_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "INVOICE_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "INVOICE_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "INVOICE_STORAGE_CONTAINER_NAME",
	ConnectionString: "INVOICE_STORAGE_CONNECTION_STRING",
	ServiceURL:       "INVOICE_STORAGE_SERVICE_URL",
}

var authEnv = &identity.Env{
	Enabled:  "INVOICE_AUTH_ENABLED",
	Issuer:   "INVOICE_AUTH_ISSUER",
	ClientID: "INVOICE_AUTH_CLIENT_ID",
	JWKSURL:  "INVOICE_AUTH_JWKS_URL",
}

var eventsEnv = &events.Env{
	URL:            "INVOICE_EVENTS_URL",
	SubjectPrefix:  "INVOICE_EVENTS_SUBJECT_PREFIX",
	ConnectTimeout: "INVOICE_EVENTS_CONNECT_TIMEOUT",
}

// Config is the root configuration for the invoice approval service.
type Config struct {
	Server          ServerConfig    `toml:"server"`
	Database        database.Config `toml:"database"`
	Storage         storage.Config  `toml:"storage"`
	API             APIConfig       `toml:"api"`
	Auth            identity.Config `toml:"auth"`
	Events          events.Config   `toml:"events"`
	Ledger          LedgerConfig    `toml:"ledger"`
	Workflow        WorkflowConfig  `toml:"workflow"`
	Logging         LoggingConfig   `toml:"logging"`
	ShutdownTimeout string          `toml:"shutdown_timeout"`
	Version         string          `toml:"version"`
}

// Env returns the INVOICE_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvInvoiceEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads .env (if present), the base config (if present), applies any
// environment overlay, and finalizes all values.
func Load() (*Config, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", DotEnvFile, err)
	}

	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Auth.Merge(&overlay.Auth)
	c.Events.Merge(&overlay.Events)
	c.Ledger.Merge(&overlay.Ledger)
	c.Workflow.Merge(&overlay.Workflow)
	c.Logging.Merge(&overlay.Logging)
}

// Finalize applies defaults, environment overrides, and validation to
// every section. Storage is only required by the blob ledger.
func (c *Config) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Ledger.Finalize(); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	if c.Ledger.Driver == LedgerBlob {
		if err := c.Storage.Finalize(storageEnv); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Auth.Finalize(authEnv); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Events.Finalize(eventsEnv); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	if err := c.Workflow.Finalize(); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}
	if err := c.Logging.Finalize(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvInvoiceShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvInvoiceVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvInvoiceEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
