package events

import (
	"fmt"
	"os"
	"time"
)

// Config holds NATS connection parameters. An empty URL disables publishing.
type Config struct {
	URL            string `json:"url" toml:"url"`
	SubjectPrefix  string `json:"subject_prefix" toml:"subject_prefix"`
	ConnectTimeout string `json:"connect_timeout" toml:"connect_timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	URL            string
	SubjectPrefix  string
	ConnectTimeout string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.URL != "" {
		c.URL = overlay.URL
	}
	if overlay.SubjectPrefix != "" {
		c.SubjectPrefix = overlay.SubjectPrefix
	}
	if overlay.ConnectTimeout != "" {
		c.ConnectTimeout = overlay.ConnectTimeout
	}
}

// Enabled reports whether a broker URL is configured.
func (c *Config) Enabled() bool {
	return c.URL != ""
}

// ConnectTimeoutDuration parses ConnectTimeout. Call after Finalize.
func (c *Config) ConnectTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnectTimeout)
	return d
}

func (c *Config) loadDefaults() {
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "invoices"
	}
	if c.ConnectTimeout == "" {
		c.ConnectTimeout = "5s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.URL != "" {
		if v := os.Getenv(env.URL); v != "" {
			c.URL = v
		}
	}
	if env.SubjectPrefix != "" {
		if v := os.Getenv(env.SubjectPrefix); v != "" {
			c.SubjectPrefix = v
		}
	}
	if env.ConnectTimeout != "" {
		if v := os.Getenv(env.ConnectTimeout); v != "" {
			c.ConnectTimeout = v
		}
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ConnectTimeout); err != nil {
		return fmt.Errorf("invalid connect_timeout: %w", err)
	}
	return nil
}
