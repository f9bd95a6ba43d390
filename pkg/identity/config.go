package identity

import (
	"fmt"
	"os"
	"strconv"
)

// Config controls how the acting user is established for each request.
// With Enabled false the actor is taken from the X-Actor-ID header, which
// is only suitable behind a trusted gateway or in development.
type Config struct {
	Enabled  bool   `json:"enabled" toml:"enabled"`
	Issuer   string `json:"issuer" toml:"issuer"`
	ClientID string `json:"client_id" toml:"client_id"`
	JWKSURL  string `json:"jwks_url" toml:"jwks_url"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Enabled  string
	Issuer   string
	ClientID string
	JWKSURL  string
}

// Finalize applies environment variable overrides and validation.
func (c *Config) Finalize(env *Env) error {
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Enabled {
		c.Enabled = true
	}
	if overlay.Issuer != "" {
		c.Issuer = overlay.Issuer
	}
	if overlay.ClientID != "" {
		c.ClientID = overlay.ClientID
	}
	if overlay.JWKSURL != "" {
		c.JWKSURL = overlay.JWKSURL
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Enabled != "" {
		if v := os.Getenv(env.Enabled); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.Enabled = b
			}
		}
	}
	if env.Issuer != "" {
		if v := os.Getenv(env.Issuer); v != "" {
			c.Issuer = v
		}
	}
	if env.ClientID != "" {
		if v := os.Getenv(env.ClientID); v != "" {
			c.ClientID = v
		}
	}
	if env.JWKSURL != "" {
		if v := os.Getenv(env.JWKSURL); v != "" {
			c.JWKSURL = v
		}
	}
}

func (c *Config) validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Issuer == "" {
		return fmt.Errorf("issuer required when auth is enabled")
	}
	if c.ClientID == "" {
		return fmt.Errorf("client_id required when auth is enabled")
	}
	return nil
}
