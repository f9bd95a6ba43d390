package storage

import (
	"fmt"
	"os"
)

// Config holds Azure Blob Storage connection parameters.
// Either ConnectionString or ServiceURL must be set. ServiceURL
// authenticates through the default Azure credential chain.
type Config struct {
	ContainerName    string `json:"container_name" toml:"container_name"`
	ConnectionString string `json:"connection_string" toml:"connection_string"`
	ServiceURL       string `json:"service_url" toml:"service_url"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	ContainerName    string
	ConnectionString string
	ServiceURL       string
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
	if overlay.ContainerName != "" {
		c.ContainerName = overlay.ContainerName
	}
	if overlay.ConnectionString != "" {
		c.ConnectionString = overlay.ConnectionString
	}
	if overlay.ServiceURL != "" {
		c.ServiceURL = overlay.ServiceURL
	}
}

func (c *Config) loadDefaults() {
	if c.ContainerName == "" {
		c.ContainerName = "ledger"
	}
}

func (c *Config) loadEnv(env *Env) {
	for _, o := range []struct {
		name string
		dst  *string
	}{
		{env.ContainerName, &c.ContainerName},
		{env.ConnectionString, &c.ConnectionString},
		{env.ServiceURL, &c.ServiceURL},
	} {
		if o.name == "" {
			continue
		}
		if v := os.Getenv(o.name); v != "" {
			*o.dst = v
		}
	}
}

func (c *Config) validate() error {
	if c.ContainerName == "" {
		return fmt.Errorf("container_name required")
	}
	if c.ConnectionString == "" && c.ServiceURL == "" {
		return fmt.Errorf("connection_string or service_url required")
	}
	return nil
}
