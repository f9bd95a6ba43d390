package openapi

import "os"

// Config holds the document metadata.
type Config struct {
	Title       string `toml:"title"`
	Description string `toml:"description"`
}

// ConfigEnv names the variables overriding Config.
type ConfigEnv struct {
	Title       string
	Description string
}

func (c *Config) Finalize(env *ConfigEnv) error {
	if c.Title == "" {
		c.Title = "Invoice Approvals API"
	}
	if c.Description == "" {
		c.Description = "Invoice submissions, reviewer approvals, and ledger export."
	}
	if env != nil {
		readString(&c.Title, env.Title)
		readString(&c.Description, env.Description)
	}
	return nil
}

func (c *Config) Merge(overlay *Config) {
	if overlay.Title != "" {
		c.Title = overlay.Title
	}
	if overlay.Description != "" {
		c.Description = overlay.Description
	}
}

func readString(dst *string, name string) {
	if name == "" {
		return
	}
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}
