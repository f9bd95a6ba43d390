// Package pagination carries page requests from query strings or JSON bodies
// to the stores and shapes their results.
package pagination

import (
	"errors"
	"os"
	"strconv"
)

// Config bounds the page sizes clients may ask for.
type Config struct {
	DefaultPageSize int `toml:"default_page_size"`
	MaxPageSize     int `toml:"max_page_size"`
}

// ConfigEnv names the variables overriding Config.
type ConfigEnv struct {
	DefaultPageSize string
	MaxPageSize     string
}

func (c *Config) Finalize(env *ConfigEnv) error {
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = 20
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = 100
	}
	if env != nil {
		readInt(&c.DefaultPageSize, env.DefaultPageSize)
		readInt(&c.MaxPageSize, env.MaxPageSize)
	}

	switch {
	case c.DefaultPageSize < 1:
		return errors.New("default_page_size must be positive")
	case c.MaxPageSize < 1:
		return errors.New("max_page_size must be positive")
	case c.DefaultPageSize > c.MaxPageSize:
		return errors.New("default_page_size cannot exceed max_page_size")
	}
	return nil
}

func (c *Config) Merge(overlay *Config) {
	if overlay.DefaultPageSize != 0 {
		c.DefaultPageSize = overlay.DefaultPageSize
	}
	if overlay.MaxPageSize != 0 {
		c.MaxPageSize = overlay.MaxPageSize
	}
}

func readInt(dst *int, name string) {
	if name == "" {
		return
	}
	if n, err := strconv.Atoi(os.Getenv(name)); err == nil {
		*dst = n
	}
}
