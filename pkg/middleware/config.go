package middleware

import (
	"os"
	"strconv"
	"strings"
)

// CORSConfig is the cross-origin policy for the API. Disabled by default.
type CORSConfig struct {
	Enabled          bool     `toml:"enabled"`
	Origins          []string `toml:"origins"`
	AllowedMethods   []string `toml:"allowed_methods"`
	AllowedHeaders   []string `toml:"allowed_headers"`
	AllowCredentials bool     `toml:"allow_credentials"`
	MaxAge           int      `toml:"max_age"`
}

// CORSEnv names the variables overriding CORSConfig.
type CORSEnv struct {
	Enabled          string
	Origins          string
	AllowedMethods   string
	AllowedHeaders   string
	AllowCredentials string
	MaxAge           string
}

// Finalize applies defaults and environment variable overrides.
func (c *CORSConfig) Finalize(env *CORSEnv) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return nil
}

// Merge overwrites fields from overlay. Boolean fields always apply; slice and int
// fields only apply when non-zero.
func (c *CORSConfig) Merge(overlay *CORSConfig) {
	c.Enabled = overlay.Enabled
	c.AllowCredentials = overlay.AllowCredentials

	if overlay.Origins != nil {
		c.Origins = overlay.Origins
	}
	if overlay.AllowedMethods != nil {
		c.AllowedMethods = overlay.AllowedMethods
	}
	if overlay.AllowedHeaders != nil {
		c.AllowedHeaders = overlay.AllowedHeaders
	}
	if overlay.MaxAge >= 0 {
		c.MaxAge = overlay.MaxAge
	}
}

func (c *CORSConfig) loadDefaults() {
	if len(c.AllowedMethods) == 0 {
		c.AllowedMethods = []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"}
	}
	if len(c.AllowedHeaders) == 0 {
		c.AllowedHeaders = []string{"Content-Type", "Authorization", "X-Actor-ID"}
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 3600
	}
}

func (c *CORSConfig) loadEnv(env *CORSEnv) {
	lookup := func(name string) (string, bool) {
		if name == "" {
			return "", false
		}
		v := os.Getenv(name)
		return v, v != ""
	}

	if v, ok := lookup(env.Enabled); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Enabled = b
		}
	}
	if v, ok := lookup(env.Origins); ok {
		c.Origins = splitList(v)
	}
	if v, ok := lookup(env.AllowedMethods); ok {
		c.AllowedMethods = splitList(v)
	}
	if v, ok := lookup(env.AllowedHeaders); ok {
		c.AllowedHeaders = splitList(v)
	}
	if v, ok := lookup(env.AllowCredentials); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.AllowCredentials = b
		}
	}
	if v, ok := lookup(env.MaxAge); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxAge = n
		}
	}
}

func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
