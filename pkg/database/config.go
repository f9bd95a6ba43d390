package database

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config describes the Postgres pool shared by the stores.
type Config struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Name            string `toml:"name"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	SSLMode         string `toml:"ssl_mode"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime string `toml:"conn_max_lifetime"`
	ConnTimeout     string `toml:"conn_timeout"`
}

// Env names the environment variables that override each Config field.
// Empty names are not read.
type Env struct {
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    string
	MaxIdleConns    string
	ConnMaxLifetime string
	ConnTimeout     string
}

func (c *Config) ConnMaxLifetimeDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnMaxLifetime)
	return d
}

func (c *Config) ConnTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnTimeout)
	return d
}

// URL renders the config as a postgres:// URL. Both the pgx driver and
// golang-migrate accept it.
func (c *Config) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Finalize fills defaults, applies env overrides when env is non-nil, and validates.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge copies every non-zero field of overlay onto c.
func (c *Config) Merge(overlay *Config) {
	mergeString(&c.Host, overlay.Host)
	mergeInt(&c.Port, overlay.Port)
	mergeString(&c.Name, overlay.Name)
	mergeString(&c.User, overlay.User)
	mergeString(&c.Password, overlay.Password)
	mergeString(&c.SSLMode, overlay.SSLMode)
	mergeInt(&c.MaxOpenConns, overlay.MaxOpenConns)
	mergeInt(&c.MaxIdleConns, overlay.MaxIdleConns)
	mergeString(&c.ConnMaxLifetime, overlay.ConnMaxLifetime)
	mergeString(&c.ConnTimeout, overlay.ConnTimeout)
}

func (c *Config) loadDefaults() {
	mergeString(&c.Host, zeroOr(c.Host, "localhost"))
	mergeInt(&c.Port, zeroOr(c.Port, 5432))
	mergeString(&c.SSLMode, zeroOr(c.SSLMode, "disable"))
	mergeInt(&c.MaxOpenConns, zeroOr(c.MaxOpenConns, 20))
	mergeInt(&c.MaxIdleConns, zeroOr(c.MaxIdleConns, 5))
	mergeString(&c.ConnMaxLifetime, zeroOr(c.ConnMaxLifetime, "15m"))
	mergeString(&c.ConnTimeout, zeroOr(c.ConnTimeout, "5s"))
}

func (c *Config) loadEnv(env *Env) {
	envString(&c.Host, env.Host)
	envInt(&c.Port, env.Port)
	envString(&c.Name, env.Name)
	envString(&c.User, env.User)
	envString(&c.Password, env.Password)
	envString(&c.SSLMode, env.SSLMode)
	envInt(&c.MaxOpenConns, env.MaxOpenConns)
	envInt(&c.MaxIdleConns, env.MaxIdleConns)
	envString(&c.ConnMaxLifetime, env.ConnMaxLifetime)
	envString(&c.ConnTimeout, env.ConnTimeout)
}

func (c *Config) validate() error {
	switch {
	case c.Name == "":
		return errors.New("name required")
	case c.User == "":
		return errors.New("user required")
	case c.MaxIdleConns > c.MaxOpenConns:
		return fmt.Errorf("max_idle_conns (%d) exceeds max_open_conns (%d)", c.MaxIdleConns, c.MaxOpenConns)
	}
	if _, err := time.ParseDuration(c.ConnMaxLifetime); err != nil {
		return fmt.Errorf("invalid conn_max_lifetime: %w", err)
	}
	if _, err := time.ParseDuration(c.ConnTimeout); err != nil {
		return fmt.Errorf("invalid conn_timeout: %w", err)
	}
	return nil
}

func zeroOr[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func envString(dst *string, name string) {
	if name == "" {
		return
	}
	mergeString(dst, os.Getenv(name))
}

func envInt(dst *int, name string) {
	if name == "" {
		return
	}
	if n, err := strconv.Atoi(os.Getenv(name)); err == nil {
		*dst = n
	}
}
