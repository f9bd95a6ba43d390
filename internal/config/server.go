package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

const (
	EnvServerHost            = "INVOICE_SERVER_HOST"
	EnvServerPort            = "INVOICE_SERVER_PORT"
	EnvServerReadTimeout     = "INVOICE_SERVER_READ_TIMEOUT"
	EnvServerWriteTimeout    = "INVOICE_SERVER_WRITE_TIMEOUT"
	EnvServerIdleTimeout     = "INVOICE_SERVER_IDLE_TIMEOUT"
	EnvServerShutdownTimeout = "INVOICE_SERVER_SHUTDOWN_TIMEOUT"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	ReadTimeout     string `toml:"read_timeout"`
	WriteTimeout    string `toml:"write_timeout"`
	IdleTimeout     string `toml:"idle_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

type durationField struct {
	name string
	env  string
	def  string
	val  *string
}

func (c *ServerConfig) durations() []durationField {
	return []durationField{
		{"read_timeout", EnvServerReadTimeout, "15s", &c.ReadTimeout},
		{"write_timeout", EnvServerWriteTimeout, "30s", &c.WriteTimeout},
		{"idle_timeout", EnvServerIdleTimeout, "2m", &c.IdleTimeout},
		{"shutdown_timeout", EnvServerShutdownTimeout, "30s", &c.ShutdownTimeout},
	}
}

func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *ServerConfig) ReadTimeoutDuration() time.Duration     { return parseDuration(c.ReadTimeout) }
func (c *ServerConfig) WriteTimeoutDuration() time.Duration    { return parseDuration(c.WriteTimeout) }
func (c *ServerConfig) IdleTimeoutDuration() time.Duration     { return parseDuration(c.IdleTimeout) }
func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration { return parseDuration(c.ShutdownTimeout) }

// Finalize fills defaults, applies INVOICE_SERVER_* overrides, and validates.
func (c *ServerConfig) Finalize() error {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if v := os.Getenv(EnvServerHost); v != "" {
		c.Host = v
	}
	if port, err := strconv.Atoi(os.Getenv(EnvServerPort)); err == nil {
		c.Port = port
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	for _, f := range c.durations() {
		if *f.val == "" {
			*f.val = f.def
		}
		if v := os.Getenv(f.env); v != "" {
			*f.val = v
		}
		if d, err := time.ParseDuration(*f.val); err != nil || d <= 0 {
			return fmt.Errorf("invalid %s: %q", f.name, *f.val)
		}
	}
	return nil
}

func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	theirs := overlay.durations()
	for i, f := range c.durations() {
		if v := *theirs[i].val; v != "" {
			*f.val = v
		}
	}
}

func parseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
