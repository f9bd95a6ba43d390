package config

import (
	"fmt"
	"os"
)

const (
	// LedgerBlob writes one immutable export document per booking to blob storage.
	LedgerBlob = "blob"
	// LedgerMemory keeps export documents in process. Development only.
	LedgerMemory = "memory"

	EnvLedgerDriver = "INVOICE_LEDGER_DRIVER"
	EnvLedgerPrefix = "INVOICE_LEDGER_PREFIX"
)

// LedgerConfig selects the collaborator that receives booked submissions.
type LedgerConfig struct {
	Driver string `toml:"driver"`
	Prefix string `toml:"prefix"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *LedgerConfig) Finalize() error {
	if c.Driver == "" {
		c.Driver = LedgerBlob
	}
	if c.Prefix == "" {
		c.Prefix = "entries"
	}
	if v := os.Getenv(EnvLedgerDriver); v != "" {
		c.Driver = v
	}
	if v := os.Getenv(EnvLedgerPrefix); v != "" {
		c.Prefix = v
	}

	switch c.Driver {
	case LedgerBlob, LedgerMemory:
		return nil
	default:
		return fmt.Errorf("unknown driver %q (want %s or %s)", c.Driver, LedgerBlob, LedgerMemory)
	}
}

// Merge overwrites non-zero fields from overlay.
func (c *LedgerConfig) Merge(overlay *LedgerConfig) {
	if overlay.Driver != "" {
		c.Driver = overlay.Driver
	}
	if overlay.Prefix != "" {
		c.Prefix = overlay.Prefix
	}
}
