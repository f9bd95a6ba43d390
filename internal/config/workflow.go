package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvWorkflowMaxRetries      = "INVOICE_WORKFLOW_MAX_RETRIES"
	EnvWorkflowRetryBackoff    = "INVOICE_WORKFLOW_RETRY_BACKOFF"
	EnvWorkflowBookingClaimTTL = "INVOICE_WORKFLOW_BOOKING_CLAIM_TTL"
)

// WorkflowConfig tunes the optimistic commit loop and the booking claim.
type WorkflowConfig struct {
	MaxRetries      int    `toml:"max_retries"`
	RetryBackoff    string `toml:"retry_backoff"`
	BookingClaimTTL string `toml:"booking_claim_ttl"`
}

// RetryBackoffDuration returns RetryBackoff as a time.Duration.
func (c *WorkflowConfig) RetryBackoffDuration() time.Duration {
	d, _ := time.ParseDuration(c.RetryBackoff)
	return d
}

// BookingClaimTTLDuration returns BookingClaimTTL as a time.Duration.
func (c *WorkflowConfig) BookingClaimTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.BookingClaimTTL)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *WorkflowConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *WorkflowConfig) Merge(overlay *WorkflowConfig) {
	if overlay.MaxRetries != 0 {
		c.MaxRetries = overlay.MaxRetries
	}
	if overlay.RetryBackoff != "" {
		c.RetryBackoff = overlay.RetryBackoff
	}
	if overlay.BookingClaimTTL != "" {
		c.BookingClaimTTL = overlay.BookingClaimTTL
	}
}

func (c *WorkflowConfig) loadDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
	if c.RetryBackoff == "" {
		c.RetryBackoff = "20ms"
	}
	if c.BookingClaimTTL == "" {
		c.BookingClaimTTL = "2m"
	}
}

func (c *WorkflowConfig) loadEnv() {
	if v := os.Getenv(EnvWorkflowMaxRetries); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}
	if v := os.Getenv(EnvWorkflowRetryBackoff); v != "" {
		c.RetryBackoff = v
	}
	if v := os.Getenv(EnvWorkflowBookingClaimTTL); v != "" {
		c.BookingClaimTTL = v
	}
}

func (c *WorkflowConfig) validate() error {
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if d, err := time.ParseDuration(c.RetryBackoff); err != nil || d < 0 {
		return fmt.Errorf("invalid retry_backoff: %q", c.RetryBackoff)
	}
	if d, err := time.ParseDuration(c.BookingClaimTTL); err != nil || d <= 0 {
		return fmt.Errorf("invalid booking_claim_ttl: %q", c.BookingClaimTTL)
	}
	return nil
}
