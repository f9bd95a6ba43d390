package config

import (
	"fmt"
	"os"

	"github.com/einstalek/invoice-ai/pkg/formatting"
	"github.com/einstalek/invoice-ai/pkg/middleware"
	"github.com/einstalek/invoice-ai/pkg/openapi"
	"github.com/einstalek/invoice-ai/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "INVOICE_CORS_ENABLED",
	Origins:          "INVOICE_CORS_ORIGINS",
	AllowedMethods:   "INVOICE_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "INVOICE_CORS_ALLOWED_HEADERS",
	AllowCredentials: "INVOICE_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "INVOICE_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "INVOICE_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "INVOICE_PAGINATION_MAX_PAGE_SIZE",
}

var openapiEnv = &openapi.ConfigEnv{
	Title:       "INVOICE_OPENAPI_TITLE",
	Description: "INVOICE_OPENAPI_DESCRIPTION",
}

// APIConfig holds API routing, request limits, CORS, pagination, and API
// document settings.
type APIConfig struct {
	BasePath    string                `toml:"base_path"`
	MaxBodySize formatting.Bytes      `toml:"max_body_size"`
	CORS        middleware.CORSConfig `toml:"cors"`
	Pagination  pagination.Config     `toml:"pagination"`
	OpenAPI     openapi.Config        `toml:"openapi"`
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	if err := c.loadEnv(); err != nil {
		return err
	}
	if err := c.validate(); err != nil {
		return err
	}

	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	if err := c.OpenAPI.Finalize(openapiEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxBodySize != 0 {
		c.MaxBodySize = overlay.MaxBodySize
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.OpenAPI.Merge(&overlay.OpenAPI)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxBodySize == 0 {
		c.MaxBodySize = 1 << 20
	}
}

func (c *APIConfig) loadEnv() error {
	if v := os.Getenv("INVOICE_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("INVOICE_API_MAX_BODY_SIZE"); v != "" {
		if err := c.MaxBodySize.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("invalid max_body_size: %w", err)
		}
	}
	return nil
}

func (c *APIConfig) validate() error {
	if c.MaxBodySize < 1024 {
		return fmt.Errorf("max_body_size must be at least 1 KB, got %s", c.MaxBodySize)
	}
	return nil
}
