// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"fmt"
	"net/http"

	"github.com/einstalek/invoice-ai/internal/config"
	"github.com/einstalek/invoice-ai/internal/infrastructure"
	"github.com/einstalek/invoice-ai/pkg/middleware"
	"github.com/einstalek/invoice-ai/pkg/module"
	"github.com/einstalek/invoice-ai/pkg/openapi"
)

// NewModule creates the API module with all domain handlers and middleware.
// Every domain request must resolve to an acting user; the API document at
// /openapi.json is public.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)

	domain, err := NewDomain(runtime)
	if err != nil {
		return nil, err
	}

	spec, err := openapi.MarshalJSON(Spec(cfg))
	if err != nil {
		return nil, fmt.Errorf("render api document: %w", err)
	}

	mux := http.NewServeMux()
	registerRoutes(mux, runtime, domain, spec)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.Recover(runtime.Logger))
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))

	return m, nil
}
