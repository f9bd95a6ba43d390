package main

import (
	"net/http"

	"github.com/einstalek/invoice-ai/internal/api"
	"github.com/einstalek/invoice-ai/internal/config"
	"github.com/einstalek/invoice-ai/internal/infrastructure"
	"github.com/einstalek/invoice-ai/pkg/handlers"
	"github.com/einstalek/invoice-ai/pkg/lifecycle"
	"github.com/einstalek/invoice-ai/pkg/module"
)

// Modules holds the application's mounted modules.
type Modules struct {
	API *module.Module
}

func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	apiModule, err := api.NewModule(cfg, infra)
	if err != nil {
		return nil, err
	}

	return &Modules{API: apiModule}, nil
}

func (m *Modules) Mount(router *module.Router) {
	router.Mount(m.API)
}

func buildRouter(readiness lifecycle.ReadinessChecker) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !readiness.Ready() {
			handlers.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	return router
}
