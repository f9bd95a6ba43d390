package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/einstalek/invoice-ai/internal/config"
	"github.com/einstalek/invoice-ai/internal/infrastructure"
)

// service is the assembled process: shared infrastructure, the mounted
// modules, and the HTTP listener in front of them.
type service struct {
	infra           *infrastructure.Infrastructure
	http            *httpServer
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

func newService(cfg *config.Config) (*service, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("infrastructure: %w", err)
	}

	modules, err := NewModules(infra, cfg)
	if err != nil {
		return nil, fmt.Errorf("modules: %w", err)
	}

	router := buildRouter(infra.Lifecycle)
	modules.Mount(router)

	return &service{
		infra:           infra,
		http:            newHTTPServer(&cfg.Server, router, infra.Logger),
		logger:          infra.Logger.With("version", cfg.Version),
		shutdownTimeout: cfg.ShutdownTimeoutDuration(),
	}, nil
}

// run serves until ctx ends and then shuts down. A failed startup hook only
// keeps /readyz unavailable; the process stays up so it can be inspected.
func (s *service) run(ctx context.Context) error {
	begin := time.Now()

	if err := s.infra.Start(); err != nil {
		return fmt.Errorf("start infrastructure: %w", err)
	}
	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		s.stop()
		return err
	}

	startup := make(chan error, 1)
	go func() { startup <- s.infra.Lifecycle.WaitForStartup() }()

	for {
		select {
		case err := <-startup:
			startup = nil
			if err != nil {
				s.logger.Error("startup failed, /readyz stays unavailable", "error", err)
				continue
			}
			s.logger.Info("ready", "elapsed", time.Since(begin))
		case <-ctx.Done():
			return s.stop()
		}
	}
}

func (s *service) stop() error {
	s.logger.Info("shutting down", "timeout", s.shutdownTimeout)
	if err := s.infra.Lifecycle.Shutdown(s.shutdownTimeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("stopped")
	return nil
}
