package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/einstalek/invoice-ai/internal/config"
	"github.com/einstalek/invoice-ai/pkg/lifecycle"
)

type httpServer struct {
	srv             *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

func newHTTPServer(cfg *config.ServerConfig, handler http.Handler, logger *slog.Logger) *httpServer {
	return &httpServer{
		srv: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeoutDuration(),
			WriteTimeout: cfg.WriteTimeoutDuration(),
			IdleTimeout:  cfg.IdleTimeoutDuration(),
		},
		logger:          logger.With("system", "http"),
		shutdownTimeout: cfg.ShutdownTimeoutDuration(),
	}
}

// Start binds the listener synchronously so a taken port fails startup,
// then serves in the background until the lifecycle context ends.
func (s *httpServer) Start(lc *lifecycle.Coordinator) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.srv.Addr, err)
	}

	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := s.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve failed", "error", err)
		}
	}()

	lc.OnShutdown(func() {
		<-lc.Context().Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.srv.Shutdown(ctx); err != nil {
			s.logger.Error("graceful shutdown failed", "error", err)
			return
		}
		s.logger.Info("http server stopped")
	})

	return nil
}
