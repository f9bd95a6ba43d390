// Package database owns the Postgres pool shared by the submission store,
// the activity log, and the roster.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/einstalek/invoice-ai/pkg/lifecycle"
)

// pingInterval spaces startup pings while Postgres is still coming up.
const pingInterval = 250 * time.Millisecond

// System hands out the pool and ties it to the process lifecycle.
type System interface {
	Connection() *sql.DB
	// Start pings until the pool answers or the connect timeout passes,
	// and closes the pool on shutdown.
	Start(lc *lifecycle.Coordinator) error
}

type pool struct {
	db          *sql.DB
	logger      *slog.Logger
	connTimeout time.Duration
	host        string
}

// New prepares a pgx pool. No connection is attempted before Start.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	db, err := sql.Open("pgx", cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Name, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	return &pool{
		db:          db,
		logger:      logger.With("system", "database", "database", cfg.Name),
		connTimeout: cfg.ConnTimeoutDuration(),
		host:        cfg.Host,
	}, nil
}

func (p *pool) Connection() *sql.DB {
	return p.db
}

func (p *pool) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup("database", func() error {
		ctx, cancel := context.WithTimeout(lc.Context(), p.connTimeout)
		defer cancel()
		return p.waitReachable(ctx)
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()

		s := p.db.Stats()
		p.logger.Info("closing pool", "open", s.OpenConnections, "in_use", s.InUse, "waited", s.WaitCount)
		if err := p.db.Close(); err != nil {
			p.logger.Error("close pool", "error", err)
		}
	})
	return nil
}

func (p *pool) waitReachable(ctx context.Context) error {
	start := time.Now()
	tick := time.NewTicker(pingInterval)
	defer tick.Stop()

	for attempt := 1; ; attempt++ {
		err := p.db.PingContext(ctx)
		if err == nil {
			p.logger.Info("pool ready", "host", p.host, "attempts", attempt, "elapsed", time.Since(start))
			return nil
		}
		p.logger.Debug("ping failed", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			p.logger.Error("database unreachable", "host", p.host, "attempts", attempt, "error", err)
			return fmt.Errorf("unreachable after %d attempts: %w", attempt, err)
		case <-tick.C:
		}
	}
}
