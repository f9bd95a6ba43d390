// Package infrastructure assembles the core systems every domain module depends on.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/einstalek/invoice-ai/internal/config"
	"github.com/einstalek/invoice-ai/pkg/clock"
	"github.com/einstalek/invoice-ai/pkg/database"
	"github.com/einstalek/invoice-ai/pkg/events"
	"github.com/einstalek/invoice-ai/pkg/identity"
	"github.com/einstalek/invoice-ai/pkg/lifecycle"
	"github.com/einstalek/invoice-ai/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
// Storage is nil unless the blob ledger is configured.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Clock     clock.Clock
	Database  database.System
	Storage   storage.System
	Events    events.System
	Identity  identity.Resolver
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := cfg.Logging.NewLogger(os.Stderr)

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	var store storage.System
	if cfg.Ledger.Driver == config.LedgerBlob {
		store, err = storage.New(&cfg.Storage, logger)
		if err != nil {
			return nil, fmt.Errorf("storage init failed: %w", err)
		}
	}

	resolver, err := identity.New(lc.Context(), &cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("identity init failed: %w", err)
	}
	if !cfg.Auth.Enabled {
		logger.Warn("token verification disabled, trusting " + identity.HeaderActorID)
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Clock:     clock.Real(),
		Database:  db,
		Storage:   store,
		Events:    events.New(&cfg.Events, logger),
		Identity:  resolver,
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if i.Storage != nil {
		if err := i.Storage.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("storage start failed: %w", err)
		}
	}
	if err := i.Events.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("events start failed: %w", err)
	}
	return nil
}
