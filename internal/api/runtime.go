package api

import (
	"github.com/einstalek/invoice-ai/internal/config"
	"github.com/einstalek/invoice-ai/internal/infrastructure"
	"github.com/einstalek/invoice-ai/internal/submissions"
	"github.com/einstalek/invoice-ai/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination  pagination.Config
	Policy      submissions.Policy
	Ledger      config.LedgerConfig
	MaxBodySize int64
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	scoped := *infra
	scoped.Logger = infra.Logger.With("module", "api")

	return &Runtime{
		Infrastructure: &scoped,
		Pagination:     cfg.API.Pagination,
		Policy: submissions.Policy{
			MaxRetries:   cfg.Workflow.MaxRetries,
			RetryBackoff: cfg.Workflow.RetryBackoffDuration(),
			ClaimTTL:     cfg.Workflow.BookingClaimTTLDuration(),
		},
		Ledger:      cfg.Ledger,
		MaxBodySize: int64(cfg.API.MaxBodySize),
	}
}
