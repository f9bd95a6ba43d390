package api

import (
	"fmt"

	"github.com/einstalek/invoice-ai/internal/activities"
	"github.com/einstalek/invoice-ai/internal/approvals"
	"github.com/einstalek/invoice-ai/internal/config"
	"github.com/einstalek/invoice-ai/internal/export"
	"github.com/einstalek/invoice-ai/internal/roster"
	"github.com/einstalek/invoice-ai/internal/submissions"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Activities  activities.System
	Roster      roster.System
	Submissions submissions.System
	Approvals   approvals.System
	Export      export.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) (*Domain, error) {
	db := runtime.Database.Connection()

	rosterSystem := roster.New(db, runtime.Logger)

	submissionsSystem := submissions.New(
		submissions.NewPostgresStore(db),
		rosterSystem,
		runtime.Clock,
		runtime.Events,
		runtime.Logger,
		runtime.Pagination,
		runtime.Policy,
	)

	ledger, err := newLedger(runtime)
	if err != nil {
		return nil, err
	}

	return &Domain{
		Activities:  activities.New(db, runtime.Logger, runtime.Pagination),
		Roster:      rosterSystem,
		Submissions: submissionsSystem,
		Approvals:   approvals.New(submissionsSystem, runtime.Logger),
		Export:      export.New(submissionsSystem, ledger, runtime.Logger),
	}, nil
}

func newLedger(runtime *Runtime) (export.Ledger, error) {
	switch runtime.Ledger.Driver {
	case config.LedgerBlob:
		if runtime.Storage == nil {
			return nil, fmt.Errorf("ledger driver %q requires storage", config.LedgerBlob)
		}
		return export.NewBlobLedger(runtime.Storage, runtime.Ledger.Prefix, runtime.Logger), nil
	case config.LedgerMemory:
		runtime.Logger.Warn("ledger entries kept in memory, bookings will not survive restart")
		return export.NewMemoryLedger(runtime.Ledger.Prefix, runtime.Clock), nil
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", runtime.Ledger.Driver)
	}
}
