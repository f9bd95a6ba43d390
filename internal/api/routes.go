package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/einstalek/invoice-ai/internal/activities"
	"github.com/einstalek/invoice-ai/internal/submissions"
	"github.com/einstalek/invoice-ai/pkg/identity"
	"github.com/einstalek/invoice-ai/pkg/openapi"
	"github.com/einstalek/invoice-ai/pkg/routes"
)

// registerRoutes mounts the domain routes behind actor resolution and the
// API document without it.
func registerRoutes(mux *http.ServeMux, runtime *Runtime, domain *Domain, spec []byte) {
	routes.Register(
		mux,
		routes.Group{
			Middleware: []func(http.Handler) http.Handler{
				identity.Middleware(runtime.Identity, runtime.Logger),
			},
			Children: []routes.Group{
				domain.Submissions.Handler(runtime.MaxBodySize).Routes(),
				domain.Activities.Handler(historyAccess(domain.Submissions)).Routes(),
				domain.Approvals.Handler(runtime.MaxBodySize).Routes(),
				domain.Export.Handler().Routes(),
				domain.Roster.Handler().Routes(),
			},
		},
		routes.Group{
			Routes: []routes.Route{
				{Method: "GET", Pattern: specPath, Handler: openapi.ServeSpec(spec)},
			},
		},
	)
}

// historyAccess lets whoever may read a submission read its activities.
func historyAccess(subs submissions.System) activities.Access {
	return activities.Access{
		Check: func(ctx context.Context, id, viewer uuid.UUID) error {
			_, err := subs.Find(ctx, id, viewer)
			return err
		},
		Status: submissions.MapHTTPStatus,
	}
}
