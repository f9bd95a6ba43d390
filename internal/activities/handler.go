package activities

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/einstalek/invoice-ai/pkg/handlers"
	"github.com/einstalek/invoice-ai/pkg/identity"
	"github.com/einstalek/invoice-ai/pkg/pagination"
	"github.com/einstalek/invoice-ai/pkg/routes"
)

// ErrInvalidID indicates a malformed submission id in the request path.
var ErrInvalidID = errors.New("invalid submission id")

// Access decides who may read a submission's history. Check rejects a
// viewer with an error; Status maps that error to the response status.
type Access struct {
	Check  func(ctx context.Context, submissionID, viewer uuid.UUID) error
	Status func(err error) int
}

// Handler serves a submission's activity history.
type Handler struct {
	sys        System
	access     Access
	logger     *slog.Logger
	pagination pagination.Config
}

func NewHandler(sys System, access Access, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		access:     access,
		logger:     logger.With("handler", "activities"),
		pagination: pagination,
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/submissions",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}/activities", Handler: h.List},
		},
	}
}

// List returns activities oldest first unless ?sort=-Seq is given.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	viewer, err := identity.FromRequest(r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, err)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}

	if err := h.access.Check(r.Context(), id, viewer); err != nil {
		handlers.RespondError(w, h.logger, h.access.Status(err), err)
		return
	}

	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), id, page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}
