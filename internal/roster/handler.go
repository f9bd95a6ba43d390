package roster

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/einstalek/invoice-ai/pkg/handlers"
	"github.com/einstalek/invoice-ai/pkg/identity"
	"github.com/einstalek/invoice-ai/pkg/routes"
)

var errInvalidID = errors.New("invalid organization id")

// PolicyRequest is the body of PUT /organizations/{id}/policy.
type PolicyRequest struct {
	ApprovalsRequired int `json:"approvals_required"`
}

// Handler serves roster reads and policy updates.
type Handler struct {
	sys    System
	logger *slog.Logger
}

func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "roster"),
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/organizations",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}/roster", Handler: h.Roster},
			{Method: "PUT", Pattern: "/{id}/policy", Handler: h.SetPolicy},
		},
	}
}

func (h *Handler) Roster(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidID)
		return
	}

	snap, err := h.sys.Resolve(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, snap)
}

func (h *Handler) SetPolicy(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidID)
		return
	}

	actor, err := identity.FromRequest(r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, err)
		return
	}

	req, err := handlers.DecodeJSON[PolicyRequest](w, r, 4<<10)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	snap, err := h.sys.SetApprovalsRequired(r.Context(), id, actor, req.ApprovalsRequired)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, snap)
}
