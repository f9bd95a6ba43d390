package export

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/einstalek/invoice-ai/internal/submissions"
	"github.com/einstalek/invoice-ai/pkg/handlers"
	"github.com/einstalek/invoice-ai/pkg/identity"
	"github.com/einstalek/invoice-ai/pkg/routes"
)

// Handler serves booking and ledger document retrieval.
type Handler struct {
	sys    System
	logger *slog.Logger
}

func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "export"),
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/submissions",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/{id}/book", Handler: h.Book},
			{Method: "GET", Pattern: "/{id}/export", Handler: h.Export},
		},
	}
}

func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}

	sub, err := h.sys.Book(r.Context(), id, actor)
	if err != nil {
		handlers.RespondError(w, h.logger, submissions.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, sub)
}

// Export streams the stored ledger document as written.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}

	data, err := h.sys.Document(r.Context(), id, actor)
	if err != nil {
		status := submissions.MapHTTPStatus(err)
		if errors.Is(err, ErrDocumentNotFound) {
			status = http.StatusNotFound
		}
		handlers.RespondError(w, h.logger, status, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest,
			fmt.Errorf("%w: invalid submission id", submissions.ErrInvalidInput))
		return uuid.Nil, uuid.Nil, false
	}

	actor, err := identity.FromRequest(r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, err)
		return uuid.Nil, uuid.Nil, false
	}
	return id, actor, true
}
