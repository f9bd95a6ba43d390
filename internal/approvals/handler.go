package approvals

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/einstalek/invoice-ai/internal/submissions"
	"github.com/einstalek/invoice-ai/pkg/handlers"
	"github.com/einstalek/invoice-ai/pkg/identity"
	"github.com/einstalek/invoice-ai/pkg/routes"
)

// DecideRequest is the body of POST /submissions/{id}/decisions.
type DecideRequest struct {
	Decision string `json:"decision"`
	Comment  string `json:"comment,omitempty"`
}

// EditsRequest carries field edits for resubmission and manual completion.
type EditsRequest struct {
	Fields map[string]*string `json:"fields"`
}

// CancelRequest is the optional body of POST /submissions/{id}/cancel.
type CancelRequest struct {
	Comment string `json:"comment,omitempty"`
}

// Handler exposes the approval workflow over HTTP.
type Handler struct {
	sys         System
	logger      *slog.Logger
	maxBodySize int64
}

func NewHandler(sys System, logger *slog.Logger, maxBodySize int64) *Handler {
	return &Handler{
		sys:         sys,
		logger:      logger.With("handler", "approvals"),
		maxBodySize: maxBodySize,
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/submissions",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/{id}/extraction", Handler: h.CompleteExtraction},
			{Method: "POST", Pattern: "/{id}/decisions", Handler: h.Decide},
			{Method: "POST", Pattern: "/{id}/resubmit", Handler: h.Resubmit},
			{Method: "POST", Pattern: "/{id}/complete", Handler: h.CompleteManually},
			{Method: "POST", Pattern: "/{id}/cancel", Handler: h.Cancel},
			{Method: "GET", Pattern: "/{id}/review", Handler: h.Review},
		},
	}
}

// CompleteExtraction accepts the extraction service's result for a
// submission still in PROCESSING.
func (h *Handler) CompleteExtraction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	result, err := handlers.DecodeJSON[Result](w, r, h.maxBodySize)
	if err != nil {
		h.badRequest(w, err)
		return
	}

	sub, err := h.sys.CompleteExtraction(r.Context(), id, result)
	h.respond(w, sub, err)
}

func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}

	req, err := handlers.DecodeJSON[DecideRequest](w, r, h.maxBodySize)
	if err != nil {
		h.badRequest(w, err)
		return
	}

	d, err := ParseDecision(req.Decision, req.Comment)
	if err != nil {
		handlers.RespondError(w, h.logger, submissions.MapHTTPStatus(err), err)
		return
	}

	sub, err := h.sys.Decide(r.Context(), id, actor, d)
	h.respond(w, sub, err)
}

func (h *Handler) Resubmit(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}

	req, ok := decodeOptional[EditsRequest](h, w, r)
	if !ok {
		return
	}

	sub, err := h.sys.Resubmit(r.Context(), id, actor, req.Fields)
	h.respond(w, sub, err)
}

func (h *Handler) CompleteManually(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}

	req, ok := decodeOptional[EditsRequest](h, w, r)
	if !ok {
		return
	}

	sub, err := h.sys.CompleteManually(r.Context(), id, actor, req.Fields)
	h.respond(w, sub, err)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}

	req, ok := decodeOptional[CancelRequest](h, w, r)
	if !ok {
		return
	}

	sub, err := h.sys.Cancel(r.Context(), id, actor, req.Comment)
	h.respond(w, sub, err)
}

func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}

	review, err := h.sys.Review(r.Context(), id, actor)
	if err != nil {
		handlers.RespondError(w, h.logger, submissions.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, review)
}

func (h *Handler) respond(w http.ResponseWriter, sub *submissions.Submission, err error) {
	if err != nil {
		handlers.RespondError(w, h.logger, submissions.MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, sub)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest,
			fmt.Errorf("%w: invalid submission id", submissions.ErrInvalidInput))
		return uuid.Nil, false
	}
	return id, true
}

// target resolves the path submission and the acting user.
func (h *Handler) target(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	id, ok := h.pathID(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	actor, err := identity.FromRequest(r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, err)
		return uuid.Nil, uuid.Nil, false
	}
	return id, actor, true
}

func (h *Handler) badRequest(w http.ResponseWriter, err error) {
	handlers.RespondError(w, h.logger, http.StatusBadRequest,
		fmt.Errorf("%w: %v", submissions.ErrInvalidInput, err))
}

// decodeOptional decodes a JSON body when one is present.
func decodeOptional[T any](h *Handler, w http.ResponseWriter, r *http.Request) (T, bool) {
	var zero T
	if r.ContentLength == 0 {
		return zero, true
	}

	v, err := handlers.DecodeJSON[T](w, r, h.maxBodySize)
	if err != nil {
		h.badRequest(w, err)
		return zero, false
	}
	return v, true
}
