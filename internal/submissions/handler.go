package submissions

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/einstalek/invoice-ai/pkg/handlers"
	"github.com/einstalek/invoice-ai/pkg/identity"
	"github.com/einstalek/invoice-ai/pkg/pagination"
	"github.com/einstalek/invoice-ai/pkg/routes"
)

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// EditFieldsRequest is the body of PATCH /submissions/{id}/fields. A null
// value clears the field.
type EditFieldsRequest struct {
	Fields map[string]*string `json:"fields"`
}

// AddReviewerRequest is the body of POST /submissions/{id}/reviewers.
type AddReviewerRequest struct {
	ReviewerID uuid.UUID `json:"reviewer_id"`
}

// CommentRequest is the body of POST /submissions/{id}/comments.
type CommentRequest struct {
	Text string `json:"text"`
}

// Handler provides HTTP endpoints for submission operations.
type Handler struct {
	sys         System
	logger      *slog.Logger
	pagination  pagination.Config
	maxBodySize int64
}

func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
	maxBodySize int64,
) *Handler {
	return &Handler{
		sys:         sys,
		logger:      logger.With("handler", "submissions"),
		pagination:  pagination,
		maxBodySize: maxBodySize,
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/submissions",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "POST", Pattern: "", Handler: h.Create},
			{Method: "POST", Pattern: "/search", Handler: h.Search},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "PATCH", Pattern: "/{id}/fields", Handler: h.EditFields},
			{Method: "POST", Pattern: "/{id}/reviewers", Handler: h.AddReviewer},
			{Method: "POST", Pattern: "/{id}/comments", Handler: h.Comment},
		},
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.actor(w, r)
	if !ok {
		return
	}

	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), viewer, page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.actor(w, r)
	if !ok {
		return
	}

	req, err := handlers.DecodeJSON[SearchRequest](w, r, h.maxBodySize)
	if err != nil {
		h.badRequest(w, err)
		return
	}

	req.PageRequest.Normalize(h.pagination)

	result, err := h.sys.List(r.Context(), viewer, req.PageRequest, req.Filters)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	sub, err := h.sys.Find(r.Context(), id, viewer)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, sub)
}

// Create registers an upload. Supplying fields skips extraction and opens
// review immediately.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	cmd, err := handlers.DecodeJSON[CreateCommand](w, r, h.maxBodySize)
	if err != nil {
		h.badRequest(w, err)
		return
	}

	sub, err := h.sys.Create(r.Context(), actor, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, sub)
}

func (h *Handler) EditFields(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	req, err := handlers.DecodeJSON[EditFieldsRequest](w, r, h.maxBodySize)
	if err != nil {
		h.badRequest(w, err)
		return
	}

	sub, err := h.sys.EditFields(r.Context(), id, actor, req.Fields)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, sub)
}

func (h *Handler) AddReviewer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	req, err := handlers.DecodeJSON[AddReviewerRequest](w, r, h.maxBodySize)
	if err != nil {
		h.badRequest(w, err)
		return
	}

	sub, err := h.sys.AddReviewer(r.Context(), id, actor, req.ReviewerID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, sub)
}

func (h *Handler) Comment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	req, err := handlers.DecodeJSON[CommentRequest](w, r, h.maxBodySize)
	if err != nil {
		h.badRequest(w, err)
		return
	}

	sub, err := h.sys.Comment(r.Context(), id, actor, req.Text)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, sub)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest,
			fmt.Errorf("%w: invalid submission id", ErrInvalidInput))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	actor, err := identity.FromRequest(r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusUnauthorized, err)
		return uuid.Nil, false
	}
	return actor, true
}

func (h *Handler) badRequest(w http.ResponseWriter, err error) {
	handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %v", ErrInvalidInput, err))
}
