package api

import (
	"net/http"
	"slices"

	"github.com/einstalek/invoice-ai/internal/config"
	"github.com/einstalek/invoice-ai/pkg/openapi"
)

// specPath serves the API document relative to the module base path.
const specPath = "/openapi.json"

var (
	submissionID = openapi.PathParam("id", "Submission ID")
	listParams   = []*openapi.Parameter{
		openapi.QueryParam("page", "integer", "Page number, 1-based", false),
		openapi.QueryParam("page_size", "integer", "Results per page", false),
		openapi.QueryParam("search", "string", "Case-insensitive substring search", false),
		openapi.QueryParam("sort", "string", "Comma-separated sort fields, - prefix for descending", false),
	}
)

// op documents one route. Every route can answer 401 and 500; errs adds
// the route's other error statuses.
func op(tag, summary string, ok int, body *openapi.Response, errs ...int) *openapi.Operation {
	o := &openapi.Operation{
		Summary:   summary,
		Tags:      []string{tag},
		Responses: map[int]*openapi.Response{ok: body},
	}
	for _, status := range slices.Concat(errs, []int{http.StatusUnauthorized, http.StatusInternalServerError}) {
		o.Responses[status] = openapi.ErrorRef(status)
	}
	return o
}

func withParams(o *openapi.Operation, params ...*openapi.Parameter) *openapi.Operation {
	o.Parameters = append(o.Parameters, params...)
	return o
}

func withBody(o *openapi.Operation, schemaName string, required bool) *openapi.Operation {
	o.RequestBody = openapi.RequestBodyJSON(schemaName, required)
	return o
}

// Spec describes every route the API module registers.
func Spec(cfg *config.Config) *openapi.Spec {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.BasePath)
	spec.Components.AddSchemas(schemas())

	const (
		subs     = "submissions"
		history  = "activities"
		review   = "approvals"
		export   = "export"
		rosters  = "roster"
		sub      = "Submission"
		notFound = http.StatusNotFound
		badReq   = http.StatusBadRequest
		denied   = http.StatusForbidden
		conflict = http.StatusConflict
		stale    = http.StatusPreconditionFailed
	)
	submission := openapi.ResponseJSON("The submission", sub)

	spec.Add("GET", "/submissions", withParams(
		op(subs, "List visible submissions", http.StatusOK, openapi.ResponseJSON("A page of submissions", "SubmissionPage"), badReq, denied),
		slices.Concat(listParams, []*openapi.Parameter{
			openapi.QueryParam("status", "string", "Filter by status", false),
			openapi.QueryParam("organization_id", "string", "Filter by organization", false),
			openapi.QueryParam("submitter_id", "string", "Filter by submitter", false),
		})...,
	))
	spec.Add("POST", "/submissions", withBody(
		op(subs, "Register an upload", http.StatusCreated, submission, badReq, denied), "CreateCommand", true))
	spec.Add("POST", "/submissions/search", withBody(
		op(subs, "Search visible submissions", http.StatusOK, openapi.ResponseJSON("A page of submissions", "SubmissionPage"), badReq, denied), "SearchRequest", true))
	spec.Add("GET", "/submissions/{id}", withParams(
		op(subs, "Read a submission", http.StatusOK, submission, badReq, denied, notFound), submissionID))
	spec.Add("PATCH", "/submissions/{id}/fields", withBody(withParams(
		op(subs, "Edit fields; null clears a field", http.StatusOK, submission, badReq, denied, notFound, conflict, stale), submissionID), "FieldsRequest", true))
	spec.Add("POST", "/submissions/{id}/reviewers", withBody(withParams(
		op(subs, "Add a reviewer", http.StatusOK, submission, badReq, denied, notFound, conflict, stale), submissionID), "AddReviewerRequest", true))
	spec.Add("POST", "/submissions/{id}/comments", withBody(withParams(
		op(subs, "Comment on a submission", http.StatusCreated, submission, badReq, denied, notFound, stale), submissionID), "CommentRequest", true))

	spec.Add("GET", "/submissions/{id}/activities", withParams(
		op(history, "Read the activity history", http.StatusOK, openapi.ResponseJSON("A page of activities", "ActivityPage"), badReq, denied, notFound),
		slices.Concat([]*openapi.Parameter{submissionID}, listParams, []*openapi.Parameter{
			openapi.QueryParam("action", "string", "Filter by action", false),
			openapi.QueryParam("actor_id", "string", "Filter by actor", false),
			openapi.QueryParam("round", "integer", "Filter by round", false),
		})...,
	))

	spec.Add("POST", "/submissions/{id}/extraction", withBody(withParams(
		op(review, "Report the extraction result", http.StatusOK, submission, badReq, notFound, conflict, stale), submissionID), "ExtractionResult", true))
	spec.Add("POST", "/submissions/{id}/decisions", withBody(withParams(
		op(review, "Approve or request edits", http.StatusOK, submission, badReq, denied, notFound, conflict, stale), submissionID), "DecideRequest", true))
	spec.Add("POST", "/submissions/{id}/resubmit", withBody(withParams(
		op(review, "Resubmit after requested edits", http.StatusOK, submission, badReq, denied, notFound, conflict, stale), submissionID), "FieldsRequest", true))
	spec.Add("POST", "/submissions/{id}/complete", withBody(withParams(
		op(review, "Complete a failed extraction by hand", http.StatusOK, submission, badReq, denied, notFound, conflict, stale), submissionID), "FieldsRequest", true))
	spec.Add("POST", "/submissions/{id}/cancel", withBody(withParams(
		op(review, "Cancel a submission", http.StatusOK, submission, denied, notFound, conflict, stale), submissionID), "CancelRequest", false))
	spec.Add("GET", "/submissions/{id}/review", withParams(
		op(review, "Read the review state for the caller", http.StatusOK, openapi.ResponseJSON("The review", "Review"), badReq, denied, notFound), submissionID))

	spec.Add("POST", "/submissions/{id}/book", withParams(
		op(export, "Book an approved submission", http.StatusOK, submission, badReq, denied, notFound, conflict, stale, http.StatusBadGateway), submissionID))
	spec.Add("GET", "/submissions/{id}/export", withParams(
		op(export, "Read the booked ledger entry", http.StatusOK, openapi.ResponseJSON("The ledger entry", "LedgerEntry"), badReq, denied, notFound, conflict), submissionID))

	orgID := openapi.PathParam("id", "Organization ID")
	spec.Add("GET", "/organizations/{id}/roster", withParams(
		op(rosters, "Read an organization's roster", http.StatusOK, openapi.ResponseJSON("The roster", "Roster"), badReq, denied, notFound), orgID))
	spec.Add("PUT", "/organizations/{id}/policy", withBody(withParams(
		op(rosters, "Set the approvals required for new rounds", http.StatusOK, openapi.ResponseJSON("The roster", "Roster"), badReq, denied, notFound), orgID), "PolicyRequest", true))

	return spec
}
