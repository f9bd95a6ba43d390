package openapi

import (
	"maps"
	"net/http"
)

// errorResponses names the shared error responses by status. Every one
// carries an ErrorResponse body.
var errorResponses = map[int]string{
	http.StatusBadRequest:          "BadRequest",
	http.StatusUnauthorized:        "Unauthorized",
	http.StatusForbidden:           "Forbidden",
	http.StatusNotFound:            "NotFound",
	http.StatusConflict:            "Conflict",
	http.StatusPreconditionFailed:  "PreconditionFailed",
	http.StatusInternalServerError: "InternalError",
	http.StatusBadGateway:          "BadGateway",
}

// ErrorRef returns the shared response for an error status, or nil for a
// status without one.
func ErrorRef(status int) *Response {
	name, ok := errorResponses[status]
	if !ok {
		return nil
	}
	return ResponseRef(name)
}

// NewComponents creates Components holding the page request, page result
// and error schemas plus one shared response per error status.
func NewComponents() *Components {
	c := &Components{
		Schemas: map[string]*Schema{
			"PageRequest": Object(map[string]*Schema{
				"page":      {Type: "integer", Description: "Page number, 1-based", Example: 1},
				"page_size": {Type: "integer", Description: "Results per page", Example: 20},
				"search":    {Type: "string", Description: "Case-insensitive substring search"},
				"sort":      {Type: "string", Description: "Comma-separated sort fields, - prefix for descending. Example: Status,-CreatedAt"},
			}),
			"ErrorResponse": Object(map[string]*Schema{
				"error": {Type: "string", Description: "Error message"},
				"code":  {Type: "string", Description: "Machine-readable error code", Example: "NOT_FOUND"},
			}, "error"),
		},
		Responses: make(map[string]*Response, len(errorResponses)),
	}

	for status, name := range errorResponses {
		c.Responses[name] = &Response{
			Description: http.StatusText(status),
			Content:     jsonContent(SchemaRef("ErrorResponse")),
		}
	}
	return c
}

// AddSchemas merges schemas into the component schemas.
func (c *Components) AddSchemas(schemas map[string]*Schema) {
	maps.Copy(c.Schemas, schemas)
}

// AddResponses merges responses into the component responses.
func (c *Components) AddResponses(responses map[string]*Response) {
	maps.Copy(c.Responses, responses)
}

// PageOf is a page result schema whose data items are the named schema.
func PageOf(schemaName string) *Schema {
	return Object(map[string]*Schema{
		"data":        ArrayOf(schemaName),
		"total":       {Type: "integer"},
		"page":        {Type: "integer"},
		"page_size":   {Type: "integer"},
		"total_pages": {Type: "integer"},
	}, "data", "total", "page", "page_size", "total_pages")
}
