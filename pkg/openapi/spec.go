// Package openapi builds OpenAPI 3.1 documents in code and serves them as
// JSON.
package openapi

import (
	"fmt"
	"net/http"
)

// Spec is an OpenAPI 3.1 document.
type Spec struct {
	OpenAPI    string               `json:"openapi"`
	Info       *Info                `json:"info"`
	Servers    []*Server            `json:"servers,omitempty"`
	Paths      map[string]*PathItem `json:"paths"`
	Components *Components          `json:"components,omitempty"`
}

// NewSpec creates a Spec with the default components and no paths.
func NewSpec(title, version string) *Spec {
	return &Spec{
		OpenAPI: "3.1.0",
		Info: &Info{
			Title:   title,
			Version: version,
		},
		Components: NewComponents(),
		Paths:      make(map[string]*PathItem),
	}
}

func (s *Spec) AddServer(url string) {
	s.Servers = append(s.Servers, &Server{URL: url})
}

func (s *Spec) SetDescription(desc string) {
	s.Info.Description = desc
}

// Add documents op as method on path. It panics on a method PathItem
// cannot hold or when the operation is already documented.
func (s *Spec) Add(method, path string, op *Operation) {
	item, ok := s.Paths[path]
	if !ok {
		item = &PathItem{}
		s.Paths[path] = item
	}

	var slot **Operation
	switch method {
	case http.MethodGet:
		slot = &item.Get
	case http.MethodPost:
		slot = &item.Post
	case http.MethodPut:
		slot = &item.Put
	case http.MethodPatch:
		slot = &item.Patch
	case http.MethodDelete:
		slot = &item.Delete
	default:
		panic(fmt.Sprintf("openapi: unsupported method %s %s", method, path))
	}
	if *slot != nil {
		panic(fmt.Sprintf("openapi: %s %s documented twice", method, path))
	}
	*slot = op
}

// Operation returns the operation documented for method on path, or nil.
func (s *Spec) Operation(method, path string) *Operation {
	item, ok := s.Paths[path]
	if !ok {
		return nil
	}
	switch method {
	case http.MethodGet:
		return item.Get
	case http.MethodPost:
		return item.Post
	case http.MethodPut:
		return item.Put
	case http.MethodPatch:
		return item.Patch
	case http.MethodDelete:
		return item.Delete
	}
	return nil
}

// ServeSpec serves pre-serialized spec bytes.
func ServeSpec(specBytes []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(specBytes)
	}
}
