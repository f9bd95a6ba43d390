// Package middleware holds the HTTP middleware shared by API modules:
// CORS, request logging and panic recovery.
package middleware

import (
	"net/http"
	"slices"
)

// System is an ordered middleware stack. The first Use call is the outermost.
type System interface {
	Use(mw func(http.Handler) http.Handler)
	Apply(handler http.Handler) http.Handler
}

type stack []func(http.Handler) http.Handler

func New() System {
	return &stack{}
}

func (s *stack) Use(mw func(http.Handler) http.Handler) {
	*s = append(*s, mw)
}

func (s *stack) Apply(h http.Handler) http.Handler {
	for _, mw := range slices.Backward(*s) {
		h = mw(h)
	}
	return h
}
