// Package module mounts independently configured handler trees under
// single-segment path prefixes such as /api.
package module

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/einstalek/invoice-ai/pkg/middleware"
)

// Module serves an inner router below prefix. The inner router sees paths
// with the prefix removed and runs behind the module's own middleware.
type Module struct {
	prefix string
	inner  http.Handler
	stack  middleware.System

	build   sync.Once
	wrapped http.Handler
}

// New panics unless prefix is a single segment like "/api".
func New(prefix string, router http.Handler) *Module {
	if !strings.HasPrefix(prefix, "/") || strings.Count(prefix, "/") != 1 || len(prefix) < 2 {
		panic(fmt.Sprintf("module prefix must be a single /segment, got %q", prefix))
	}
	return &Module{prefix: prefix, inner: router, stack: middleware.New()}
}

// Use appends mw to the stack. The stack is frozen on the first request.
func (m *Module) Use(mw func(http.Handler) http.Handler) {
	m.stack.Use(mw)
}

// Handler is the inner router wrapped in the module middleware.
func (m *Module) Handler() http.Handler {
	m.build.Do(func() { m.wrapped = m.stack.Apply(m.inner) })
	return m.wrapped
}

// Serve strips the prefix and dispatches. r is not modified.
func (m *Module) Serve(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, m.prefix)
	if rest == "" {
		rest = "/"
	}

	inner := r.Clone(r.Context())
	inner.URL.Path = rest
	inner.URL.RawPath = ""
	m.Handler().ServeHTTP(w, inner)
}
