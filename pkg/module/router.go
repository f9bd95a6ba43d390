package module

import (
	"fmt"
	"net/http"
	"strings"
)

// Router sends each request to the module owning its first path segment and
// everything else to a plain ServeMux.
type Router struct {
	modules map[string]*Module
	native  *http.ServeMux
}

func NewRouter() *Router {
	return &Router{modules: map[string]*Module{}, native: http.NewServeMux()}
}

// HandleNative registers pattern on the fallback mux, e.g. "GET /healthz".
func (r *Router) HandleNative(pattern string, h http.HandlerFunc) {
	r.native.HandleFunc(pattern, h)
}

// Mount panics if a module already owns m's prefix.
func (r *Router) Mount(m *Module) {
	if _, taken := r.modules[m.prefix]; taken {
		panic(fmt.Sprintf("module already mounted at %s", m.prefix))
	}
	r.modules[m.prefix] = m
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// "/api/submissions/" and "/api/submissions" route alike
	if p := req.URL.Path; len(p) > 1 && strings.HasSuffix(p, "/") {
		req.URL.Path = strings.TrimSuffix(p, "/")
	}

	segment, _, _ := strings.Cut(strings.TrimPrefix(req.URL.Path, "/"), "/")
	if m, ok := r.modules["/"+segment]; ok {
		m.Serve(w, req)
		return
	}
	r.native.ServeHTTP(w, req)
}
