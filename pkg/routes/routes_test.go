package routes_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/einstalek/invoice-ai/pkg/routes"
)

func tag(name string, trail *[]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*trail = append(*trail, name)
			next.ServeHTTP(w, r)
		})
	}
}

func TestRegister(t *testing.T) {
	var trail []string

	group := routes.Group{
		Prefix:     "/submissions",
		Middleware: []func(http.Handler) http.Handler{tag("outer", &trail)},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}", Handler: func(w http.ResponseWriter, r *http.Request) {
				trail = append(trail, "find:"+r.PathValue("id"))
			}},
		},
		Children: []routes.Group{
			{
				Prefix:     "/{id}/decisions",
				Middleware: []func(http.Handler) http.Handler{tag("inner", &trail)},
				Routes: []routes.Route{
					{Method: "POST", Pattern: "", Handler: func(w http.ResponseWriter, r *http.Request) {
						trail = append(trail, "decide:"+r.PathValue("id"))
					}},
				},
			},
		},
	}

	mux := http.NewServeMux()
	routes.Register(mux, group)

	tests := []struct {
		method string
		path   string
		want   string
	}{
		{"GET", "/submissions/abc", "outer,find:abc"},
		{"POST", "/submissions/abc/decisions", "outer,inner,decide:abc"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			trail = nil
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if got := strings.Join(trail, ","); got != tt.want {
				t.Errorf("trail: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRegisterMethodMismatch(t *testing.T) {
	mux := http.NewServeMux()
	routes.Register(mux, routes.Group{
		Prefix: "/submissions",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: func(w http.ResponseWriter, r *http.Request) {}},
		},
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("DELETE", "/submissions", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rec.Code)
	}
}
