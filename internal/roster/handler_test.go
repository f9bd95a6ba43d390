package roster_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/einstalek/invoice-ai/internal/roster"
	"github.com/einstalek/invoice-ai/pkg/identity"
)

func setupMux(h *roster.Handler) http.Handler {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		mux.HandleFunc(route.Method+" "+group.Prefix+route.Pattern, route.Handler)
	}
	resolver, _ := identity.New(context.Background(), &identity.Config{})
	return identity.Middleware(resolver, slog.New(slog.NewTextHandler(io.Discard, nil)))(mux)
}

func TestHandlerRoster(t *testing.T) {
	mem := roster.NewMemory(slog.New(slog.NewTextHandler(io.Discard, nil)), snapshot())
	mux := setupMux(mem.Handler())

	tests := []struct {
		name string
		path string
		want int
	}{
		{"found", "/organizations/" + org.String() + "/roster", http.StatusOK},
		{"unknown org", "/organizations/" + outsider.String() + "/roster", http.StatusNotFound},
		{"bad id", "/organizations/x/roster", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			req.Header.Set(identity.HeaderActorID, member.String())
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status: got %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK {
				var snap roster.Snapshot
				json.NewDecoder(rec.Body).Decode(&snap)
				if len(snap.Members) != 4 {
					t.Errorf("members: got %d, want 4", len(snap.Members))
				}
			}
		})
	}
}

func TestHandlerSetPolicy(t *testing.T) {
	tests := []struct {
		name  string
		actor string
		body  string
		want  int
	}{
		{"owner", owner.String(), `{"approvals_required": 2}`, http.StatusOK},
		{"accountant forbidden", accountant.String(), `{"approvals_required": 2}`, http.StatusForbidden},
		{"zero", owner.String(), `{"approvals_required": 0}`, http.StatusBadRequest},
		{"unknown field", owner.String(), `{"quorum": 2}`, http.StatusBadRequest},
		{"no actor", "", `{"approvals_required": 2}`, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := roster.NewMemory(slog.New(slog.NewTextHandler(io.Discard, nil)), snapshot())
			mux := setupMux(mem.Handler())

			req := httptest.NewRequest("PUT", "/organizations/"+org.String()+"/policy", bytes.NewBufferString(tt.body))
			if tt.actor != "" {
				req.Header.Set(identity.HeaderActorID, tt.actor)
			}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}
