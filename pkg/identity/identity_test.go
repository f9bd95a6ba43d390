package identity_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/einstalek/invoice-ai/pkg/handlers"
	"github.com/einstalek/invoice-ai/pkg/identity"
)

func TestHeaderMiddleware(t *testing.T) {
	resolver, err := identity.New(context.Background(), &identity.Config{})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	actor := uuid.New()

	var seen uuid.UUID
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = identity.ActorFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := identity.Middleware(resolver, slog.Default())(inner)

	tests := []struct {
		name   string
		method string
		header string
		want   int
	}{
		{"valid actor", "GET", actor.String(), http.StatusNoContent},
		{"missing header", "GET", "", http.StatusUnauthorized},
		{"malformed header", "POST", "not-a-uuid", http.StatusUnauthorized},
		{"preflight passes", "OPTIONS", "", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = uuid.Nil
			req := httptest.NewRequest(tt.method, "/submissions", nil)
			if tt.header != "" {
				req.Header.Set(identity.HeaderActorID, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status: got %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized {
				var body handlers.ErrorResponse
				json.NewDecoder(rec.Body).Decode(&body)
				if body.Code != "UNAUTHENTICATED" {
					t.Errorf("code: got %q", body.Code)
				}
				return
			}
			if tt.method != "OPTIONS" && seen != actor {
				t.Errorf("actor: got %s, want %s", seen, actor)
			}
		})
	}
}

func TestTokenResolverRequiresBearer(t *testing.T) {
	resolver, err := identity.New(context.Background(), &identity.Config{
		Enabled:  true,
		Issuer:   "https://issuer.example",
		ClientID: "invoice-ai",
		JWKSURL:  "https://issuer.example/keys",
	})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(identity.HeaderActorID, uuid.NewString())

	if _, err := resolver.Resolve(req); err == nil {
		t.Error("header actor must be ignored when tokens are required")
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := identity.Config{Enabled: true}
	if err := cfg.Finalize(nil); err == nil {
		t.Error("expected issuer error")
	}

	t.Setenv("TEST_AUTH_ENABLED", "false")
	cfg = identity.Config{Enabled: true}
	if err := cfg.Finalize(&identity.Env{Enabled: "TEST_AUTH_ENABLED"}); err != nil {
		t.Errorf("disabled auth should validate: %v", err)
	}
}

func TestActorFromEmptyContext(t *testing.T) {
	if _, ok := identity.ActorFrom(context.Background()); ok {
		t.Error("expected no actor")
	}
}
