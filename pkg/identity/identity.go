// Package identity resolves the acting user of a request and carries it
// on the request context.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"

	"github.com/einstalek/invoice-ai/pkg/handlers"
)

// HeaderActorID carries the actor when token verification is disabled.
const HeaderActorID = "X-Actor-ID"

// ErrUnauthenticated indicates the request carried no usable actor.
var ErrUnauthenticated = &authError{"authentication required"}

type authError struct{ msg string }

func (e *authError) Error() string { return e.msg }
func (e *authError) Code() string  { return "UNAUTHENTICATED" }

// Resolver extracts the acting user's id from a request.
type Resolver interface {
	Resolve(r *http.Request) (uuid.UUID, error)
}

// New builds a Resolver from cfg. When auth is enabled, bearer tokens are
// verified against the issuer's keys and the subject claim must be a UUID.
func New(ctx context.Context, cfg *Config) (Resolver, error) {
	if !cfg.Enabled {
		return headerResolver{}, nil
	}

	oc := &oidc.Config{ClientID: cfg.ClientID}

	if cfg.JWKSURL != "" {
		keys := oidc.NewRemoteKeySet(ctx, cfg.JWKSURL)
		return &tokenResolver{verifier: oidc.NewVerifier(cfg.Issuer, keys, oc)}, nil
	}

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	return &tokenResolver{verifier: provider.Verifier(oc)}, nil
}

type headerResolver struct{}

func (headerResolver) Resolve(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.Header.Get(HeaderActorID))
	if raw == "" {
		return uuid.Nil, ErrUnauthenticated
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed %s", ErrUnauthenticated, HeaderActorID)
	}
	return id, nil
}

type tokenResolver struct {
	verifier *oidc.IDTokenVerifier
}

func (t *tokenResolver) Resolve(r *http.Request) (uuid.UUID, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return uuid.Nil, ErrUnauthenticated
	}

	token, err := t.verifier.Verify(r.Context(), raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	id, err := uuid.Parse(token.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a user id", ErrUnauthenticated)
	}
	return id, nil
}

type ctxKey struct{}

// WithActor returns a copy of ctx carrying the actor id.
func WithActor(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// ActorFrom returns the actor stored by WithActor.
func ActorFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxKey{}).(uuid.UUID)
	return id, ok
}

// Middleware resolves the actor for every request and rejects the request
// with 401 when none can be established.
func Middleware(resolver Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			id, err := resolver.Resolve(r)
			if err != nil {
				if !errors.Is(err, ErrUnauthenticated) {
					err = fmt.Errorf("%w: %v", ErrUnauthenticated, err)
				}
				handlers.RespondError(w, logger, http.StatusUnauthorized, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), id)))
		})
	}
}

// FromRequest returns the request's actor or ErrUnauthenticated.
func FromRequest(r *http.Request) (uuid.UUID, error) {
	id, ok := ActorFrom(r.Context())
	if !ok {
		return uuid.Nil, ErrUnauthenticated
	}
	return id, nil
}
