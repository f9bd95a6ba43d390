package api_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/einstalek/invoice-ai/internal/activities"
	"github.com/einstalek/invoice-ai/internal/api"
	"github.com/einstalek/invoice-ai/internal/approvals"
	"github.com/einstalek/invoice-ai/internal/config"
	"github.com/einstalek/invoice-ai/internal/export"
	"github.com/einstalek/invoice-ai/internal/roster"
	"github.com/einstalek/invoice-ai/internal/submissions"
	"github.com/einstalek/invoice-ai/pkg/clock"
	"github.com/einstalek/invoice-ai/pkg/events"
	"github.com/einstalek/invoice-ai/pkg/openapi"
	"github.com/einstalek/invoice-ai/pkg/pagination"
	"github.com/einstalek/invoice-ai/pkg/routes"
)

func testConfig() *config.Config {
	return &config.Config{
		Version: "1.2.3",
		API: config.APIConfig{
			BasePath: "/api",
			OpenAPI:  openapi.Config{Title: "Invoices", Description: "test"},
		},
	}
}

// registeredGroups builds every handler group the API module mounts.
func registeredGroups() []routes.Group {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pg := pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}
	clk := clock.NewFake(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))

	log := activities.NewMemory(logger, pg)
	rost := roster.NewMemory(logger)
	subs := submissions.New(submissions.NewMemoryStore(log), rost, clk, &events.Recorder{}, logger, pg, submissions.Policy{
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
		ClaimTTL:     time.Minute,
	})

	return []routes.Group{
		subs.Handler(1 << 20).Routes(),
		log.Handler(activities.Access{}).Routes(),
		approvals.New(subs, logger).Handler(1 << 20).Routes(),
		export.New(subs, export.NewMemoryLedger("entries", clk), logger).Handler().Routes(),
		rost.Handler().Routes(),
	}
}

func TestSpecDocumentsEveryRoute(t *testing.T) {
	spec := api.Spec(testConfig())

	documented := 0
	for _, item := range spec.Paths {
		for _, op := range []*openapi.Operation{item.Get, item.Post, item.Put, item.Patch, item.Delete} {
			if op != nil {
				documented++
			}
		}
	}

	registered := 0
	for _, g := range registeredGroups() {
		for _, r := range g.Routes {
			registered++
			path := g.Prefix + r.Pattern
			op := spec.Operation(r.Method, path)
			if !assert.NotNil(t, op, "%s %s is not documented", r.Method, path) {
				continue
			}
			assert.NotEmpty(t, op.Tags, "%s %s", r.Method, path)
			assert.Contains(t, op.Responses, http.StatusUnauthorized, "%s %s", r.Method, path)
			if strings.Contains(path, "{id}") {
				require.NotEmpty(t, op.Parameters, "%s %s", r.Method, path)
				assert.Equal(t, "path", op.Parameters[0].In)
			}
		}
	}
	assert.Equal(t, registered, documented, "documented operations without a route")
}

func TestSpecReferencesResolve(t *testing.T) {
	spec := api.Spec(testConfig())

	assert.Equal(t, "Invoices", spec.Info.Title)
	assert.Equal(t, "1.2.3", spec.Info.Version)
	require.Len(t, spec.Servers, 1)
	assert.Equal(t, "/api", spec.Servers[0].URL)

	data, err := openapi.MarshalJSON(spec)
	require.NoError(t, err)

	var doc struct {
		Components struct {
			Schemas   map[string]json.RawMessage `json:"schemas"`
			Responses map[string]json.RawMessage `json:"responses"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	var refs []string
	collectRefs(t, data, &refs)
	require.NotEmpty(t, refs)

	for _, ref := range refs {
		switch {
		case strings.HasPrefix(ref, "#/components/schemas/"):
			assert.Contains(t, doc.Components.Schemas, strings.TrimPrefix(ref, "#/components/schemas/"))
		case strings.HasPrefix(ref, "#/components/responses/"):
			assert.Contains(t, doc.Components.Responses, strings.TrimPrefix(ref, "#/components/responses/"))
		default:
			t.Errorf("unexpected ref %s", ref)
		}
	}
}

func collectRefs(t *testing.T, data []byte, refs *[]string) {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal(data, &v))

	var walk func(any)
	walk = func(node any) {
		switch n := node.(type) {
		case map[string]any:
			for k, child := range n {
				if s, ok := child.(string); ok && k == "$ref" {
					*refs = append(*refs, s)
					continue
				}
				walk(child)
			}
		case []any:
			for _, child := range n {
				walk(child)
			}
		}
	}
	walk(v)
}
