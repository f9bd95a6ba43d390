package events_test

import (
	"context"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/einstalek/invoice-ai/pkg/events"
	"github.com/einstalek/invoice-ai/pkg/lifecycle"
)

func TestFinalizeDefaults(t *testing.T) {
	cfg := events.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if cfg.Enabled() {
		t.Error("empty url should disable publishing")
	}
	if cfg.SubjectPrefix != "invoices" {
		t.Errorf("subject_prefix: got %s, want invoices", cfg.SubjectPrefix)
	}
	if cfg.ConnectTimeoutDuration() != 5*time.Second {
		t.Errorf("connect_timeout: got %v, want 5s", cfg.ConnectTimeoutDuration())
	}
}

func TestFinalizeEnvAndValidation(t *testing.T) {
	t.Setenv("TEST_NATS_URL", "nats://localhost:4222")
	t.Setenv("TEST_NATS_TIMEOUT", "soon")

	cfg := events.Config{}
	err := cfg.Finalize(&events.Env{URL: "TEST_NATS_URL", ConnectTimeout: "TEST_NATS_TIMEOUT"})
	if err == nil {
		t.Fatal("expected error for invalid connect_timeout")
	}
	if cfg.URL != "nats://localhost:4222" {
		t.Errorf("url: got %s", cfg.URL)
	}
}

func TestDisabledPublisherIsNoop(t *testing.T) {
	sys := events.New(&events.Config{}, slog.Default())

	lc := lifecycle.New()
	if err := sys.Start(lc); err != nil {
		t.Fatalf("start: %v", err)
	}
	sys.Publish(context.Background(), "submission.approved", map[string]string{"id": "x"})

	if err := lc.WaitForStartup(); err != nil {
		t.Fatalf("startup: %v", err)
	}
}

func TestRecorder(t *testing.T) {
	var r events.Recorder
	r.Publish(context.Background(), "a", 1)
	r.Publish(context.Background(), "b", 2)

	if got := r.Names(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("names: got %v", got)
	}
	if got := r.Events()[1].Payload; got != 2 {
		t.Errorf("payload: got %v, want 2", got)
	}
}
