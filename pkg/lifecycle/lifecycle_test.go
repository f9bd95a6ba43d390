package lifecycle_test

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/einstalek/invoice-ai/pkg/lifecycle"
)

func TestNotReadyBeforeStartup(t *testing.T) {
	lc := lifecycle.New()
	if lc.Ready() {
		t.Error("should not be ready before WaitForStartup")
	}
}

func TestReadyAfterStartup(t *testing.T) {
	lc := lifecycle.New()
	if err := lc.WaitForStartup(); err != nil {
		t.Fatalf("startup: %v", err)
	}

	if !lc.Ready() {
		t.Error("should be ready after WaitForStartup")
	}
}

func TestStartupHooksExecute(t *testing.T) {
	lc := lifecycle.New()

	var count atomic.Int32
	for range 3 {
		lc.OnStartup("counter", func() error {
			count.Add(1)
			return nil
		})
	}

	if err := lc.WaitForStartup(); err != nil {
		t.Fatalf("startup: %v", err)
	}

	if got := count.Load(); got != 3 {
		t.Errorf("startup hooks: got %d, want 3", got)
	}
}

func TestStartupFailureKeepsUnready(t *testing.T) {
	lc := lifecycle.New()
	boom := errors.New("ping refused")

	lc.OnStartup("database", func() error { return boom })
	lc.OnStartup("storage", func() error { return nil })

	err := lc.WaitForStartup()
	if !errors.Is(err, boom) {
		t.Fatalf("startup error: got %v, want %v", err, boom)
	}
	if !strings.Contains(err.Error(), "database") {
		t.Errorf("error should name the hook: %v", err)
	}
	if lc.Ready() {
		t.Error("should not be ready after a failed hook")
	}
}

func TestShutdownHooksExecute(t *testing.T) {
	lc := lifecycle.New()

	var cleaned atomic.Bool
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		cleaned.Store(true)
	})

	lc.WaitForStartup()

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	if !cleaned.Load() {
		t.Error("shutdown hook did not execute")
	}
	if lc.Ready() {
		t.Error("should not report ready after shutdown")
	}
}

func TestShutdownTimeout(t *testing.T) {
	lc := lifecycle.New()

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		time.Sleep(500 * time.Millisecond)
	})

	lc.WaitForStartup()

	if err := lc.Shutdown(50 * time.Millisecond); err == nil {
		t.Error("expected timeout error, got nil")
	}
}

func TestContextCancelledOnShutdown(t *testing.T) {
	lc := lifecycle.New()
	lc.WaitForStartup()

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	select {
	case <-lc.Context().Done():
	default:
		t.Error("context should be cancelled after shutdown")
	}
}
