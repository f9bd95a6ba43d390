package database_test

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/einstalek/invoice-ai/pkg/database"
	"github.com/einstalek/invoice-ai/pkg/lifecycle"
)

func TestStartFailsWhenUnreachable(t *testing.T) {
	cfg := database.Config{Name: "invoices", User: "invoices", Host: "127.0.0.1", Port: 1, ConnTimeout: "600ms"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	db, err := database.New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	lc := lifecycle.New()
	if err := db.Start(lc); err != nil {
		t.Fatalf("start: %v", err)
	}

	begin := time.Now()
	err = lc.WaitForStartup()
	if err == nil {
		t.Fatal("startup succeeded against a closed port")
	}
	if !strings.Contains(err.Error(), "database") || !strings.Contains(err.Error(), "attempts") {
		t.Errorf("error: got %v", err)
	}
	if elapsed := time.Since(begin); elapsed > 5*time.Second {
		t.Errorf("gave up after %s, want about the connect timeout", elapsed)
	}
	if lc.Ready() {
		t.Error("coordinator must stay unready")
	}

	if err := lc.Shutdown(time.Second); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
