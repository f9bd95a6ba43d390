package infrastructure_test

import (
	"testing"

	"github.com/einstalek/invoice-ai/internal/config"
	"github.com/einstalek/invoice-ai/internal/infrastructure"
	"github.com/einstalek/invoice-ai/pkg/database"
	"github.com/einstalek/invoice-ai/pkg/storage"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;"

func validConfig() *config.Config {
	return &config.Config{
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			Name:            "invoices",
			User:            "invoices",
			SSLMode:         "disable",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: "15m",
			ConnTimeout:     "5s",
		},
		Storage: storage.Config{
			ContainerName:    "ledger",
			ConnectionString: azuriteConnString,
		},
		Ledger:  config.LedgerConfig{Driver: config.LedgerBlob},
		Version: "0.1.0",
	}
}

func TestNew(t *testing.T) {
	infra, err := infrastructure.New(validConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { infra.Database.Connection().Close() })

	if infra.Lifecycle == nil {
		t.Error("Lifecycle is nil")
	}
	if infra.Logger == nil {
		t.Error("Logger is nil")
	}
	if infra.Clock == nil {
		t.Error("Clock is nil")
	}
	if infra.Storage == nil {
		t.Error("Storage is nil with blob ledger")
	}
	if infra.Events == nil {
		t.Error("Events is nil")
	}
	if infra.Identity == nil {
		t.Error("Identity is nil")
	}
}

func TestNewMemoryLedgerSkipsStorage(t *testing.T) {
	cfg := validConfig()
	cfg.Ledger.Driver = config.LedgerMemory
	cfg.Storage = storage.Config{}

	infra, err := infrastructure.New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { infra.Database.Connection().Close() })

	if infra.Storage != nil {
		t.Error("Storage should be nil with memory ledger")
	}
}

func TestNewInvalidStorageConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.ConnectionString = "not-a-connection-string"

	if _, err := infrastructure.New(cfg); err == nil {
		t.Fatal("expected error for invalid storage connection string")
	}
}
