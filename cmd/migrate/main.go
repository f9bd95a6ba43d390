package main

import (
	"embed"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/spf13/pflag"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/einstalek/invoice-ai/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

const envDSN = "INVOICE_DB_DSN"

func main() {
	flags := pflag.NewFlagSet("migrate", pflag.ContinueOnError)

	var (
		dsn     = flags.String("dsn", "", "database connection URL (default: $"+envDSN+", then config.toml)")
		up      = flags.Bool("up", false, "run all up migrations")
		down    = flags.Bool("down", false, "run all down migrations")
		steps   = flags.Int("steps", 0, "number of migrations (positive=up, negative=down)")
		version = flags.Bool("version", false, "print current migration version")
		force   = flags.Int("force", -1, "force set version (use with caution)")
	)

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}

	url, err := resolveDSN(*dsn)
	if err != nil {
		log.Fatalf("resolve database url: %v", err)
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		log.Fatalf("failed to create migration source: %v", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		log.Fatalf("failed to create migrator: %v", err)
	}
	defer m.Close()

	switch {
	case *version:
		v, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			log.Fatalf("failed to get version: %v", err)
		}
		fmt.Printf("version: %d, dirty: %v\n", v, dirty)
	case flags.Changed("force"):
		if err := m.Force(*force); err != nil {
			log.Fatalf("failed to force version: %v", err)
		}
		fmt.Printf("forced to version %d\n", *force)
	case *up:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("failed to run up migrations: %v", err)
		}
		fmt.Println("migrations applied")
	case *down:
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("failed to run down migrations: %v", err)
		}
		fmt.Println("migrations reverted")
	case *steps != 0:
		if err := m.Steps(*steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("failed to run migrations: %v", err)
		}
		fmt.Printf("applied %d migration steps\n", *steps)
	default:
		fmt.Fprintln(os.Stderr, "usage: migrate [--dsn URL] (--up | --down | --steps N | --version | --force N)")
		flags.PrintDefaults()
	}
}

// resolveDSN prefers the flag, then the environment, then the database
// section of the service configuration.
func resolveDSN(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv(envDSN); env != "" {
		return env, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return cfg.Database.URL(), nil
}
