package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/einstalek/invoice-ai/internal/api"
	"github.com/einstalek/invoice-ai/internal/config"
	"github.com/einstalek/invoice-ai/pkg/openapi"
)

func main() {
	flags := pflag.NewFlagSet("server", pflag.ContinueOnError)
	env := flags.String("env", "", "configuration overlay to load (sets "+config.EnvInvoiceEnv+")")
	showVersion := flags.Bool("version", false, "print the version and exit")
	specOut := flags.String("openapi", "", "write the API document to this file and exit")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}

	if *env != "" {
		os.Setenv(config.EnvInvoiceEnv, *env)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed: ", err)
	}

	if *showVersion {
		fmt.Println(cfg.Version)
		return
	}

	if *specOut != "" {
		if err := openapi.WriteJSON(api.Spec(cfg), *specOut); err != nil {
			log.Fatal("write api document: ", err)
		}
		return
	}

	svc, err := newService(cfg)
	if err != nil {
		log.Fatal("init failed: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.run(ctx); err != nil {
		log.Fatal(err)
	}
}
