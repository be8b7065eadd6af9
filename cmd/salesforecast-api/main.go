// Command salesforecast-api serves predictions from a trained bundle.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YuminosukeSato/salesforecast/config"
	"github.com/YuminosukeSato/salesforecast/pkg/log"
	"github.com/YuminosukeSato/salesforecast/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		log.GetLogger().Error("Server failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Read(config.DefaultEnvFile)
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("salesforecast-api", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.StringVar(&cfg.ModelsDir, "models", cfg.ModelsDir, "artifact directory")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := log.SetupLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	s := server.NewFromDir(cfg.ModelsDir)
	return s.ListenAndServe(ctx, cfg.Addr, shutdownTimeout)
}
