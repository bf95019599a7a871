package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	lsmhttp "lsmcore/internal/http"
	"lsmcore/pkg/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := initConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	initLogger(&cfg)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// refuse to start without durable storage
	db, err := store.Open(cfg.DB, func(o *store.Options) {
		o.Registerer = registry
	})
	if err != nil {
		slog.Error("failed to open store", "dir", cfg.DB.WAL.Dir, "error", err)
		os.Exit(1)
	}

	rec := db.Recovery()
	if rec.Warning != nil {
		slog.Warn("recovery stopped early", "applied", rec.Applied, "warning", rec.Warning)
	}
	slog.Info("LSMDB started", "wal_dir", cfg.DB.WAL.Dir, "recovered", rec.Applied)

	server := lsmhttp.NewServer(db, cfg.Server, registry)
	runErr := server.Run(ctx)
	if runErr != nil {
		slog.Error("HTTP server stopped with error", "error", runErr)
	}

	if err := db.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
		os.Exit(1)
	}

	slog.Info("LSMDB stopped")
	if runErr != nil {
		os.Exit(1)
	}
}
