package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/speedwagon-io/vitals/internal/config"
	"github.com/speedwagon-io/vitals/internal/health"
	"github.com/speedwagon-io/vitals/internal/healthstore"
	"github.com/speedwagon-io/vitals/internal/lib/logger/sl"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	log := sl.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	log.Info("starting healthd",
		slog.String("env", cfg.Env),
		slog.String("path", cfg.Store.Path),
	)

	store, err := healthstore.NewSQLiteStore(log, cfg.Store.Path, healthstore.SQLiteOptions{
		PollInterval: cfg.Store.PollInterval,
		Denied:       config.MustMetrics(cfg.Store.Denied),
	})
	if err != nil {
		log.Error("failed to open store", sl.Err(err))
		os.Exit(1)
	}

	server := health.NewServer(log, cfg.Healthd.Address)
	server.AddChecker(health.NewStoreHealthChecker(store.Name(), store.Available))
	server.AddChecker(health.NewSampleCountHealthChecker(store.Count))
	server.AddRoutes(healthstore.NewAPI(log, store).Register)

	if err := server.Start(); err != nil {
		log.Error("failed to start http server", sl.Err(err))
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Info("received signal, shutting down", slog.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop http server", sl.Err(err))
	}

	if err := store.Close(); err != nil {
		log.Error("failed to close store", sl.Err(err))
	}

	log.Info("healthd stopped")
}
