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
	"github.com/speedwagon-io/vitals/internal/lib/backoff"
	"github.com/speedwagon-io/vitals/internal/lib/logger/sl"
	"github.com/speedwagon-io/vitals/internal/monitor"
	"github.com/speedwagon-io/vitals/internal/view"
	"github.com/speedwagon-io/vitals/internal/vitals"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	log := sl.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	log.Info("starting vitals",
		slog.String("env", cfg.Env),
		slog.String("store", cfg.Store.Driver),
	)

	var store healthstore.Store
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		sqliteStore, err := healthstore.NewSQLiteStore(log, cfg.Store.Path, healthstore.SQLiteOptions{
			PollInterval: cfg.Store.PollInterval,
			Denied:       config.MustMetrics(cfg.Store.Denied),
		})
		if err != nil {
			log.Error("failed to open store", sl.Err(err))
			os.Exit(1)
		}
		store = sqliteStore
	case config.DriverHTTP:
		store = healthstore.NewRemoteStore(
			log,
			cfg.Store.BaseURL,
			cfg.Store.Timeout,
			cfg.Store.PollInterval,
			backoff.NewExponential(cfg.Store.Retry.InitialDelay, cfg.Store.Retry.MaxDelay),
		)
	case config.DriverMemory:
		store = healthstore.NewMemoryStore()
	default:
		log.Error("unknown store driver", slog.String("driver", cfg.Store.Driver))
		os.Exit(1)
	}

	state := monitor.NewState()
	mon := monitor.NewMonitor(
		log,
		store,
		vitals.NewFetcher(log, store),
		state,
		monitor.Options{
			Watch:     config.MustMetrics(cfg.Monitor.Watch),
			Authorize: config.MustMetrics(cfg.Monitor.Authorize),
		},
	)

	server := health.NewServer(log, cfg.HTTP.Address)
	server.AddChecker(health.NewStoreHealthChecker(store.Name(), store.Available))
	server.AddChecker(health.NewConnectionHealthChecker(state.Connected))
	server.AddRoutes(view.NewHandler(log, state, cfg.HTTP.Refresh).Register)

	if err := server.Start(); err != nil {
		log.Error("failed to start http server", sl.Err(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", slog.String("signal", sig.String()))
		cancel()
	}()

	mon.Start(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop http server", sl.Err(err))
	}

	if err := store.Close(); err != nil {
		log.Error("failed to close store", sl.Err(err))
	}

	log.Info("vitals stopped")
}
