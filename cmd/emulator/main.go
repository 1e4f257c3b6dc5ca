package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/speedwagon-io/vitals/internal/config"
	"github.com/speedwagon-io/vitals/internal/emulator"
	"github.com/speedwagon-io/vitals/internal/lib/logger/sl"
	"github.com/speedwagon-io/vitals/internal/sender"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	dryRun := flag.Bool("dry-run", false, "log samples instead of sending")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	log := sl.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	log.Info("starting emulator",
		slog.String("env", cfg.Env),
		slog.Duration("interval", cfg.Emulator.Interval),
		slog.Bool("dry_run", *dryRun),
	)

	// Use LogSender for dry-run mode, HTTPSender otherwise
	var dataSender sender.Sender
	if *dryRun {
		dataSender = sender.NewLogSender(log)
	} else {
		dataSender = sender.NewHTTPSender(log, &cfg.Sender)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dataSender.Health(ctx); err != nil {
		log.Warn("health-data API not reachable yet", sl.Err(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", slog.String("signal", sig.String()))
		cancel()
	}()

	emulator.Run(ctx, log, emulator.NewGenerator(cfg.Emulator.Seed, cfg.Emulator.Source), dataSender, cfg.Emulator.Interval)

	log.Info("emulator stopped")
}
