package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ordersync/backend/internal/domain/integration"
	"github.com/ordersync/backend/internal/infrastructure/config"
	"github.com/ordersync/backend/internal/infrastructure/logger"
	"github.com/ordersync/backend/internal/infrastructure/telemetry"
)

const usage = `usage: ordersync [-config path] <command>

commands:
  inbound    pull new storefront orders and write the exports
  outbound   reconcile ERP state and push shipments to the storefront
  sweep      repair records left in two lifecycle partitions
  serve      run passes on a schedule behind the ops HTTP server
`

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("ordersync", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a config file (default: ./config.toml)")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := fs.Parse(os.Args[1:]); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	command := fs.Arg(0)

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration: "+err.Error())
		return 1
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logger: "+err.Error())
		return 1
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Error("Failed to initialize log export", zap.Error(err))
		return 1
	}
	defer func() {
		if err := logs.Shutdown(context.Background()); err != nil {
			log.Warn("Error shutting down log export", zap.Error(err))
		}
	}()
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	log = logs.Bridge(log, level)

	log.Info("Starting ordersync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("account", cfg.App.Account),
		zap.String("command", command),
		zap.Bool("dry_run", cfg.App.DryRun),
	)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize", zap.Error(err))
		return 1
	}
	defer a.Close(context.Background())

	switch command {
	case "serve":
		err = serve(ctx, a)
	default:
		pass := integration.SyncPass(command)
		if !pass.IsValid() {
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
			return 2
		}
		_, err = a.runner.RunPass(ctx, pass)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Interrupted", zap.String("command", command))
		} else {
			log.Error("Command failed", zap.String("command", command), zap.Error(err))
		}
		return 1
	}
	return 0
}
