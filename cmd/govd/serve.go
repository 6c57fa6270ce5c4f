package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"govchain/config"
	"govchain/core"
	"govchain/observability/logging"
	govotel "govchain/observability/otel"
	"govchain/rpc"
	"govchain/storage"
	"govchain/storage/audit"
)

func runServeCommand(args []string, _ io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "Path to the configuration file (TOML or YAML)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}
	logger := logging.SetupWithOptions(logging.Options{
		Service:    "govd",
		Env:        cfg.Logging.Env,
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("govd stopped", slog.String("error", err.Error()))
		return 1
	}
	return 0
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	nodeCfg, err := cfg.NodeConfig()
	if err != nil {
		return err
	}

	shutdownTelemetry, err := govotel.Init(ctx, govotel.Config{
		ServiceName: "govd",
		Environment: cfg.Logging.Env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     govotel.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
		Attributes: map[string]string{
			"gov.chain_id": strconv.FormatUint(nodeCfg.ChainID, 10),
			"gov.governor": nodeCfg.Governor.Hex(),
		},
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	node, err := core.NewNode(db, nodeCfg, core.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("start node: %w", err)
	}

	var auditSource rpc.AuditSource
	if cfg.Audit.Enabled {
		if cfg.Audit.Driver == audit.DriverSQLite {
			if err := os.MkdirAll(filepath.Dir(cfg.Audit.DSN), 0o755); err != nil {
				return fmt.Errorf("prepare audit directory: %w", err)
			}
		}
		store, err := audit.Open(cfg.Audit.Driver, cfg.Audit.DSN)
		if err != nil {
			return err
		}
		defer store.Close()
		store.SetLogger(logger)
		node.Subscribe(store)
		auditSource = store
	}

	server := rpc.NewServer(node, rpc.Config{
		ListenAddress:      cfg.API.ListenAddress,
		RequireAuth:        cfg.API.RequireAuth,
		JWTSecret:          cfg.JWTSecret(),
		JWTIssuer:          cfg.API.JWTIssuer,
		RateLimitPerSecond: cfg.API.RateLimitPerSecond,
		RateLimitBurst:     cfg.API.RateLimitBurst,
		ReadTimeout:        time.Duration(cfg.API.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:       time.Duration(cfg.API.WriteTimeoutSeconds) * time.Second,
		Logger:             logger,
	}, auditSource)

	logger.Info("govd started",
		slog.String("governor", nodeCfg.Governor.Hex()),
		slog.String("timelock", nodeCfg.Timelock.Hex()),
		slog.Bool("audit", cfg.Audit.Enabled),
		logging.MaskField("jwt_secret", cfg.JWTSecret()))
	return server.ListenAndServe(ctx)
}
