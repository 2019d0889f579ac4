// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 sentryd Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	sentryconfig "github.com/sentryhq/sentryd/internal/config"
	"github.com/sentryhq/sentryd/internal/endpoint"
	"github.com/sentryhq/sentryd/internal/extension"
	"github.com/sentryhq/sentryd/internal/logging"
	"github.com/sentryhq/sentryd/internal/metrics"
	"github.com/sentryhq/sentryd/internal/registry"
	"github.com/sentryhq/sentryd/pkg/errutil"
)

// hostSDKVersion is the SDK version this manager build supports;
// registerExtension rejects any extension whose min_sdk_version
// exceeds it.
const hostSDKVersion = "1.0.0"

// NewManagerCmd creates the manager subcommand: the host process that
// listens for extension registrations, watches their liveness, and
// serves the RPC façade the rest of the host talks to.
func NewManagerCmd() *cobra.Command {
	var logFormat string

	cmd := &cobra.Command{
		Use:   "manager",
		Short: "Run the extension manager (host process)",
		Long: `Run the manager process: listens on the extensions_socket
endpoint, autoloads configured extensions, watches their liveness, and
blocks until every extensions_require name has registered.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runManager(cmd.Context(), cmd.Flags(), logFormat)
		},
	}

	sentryconfig.RegisterFlags(cmd.Flags(), "manager")
	cmd.Flags().StringVar(&logFormat, "log-format", "json", "log format (json or text)")

	return cmd
}

func runManager(ctx context.Context, fs *pflag.FlagSet, logFormat string) error {
	cfg, err := sentryconfig.Load(fs, "manager", configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Setup("sentryd-manager", version, logFormat, nil)
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	extMetrics := extension.NewMetrics(reg)

	hostRegistry := registry.New(nil)
	mgr := extension.NewManager(version, hostSDKVersion, hostRegistry, logger)
	mgr.Metrics = extMetrics
	mgr.Disabled = cfg.DisableExtensions

	ep := newEndpoint(cfg.Timeout)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var metricsServer *metrics.Server
	if cfg.MetricsAddr != "" {
		metricsServer = metrics.NewServer(cfg.MetricsAddr, reg)
		if _, err := metricsServer.Start(); err != nil {
			logger.Warn("metrics server failed to start", "addr", cfg.MetricsAddr, "error", err)
			metricsServer = nil
		} else {
			logger.Info("metrics server listening", "addr", cfg.MetricsAddr)
		}
	}

	if cfg.DisableExtensions {
		logger.Info("extensions disabled, manager will not accept registrations")
	}

	result, err := extension.BootstrapManager(ctx, extension.ManagerBootstrapConfig{
		Endpoint:           ep,
		Addr:               endpoint.Address(cfg.Socket),
		Interval:           cfg.Interval,
		Timeout:            cfg.Timeout,
		Manager:            mgr,
		RequiredExtensions: cfg.Require,
		Logger:             logger,
	})
	if err != nil {
		errutil.LogError(logger, "manager bootstrap failed", err)
		return err
	}

	if !cfg.DisableExtensions && cfg.Extension != "" {
		if err := extension.LoadSingleUnsafe(cfg.Extension, &extension.ProcessLauncher{
			ExtraArgs: []string{"extension", "--socket", cfg.Socket},
		}); err != nil {
			logger.Warn("failed to launch unsafe extension", "path", cfg.Extension, "error", err)
		}
	} else if !cfg.DisableExtensions {
		launched, err := extension.LoadExtensions(cfg.ExtensionsAutoload, &extension.ProcessLauncher{
			ExtraArgs: []string{"extension", "--socket", cfg.Socket},
		}, logger)
		if err != nil {
			errutil.LogError(logger, "extensions autoload failed", err)
		}
		logger.Info("extensions autoload complete", "launched", launched)
	}

	logger.Info("manager ready", "socket", cfg.Socket)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer shutdownCancel()
	result.Watcher.Stop(shutdownCtx)
	if err := result.Server.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping manager server", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping metrics server", "error", err)
		}
	}

	logger.Info("manager shutdown complete")
	return nil
}
