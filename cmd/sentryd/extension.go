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

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	sentryconfig "github.com/sentryhq/sentryd/internal/config"
	"github.com/sentryhq/sentryd/internal/endpoint"
	"github.com/sentryhq/sentryd/internal/extension"
	"github.com/sentryhq/sentryd/internal/logging"
	"github.com/sentryhq/sentryd/internal/registry"
	"github.com/sentryhq/sentryd/internal/rpcx"
	"github.com/sentryhq/sentryd/pkg/errutil"
)

const extensionMinSDKVersion = "1.0.0"

// statusHandler is the built-in reference extension: it registers a
// single "status" table item under KindTable and answers Call with a
// one-row snapshot of its own uptime-free identity. It exists so
// sentryd's own binary is a runnable extension end to end without
// depending on a third-party extension binary being present.
type statusHandler struct {
	name string
}

func (h *statusHandler) Ping(context.Context) rpcx.Status { return rpcx.Success() }

func (h *statusHandler) Call(_ context.Context, registryName, item string, _ rpcx.Row) ([]rpcx.Row, rpcx.Status) {
	if registryName != string(registry.KindTable) || item != "status" {
		return nil, rpcx.Failure(fmt.Sprintf("unknown item %s.%s", registryName, item))
	}
	return []rpcx.Row{{"name": h.name, "status": "ok"}}, rpcx.Success()
}

func (h *statusHandler) Shutdown(context.Context) {}

// NewExtensionCmd creates the extension subcommand: a runnable
// reference extension process that registers with a manager, serves
// one "status" table item, and self-terminates when the manager goes
// away.
func NewExtensionCmd() *cobra.Command {
	var logFormat, extName, extVersion string

	cmd := &cobra.Command{
		Use:   "extension",
		Short: "Run a reference extension process",
		Long: `Run an extension process: registers with the manager at
--socket, serves a "status" table item, and exits when the manager
becomes unreachable. This command accepts only --socket, --timeout and
--interval; the extensions_socket, extensions_timeout and
extensions_interval names are not recognized here.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExtension(cmd.Context(), cmd.Flags(), logFormat, extName, extVersion)
		},
	}

	sentryconfig.RegisterFlags(cmd.Flags(), "extension")
	cmd.Flags().StringVar(&logFormat, "log-format", "json", "log format (json or text)")
	cmd.Flags().StringVar(&extName, "extension-name", "sentryd-status", "name this extension registers under")
	cmd.Flags().StringVar(&extVersion, "extension-version", version, "version this extension reports")

	return cmd
}

func runExtension(ctx context.Context, fs *pflag.FlagSet, logFormat, name, extVersion string) error {
	cfg, err := sentryconfig.Load(fs, "extension", configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DisableExtensions {
		return fmt.Errorf("extensions are disabled")
	}

	logger := logging.Setup("sentryd-extension", extVersion, logFormat, nil)
	slog.SetDefault(logger)

	ep := newEndpoint(cfg.Timeout)
	extRegistry := registry.New(nil)
	if err := extRegistry.Add(registry.KindTable, "status", 0); err != nil {
		return fmt.Errorf("register local table: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	result, err := extension.BootstrapExtension(ctx, extension.ExtensionBootstrapConfig{
		Endpoint:    ep,
		ManagerAddr: endpoint.Address(cfg.Socket),
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		Info: extension.Identity{
			Name:          name,
			Version:       extVersion,
			SDKVersion:    extensionMinSDKVersion,
			MinSDKVersion: extensionMinSDKVersion,
		},
		Registry: extRegistry,
		Handler:  &statusHandler{name: name},
		Logger:   logger,
	})
	if err != nil {
		errutil.LogError(logger, "extension bootstrap failed", err)
		return err
	}

	logger.Info("extension registered", "uuid", result.UUID, "addr", result.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	result.Watcher.Stop()
	if err := result.Server.Stop(context.Background()); err != nil {
		logger.Warn("error stopping extension server", "error", err)
	}
	return nil
}
