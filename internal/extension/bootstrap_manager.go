package extension

import (
	"context"
	"log/slog"
	"time"

	"github.com/sentryhq/sentryd/internal/endpoint"
	"github.com/sentryhq/sentryd/internal/rpcx"
)

// ManagerBootstrapConfig configures BootstrapManager, the sequence run
// from within the host process.
type ManagerBootstrapConfig struct {
	Endpoint           endpoint.Endpoint
	Addr               endpoint.Address
	Interval           time.Duration
	Timeout            time.Duration
	Manager            *Manager
	RequiredExtensions []string
	Logger             *slog.Logger
}

// ManagerBootstrapResult carries the running watcher and RPC server the
// caller must keep alive for the lifetime of the host process.
type ManagerBootstrapResult struct {
	Watcher *ManagerWatcher
	Server  *rpcx.Server
}

// BootstrapManager runs the manager startup sequence end to end:
// rebind the manager endpoint, start the watcher, start the RPC
// server, then gate startup on any required extensions.
//
// The required-extensions gate isolates the first missing dependency:
// only the first required name that isn't already pingable pays the
// full bounded wait; every required name checked after that gets a
// single immediate probe.
func BootstrapManager(ctx context.Context, cfg ManagerBootstrapConfig) (*ManagerBootstrapResult, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Step 1: ensure the manager endpoint is rebindable.
	if err := cfg.Endpoint.Rebind(cfg.Addr); err != nil {
		return nil, errEndpoint("rebind manager endpoint %s: %s", cfg.Addr, err)
	}

	// Step 2: start the manager-side watcher.
	watcher := &ManagerWatcher{
		Endpoint:     cfg.Endpoint,
		ManagerAddr:  cfg.Addr,
		Manager:      cfg.Manager,
		Interval:     cfg.Interval,
		ProbeTimeout: cfg.Timeout,
		Logger:       logger,
	}
	watcher.Start()

	abort := func(srv *rpcx.Server, err error) (*ManagerBootstrapResult, error) {
		watcher.Stop(ctx)
		if srv != nil {
			_ = srv.Stop(ctx)
		}
		return nil, err
	}

	// Step 3: start the manager RPC server.
	srv, err := rpcx.NewServer("manager", &rpcx.ManagerService{Handler: cfg.Manager})
	if err != nil {
		return abort(nil, err)
	}
	if _, err := srv.Start(cfg.Endpoint, cfg.Addr); err != nil {
		return abort(nil, errEndpoint("start manager server on %s: %s", cfg.Addr, err))
	}

	// Step 4-5: gate startup on required extensions, if configured.
	waited := false
	for _, name := range cfg.RequiredExtensions {
		if name == "" {
			continue
		}
		predicate := requiredExtensionPredicate(cfg.Endpoint, cfg.Addr, cfg.Manager, name)

		result := Once(ctx, predicate)
		if !result.Ready && !waited {
			result = Wait(ctx, cfg.Timeout, predicate)
			waited = true
		}

		if !result.Ready {
			logger.Warn("required extension never appeared", "name", name)
			return abort(srv, errConfiguration("Extension not autoloaded: %s", name))
		}
		logger.Info("required extension present", "name", name)
	}

	return &ManagerBootstrapResult{Watcher: watcher, Server: srv}, nil
}

func requiredExtensionPredicate(ep endpoint.Endpoint, managerAddr endpoint.Address, m *Manager, name string) Predicate {
	return func(context.Context) ProbeResult {
		uuid, _, ok := m.LookupByName(name)
		if !ok {
			return ProbeResult{Ready: false, Err: errConfiguration("Extension not autoloaded: %s", name)}
		}
		client := rpcx.ExtensionClient{Endpoint: ep, Addr: endpoint.ExtensionAddress(managerAddr, uuid)}
		status, err := client.Ping()
		if err != nil {
			return ProbeResult{Ready: false, Err: errTransport("ping", err)}
		}
		if !status.OK() {
			return ProbeResult{Ready: false, Err: errProtocol("%s", status.Message)}
		}
		return ProbeResult{Ready: true}
	}
}
