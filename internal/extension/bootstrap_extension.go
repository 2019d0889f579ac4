package extension

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/sentryhq/sentryd/internal/endpoint"
	"github.com/sentryhq/sentryd/internal/registry"
	"github.com/sentryhq/sentryd/internal/rpcx"
)

// ExtensionBootstrapConfig configures BootstrapExtension, the sequence
// run from within a newly started extension process.
type ExtensionBootstrapConfig struct {
	Endpoint    endpoint.Endpoint
	ManagerAddr endpoint.Address
	Interval    time.Duration
	Timeout     time.Duration
	Info        Identity
	Registry    registry.Registry
	Handler     rpcx.ExtensionHandler
	Logger      *slog.Logger
}

// ExtensionBootstrapResult carries everything the caller needs to keep
// the extension process alive: the watcher and RPC server it must hold
// open, the assigned UUID, and this extension's own derived endpoint.
type ExtensionBootstrapResult struct {
	UUID    uint64
	Watcher *ExtensionWatcher
	Server  *rpcx.Server
	Addr    endpoint.Address
	// Message carries the assigned UUID as text.
	Message string
}

// BootstrapExtension runs the extension startup sequence end to end:
// mark the registry external, start the watcher, probe the manager,
// register, adopt options, rebind the extension's own endpoint, and
// start serving. Any failure aborts the sequence, stops whatever was
// already started, and returns the error verbatim to the caller.
func BootstrapExtension(ctx context.Context, cfg ExtensionBootstrapConfig) (*ExtensionBootstrapResult, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Step 1: mark the local registry external so its broadcast never
	// includes host-built-in plugins.
	cfg.Registry.SetExternal(true)

	// Step 2: start the extension-side watcher; a bootstrapped extension
	// always exits fatally on a bad status from the manager.
	watcher := &ExtensionWatcher{
		Endpoint:         cfg.Endpoint,
		ManagerAddr:      cfg.ManagerAddr,
		Interval:         cfg.Interval,
		FatalOnBadStatus: true,
		Logger:           logger,
	}
	watcher.Start()

	abort := func(err error) (*ExtensionBootstrapResult, error) {
		watcher.Stop()
		return nil, err
	}

	// Step 3: timeout-bounded endpoint-active probe of the manager.
	ready, err := EndpointActive(ctx, cfg.Endpoint, cfg.ManagerAddr, true, cfg.Timeout)
	if err != nil {
		return abort(err)
	}
	if !ready {
		return abort(errTimeout("manager endpoint %s never became active", cfg.ManagerAddr))
	}

	// Step 4: register.
	broadcast, err := cfg.Registry.GetBroadcast()
	if err != nil {
		return abort(errAutoload("get broadcast", err))
	}
	broadcastData, err := broadcast.Marshal()
	if err != nil {
		return abort(errAutoload("marshal broadcast", err))
	}

	client := rpcx.ManagerClient{Endpoint: cfg.Endpoint, Addr: cfg.ManagerAddr}
	uuid, status, err := client.RegisterExtension(cfg.Info.toWire(), broadcastData)
	if err != nil {
		return abort(errTransport("registerExtension", err))
	}
	if !status.OK() {
		return abort(errProtocol("%s", status.Message))
	}

	// Step 5: adopt options, then run registry setup.
	opts, err := client.Options()
	if err != nil {
		return abort(errTransport("options", err))
	}
	if v := opts["config_plugin"]; v.Value != "" {
		if err := cfg.Registry.SetActive(registry.KindConfig, v.Value); err != nil {
			return abort(err)
		}
	}
	if v := opts["logger_plugin"]; v.Value != "" {
		if err := cfg.Registry.SetActive(registry.KindLogger, v.Value); err != nil {
			return abort(err)
		}
	}
	if v := opts["distributed_plugin"]; v.Value != "" {
		if err := cfg.Registry.SetActive(registry.KindDistributed, v.Value); err != nil {
			return abort(err)
		}
	}
	if err := cfg.Registry.SetUp(); err != nil {
		return abort(err)
	}

	// Step 6: derive and rebind this extension's own endpoint.
	ownAddr := endpoint.ExtensionAddress(cfg.ManagerAddr, uuid)
	if err := cfg.Endpoint.Rebind(ownAddr); err != nil {
		return abort(errEndpoint("rebind extension endpoint %s: %s", ownAddr, err))
	}

	// Step 7: launch the extension-side RPC server.
	srv, err := rpcx.NewServer(cfg.Info.Name, &rpcx.ExtensionService{Handler: cfg.Handler})
	if err != nil {
		return abort(err)
	}
	if _, err := srv.Start(cfg.Endpoint, ownAddr); err != nil {
		return abort(errEndpoint("start extension server on %s: %s", ownAddr, err))
	}

	logger.Info("extension registered and serving", "uuid", uuid, "addr", ownAddr)

	// Step 8: return success; the message carries the UUID as text.
	return &ExtensionBootstrapResult{
		UUID:    uuid,
		Watcher: watcher,
		Server:  srv,
		Addr:    ownAddr,
		Message: strconv.FormatUint(uuid, 10),
	}, nil
}
