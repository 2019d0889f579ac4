package extension

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/sentryhq/sentryd/internal/endpoint"
	"github.com/sentryhq/sentryd/internal/rpcx"
)

// ManagerWatcher is the host-side sibling supervisor: it periodically
// pings every registered extension, tracks consecutive failures in the
// manager's failure ledger, and evicts an extension after two
// consecutive misses.
type ManagerWatcher struct {
	Endpoint     endpoint.Endpoint
	ManagerAddr  endpoint.Address
	Manager      *Manager
	Interval     time.Duration
	ProbeTimeout time.Duration
	Logger       *slog.Logger

	mu       sync.Mutex
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
	probed   map[uint64]bool // uuid -> has this uuid been through a tick before
	probedMu sync.Mutex
}

func (w *ManagerWatcher) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

// Start launches the watcher's own goroutine.
func (w *ManagerWatcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.probed = make(map[uint64]bool)

	go w.run()
}

// Stop asks the tick loop to exit, waits for it, then sends a
// best-effort Extension.Shutdown RPC to every still-live extension
// before returning. It never mutates the failure ledger.
func (w *ManagerWatcher) Stop(ctx context.Context) {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	select {
	case <-stopCh:
	default:
		close(stopCh)
	}
	<-doneCh

	w.broadcastShutdown(ctx)
}

func (w *ManagerWatcher) broadcastShutdown(_ context.Context) {
	for _, uuid := range w.Manager.LiveUUIDs() {
		addr := endpoint.ExtensionAddress(w.ManagerAddr, uuid)
		client := rpcx.ExtensionClient{Endpoint: w.Endpoint, Addr: addr}
		if err := client.Shutdown(); err != nil {
			w.logger().Info("shutdown RPC to extension failed, ignoring", "uuid", uuid, "error", err)
		}
	}
}

func (w *ManagerWatcher) run() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

func (w *ManagerWatcher) firstTickFor(uuid uint64) bool {
	w.probedMu.Lock()
	defer w.probedMu.Unlock()
	if w.probed[uuid] {
		return false
	}
	w.probed[uuid] = true
	return true
}

// tick probes every live UUID, in the snapshot's iteration order, then
// applies the post-tick eviction rule.
func (w *ManagerWatcher) tick() {
	ctx := context.Background()
	uuids := w.Manager.LiveUUIDs()

	for _, uuid := range uuids {
		w.probeOne(ctx, uuid)
	}

	for _, uuid := range uuids {
		if w.Manager.Ledger.State(uuid).Evictable() {
			w.Manager.Deregister(uuid)
		}
	}
}

func (w *ManagerWatcher) probeOne(ctx context.Context, uuid uint64) {
	addr := endpoint.ExtensionAddress(w.ManagerAddr, uuid)

	if runtime.GOOS == "windows" {
		if !w.Endpoint.Exists(addr) {
			w.Manager.Ledger.RecordFailure(uuid)
			w.Manager.Metrics.RecordFailure()
			return
		}
		w.Manager.Ledger.BeginProbe(uuid)
		w.pingAndRecord(addr, uuid)
		return
	}

	writable := w.Endpoint.Writable(addr)
	if !writable && w.Manager.Ledger.State(uuid) == NeverProbed && w.firstTickFor(uuid) {
		// Give a just-forked extension time to bind its endpoint. The
		// probe's own ready/not-ready status is intentionally discarded
		// here; only Writable is re-checked afterward.
		_, _ = EndpointActive(ctx, w.Endpoint, addr, true, w.ProbeTimeout)
		writable = w.Endpoint.Writable(addr)
	}
	if !writable {
		w.Manager.Ledger.RecordFailure(uuid)
		w.Manager.Metrics.RecordFailure()
		return
	}

	w.Manager.Ledger.BeginProbe(uuid)
	w.pingAndRecord(addr, uuid)
}

func (w *ManagerWatcher) pingAndRecord(addr endpoint.Address, uuid uint64) {
	client := rpcx.ExtensionClient{Endpoint: w.Endpoint, Addr: addr}
	start := time.Now()
	status, err := client.Ping()
	w.Manager.Metrics.ObservePing(start)
	if err != nil {
		w.Manager.Ledger.RecordFailure(uuid)
		w.Manager.Metrics.RecordFailure()
		return
	}
	if !status.OK() {
		w.Manager.Ledger.RecordFailure(uuid)
		w.Manager.Metrics.RecordFailure()
		return
	}
	w.Manager.Ledger.RecordSuccess(uuid)
}
