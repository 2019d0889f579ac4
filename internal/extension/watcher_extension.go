package extension

import (
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sentryhq/sentryd/internal/endpoint"
	"github.com/sentryhq/sentryd/internal/rpcx"
)

// Exit codes: 0 for a normal parent-loss exit, a distinct non-zero
// code when the manager returned a fatal ping status. sysexits.h's
// EX_SOFTWARE (70) is reused for the fatal case, matching the
// convention daemon processes commonly use for this class of exit.
const (
	ExitManagerGone = 0
	ExitFatalStatus = 70
)

// Exiter lets tests observe an ExtensionWatcher's shutdown request
// without actually terminating the test binary.
type Exiter func(code int)

// ExtensionWatcher is the extension-side sibling supervisor: it
// periodically pings the host manager and requests process shutdown if
// the manager has gone away or, when FatalOnBadStatus is set, if the
// manager answers with a non-success status.
type ExtensionWatcher struct {
	Endpoint         endpoint.Endpoint
	ManagerAddr      endpoint.Address
	Interval         time.Duration
	FatalOnBadStatus bool
	Exit             Exiter
	Logger           *slog.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

func (w *ExtensionWatcher) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

func (w *ExtensionWatcher) exit() Exiter {
	if w.Exit != nil {
		return w.Exit
	}
	return func(code int) { osExit(code) }
}

// Start launches the watcher's own goroutine, standing in for the
// dedicated thread a host process would run this loop on.
func (w *ExtensionWatcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	go w.run()
}

// Stop asks the watcher's loop to exit cleanly, without issuing a
// shutdown request, and blocks until it has.
func (w *ExtensionWatcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	stopCh := w.stopCh
	doneCh := w.doneCh
	w.mu.Unlock()

	select {
	case <-stopCh:
	default:
		close(stopCh)
	}
	<-doneCh
}

func (w *ExtensionWatcher) run() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			if w.tick() {
				return
			}
		}
	}
}

// tick runs one probe of the manager and returns true if the loop
// should stop because a shutdown was requested.
func (w *ExtensionWatcher) tick() bool {
	corrID := ulid.Make().String()
	logger := w.logger().With("corr_id", corrID)

	if runtime.GOOS == "windows" {
		ep := w.Endpoint
		if !ep.Exists(w.ManagerAddr) {
			logger.Info("core has gone away")
			w.exit()(ExitManagerGone)
			return true
		}
		return false
	}

	if !w.Endpoint.Exists(w.ManagerAddr) {
		logger.Info("core has gone away")
		w.exit()(ExitManagerGone)
		return true
	}

	client := rpcx.ManagerClient{Endpoint: w.Endpoint, Addr: w.ManagerAddr}
	status, err := client.Ping()
	if err != nil {
		logger.Info("core has gone away", "error", err)
		w.exit()(ExitManagerGone)
		return true
	}
	if !status.OK() && w.FatalOnBadStatus {
		logger.Error("core reported a fatal status", "code", status.Code, "message", status.Message)
		w.exit()(ExitFatalStatus)
		return true
	}
	return false
}
