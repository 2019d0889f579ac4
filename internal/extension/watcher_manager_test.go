package extension

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sentryhq/sentryd/internal/endpoint"
	"github.com/sentryhq/sentryd/internal/rpcx"
)

type stubExtensionHandler struct {
	status rpcx.Status
}

func (h *stubExtensionHandler) Ping(context.Context) rpcx.Status { return h.status }
func (h *stubExtensionHandler) Call(context.Context, string, string, rpcx.Row) ([]rpcx.Row, rpcx.Status) {
	return nil, rpcx.Success()
}
func (h *stubExtensionHandler) Shutdown(context.Context) {}

// TestManagerWatcher_EvictsAfterTwoFailedTicks verifies that an
// extension that dies (its endpoint unlinked) is evicted from
// listExtensions after two consecutive manager ticks.
func TestManagerWatcher_EvictsAfterTwoFailedTicks(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := tempSocketDir(t)
	managerAddr := endpoint.Address(filepath.Join(dir, "manager.em"))
	ep := &endpoint.Posix{DialTimeout: 200 * time.Millisecond}

	m := newTestManager()
	uuid, status := m.RegisterExtension(context.Background(), rpcx.Identity{Name: "probe-a"}, nil)
	require.True(t, status.OK())

	extAddr := endpoint.ExtensionAddress(managerAddr, uuid)
	handler := &stubExtensionHandler{status: rpcx.Success()}
	srv, err := rpcx.NewServer("probe-a", &rpcx.ExtensionService{Handler: handler})
	require.NoError(t, err)
	_, err = srv.Start(ep, extAddr)
	require.NoError(t, err)

	w := &ManagerWatcher{
		Endpoint:     ep,
		ManagerAddr:  managerAddr,
		Manager:      m,
		Interval:     10 * time.Millisecond,
		ProbeTimeout: 50 * time.Millisecond,
		Logger:       discardLogger(),
	}
	w.Start()

	require.Eventually(t, func() bool {
		_, ok := m.Lookup(uuid)
		return ok
	}, time.Second, 5*time.Millisecond)

	// Kill the extension: stop its server, which removes the socket
	// file entirely, so subsequent pings fail (Writable() still passes,
	// since the parent directory is writable).
	require.NoError(t, srv.Stop(context.Background()))

	require.Eventually(t, func() bool {
		_, ok := m.Lookup(uuid)
		return !ok
	}, 2*time.Second, 10*time.Millisecond, "extension should be deregistered after repeated ping failures")

	exts := m.Extensions(context.Background())
	assert.Contains(t, exts, uint64(0))
	assert.NotContains(t, exts, uuid)

	w.Stop(context.Background())
}

func TestManagerWatcher_ShutdownBroadcastsToLiveExtensions(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := tempSocketDir(t)
	managerAddr := endpoint.Address(filepath.Join(dir, "manager.em"))
	ep := &endpoint.Posix{DialTimeout: 200 * time.Millisecond}

	m := newTestManager()
	uuid, status := m.RegisterExtension(context.Background(), rpcx.Identity{Name: "probe-a"}, nil)
	require.True(t, status.OK())

	extAddr := endpoint.ExtensionAddress(managerAddr, uuid)
	shutdownCh := make(chan struct{}, 1)
	handler := &stubExtensionHandlerWithShutdown{shutdownCh: shutdownCh}
	srv, err := rpcx.NewServer("probe-a", &rpcx.ExtensionService{Handler: handler})
	require.NoError(t, err)
	_, err = srv.Start(ep, extAddr)
	require.NoError(t, err)
	defer func() { _ = srv.Stop(context.Background()) }()

	w := &ManagerWatcher{
		Endpoint:     ep,
		ManagerAddr:  managerAddr,
		Manager:      m,
		Interval:     time.Hour, // never ticks during this test
		ProbeTimeout: 50 * time.Millisecond,
		Logger:       discardLogger(),
	}
	w.Start()
	w.Stop(context.Background())

	select {
	case <-shutdownCh:
	case <-time.After(time.Second):
		t.Fatal("watcher shutdown did not broadcast Extension.Shutdown to the live extension")
	}
}

type stubExtensionHandlerWithShutdown struct {
	shutdownCh chan struct{}
}

func (h *stubExtensionHandlerWithShutdown) Ping(context.Context) rpcx.Status { return rpcx.Success() }
func (h *stubExtensionHandlerWithShutdown) Call(context.Context, string, string, rpcx.Row) ([]rpcx.Row, rpcx.Status) {
	return nil, rpcx.Success()
}
func (h *stubExtensionHandlerWithShutdown) Shutdown(context.Context) {
	h.shutdownCh <- struct{}{}
}
