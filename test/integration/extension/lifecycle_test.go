// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 sentryd Contributors

//go:build integration

package extension_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/sentryhq/sentryd/internal/endpoint"
	"github.com/sentryhq/sentryd/internal/extension"
	"github.com/sentryhq/sentryd/internal/registry"
	"github.com/sentryhq/sentryd/internal/rpcx"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// echoHandler answers Ping and Call, and records whether Shutdown was
// invoked, so tests can assert on the manager watcher's shutdown
// broadcast on stop.
type echoHandler struct {
	shutdown chan struct{}
	alive    func() bool
}

func newEchoHandler() *echoHandler {
	return &echoHandler{shutdown: make(chan struct{}, 1), alive: func() bool { return true }}
}

func (h *echoHandler) Ping(context.Context) rpcx.Status {
	if !h.alive() {
		return rpcx.Failure("simulated failure")
	}
	return rpcx.Success()
}

func (h *echoHandler) Call(_ context.Context, _, item string, _ rpcx.Row) ([]rpcx.Row, rpcx.Status) {
	return []rpcx.Row{{"item": item}}, rpcx.Success()
}

func (h *echoHandler) Shutdown(context.Context) {
	select {
	case h.shutdown <- struct{}{}:
	default:
	}
}

var _ = Describe("extension supervision lifecycle", func() {
	var (
		dir         string
		managerAddr endpoint.Address
		ep          endpoint.Endpoint
		mgr         *extension.Manager
		mgrResult   *extension.ManagerBootstrapResult
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "sentryd-integration-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)
		managerAddr = endpoint.Address(filepath.Join(dir, "manager.em"))
		ep = &endpoint.Posix{DialTimeout: time.Second}
		mgr = extension.NewManager("1.0.0", "1.0.0", registry.New(nil), discardLogger())

		mgrResult, err = extension.BootstrapManager(context.Background(), extension.ManagerBootstrapConfig{
			Endpoint: ep,
			Addr:     managerAddr,
			Interval: 20 * time.Millisecond,
			Timeout:  time.Second,
			Manager:  mgr,
			Logger:   discardLogger(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mgrResult.Watcher.Stop(context.Background())
		_ = mgrResult.Server.Stop(context.Background())
	})

	It("registers an extension and serves calls through it", func() {
		handler := newEchoHandler()
		extResult, err := extension.BootstrapExtension(context.Background(), extension.ExtensionBootstrapConfig{
			Endpoint:    ep,
			ManagerAddr: managerAddr,
			Interval:    20 * time.Millisecond,
			Timeout:     time.Second,
			Info:        extension.Identity{Name: "probe-a", Version: "1.0"},
			Registry:    registry.New(nil),
			Handler:     handler,
			Logger:      discardLogger(),
		})
		Expect(err).NotTo(HaveOccurred())
		defer extResult.Watcher.Stop()
		defer func() { _ = extResult.Server.Stop(context.Background()) }()

		Eventually(func() map[uint64]rpcx.Identity {
			return mgr.Extensions(context.Background())
		}).Should(HaveKey(extResult.UUID))

		client := rpcx.ExtensionClient{Endpoint: ep, Addr: extResult.Addr}
		rows, status, err := client.Call("table", "users", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(status.OK()).To(BeTrue())
		Expect(rows[0]["item"]).To(Equal("users"))
	})

	It("evicts an extension after two consecutive failed pings and broadcasts shutdown to survivors", func() {
		failing := newEchoHandler()
		failing.alive = func() bool { return false }
		failResult, err := extension.BootstrapExtension(context.Background(), extension.ExtensionBootstrapConfig{
			Endpoint:    ep,
			ManagerAddr: managerAddr,
			Interval:    20 * time.Millisecond,
			Timeout:     time.Second,
			Info:        extension.Identity{Name: "flaky", Version: "1.0"},
			Registry:    registry.New(nil),
			Handler:     failing,
			Logger:      discardLogger(),
		})
		Expect(err).NotTo(HaveOccurred())
		defer failResult.Watcher.Stop()
		defer func() { _ = failResult.Server.Stop(context.Background()) }()

		healthy := newEchoHandler()
		healthyResult, err := extension.BootstrapExtension(context.Background(), extension.ExtensionBootstrapConfig{
			Endpoint:    ep,
			ManagerAddr: managerAddr,
			Interval:    20 * time.Millisecond,
			Timeout:     time.Second,
			Info:        extension.Identity{Name: "steady", Version: "1.0"},
			Registry:    registry.New(nil),
			Handler:     healthy,
			Logger:      discardLogger(),
		})
		Expect(err).NotTo(HaveOccurred())
		defer healthyResult.Watcher.Stop()
		defer func() { _ = healthyResult.Server.Stop(context.Background()) }()

		Eventually(func() map[uint64]rpcx.Identity {
			return mgr.Extensions(context.Background())
		}).ShouldNot(HaveKey(failResult.UUID))

		Consistently(func() map[uint64]rpcx.Identity {
			return mgr.Extensions(context.Background())
		}, 200*time.Millisecond, 20*time.Millisecond).Should(HaveKey(healthyResult.UUID))

		mgrResult.Watcher.Stop(context.Background())
		Eventually(healthy.shutdown).Should(Receive())
	})

	It("gates manager startup on a required extension that never appears", func() {
		otherDir := GinkgoT().TempDir()
		otherAddr := endpoint.Address(filepath.Join(otherDir, "manager.em"))
		otherMgr := extension.NewManager("1.0.0", "1.0.0", registry.New(nil), discardLogger())

		_, err := extension.BootstrapManager(context.Background(), extension.ManagerBootstrapConfig{
			Endpoint:           &endpoint.Posix{DialTimeout: 100 * time.Millisecond},
			Addr:               otherAddr,
			Interval:           20 * time.Millisecond,
			Timeout:            150 * time.Millisecond,
			Manager:            otherMgr,
			RequiredExtensions: []string{"never-shows-up"},
			Logger:             discardLogger(),
		})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("autoload safety", func() {
	It("rejects a loadfile entry sitting in a world-writable directory", func() {
		dir := GinkgoT().TempDir()
		Expect(os.Chmod(dir, 0o777)).To(Succeed())
		path := filepath.Join(dir, "probe.ext")
		Expect(os.WriteFile(path, []byte("bin"), 0o644)).To(Succeed())

		loadfile := filepath.Join(GinkgoT().TempDir(), "extensions.load")
		Expect(os.WriteFile(loadfile, []byte(path+"\n"), 0o644)).To(Succeed())

		launched, err := extension.LoadExtensions(loadfile, rejectingLauncher{}, discardLogger())
		Expect(err).NotTo(HaveOccurred())
		Expect(launched).To(Equal(0))
	})
})

type rejectingLauncher struct{}

func (rejectingLauncher) Launch(string) error {
	Fail("Launch should not be called for an unsafe entry")
	return nil
}
