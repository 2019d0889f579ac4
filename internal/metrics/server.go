// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 sentryd Contributors

// Package metrics serves the Prometheus registry a process builds up
// over an HTTP /metrics endpoint, so the counters and histograms wired
// into internal/extension are actually scraped rather than accumulating
// write-only in memory.
package metrics

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

const codeMetrics = "METRICS_SERVER"

var errAlreadyRunning = oops.Code(codeMetrics).Errorf("metrics server already running")

// Server exposes a *prometheus.Registry over plain HTTP.
type Server struct {
	addr       string
	registry   *prometheus.Registry
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer wraps reg for HTTP serving at addr (e.g. ":9100") and
// registers the standard Go runtime and process collectors alongside
// whatever the caller already registered against reg.
func NewServer(addr string, reg *prometheus.Registry) *Server {
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &Server{addr: addr, registry: reg}
}

// Start begins serving /metrics. Returns an error channel that receives
// exactly one value if the accept loop stops unexpectedly.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, errAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, err
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "addr", s.addr, "error", err)
			errCh <- err
			return
		}
		close(errCh)
	}()

	return errCh, nil
}

// Stop gracefully shuts down the metrics server. Safe to call more than
// once.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the address the server is bound to, or "" if not
// running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
