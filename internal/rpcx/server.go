package rpcx

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"sync/atomic"

	"github.com/sentryhq/sentryd/internal/endpoint"
)

// Server runs a net/rpc server over a single endpoint.Endpoint-bound
// listener, with Start/Stop lifecycle methods, an atomic running flag,
// and a single-value error channel signaling when the accept loop
// stops.
type Server struct {
	name     string // "manager" or an extension name, for logging only
	listener net.Listener
	rpc      *rpc.Server
	running  atomic.Bool
}

// NewServer creates an rpcx server. svc is the *ManagerService or
// *ExtensionService to register; it must expose exported methods with
// the net/rpc calling convention.
func NewServer(name string, svc any) (*Server, error) {
	r := rpc.NewServer()
	serviceName := "Manager"
	if _, ok := svc.(*ExtensionService); ok {
		serviceName = "Extension"
	}
	if err := r.RegisterName(serviceName, svc); err != nil {
		return nil, fmt.Errorf("rpcx: register %s service: %w", serviceName, err)
	}
	return &Server{name: name, rpc: r}, nil
}

// Start binds addr (rebinding over any stale socket file first) and
// begins serving. Returns an error channel that receives exactly one
// value when the accept loop stops.
func (s *Server) Start(ep endpoint.Endpoint, addr endpoint.Address) (<-chan error, error) {
	if s.listener != nil {
		return nil, fmt.Errorf("rpcx: server %q already running", s.name)
	}

	if err := ep.Rebind(addr); err != nil {
		return nil, fmt.Errorf("rpcx: rebind %s: %w", addr, err)
	}

	ln, err := listen(addr)
	if err != nil {
		return nil, fmt.Errorf("rpcx: listen %s: %w", addr, err)
	}
	s.listener = ln
	s.running.Store(true)

	errCh := make(chan error, 1)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				errCh <- err
				return
			}
			go s.rpc.ServeConn(conn)
		}
	}()

	return errCh, nil
}

// Stop closes the listener. Safe to call more than once.
func (s *Server) Stop(_ context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.listener == nil {
		return nil
	}
	if err := s.listener.Close(); err != nil {
		slog.Warn("rpcx server close error", "name", s.name, "error", err)
		return err
	}
	return nil
}

// Running reports whether the accept loop is active.
func (s *Server) Running() bool { return s.running.Load() }
