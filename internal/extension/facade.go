package extension

import (
	"context"

	"github.com/sentryhq/sentryd/internal/endpoint"
	"github.com/sentryhq/sentryd/internal/rpcx"
)

// Facade is the host-side RPC façade: the surface the rest of the host
// (its SQL engine, its own CLI) uses to reach extensions, gated by a
// non-timeout endpoint-active probe on every call and by the
// disable_extensions flag.
type Facade struct {
	Endpoint    endpoint.Endpoint
	ManagerAddr endpoint.Address
	Disabled    bool
}

func (f *Facade) checkEnabled() error {
	if f.Disabled {
		return errConfiguration("extensions are disabled")
	}
	return nil
}

// probe runs a non-timeout (use_timeout=false) endpoint-active check
// ahead of every read-path façade call.
func (f *Facade) probe(ctx context.Context, addr endpoint.Address) error {
	ready, err := EndpointActive(ctx, f.Endpoint, addr, false, 0)
	if err != nil {
		return err
	}
	if !ready {
		return errEndpoint("endpoint %s is not active", addr)
	}
	return nil
}

func (f *Facade) managerAddrOrDefault(addr endpoint.Address) endpoint.Address {
	if addr != "" {
		return addr
	}
	return f.ManagerAddr
}

// PingExtension pings the extension at addr.
func (f *Facade) PingExtension(ctx context.Context, addr endpoint.Address) (rpcx.Status, error) {
	if err := f.checkEnabled(); err != nil {
		return rpcx.Status{}, err
	}
	if err := f.probe(ctx, addr); err != nil {
		return rpcx.Status{}, err
	}
	client := rpcx.ExtensionClient{Endpoint: f.Endpoint, Addr: addr}
	status, err := client.Ping()
	if err != nil {
		return rpcx.Status{}, errTransport("ping", err)
	}
	return status, nil
}

// QueryExternal runs sql against addr, which defaults to the manager's
// own endpoint when empty.
func (f *Facade) QueryExternal(ctx context.Context, addr endpoint.Address, sql string) ([]rpcx.Row, rpcx.Status, error) {
	if err := f.checkEnabled(); err != nil {
		return nil, rpcx.Status{}, err
	}
	addr = f.managerAddrOrDefault(addr)
	if err := f.probe(ctx, addr); err != nil {
		return nil, rpcx.Status{}, err
	}
	client := rpcx.ManagerClient{Endpoint: f.Endpoint, Addr: addr}
	rows, status, err := client.Query(sql)
	if err != nil {
		return nil, rpcx.Status{}, errTransport("query", err)
	}
	return rows, status, nil
}

// GetQueryColumnsExternal returns the column definitions sql would
// produce, in order. The wire format preserves column order via an
// ordered slice (rpcx.ColumnDef) rather than a map.
func (f *Facade) GetQueryColumnsExternal(ctx context.Context, addr endpoint.Address, sql string) ([]rpcx.ColumnDef, rpcx.Status, error) {
	if err := f.checkEnabled(); err != nil {
		return nil, rpcx.Status{}, err
	}
	addr = f.managerAddrOrDefault(addr)
	if err := f.probe(ctx, addr); err != nil {
		return nil, rpcx.Status{}, err
	}
	client := rpcx.ManagerClient{Endpoint: f.Endpoint, Addr: addr}
	cols, status, err := client.GetQueryColumns(sql)
	if err != nil {
		return nil, rpcx.Status{}, errTransport("getQueryColumns", err)
	}
	return cols, status, nil
}

// GetExtensions lists every extension known to the manager at addr;
// UUID 0 for the host's own identity is already injected manager-side
// by Manager.Extensions.
func (f *Facade) GetExtensions(ctx context.Context, addr endpoint.Address) (map[uint64]rpcx.Identity, error) {
	if err := f.checkEnabled(); err != nil {
		return nil, err
	}
	addr = f.managerAddrOrDefault(addr)
	if err := f.probe(ctx, addr); err != nil {
		return nil, err
	}
	client := rpcx.ManagerClient{Endpoint: f.Endpoint, Addr: addr}
	exts, err := client.Extensions()
	if err != nil {
		return nil, errTransport("getExtensions", err)
	}
	return exts, nil
}

// Target names a call destination for CallExtension: either a UUID
// resolved against the manager endpoint, or an explicit endpoint
// address.
type Target struct {
	UUID    *uint64
	Address endpoint.Address
}

// UUIDTarget builds a Target from a live extension UUID.
func UUIDTarget(uuid uint64) Target { return Target{UUID: &uuid} }

// AddressTarget builds a Target from an explicit endpoint address.
func AddressTarget(addr endpoint.Address) Target { return Target{Address: addr} }

func (f *Facade) resolveTarget(t Target) (endpoint.Address, error) {
	if t.Address != "" {
		return t.Address, nil
	}
	if t.UUID != nil {
		return endpoint.ExtensionAddress(f.ManagerAddr, *t.UUID), nil
	}
	return "", errConfiguration("callExtension requires a uuid or an endpoint address")
}

// CallExtension calls registry.item on target, passing request.
func (f *Facade) CallExtension(ctx context.Context, target Target, registryName, item string, request rpcx.Row) ([]rpcx.Row, rpcx.Status, error) {
	if err := f.checkEnabled(); err != nil {
		return nil, rpcx.Status{}, err
	}
	addr, err := f.resolveTarget(target)
	if err != nil {
		return nil, rpcx.Status{}, err
	}
	if err := f.probe(ctx, addr); err != nil {
		return nil, rpcx.Status{}, err
	}
	client := rpcx.ExtensionClient{Endpoint: f.Endpoint, Addr: addr}
	rows, status, err := client.Call(registryName, item, request)
	if err != nil {
		return nil, rpcx.Status{}, errTransport("call", err)
	}
	return rows, status, nil
}
