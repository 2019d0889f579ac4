package rpcx

import (
	"fmt"
	"net/rpc"

	"github.com/sentryhq/sentryd/internal/endpoint"
)

// dial opens a fresh connection to addr and wraps it as a net/rpc
// client. Callers are expected to make one call and Close immediately —
// no pooling, so transport failures surface at the call site rather
// than on some earlier, unrelated call.
func dial(ep endpoint.Endpoint, addr endpoint.Address) (*rpc.Client, error) {
	conn, err := ep.Connect(addr)
	if err != nil {
		return nil, fmt.Errorf("rpcx: connect %s: %w", addr, err)
	}
	return rpc.NewClient(conn), nil
}

// ManagerClient makes one-shot calls against a manager endpoint.
type ManagerClient struct {
	Endpoint endpoint.Endpoint
	Addr     endpoint.Address
}

func (c ManagerClient) Ping() (Status, error) {
	client, err := dial(c.Endpoint, c.Addr)
	if err != nil {
		return Status{}, err
	}
	defer func() { _ = client.Close() }()

	var reply PingReply
	if err := client.Call("Manager.Ping", &PingArgs{}, &reply); err != nil {
		return Status{}, fmt.Errorf("rpcx: Manager.Ping: %w", err)
	}
	return reply.Status, nil
}

func (c ManagerClient) RegisterExtension(info Identity, broadcast []byte) (uint64, Status, error) {
	client, err := dial(c.Endpoint, c.Addr)
	if err != nil {
		return 0, Status{}, err
	}
	defer func() { _ = client.Close() }()

	var reply RegisterExtensionReply
	args := &RegisterExtensionArgs{Info: info, Broadcast: broadcast}
	if err := client.Call("Manager.RegisterExtension", args, &reply); err != nil {
		return 0, Status{}, fmt.Errorf("rpcx: Manager.RegisterExtension: %w", err)
	}
	return reply.UUID, reply.Status, nil
}

func (c ManagerClient) Options() (map[string]Option, error) {
	client, err := dial(c.Endpoint, c.Addr)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	var reply OptionsReply
	if err := client.Call("Manager.Options", &OptionsArgs{}, &reply); err != nil {
		return nil, fmt.Errorf("rpcx: Manager.Options: %w", err)
	}
	return reply.Options, nil
}

func (c ManagerClient) Extensions() (map[uint64]Identity, error) {
	client, err := dial(c.Endpoint, c.Addr)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	var reply ExtensionsReply
	if err := client.Call("Manager.Extensions", &ExtensionsArgs{}, &reply); err != nil {
		return nil, fmt.Errorf("rpcx: Manager.Extensions: %w", err)
	}
	return reply.Extensions, nil
}

func (c ManagerClient) Query(sql string) ([]Row, Status, error) {
	client, err := dial(c.Endpoint, c.Addr)
	if err != nil {
		return nil, Status{}, err
	}
	defer func() { _ = client.Close() }()

	var reply QueryReply
	if err := client.Call("Manager.Query", &QueryArgs{SQL: sql}, &reply); err != nil {
		return nil, Status{}, fmt.Errorf("rpcx: Manager.Query: %w", err)
	}
	return reply.Rows, reply.Status, nil
}

func (c ManagerClient) GetQueryColumns(sql string) ([]ColumnDef, Status, error) {
	client, err := dial(c.Endpoint, c.Addr)
	if err != nil {
		return nil, Status{}, err
	}
	defer func() { _ = client.Close() }()

	var reply GetQueryColumnsReply
	if err := client.Call("Manager.GetQueryColumns", &GetQueryColumnsArgs{SQL: sql}, &reply); err != nil {
		return nil, Status{}, fmt.Errorf("rpcx: Manager.GetQueryColumns: %w", err)
	}
	return reply.Columns, reply.Status, nil
}

func (c ManagerClient) Call(registry, item string, request Row) ([]Row, Status, error) {
	client, err := dial(c.Endpoint, c.Addr)
	if err != nil {
		return nil, Status{}, err
	}
	defer func() { _ = client.Close() }()

	var reply CallReply
	args := &CallArgs{Registry: registry, Item: item, Request: request}
	if err := client.Call("Manager.Call", args, &reply); err != nil {
		return nil, Status{}, fmt.Errorf("rpcx: Manager.Call: %w", err)
	}
	return reply.Rows, reply.Status, nil
}

// ExtensionClient makes one-shot calls against an extension endpoint.
type ExtensionClient struct {
	Endpoint endpoint.Endpoint
	Addr     endpoint.Address
}

func (c ExtensionClient) Ping() (Status, error) {
	client, err := dial(c.Endpoint, c.Addr)
	if err != nil {
		return Status{}, err
	}
	defer func() { _ = client.Close() }()

	var reply PingReply
	if err := client.Call("Extension.Ping", &PingArgs{}, &reply); err != nil {
		return Status{}, fmt.Errorf("rpcx: Extension.Ping: %w", err)
	}
	return reply.Status, nil
}

func (c ExtensionClient) Call(registry, item string, request Row) ([]Row, Status, error) {
	client, err := dial(c.Endpoint, c.Addr)
	if err != nil {
		return nil, Status{}, err
	}
	defer func() { _ = client.Close() }()

	var reply CallReply
	args := &CallArgs{Registry: registry, Item: item, Request: request}
	if err := client.Call("Extension.Call", args, &reply); err != nil {
		return nil, Status{}, fmt.Errorf("rpcx: Extension.Call: %w", err)
	}
	return reply.Rows, reply.Status, nil
}

func (c ExtensionClient) Shutdown() error {
	client, err := dial(c.Endpoint, c.Addr)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	var reply ShutdownReply
	if err := client.Call("Extension.Shutdown", &ShutdownArgs{}, &reply); err != nil {
		return fmt.Errorf("rpcx: Extension.Shutdown: %w", err)
	}
	return nil
}
