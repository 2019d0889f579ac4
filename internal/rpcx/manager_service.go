package rpcx

import "context"

// ManagerHandler is implemented by internal/extension's Manager and
// injected into ManagerService, keeping the transport package free of
// registry/ledger business logic.
type ManagerHandler interface {
	Ping(ctx context.Context) Status
	RegisterExtension(ctx context.Context, info Identity, broadcast []byte) (uint64, Status)
	Options(ctx context.Context) map[string]Option
	Extensions(ctx context.Context) map[uint64]Identity
	Query(ctx context.Context, sql string) ([]Row, Status)
	GetQueryColumns(ctx context.Context, sql string) ([]ColumnDef, Status)
	Call(ctx context.Context, registry, item string, request Row) ([]Row, Status)
}

// ManagerService adapts a ManagerHandler to net/rpc's calling
// convention. Register it under the name "Manager" via
// rpc.RegisterName so wire method names come out as "Manager.Ping",
// "Manager.RegisterExtension", and so on.
type ManagerService struct {
	Handler ManagerHandler
}

func (s *ManagerService) Ping(_ *PingArgs, reply *PingReply) error {
	reply.Status = s.Handler.Ping(context.Background())
	return nil
}

func (s *ManagerService) RegisterExtension(args *RegisterExtensionArgs, reply *RegisterExtensionReply) error {
	uuid, status := s.Handler.RegisterExtension(context.Background(), args.Info, args.Broadcast)
	reply.UUID = uuid
	reply.Status = status
	return nil
}

func (s *ManagerService) Options(_ *OptionsArgs, reply *OptionsReply) error {
	reply.Options = s.Handler.Options(context.Background())
	return nil
}

func (s *ManagerService) Extensions(_ *ExtensionsArgs, reply *ExtensionsReply) error {
	reply.Extensions = s.Handler.Extensions(context.Background())
	return nil
}

func (s *ManagerService) Query(args *QueryArgs, reply *QueryReply) error {
	rows, status := s.Handler.Query(context.Background(), args.SQL)
	reply.Rows = rows
	reply.Status = status
	return nil
}

func (s *ManagerService) GetQueryColumns(args *GetQueryColumnsArgs, reply *GetQueryColumnsReply) error {
	cols, status := s.Handler.GetQueryColumns(context.Background(), args.SQL)
	reply.Columns = cols
	reply.Status = status
	return nil
}

func (s *ManagerService) Call(args *CallArgs, reply *CallReply) error {
	rows, status := s.Handler.Call(context.Background(), args.Registry, args.Item, args.Request)
	reply.Rows = rows
	reply.Status = status
	return nil
}
