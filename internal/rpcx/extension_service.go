package rpcx

import "context"

// ExtensionHandler is implemented by the extension process and handed
// to internal/extension's bootstrap to serve the extension-side RPC
// surface.
type ExtensionHandler interface {
	Ping(ctx context.Context) Status
	Call(ctx context.Context, registry, item string, request Row) ([]Row, Status)
	Shutdown(ctx context.Context)
}

// ExtensionService adapts an ExtensionHandler to net/rpc. Register it
// under the name "Extension" so wire method names come out as
// "Extension.Ping", "Extension.Call", "Extension.Shutdown".
type ExtensionService struct {
	Handler ExtensionHandler
}

func (s *ExtensionService) Ping(_ *PingArgs, reply *PingReply) error {
	reply.Status = s.Handler.Ping(context.Background())
	return nil
}

func (s *ExtensionService) Call(args *CallArgs, reply *CallReply) error {
	rows, status := s.Handler.Call(context.Background(), args.Registry, args.Item, args.Request)
	reply.Rows = rows
	reply.Status = status
	return nil
}

func (s *ExtensionService) Shutdown(_ *ShutdownArgs, _ *ShutdownReply) error {
	s.Handler.Shutdown(context.Background())
	return nil
}
