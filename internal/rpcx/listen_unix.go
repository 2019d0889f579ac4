//go:build !windows

package rpcx

import (
	"net"
	"os"

	"github.com/sentryhq/sentryd/internal/endpoint"
)

// listen creates the actual net.Listener backing a Server, after
// endpoint.Rebind has already cleared any stale socket file. Socket
// permissions are tightened to owner-only.
func listen(addr endpoint.Address) (net.Listener, error) {
	ln, err := net.Listen("unix", string(addr))
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(string(addr), 0o600); err != nil {
		_ = ln.Close()
		return nil, err
	}
	return ln, nil
}
