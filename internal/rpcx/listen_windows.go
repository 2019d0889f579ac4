//go:build windows

package rpcx

import (
	"net"

	"github.com/Microsoft/go-winio"
	"github.com/sentryhq/sentryd/internal/endpoint"
)

// listen creates the actual net.Listener backing a Server on Windows,
// using a named pipe with a security descriptor restricting access to
// the current user.
func listen(addr endpoint.Address) (net.Listener, error) {
	return winio.ListenPipe(string(addr), &winio.PipeConfig{
		SecurityDescriptor: "D:P(A;;GA;;;OW)",
		MessageMode:        false,
	})
}
