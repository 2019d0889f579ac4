//go:build windows

package endpoint

import (
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// Windows implements Endpoint over named pipes. Named pipes have no
// filesystem presence to stat or remove, so Writable and Rebind are
// close to no-ops compared to the POSIX socket-file implementation.
// go-winio's DialPipe already retries internally on ERROR_PIPE_BUSY
// until its timeout elapses, so a momentarily busy pipe looks the same
// as a slow-to-answer one rather than a hard failure.
type Windows struct {
	DialTimeout time.Duration
}

var _ Endpoint = (*Windows)(nil)

func (w *Windows) dialTimeout() time.Duration {
	if w.DialTimeout > 0 {
		return w.DialTimeout
	}
	return 2 * time.Second
}

// Exists dials the pipe; any successful dial (including one that had to
// wait out a busy pipe) counts as the peer being present.
func (w *Windows) Exists(addr Address) bool {
	conn, err := w.Connect(addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Writable is always true for named pipes: there is no filesystem
// object to unlink before a fresh listener can be created under the
// same name.
func (w *Windows) Writable(_ Address) bool {
	return true
}

// Connect dials the pipe once.
func (w *Windows) Connect(addr Address) (net.Conn, error) {
	timeout := w.dialTimeout()
	return winio.DialPipe(string(addr), &timeout)
}

// Rebind is a no-op on Windows: a new listener on the same pipe name is
// always valid once the previous listener has closed.
func (w *Windows) Rebind(_ Address) error {
	return nil
}
