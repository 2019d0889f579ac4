//go:build !windows

package endpoint

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"time"
)

// Posix implements Endpoint over Unix-domain socket files.
type Posix struct {
	// DialTimeout bounds a single Connect call. Defaults to 2s.
	DialTimeout time.Duration
}

var _ Endpoint = (*Posix)(nil)

func (p *Posix) dialTimeout() time.Duration {
	if p.DialTimeout > 0 {
		return p.DialTimeout
	}
	return 2 * time.Second
}

// Exists requires the socket path to exist and accept a connection; a
// bare stat is not enough since a stale socket file with nothing
// listening behind it still satisfies os.Stat.
func (p *Posix) Exists(addr Address) bool {
	conn, err := p.Connect(addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Writable implements the two-branch structure of the original
// socketWritable: if a file already sits at addr, it must be a socket
// we can remove; otherwise the parent directory must exist and be
// writable so a fresh bind can succeed.
func (p *Posix) Writable(addr Address) bool {
	path := string(addr)
	if path == "" {
		return false
	}

	info, err := os.Lstat(path)
	switch {
	case err == nil:
		// Existing entry: must be a socket (not a regular file or
		// directory left behind by something else) and its parent
		// must be writable so we can unlink and rebind.
		if info.Mode()&os.ModeSocket == 0 {
			return false
		}
		return dirWritable(filepath.Dir(path))
	case errors.Is(err, os.ErrNotExist):
		return dirWritable(filepath.Dir(path))
	default:
		return false
	}
}

// Connect dials addr once; callers close the connection after a single
// RPC round trip per the scoped-client design note.
func (p *Posix) Connect(addr Address) (net.Conn, error) {
	return net.DialTimeout("unix", string(addr), p.dialTimeout())
}

// Rebind removes a stale socket file at addr, if any, and ensures the
// parent directory exists and is writable so the caller can immediately
// net.Listen on addr.
func (p *Posix) Rebind(addr Address) error {
	path := string(addr)
	if path == "" {
		return errEmptyAddress
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	info, err := os.Lstat(path)
	switch {
	case err == nil:
		if info.Mode()&os.ModeSocket == 0 {
			return errNotASocket
		}
		if err := os.Remove(path); err != nil {
			return err
		}
	case errors.Is(err, os.ErrNotExist):
		// Nothing to remove.
	default:
		return err
	}

	if !dirWritable(dir) {
		return errDirNotWritable
	}
	return nil
}

func dirWritable(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	// os.Stat's permission bits reflect the mount/process umask only
	// loosely; the authoritative check is a real probe. Use a
	// zero-length temp file create/remove to confirm write access for
	// the current effective user.
	probe, err := os.CreateTemp(dir, ".sentryd-wcheck-*")
	if err != nil {
		return false
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return true
}

var (
	errEmptyAddress   = newEndpointError("endpoint address is empty")
	errNotASocket     = newEndpointError("path exists and is not a socket")
	errDirNotWritable = newEndpointError("parent directory is not writable")
)

type endpointError string

func newEndpointError(msg string) error { return endpointError(msg) }

func (e endpointError) Error() string { return string(e) }
