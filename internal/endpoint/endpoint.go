// Package endpoint abstracts the platform-specific IPC rendezvous point
// used by the manager and by every registered extension: a Unix-domain
// socket file on POSIX systems, a named pipe on Windows. Callers speak
// only this surface — Exists, Writable, Connect, Rebind — so the rest of
// the supervision core never branches on GOOS.
package endpoint

import (
	"net"
	"strconv"
)

// Address is an opaque endpoint location: a socket path on POSIX systems,
// a pipe name on Windows.
type Address string

// Status distinguishes why a probe against an endpoint did not succeed:
// timeout vs. transport vs. endpoint.
type Status int

const (
	// StatusReady means the endpoint answered the probe.
	StatusReady Status = iota
	// StatusNotReady means the endpoint does not yet exist or refused
	// the probe; callers should retry.
	StatusNotReady
	// StatusTimeout means a bounded wait for the endpoint expired.
	StatusTimeout
	// StatusInvalid means the address itself is unusable (empty, bad
	// parent directory, unwritable parent, stale file that can't be
	// removed) independent of whether a peer is listening.
	StatusInvalid
)

// Endpoint is the platform-abstract capability surface. Implementations
// live in endpoint_unix.go (build-tagged for POSIX) and
// endpoint_windows.go.
type Endpoint interface {
	// Exists reports whether something is currently listening (or at
	// least bound) at addr. On named-pipe systems this is a pipe
	// existence check; on socket-file systems it additionally requires
	// the path to be connectable.
	Exists(addr Address) bool

	// Writable reports whether addr is safe to bind: for a socket file,
	// either no file exists and its parent directory is writable, or a
	// stale file exists and can be removed. For a named pipe, this is
	// always true (pipes have no filesystem presence to remove).
	Writable(addr Address) bool

	// Connect dials addr for a single RPC round trip. Callers are
	// expected to use the connection once and close it rather than pool
	// or reuse it.
	Connect(addr Address) (net.Conn, error)

	// Rebind prepares addr for binding: removes a stale file (POSIX),
	// returning an error if addr cannot be made ready to listen on. On
	// Windows it is a no-op and does not check the pipe name.
	Rebind(addr Address) error
}

// ExtensionAddress derives an extension's own endpoint address from the
// manager's address and its assigned UUID. The derivation is stable, so
// any peer can reconstruct it from the UUID alone.
func ExtensionAddress(manager Address, uuid uint64) Address {
	return Address(string(manager) + "." + strconv.FormatUint(uuid, 10))
}
