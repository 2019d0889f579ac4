// Package registry models the process-wide plugin registry: a
// name-to-implementation table with broadcast export and a
// "set active by name" operation. The extension supervision core talks
// to this interface rather than a real global singleton, so the
// watchers and bootstrap sequences in internal/extension stay testable
// without a process-wide table backing every test.
package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Kind names one of the plugin registries a broadcast can carry entries
// for: the config, logger, and distributed option bundles, plus the
// table registry that call/callExtension route through.
type Kind string

const (
	KindTable       Kind = "table"
	KindLogger      Kind = "logger"
	KindConfig      Kind = "config"
	KindDistributed Kind = "distributed"
)

// Entry is one registered item: a name within a Kind, plus the owning
// extension's UUID (0 for host-built-in items).
type Entry struct {
	Kind  Kind   `json:"kind"`
	Name  string `json:"name"`
	Owner uint64 `json:"owner"`
}

// Broadcast is an opaque export: a serialized snapshot of one
// extension's local registry, shipped to the manager at registration
// and revoked atomically by UUID on deregistration.
type Broadcast struct {
	Entries []Entry `json:"entries"`
}

// Registry is the injected collaborator surface the manager and every
// extension process depend on: set-external, get-broadcast, set-active,
// set-up, remove-broadcast, route-uuids.
type Registry interface {
	// SetExternal marks this registry instance as belonging to an
	// extension process: GetBroadcast must not include host built-in
	// plugins once set.
	SetExternal(external bool)

	// Add registers a local item under kind/name, owned by owner (0 for
	// the host's own built-ins).
	Add(kind Kind, name string, owner uint64) error

	// GetBroadcast serializes the local registry's exportable entries.
	GetBroadcast() (Broadcast, error)

	// Adopt merges a broadcast received from a registering extension
	// into the manager's view, atomically tagging every entry with
	// owner.
	Adopt(owner uint64, broadcast Broadcast) error

	// SetActive names the active implementation for kind (e.g. which
	// "config", "logger", or "distributed" plugin answers calls).
	SetActive(kind Kind, name string) error

	// Active returns the currently active name for kind, or "" if none
	// has been set.
	Active(kind Kind) string

	// SetUp runs any lazy initialization every currently-registered
	// plugin requires before it is first invoked.
	SetUp() error

	// RemoveBroadcast revokes every entry owned by owner, as the
	// manager watcher does on eviction.
	RemoveBroadcast(owner uint64)

	// RouteUUIDs returns, for a given kind+name, the set of owner UUIDs
	// currently providing that item (usually a single UUID, but tables
	// can be shadowed across extensions in principle).
	RouteUUIDs(kind Kind, name string) []uint64
}

// InMemory is the process-lifetime Registry implementation used by both
// the manager and every extension process. It has no persistence:
// entries live only as long as the owning identity record does.
type InMemory struct {
	mu       sync.Mutex
	external bool
	entries  map[Kind]map[string]Entry // kind -> name -> entry
	active   map[Kind]string
	setUp    func() error
}

// New creates an empty InMemory registry. setUp, if non-nil, is invoked
// by SetUp; a nil setUp makes SetUp a no-op, useful for tests and for
// the manager process, which has no lazy plugins of its own to spin
// up.
func New(setUp func() error) *InMemory {
	return &InMemory{
		entries: make(map[Kind]map[string]Entry),
		active:  make(map[Kind]string),
		setUp:   setUp,
	}
}

func (r *InMemory) SetExternal(external bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.external = external
}

func (r *InMemory) Add(kind Kind, name string, owner uint64) error {
	if name == "" {
		return fmt.Errorf("registry: empty item name for kind %q", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[kind] == nil {
		r.entries[kind] = make(map[string]Entry)
	}
	if existing, ok := r.entries[kind][name]; ok && existing.Owner != owner {
		return fmt.Errorf("registry: %s.%s already registered by uuid %d", kind, name, existing.Owner)
	}
	r.entries[kind][name] = Entry{Kind: kind, Name: name, Owner: owner}
	return nil
}

func (r *InMemory) GetBroadcast() (Broadcast, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out Broadcast
	for kind, items := range r.entries {
		for name, entry := range items {
			// External registries only ever broadcast their own
			// locally-added items (owner 0 from the extension's own
			// point of view); the host-side entries adopted from other
			// extensions never re-broadcast.
			if r.external && entry.Owner != 0 {
				continue
			}
			out.Entries = append(out.Entries, Entry{Kind: kind, Name: name, Owner: entry.Owner})
		}
	}
	sort.Slice(out.Entries, func(i, j int) bool {
		if out.Entries[i].Kind != out.Entries[j].Kind {
			return out.Entries[i].Kind < out.Entries[j].Kind
		}
		return out.Entries[i].Name < out.Entries[j].Name
	})
	return out, nil
}

func (r *InMemory) Adopt(owner uint64, broadcast Broadcast) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range broadcast.Entries {
		if existing, ok := r.entries[entry.Kind][entry.Name]; ok && existing.Owner != owner {
			return fmt.Errorf("registry: %s.%s already provided by uuid %d", entry.Kind, entry.Name, existing.Owner)
		}
	}
	for _, entry := range broadcast.Entries {
		if r.entries[entry.Kind] == nil {
			r.entries[entry.Kind] = make(map[string]Entry)
		}
		r.entries[entry.Kind][entry.Name] = Entry{Kind: entry.Kind, Name: entry.Name, Owner: owner}
	}
	return nil
}

func (r *InMemory) SetActive(kind Kind, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[kind] = name
	return nil
}

func (r *InMemory) Active(kind Kind) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[kind]
}

func (r *InMemory) SetUp() error {
	if r.setUp == nil {
		return nil
	}
	return r.setUp()
}

func (r *InMemory) RemoveBroadcast(owner uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for kind, items := range r.entries {
		for name, entry := range items {
			if entry.Owner == owner {
				delete(items, name)
			}
		}
		if len(items) == 0 {
			delete(r.entries, kind)
		}
	}
}

func (r *InMemory) RouteUUIDs(kind Kind, name string) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	items, ok := r.entries[kind]
	if !ok {
		return nil
	}
	entry, ok := items[name]
	if !ok {
		return nil
	}
	return []uint64{entry.Owner}
}

// Marshal serializes a broadcast for the wire (Manager.RegisterExtension
// carries it as an opaque []byte, per rpcx.RegisterExtensionArgs).
func (b Broadcast) Marshal() ([]byte, error) {
	return json.Marshal(b)
}

// UnmarshalBroadcast parses a wire broadcast blob. An empty blob is a
// valid empty broadcast (an extension that contributes nothing but its
// identity).
func UnmarshalBroadcast(data []byte) (Broadcast, error) {
	if len(data) == 0 {
		return Broadcast{}, nil
	}
	var b Broadcast
	if err := json.Unmarshal(data, &b); err != nil {
		return Broadcast{}, fmt.Errorf("registry: unmarshal broadcast: %w", err)
	}
	return b, nil
}
