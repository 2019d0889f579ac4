package extension

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sentryhq/sentryd/internal/registry"
	"github.com/sentryhq/sentryd/internal/rpcx"
)

// Manager holds the host-side extension registry record and failure
// ledger, and implements rpcx.ManagerHandler so an rpcx.Server can
// serve it directly. It is the single owner of identities/nextUUID;
// ManagerWatcher and the host-side façade (facade.go) both read it
// through this type rather than a global.
type Manager struct {
	HostVersion    string
	HostSDKVersion string
	Registry       registry.Registry
	Ledger         *Ledger
	Logger         *slog.Logger

	// Disabled mirrors the disable_extensions flag: when true every
	// RegisterExtension/Query/Call/GetQueryColumns request fails fast
	// with an "extensions are disabled" failure status.
	Disabled bool

	// Metrics is optional; a nil Metrics makes every recording method a
	// no-op, so tests that don't care about metrics can leave it unset.
	Metrics *Metrics

	mu         sync.RWMutex
	identities map[uint64]Identity
	nextUUID   uint64
}

// NewManager creates an empty Manager. hostVersion/hostSDKVersion are
// reported as UUID 0's identity in every Extensions() listing.
func NewManager(hostVersion, hostSDKVersion string, reg registry.Registry, logger *slog.Logger) *Manager {
	return &Manager{
		HostVersion:    hostVersion,
		HostSDKVersion: hostSDKVersion,
		Registry:       reg,
		Ledger:         NewLedger(),
		Logger:         logger,
		identities:     make(map[uint64]Identity),
	}
}

var _ rpcx.ManagerHandler = (*Manager)(nil)

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// coreIdentity is the fixed UUID-0 record reserved for the manager
// itself.
func (m *Manager) coreIdentity() Identity {
	return Identity{
		UUID:          0,
		Name:          CoreName,
		Version:       m.HostVersion,
		SDKVersion:    m.HostSDKVersion,
		MinSDKVersion: CoreMinSDKVersion,
	}
}

func (m *Manager) Ping(context.Context) rpcx.Status {
	return rpcx.Success()
}

// RegisterExtension assigns a UUID, rejects duplicate names, checks SDK
// compatibility, adopts the broadcast, and starts tracking the new UUID
// in the failure ledger.
func (m *Manager) RegisterExtension(_ context.Context, info rpcx.Identity, broadcast []byte) (uint64, rpcx.Status) {
	if m.Disabled {
		return 0, rpcx.Failure("extensions are disabled")
	}

	id := identityFromWire(info)
	if id.Name == "" {
		return 0, rpcx.Failure("extension name is required")
	}
	if id.Name == CoreName {
		return 0, rpcx.Duplicate("extension name \"core\" is reserved")
	}

	if err := CheckCompatible(m.HostSDKVersion, id.MinSDKVersion); err != nil {
		return 0, rpcx.Failure(err.Error())
	}

	m.mu.Lock()
	for _, existing := range m.identities {
		if existing.Name == id.Name {
			m.mu.Unlock()
			return 0, rpcx.Duplicate("extension already registered: " + id.Name)
		}
	}
	m.nextUUID++
	uuid := m.nextUUID
	id.UUID = uuid
	m.identities[uuid] = id
	m.mu.Unlock()

	broadcastMsg, err := registry.UnmarshalBroadcast(broadcast)
	if err != nil {
		m.mu.Lock()
		delete(m.identities, uuid)
		m.mu.Unlock()
		return 0, rpcx.Failure(err.Error())
	}
	if err := m.Registry.Adopt(uuid, broadcastMsg); err != nil {
		m.mu.Lock()
		delete(m.identities, uuid)
		m.mu.Unlock()
		return 0, rpcx.Duplicate(err.Error())
	}

	m.Ledger.Track(uuid)
	m.Metrics.SetLiveCount(len(m.LiveUUIDs()))
	m.logger().Info("extension registered", "uuid", uuid, "name", id.Name, "version", id.Version)
	return uuid, rpcx.Success()
}

// Options names the active config/logger/distributed plugins so a
// newly registered extension can adopt them.
func (m *Manager) Options(context.Context) map[string]rpcx.Option {
	return map[string]rpcx.Option{
		"config_plugin":      {Value: m.Registry.Active(registry.KindConfig)},
		"logger_plugin":      {Value: m.Registry.Active(registry.KindLogger)},
		"distributed_plugin": {Value: m.Registry.Active(registry.KindDistributed)},
	}
}

// Extensions lists every registered extension; UUID 0 is always
// injected as the host's own identity.
func (m *Manager) Extensions(context.Context) map[uint64]rpcx.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[uint64]rpcx.Identity, len(m.identities)+1)
	out[0] = m.coreIdentity().toWire()
	for uuid, id := range m.identities {
		out[uuid] = id.toWire()
	}
	return out
}

// Lookup returns the identity registered for uuid, if live.
func (m *Manager) Lookup(uuid uint64) (Identity, bool) {
	if uuid == 0 {
		return m.coreIdentity(), true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.identities[uuid]
	return id, ok
}

// LookupByName returns the uuid and identity registered under name, if
// live. Used by the required-extension gate.
func (m *Manager) LookupByName(name string) (uint64, Identity, bool) {
	if name == CoreName {
		return 0, m.coreIdentity(), true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for uuid, id := range m.identities {
		if id.Name == name {
			return uuid, id, true
		}
	}
	return 0, Identity{}, false
}

// LiveUUIDs returns a snapshot of every currently registered
// (non-core) extension UUID, in map iteration order. Extensions
// registered after a snapshot is taken may be skipped by the tick
// already in flight.
func (m *Manager) LiveUUIDs() []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]uint64, 0, len(m.identities))
	for uuid := range m.identities {
		out = append(out, uuid)
	}
	return out
}

// Deregister removes uuid's identity record, revokes its broadcast, and
// forgets its ledger entry: everything tied to that UUID is destroyed
// together.
func (m *Manager) Deregister(uuid uint64) {
	m.mu.Lock()
	id, ok := m.identities[uuid]
	delete(m.identities, uuid)
	m.mu.Unlock()

	m.Registry.RemoveBroadcast(uuid)
	m.Ledger.Forget(uuid)
	m.Metrics.SetLiveCount(len(m.LiveUUIDs()))
	m.Metrics.RecordDeregistration()
	if ok {
		m.logger().Info("extension deregistered", "uuid", uuid, "name", id.Name)
	}
}

// Query, GetQueryColumns and Call always report a failure status: the
// Manager has no local query engine or registry items of its own and
// does not consult its registry to route them. The host-side façade
// (facade.go) is what sends requests to a specific extension endpoint
// by UUID.
func (m *Manager) Query(context.Context, string) ([]rpcx.Row, rpcx.Status) {
	if m.Disabled {
		return nil, rpcx.Failure("extensions are disabled")
	}
	return nil, rpcx.Failure("core has no local query engine; route through an extension")
}

func (m *Manager) GetQueryColumns(context.Context, string) ([]rpcx.ColumnDef, rpcx.Status) {
	if m.Disabled {
		return nil, rpcx.Failure("extensions are disabled")
	}
	return nil, rpcx.Failure("core has no local query engine; route through an extension")
}

func (m *Manager) Call(context.Context, string, string, rpcx.Row) ([]rpcx.Row, rpcx.Status) {
	if m.Disabled {
		return nil, rpcx.Failure("extensions are disabled")
	}
	return nil, rpcx.Failure("core has no local registry items; route through an extension")
}
