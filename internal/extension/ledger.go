package extension

import "sync"

// FailureState is a small named enum standing in for a raw integer
// counter: NeverProbed=0, Healthy=1, OneStrike=2, so the eviction
// threshold stays "state > Healthy" but call sites read intent instead
// of magic numbers.
type FailureState int

const (
	// NeverProbed is the initial state for a freshly registered
	// extension: the manager watcher has not yet run a tick against it.
	NeverProbed FailureState = 0
	// Healthy means the most recent probe succeeded, or a probe is
	// about to begin: the counter is optimistically reset to healthy at
	// the start of every attempt.
	Healthy FailureState = 1
	// OneStrike means the most recent probe failed once. A second
	// consecutive failure is fatal for membership.
	OneStrike FailureState = 2
)

// Evictable reports whether this state triggers deregistration: any
// state past Healthy, i.e. a probe failure recorded without an
// intervening success this tick.
func (s FailureState) Evictable() bool { return s > Healthy }

// Ledger is the manager-side failure ledger: a mapping from extension
// UUID to failure state, owned exclusively by the manager watcher
// goroutine, with no external mutation.
type Ledger struct {
	mu     sync.Mutex
	states map[uint64]FailureState
}

// NewLedger creates an empty failure ledger.
func NewLedger() *Ledger {
	return &Ledger{states: make(map[uint64]FailureState)}
}

// Track creates a NeverProbed entry for uuid if one does not already
// exist. A failure ledger entry is created alongside its identity
// record and lives exactly as long as it does.
func (l *Ledger) Track(uuid uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.states[uuid]; !ok {
		l.states[uuid] = NeverProbed
	}
}

// Forget removes uuid's entry, destroying it along with the identity
// record it tracks.
func (l *Ledger) Forget(uuid uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.states, uuid)
}

// State returns uuid's current failure state. An untracked uuid reads
// as NeverProbed.
func (l *Ledger) State(uuid uint64) FailureState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.states[uuid]
}

// BeginProbe sets uuid's state to Healthy immediately before the
// watcher actually sends a ping, resetting eviction pressure ahead of
// the attempt rather than waiting for it to succeed. The watcher skips
// this call entirely when it never reaches the ping (an unwritable or
// nonexistent endpoint goes straight to RecordFailure), so a uuid that
// is never actually probed this tick keeps whatever state it had.
func (l *Ledger) BeginProbe(uuid uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states[uuid] = Healthy
}

// RecordSuccess resets uuid to Healthy.
func (l *Ledger) RecordSuccess(uuid uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states[uuid] = Healthy
}

// RecordFailure increments uuid's failure state by one strike.
func (l *Ledger) RecordFailure(uuid uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states[uuid]++
}

// ResetAfterEviction sets uuid back to Healthy after a deregistration:
// any UUID whose failure state exceeds Healthy is deregistered, and its
// failure state is reset before the entry is reused (or discarded).
func (l *Ledger) ResetAfterEviction(uuid uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states[uuid] = Healthy
}

// Snapshot copies the current uuid->state map, for tests and
// diagnostics that must not hold the ledger's lock while inspecting it.
func (l *Ledger) Snapshot() map[uint64]FailureState {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[uint64]FailureState, len(l.states))
	for k, v := range l.states {
		out[k] = v
	}
	return out
}
