package extension

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// ProbePeriod is the fixed poll period between probe attempts, known as
// the "initialize latency" constant.
const ProbePeriod = 20 * time.Millisecond

// MinProbeAttempts is the floor on attempts the prober guarantees
// regardless of how small the configured timeout is.
const MinProbeAttempts = 10

// DefaultProbeTimeout is the default autoload/required-extension
// timeout when no seconds value is configured.
const DefaultProbeTimeout = 3 * time.Second

// ProbeResult is what a Predicate reports back to Wait on each attempt.
type ProbeResult struct {
	// Ready is true once the awaited condition holds.
	Ready bool
	// Stop asks Wait to return immediately with this result, even if
	// Ready is false.
	Stop bool
	// Err carries a human-readable reason when Ready is false.
	Err error
}

// Predicate is evaluated once per attempt by Wait.
type Predicate func(ctx context.Context) ProbeResult

// EffectiveTimeout clamps timeout to a floor of
// MinProbeAttempts * ProbePeriod, guaranteeing at least
// MinProbeAttempts attempts regardless of how small timeout is.
func EffectiveTimeout(timeout time.Duration) time.Duration {
	floor := MinProbeAttempts * ProbePeriod
	if timeout < floor {
		return floor
	}
	return timeout
}

// Wait is the bounded-wait prober: it calls predicate repeatedly,
// sleeping ProbePeriod between attempts, until the predicate reports
// Ready, asks to Stop, or the deadline (computed from EffectiveTimeout)
// elapses. It never sleeps after a successful attempt and performs no
// concurrency of its own — the calling goroutine blocks for the whole
// wait.
//
// Backed by sethvargo/go-retry's constant backoff and duration cap
// rather than a hand-rolled sleep loop.
func Wait(ctx context.Context, timeout time.Duration, predicate Predicate) ProbeResult {
	backoff := retry.NewConstant(ProbePeriod)
	backoff = retry.WithMaxDuration(EffectiveTimeout(timeout), backoff)

	for {
		result := predicate(ctx)
		if result.Ready || result.Stop {
			return result
		}

		wait, stop := backoff.Next()
		if stop {
			if result.Err != nil {
				return ProbeResult{Ready: false, Err: errTimeout("timed out waiting for endpoint after %s: %s", EffectiveTimeout(timeout), result.Err)}
			}
			return ProbeResult{Ready: false, Err: errTimeout("timed out waiting for endpoint after %s", EffectiveTimeout(timeout))}
		}

		select {
		case <-ctx.Done():
			return ProbeResult{Ready: false, Err: ctx.Err()}
		case <-time.After(wait):
		}
	}
}

// Once runs predicate exactly one time, collapsing Wait into a single
// probe with no retry loop. Used for read paths (query/call/ping) that
// probe without blocking on a wait window.
func Once(ctx context.Context, predicate Predicate) ProbeResult {
	return predicate(ctx)
}
