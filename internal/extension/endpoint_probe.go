package extension

import (
	"context"
	"time"

	"github.com/sentryhq/sentryd/internal/endpoint"
)

// EndpointActive drives the bounded-wait prober (or a single attempt,
// when useTimeout is false) against ep.Exists(addr), which already
// encodes the platform split — a pipe existence check on Windows, an
// existence-plus-trial-connection check on POSIX sockets.
//
// The returned error distinguishes "timed out waiting for endpoint"
// (when useTimeout is true and the deadline elapsed) from "endpoint
// rejected probe" (a single failed attempt with useTimeout false).
func EndpointActive(ctx context.Context, ep endpoint.Endpoint, addr endpoint.Address, useTimeout bool, timeout time.Duration) (bool, error) {
	predicate := func(context.Context) ProbeResult {
		if ep.Exists(addr) {
			return ProbeResult{Ready: true}
		}
		return ProbeResult{Ready: false, Err: errEndpoint("endpoint %s rejected probe", addr)}
	}

	var result ProbeResult
	if useTimeout {
		result = Wait(ctx, timeout, predicate)
	} else {
		result = Once(ctx, predicate)
	}
	return result.Ready, result.Err
}
