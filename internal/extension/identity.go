package extension

import (
	"github.com/Masterminds/semver/v3"

	"github.com/sentryhq/sentryd/internal/rpcx"
)

// Identity is the domain form of an extension's identity record.
// rpcx.Identity is its wire twin; the two are kept distinct so the
// transport package never needs to know about semver compatibility
// checks.
type Identity struct {
	UUID          uint64
	Name          string
	Version       string
	SDKVersion    string
	MinSDKVersion string
}

// CoreName is the reserved name reported for UUID 0, the manager
// itself, in every listExtensions response.
const CoreName = "core"

// CoreMinSDKVersion is the min_sdk_version the manager reports about
// itself: it has no minimum, since it defines the SDK.
const CoreMinSDKVersion = "0.0.0"

func (id Identity) toWire() rpcx.Identity {
	return rpcx.Identity{
		UUID:          id.UUID,
		Name:          id.Name,
		Version:       id.Version,
		SDKVersion:    id.SDKVersion,
		MinSDKVersion: id.MinSDKVersion,
	}
}

func identityFromWire(w rpcx.Identity) Identity {
	return Identity{
		UUID:          w.UUID,
		Name:          w.Name,
		Version:       w.Version,
		SDKVersion:    w.SDKVersion,
		MinSDKVersion: w.MinSDKVersion,
	}
}

// CheckCompatible verifies that the manager's own SDK version satisfies
// an extension's declared min_sdk_version — the minimum host SDK an
// extension requires to function correctly. Every identity record
// carries its own min_sdk_version; the host's own UUID-0 identity
// always reports CoreMinSDKVersion, meaning no constraint.
func CheckCompatible(hostSDKVersion, extensionMinSDKVersion string) error {
	if extensionMinSDKVersion == "" || extensionMinSDKVersion == CoreMinSDKVersion {
		return nil
	}
	required, err := semver.NewVersion(extensionMinSDKVersion)
	if err != nil {
		return errProtocol("extension reported invalid min_sdk_version %q: %s", extensionMinSDKVersion, err)
	}
	host, err := semver.NewVersion(hostSDKVersion)
	if err != nil {
		return errConfiguration("invalid host sdk_version %q: %s", hostSDKVersion, err)
	}
	if host.LessThan(required) {
		return errProtocol("host sdk_version %s is older than extension's required minimum %s", host, required)
	}
	return nil
}
