package extension

import (
	"errors"

	"github.com/samber/oops"
)

// errBadModuleSymbol is wrapped by GoModuleLoader when a module's
// registration symbol has the wrong type.
var errBadModuleSymbol = errors.New("registration symbol has wrong signature, want func(any) error")

// Error codes for the six error kinds this package raises. Every
// public operation returns one of these wrapped through samber/oops so
// callers can branch with oops.AsOops(err).Code(), exactly as
// pkg/errutil expects.
const (
	CodeConfiguration = "EXTENSION_CONFIGURATION"
	CodeEndpoint      = "EXTENSION_ENDPOINT"
	CodeTimeout       = "EXTENSION_TIMEOUT"
	CodeTransport     = "EXTENSION_TRANSPORT"
	CodeProtocol      = "EXTENSION_PROTOCOL"
	CodeAutoload      = "EXTENSION_AUTOLOAD"
)

func errConfiguration(format string, args ...any) error {
	return oops.Code(CodeConfiguration).Errorf(format, args...)
}

func errEndpoint(format string, args ...any) error {
	return oops.Code(CodeEndpoint).Errorf(format, args...)
}

func errTimeout(format string, args ...any) error {
	return oops.Code(CodeTimeout).Errorf(format, args...)
}

func errTransport(operation string, err error) error {
	return oops.Code(CodeTransport).With("operation", operation).Wrapf(err, "extension call failed: %s", err)
}

func errProtocol(format string, args ...any) error {
	return oops.Code(CodeProtocol).Errorf(format, args...)
}

func errAutoload(operation string, err error) error {
	return oops.Code(CodeAutoload).With("operation", operation).Wrap(err)
}
