// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 sentryd Contributors

package config

import "github.com/samber/oops"

// CodeConfiguration mirrors internal/extension's Configuration error
// kind: flag or config-file values that make no sense together.
const CodeConfiguration = "CONFIGURATION"

func errConfiguration(format string, args ...any) error {
	return oops.Code(CodeConfiguration).Errorf(format, args...)
}
