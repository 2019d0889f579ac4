// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 sentryd Contributors

//go:build windows

package main

import (
	"time"

	"github.com/sentryhq/sentryd/internal/endpoint"
)

func newEndpoint(dialTimeout time.Duration) endpoint.Endpoint {
	return &endpoint.Windows{DialTimeout: dialTimeout}
}
