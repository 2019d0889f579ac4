// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 sentryd Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flag available to all subcommands.
var configFile string

// NewRootCmd creates the root command for sentryd.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sentryd",
		Short: "sentryd - extension supervision core for a host monitoring agent",
		Long: `sentryd runs the manager and extension processes of a host
monitoring agent's extension subsystem: registration, liveness
watching, autoloading, and the RPC façade third-party extensions
register against.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file path")

	cmd.AddCommand(NewManagerCmd())
	cmd.AddCommand(NewExtensionCmd())

	return cmd
}
