// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 sentryd Contributors

package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func newFlagSet(kind string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, kind)
	return fs
}

func TestLoad_ManagerDefaults(t *testing.T) {
	fs := newFlagSet("manager")
	require.NoError(t, fs.Parse(nil))

	cfg, err := Load(fs, "manager", "")
	require.NoError(t, err)
	require.False(t, cfg.DisableExtensions)
	require.Equal(t, 3*time.Second, cfg.Timeout)
	require.Equal(t, 3*time.Second, cfg.Interval)
	require.Empty(t, cfg.Require)
	require.Equal(t, ":9100", cfg.MetricsAddr)
}

func TestLoad_MetricsAddrDisabledByEmptyFlag(t *testing.T) {
	fs := newFlagSet("manager")
	require.NoError(t, fs.Parse([]string{"--metrics_addr="}))

	cfg, err := Load(fs, "manager", "")
	require.NoError(t, err)
	require.Empty(t, cfg.MetricsAddr)
}

func TestLoad_ExtensionAliases(t *testing.T) {
	fs := newFlagSet("extension")
	require.NoError(t, fs.Parse([]string{"--socket=/tmp/manager.em", "--timeout=5", "--interval=2"}))

	cfg, err := Load(fs, "extension", "")
	require.NoError(t, err)
	require.Equal(t, "/tmp/manager.em", cfg.Socket)
	require.Equal(t, 5*time.Second, cfg.Timeout)
	require.Equal(t, 2*time.Second, cfg.Interval)
}

func TestLoad_RequireCommaSplit(t *testing.T) {
	fs := newFlagSet("manager")
	require.NoError(t, fs.Parse([]string{"--extensions_require= probe-a, probe-b ,"}))

	cfg, err := Load(fs, "manager", "")
	require.NoError(t, err)
	require.Equal(t, []string{"probe-a", "probe-b"}, cfg.Require)
}

func TestLoad_DisableExtensionsFlag(t *testing.T) {
	fs := newFlagSet("manager")
	require.NoError(t, fs.Parse([]string{"--disable_extensions"}))

	cfg, err := Load(fs, "manager", "")
	require.NoError(t, err)
	require.True(t, cfg.DisableExtensions)
}

func TestLoad_MissingConfigFileErrors(t *testing.T) {
	fs := newFlagSet("manager")
	require.NoError(t, fs.Parse(nil))

	_, err := Load(fs, "manager", "/nonexistent/sentryd.yaml")
	require.Error(t, err)
}
