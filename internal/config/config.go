// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 sentryd Contributors

// Package config binds sentryd's CLI flags through pflag, optionally
// overlaid by a YAML file, into a typed Config.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/sentryhq/sentryd/internal/xdg"
)

// Config is the resolved flag surface every sentryd subcommand reads
// from: manager and extension processes share these keys, differing
// only in which ones matter to a given process.
type Config struct {
	DisableExtensions  bool
	Socket             string
	ExtensionsAutoload string
	ModulesAutoload    string
	Timeout            time.Duration
	Interval           time.Duration
	Require            []string
	// Extension is a single extension path bypassing the autoload
	// safety check. Shell-only; never set from a config file.
	Extension string
	// MetricsAddr is the listen address for the Prometheus /metrics
	// endpoint. Empty disables the metrics HTTP server entirely.
	MetricsAddr string
}

// RegisterFlags adds the shared extension flag surface to fs (typically
// a cobra command's own flag set). cmdKind selects between
// "extensions_*" flag names (host process) and the extension-process
// aliases (socket/timeout/interval).
func RegisterFlags(fs *pflag.FlagSet, cmdKind string) {
	fs.Bool("disable_extensions", false, "disable all extension load/register/RPC paths")
	fs.String("extensions_autoload", xdg.ExtensionsLoadPath(), "extension loadfile path")
	fs.String("modules_autoload", xdg.ModulesLoadPath(), "in-process module loadfile path")
	fs.String("extensions_require", "", "comma-separated extension names required before startup completes")
	fs.String("extension", "", "single extension path, bypasses the autoload safety check")
	fs.String("metrics_addr", ":9100", "listen address for the Prometheus /metrics endpoint, empty disables it")

	switch cmdKind {
	case "extension":
		fs.String("socket", xdg.ManagerSocketPath(), "manager endpoint (alias of extensions_socket)")
		fs.Int("timeout", 3, "RPC and probe timeout in seconds (alias of extensions_timeout)")
		fs.Int("interval", 3, "watcher tick period in seconds (alias of extensions_interval)")
	default:
		fs.String("extensions_socket", xdg.ManagerSocketPath(), "manager endpoint")
		fs.Int("extensions_timeout", 3, "autoload and required-extension timeout in seconds")
		fs.Int("extensions_interval", 3, "watcher tick period in seconds")
	}
}

// Load resolves a Config from parsed flags, optionally overlaid on top
// of a YAML config file. configFile may be empty, in which case only flags
// (and their defaults) are used.
func Load(fs *pflag.FlagSet, cmdKind string, configFile string) (*Config, error) {
	k := koanf.New(".")

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errConfiguration("load config file %s: %s", configFile, err)
		}
	}

	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, errConfiguration("load flags: %s", err)
	}

	// The single-extension path is taken from the flag set only, never
	// from the config file.
	extensionPath, _ := fs.GetString("extension")

	socketKey, timeoutKey, intervalKey := "extensions_socket", "extensions_timeout", "extensions_interval"
	if cmdKind == "extension" {
		socketKey, timeoutKey, intervalKey = "socket", "timeout", "interval"
	}

	cfg := &Config{
		DisableExtensions:  k.Bool("disable_extensions"),
		Socket:             k.String(socketKey),
		ExtensionsAutoload: k.String("extensions_autoload"),
		ModulesAutoload:    k.String("modules_autoload"),
		Timeout:            time.Duration(k.Int(timeoutKey)) * time.Second,
		Interval:           time.Duration(k.Int(intervalKey)) * time.Second,
		Extension:          extensionPath,
		MetricsAddr:        k.String("metrics_addr"),
	}
	if raw := k.String("extensions_require"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				cfg.Require = append(cfg.Require, name)
			}
		}
	}

	return cfg, nil
}
