// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package toolclient

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// configFormat represents supported configuration file formats.
type configFormat int

const (
	// configFormatJSON represents JSON configuration format (.json)
	configFormatJSON configFormat = iota
	// configFormatYAML represents YAML configuration format (.yaml, .yml)
	configFormatYAML
)

// envConfigFile names the environment variable consulted for the host
// configuration path when none is given explicitly.
const envConfigFile = "MCP_TOOL_RUNTIME_CONFIG"

// ServerConfig describes how to spawn one logical tool server. It is an
// immutable, externally supplied input; the supervisor never mutates it.
type ServerConfig struct {
	// Name: Logical server name used as the registry key
	Name string `json:"name" yaml:"name"`
	// Command: Executable to spawn
	Command string `json:"command" yaml:"command"`
	// Args: Arguments passed to the executable
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`
	// Cwd: Working directory for the child (empty inherits the host's)
	Cwd string `json:"cwd,omitempty" yaml:"cwd,omitempty"`
	// Env: Extra environment variables merged over the host environment
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	// IdleTTLMs: Inactivity window after which the child is stopped.
	// Zero disables idle shutdown.
	IdleTTLMs int `json:"idleTtlMs,omitempty" yaml:"idleTtlMs,omitempty"`
}

// Validate checks the fields a supervisor cannot work without.
func (c *ServerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("server config is missing required field: name")
	}
	if c.Command == "" {
		return fmt.Errorf("server %s is missing required field: command", c.Name)
	}
	return nil
}

// ConfigLookup resolves a logical server name to its spawn configuration.
// The registry calls it lazily, once per name, when a supervisor is first
// needed.
type ConfigLookup func(name string) (*ServerConfig, error)

// hostConfig is the on-disk shape of the host configuration: a map of
// logical server names to their spawn settings.
type hostConfig struct {
	Servers map[string]*ServerConfig `json:"servers" yaml:"servers"`
}

// detectConfigFormat determines the configuration file format based on
// file extension, matching case-insensitively.
func detectConfigFormat(path string) configFormat {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return configFormatYAML
	default:
		return configFormatJSON
	}
}

// unmarshalConfig unmarshals configuration data based on the specified format.
func unmarshalConfig(data []byte, cfg *hostConfig, format configFormat) error {
	switch format {
	case configFormatYAML:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %w", err)
		}
	}
	return nil
}

// LoadServerConfigs reads a host configuration file and returns a
// ConfigLookup over its server entries.
//
// Parameters:
//   - path: Configuration file path; empty falls back to the
//     MCP_TOOL_RUNTIME_CONFIG environment variable
//     Supported formats: .json, .yaml, .yml
//
// Returns:
//   - ConfigLookup: Resolver over the file's server map
//   - error: Error if no path is available or the file is unreadable,
//     unparsable, or contains an invalid entry
func LoadServerConfigs(path string) (ConfigLookup, error) {
	if path == "" {
		path = os.Getenv(envConfigFile)
	}
	if path == "" {
		return nil, fmt.Errorf("no config file given; pass a path or set %s", envConfigFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &hostConfig{}
	if err := unmarshalConfig(data, cfg, detectConfigFormat(path)); err != nil {
		return nil, err
	}
	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("config file %s declares no servers", path)
	}

	for name, sc := range cfg.Servers {
		// The map key is authoritative; entries need not repeat it.
		sc.Name = name
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	return func(name string) (*ServerConfig, error) {
		sc, ok := cfg.Servers[name]
		if !ok {
			return nil, fmt.Errorf("no server named %s in configuration", name)
		}
		return sc, nil
	}, nil
}
