// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package toolserver

import (
	"fmt"

	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/logger"
)

// ServerBuilder constructs a [Server] with a fluent interface.
//
// Example:
//
//	srv, err := toolserver.NewServerBuilder().
//	    WithManifestPath("tool-manifest.json").
//	    WithHandler("echo", echoExec).
//	    WithLogger(log).
//	    Build()
type ServerBuilder struct {
	manifest     *Manifest
	manifestPath string
	handlers     map[string]ExecFunc
	log          logger.Logger
}

// NewServerBuilder creates a new server builder with no dependencies
// configured. Chain the With* methods and call Build.
func NewServerBuilder() *ServerBuilder {
	return &ServerBuilder{handlers: make(map[string]ExecFunc)}
}

// WithManifest supplies an already loaded manifest. Validation and limit
// defaults are applied during Build. Takes precedence over WithManifestPath.
func (b *ServerBuilder) WithManifest(m *Manifest) *ServerBuilder {
	b.manifest = m
	return b
}

// WithManifestPath sets an explicit manifest path. An empty path uses the
// standard resolution order (CWD, executable directory, parent directory).
func (b *ServerBuilder) WithManifestPath(path string) *ServerBuilder {
	b.manifestPath = path
	return b
}

// WithHandler registers the implementation for one declared tool.
// Build fails if a manifest tool has no handler or a handler has no
// manifest declaration.
func (b *ServerBuilder) WithHandler(name string, exec ExecFunc) *ServerBuilder {
	b.handlers[name] = exec
	return b
}

// WithLogger sets the logger for transport and dispatch diagnostics.
// When unset, Build installs a silent MCP logger so the stdio protocol
// stays clean.
func (b *ServerBuilder) WithLogger(log logger.Logger) *ServerBuilder {
	b.log = log
	return b
}

// Build validates the configuration and constructs the server.
//
// Returns:
//   - *Server: Ready to Serve over a stream
//   - error: Error if the manifest is missing/invalid or handlers and
//     declarations do not match one-to-one
func (b *ServerBuilder) Build() (*Server, error) {
	log := b.log
	if log == nil {
		log = logger.NewMCPLogger(nil, true)
	}

	manifest := b.manifest
	if manifest == nil {
		loaded, err := LoadManifest(b.manifestPath)
		if err != nil {
			return nil, err
		}
		manifest = loaded
	} else {
		if err := manifest.Validate(); err != nil {
			return nil, fmt.Errorf("invalid manifest: %w", err)
		}
		manifest.applyLimitDefaults()
	}

	dispatcher, err := newDispatcher(manifest, b.handlers, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build dispatcher: %w", err)
	}

	return &Server{
		dispatcher: dispatcher,
		log:        log,
		sem:        make(chan struct{}, manifest.Limits.MaxConcurrency),
	}, nil
}
