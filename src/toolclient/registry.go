// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package toolclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/internal/protocol"
	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/logger"
)

// ToolInfo is one catalog entry as reported by a server's tools/list.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// Registry maps logical server names to supervisors, created lazily from
// a ConfigLookup. One Registry instance lives for the host's lifetime and
// CloseAll tears it down deterministically; there is no ambient global.
//
// Registry is safe for concurrent use.
type Registry struct {
	lookup ConfigLookup
	log    logger.Logger

	mu          sync.Mutex
	supervisors map[string]*Supervisor
}

// NewRegistry creates a registry over the given configuration lookup.
func NewRegistry(lookup ConfigLookup, log logger.Logger) *Registry {
	if log == nil {
		log = logger.NewMCPLogger(nil, true)
	}
	return &Registry{
		lookup:      lookup,
		log:         log,
		supervisors: make(map[string]*Supervisor),
	}
}

// Supervisor returns the supervisor for a logical name, creating it on
// first use. Creation resolves the configuration but does not spawn the
// child; that happens on the first call.
func (r *Registry) Supervisor(name string) (*Supervisor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sup, ok := r.supervisors[name]; ok {
		return sup, nil
	}

	config, err := r.lookup(name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve server %s: %w", name, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	sup := NewSupervisor(config, r.log)
	r.supervisors[name] = sup
	return sup, nil
}

// EnsureReady spawns the named server if needed and waits for its
// handshake to settle.
func (r *Registry) EnsureReady(ctx context.Context, name string) error {
	sup, err := r.Supervisor(name)
	if err != nil {
		return err
	}
	return sup.EnsureReady(ctx)
}

// ListTools fetches the named server's tool catalog.
func (r *Registry) ListTools(ctx context.Context, name string) ([]ToolInfo, error) {
	sup, err := r.Supervisor(name)
	if err != nil {
		return nil, err
	}

	result, err := sup.RPC(ctx, protocol.MethodToolsList, nil, 0)
	if err != nil {
		return nil, err
	}
	return decodeToolList(result)
}

// decodeToolList accepts both wire shapes for a catalog: an object with a
// tools member, or a bare array.
func decodeToolList(result json.RawMessage) ([]ToolInfo, error) {
	var wrapped struct {
		Tools []ToolInfo `json:"tools"`
	}
	if err := json.Unmarshal(result, &wrapped); err == nil && wrapped.Tools != nil {
		return wrapped.Tools, nil
	}

	var bare []ToolInfo
	if err := json.Unmarshal(result, &bare); err != nil {
		return nil, fmt.Errorf("unrecognized tools/list result: %w", err)
	}
	return bare, nil
}

// CallTool invokes one tool on the named server and returns the tool's
// result payload. A zero timeout uses the package default.
//
// Parameters:
//   - ctx: Cancels the wait; no signal reaches the child
//   - name: Logical server name
//   - tool: Tool name within that server's catalog
//   - args: Tool arguments, marshaled as the call's arguments member
//   - timeout: Per-request deadline; 0 means the package default
//
// Returns:
//   - json.RawMessage: The result field of the tool's reply
//   - error: Timeout, process failure, or the server's error object
func (r *Registry) CallTool(ctx context.Context, name, tool string, args any, timeout time.Duration) (json.RawMessage, error) {
	sup, err := r.Supervisor(name)
	if err != nil {
		return nil, err
	}

	result, err := sup.RPC(ctx, protocol.MethodToolsCall, map[string]any{
		"name":      tool,
		"arguments": args,
	}, timeout)
	if err != nil {
		return nil, err
	}

	var wrapped struct {
		Name   string          `json:"name"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(result, &wrapped); err != nil || wrapped.Result == nil {
		// Servers outside this runtime may answer with the bare result.
		return result, nil
	}
	return wrapped.Result, nil
}

// Ping round-trips a ping to the named server and returns the observed
// latency.
func (r *Registry) Ping(ctx context.Context, name string) (time.Duration, error) {
	sup, err := r.Supervisor(name)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	if _, err := sup.RPC(ctx, protocol.MethodPing, nil, 0); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Manifest fetches the named server's manifest metadata.
func (r *Registry) Manifest(ctx context.Context, name string) (json.RawMessage, error) {
	sup, err := r.Supervisor(name)
	if err != nil {
		return nil, err
	}
	return sup.RPC(ctx, protocol.MethodManifestGet, nil, 0)
}

// CloseAll stops every supervisor and empties the map. The registry can
// be reused afterwards; supervisors are recreated on demand.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, sup := range r.supervisors {
		sup.Stop()
		delete(r.supervisors, name)
	}
}
