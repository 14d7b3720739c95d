// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package toolserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testManifest declares echo (schema-validated both ways), sleep
// (short per-tool timeout), and fail (returns a coded error).
func testManifest() *Manifest {
	return &Manifest{
		Name:    "test-tools",
		Version: "1.0.0",
		Vendor:  "testvendor",
		Limits:  Limits{TimeoutMsDefault: 2000},
		Tools: []ManifestTool{
			{
				Name:        "echo",
				Description: "mirrors its text argument",
				InputSchema: map[string]any{
					"type":     "object",
					"required": []any{"text"},
					"properties": map[string]any{
						"text": map[string]any{"type": "string"},
					},
				},
				OutputSchema: map[string]any{
					"type":     "object",
					"required": []any{"text"},
				},
			},
			{
				Name:        "sleep",
				Description: "waits before answering",
				TimeoutMs:   100,
			},
			{
				Name:        "fail",
				Description: "always returns a coded error",
			},
		},
	}
}

func buildTestServer(t *testing.T) *Server {
	t.Helper()

	srv, err := NewServerBuilder().
		WithManifest(testManifest()).
		WithHandler("echo", func(ctx context.Context, args json.RawMessage) (any, error) {
			var p struct {
				Text string `json:"text"`
				Bad  bool   `json:"bad"`
			}
			if err := json.Unmarshal(args, &p); err != nil {
				return nil, err
			}
			if p.Bad {
				// Violates the output schema on purpose.
				return map[string]any{"oops": true}, nil
			}
			return map[string]any{"text": p.Text}, nil
		}).
		WithHandler("sleep", func(ctx context.Context, args json.RawMessage) (any, error) {
			var p struct {
				Ms int `json:"ms"`
			}
			_ = json.Unmarshal(args, &p)
			select {
			case <-time.After(time.Duration(p.Ms) * time.Millisecond):
				return map[string]any{"slept": p.Ms}, nil
			case <-ctx.Done():
				// Keep going anyway; cancellation is advisory.
				<-time.After(time.Duration(p.Ms) * time.Millisecond)
				return map[string]any{"slept": p.Ms}, nil
			}
		}).
		WithHandler("fail", func(ctx context.Context, args json.RawMessage) (any, error) {
			return nil, protocol.NewError(-32050, "tool exploded", map[string]any{"detail": "boom"})
		}).
		Build()
	require.NoError(t, err)
	return srv
}

func dispatch(t *testing.T, srv *Server, id int64, method string, params any) *protocol.Message {
	t.Helper()
	req, err := protocol.NewRequest(id, method, params)
	require.NoError(t, err)
	return srv.dispatcher.Dispatch(context.Background(), req)
}

func resultMap(t *testing.T, resp *protocol.Message) map[string]any {
	t.Helper()
	require.NotNil(t, resp)
	require.Nil(t, resp.Error, "unexpected error: %+v", resp.Error)
	var out map[string]any
	require.NoError(t, json.Unmarshal(resp.Result, &out))
	return out
}

func dataErrors(t *testing.T, rpcErr *protocol.Error) []any {
	t.Helper()
	data, ok := rpcErr.Data.(map[string]any)
	require.True(t, ok, "error data should be a map, got %T", rpcErr.Data)
	errs, ok := data["errors"].([]any)
	if !ok {
		// Direct dispatch keeps the []string the validator produced.
		strs, ok := data["errors"].([]string)
		require.True(t, ok, "error data missing errors list")
		for _, s := range strs {
			errs = append(errs, s)
		}
	}
	return errs
}

func TestDispatchPing(t *testing.T) {
	srv := buildTestServer(t)

	out := resultMap(t, dispatch(t, srv, 1, protocol.MethodPing, nil))
	assert.Equal(t, true, out["ok"])
	assert.NotZero(t, out["ts"])
}

func TestDispatchManifestGet(t *testing.T) {
	srv := buildTestServer(t)

	out := resultMap(t, dispatch(t, srv, 1, protocol.MethodManifestGet, nil))
	assert.Equal(t, "test-tools", out["name"])
	assert.Equal(t, "1.0.0", out["version"])
	assert.Equal(t, "testvendor", out["vendor"])
	assert.Equal(t, "stdio", out["transport"])
	assert.NotNil(t, out["limits"])
}

func TestDispatchToolsList(t *testing.T) {
	srv := buildTestServer(t)

	out := resultMap(t, dispatch(t, srv, 1, protocol.MethodToolsList, nil))
	tools, ok := out["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 3)

	first, ok := tools[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "echo", first["name"])
	assert.Equal(t, "mirrors its text argument", first["description"])
	assert.NotNil(t, first["input_schema"])
}

func TestDispatchInitialize(t *testing.T) {
	srv := buildTestServer(t)

	out := resultMap(t, dispatch(t, srv, 1, protocol.MethodInitialize, map[string]any{
		"protocolVersion": protocol.HandshakeVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "test", "version": "0"},
	}))
	assert.Equal(t, protocol.HandshakeVersion, out["protocolVersion"])
	assert.NotNil(t, out["serverInfo"])
}

func TestDispatchInitializedNotificationSilent(t *testing.T) {
	srv := buildTestServer(t)

	note, err := protocol.NewNotification(protocol.MethodInitialized, nil)
	require.NoError(t, err)
	assert.Nil(t, srv.dispatcher.Dispatch(context.Background(), note))
}

func TestDispatchUnknownMethod(t *testing.T) {
	srv := buildTestServer(t)

	resp := dispatch(t, srv, 1, "resources/list", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeMethodNotFound, resp.Error.Code)
}

func TestToolsCallUnknownTool(t *testing.T) {
	srv := buildTestServer(t)

	resp := dispatch(t, srv, 1, protocol.MethodToolsCall, map[string]any{"name": "nope"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeMethodNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "Unknown tool")
}

func TestToolsCallInvalidInput(t *testing.T) {
	srv := buildTestServer(t)

	// echo requires "text"; send nothing.
	resp := dispatch(t, srv, 1, protocol.MethodToolsCall, map[string]any{
		"name":      "echo",
		"arguments": map[string]any{},
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeInvalidParams, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "Invalid input for `echo`")
	assert.NotEmpty(t, dataErrors(t, resp.Error))
}

func TestToolsCallSuccess(t *testing.T) {
	srv := buildTestServer(t)

	resp := dispatch(t, srv, 1, protocol.MethodToolsCall, map[string]any{
		"name":      "echo",
		"arguments": map[string]any{"text": "hello"},
	})
	out := resultMap(t, resp)
	assert.Equal(t, "echo", out["name"])

	result, ok := out["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hello", result["text"])
}

func TestToolsCallInvalidOutput(t *testing.T) {
	srv := buildTestServer(t)

	resp := dispatch(t, srv, 1, protocol.MethodToolsCall, map[string]any{
		"name":      "echo",
		"arguments": map[string]any{"text": "x", "bad": true},
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeInvalidToolOutput, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "invalid output")
}

func TestToolsCallCarriesToolErrorCode(t *testing.T) {
	srv := buildTestServer(t)

	resp := dispatch(t, srv, 1, protocol.MethodToolsCall, map[string]any{"name": "fail"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32050, resp.Error.Code)
	assert.Equal(t, "tool exploded", resp.Error.Message)
	assert.NotNil(t, resp.Error.Data)
}

func TestToolsCallTimeoutAdvisoryOnly(t *testing.T) {
	srv := buildTestServer(t)

	start := time.Now()
	resp := dispatch(t, srv, 1, protocol.MethodToolsCall, map[string]any{
		"name":      "sleep",
		"arguments": map[string]any{"ms": 5000},
	})
	elapsed := time.Since(start)

	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeInternal, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "timed out")

	// Per-tool timeout is 100ms; the caller gets the error near the
	// deadline, not after the tool's full 5s sleep.
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
	assert.Less(t, elapsed, 1*time.Second)
}

func TestToolsCallPanicBecomesInternalError(t *testing.T) {
	manifest := &Manifest{
		Name:    "panicky",
		Version: "1.0.0",
		Tools:   []ManifestTool{{Name: "boom"}},
	}
	srv, err := NewServerBuilder().
		WithManifest(manifest).
		WithHandler("boom", func(ctx context.Context, args json.RawMessage) (any, error) {
			panic("kaboom")
		}).
		Build()
	require.NoError(t, err)

	resp := dispatch(t, srv, 1, protocol.MethodToolsCall, map[string]any{"name": "boom"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeInternal, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "panicked")
}

func TestBuildFailsOnMissingHandler(t *testing.T) {
	_, err := NewServerBuilder().WithManifest(testManifest()).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no handler registered")
}

func TestBuildFailsOnUnknownHandler(t *testing.T) {
	manifest := &Manifest{
		Name:    "demo",
		Version: "1.0.0",
		Tools:   []ManifestTool{{Name: "echo"}},
	}
	_, err := NewServerBuilder().
		WithManifest(manifest).
		WithHandler("echo", func(ctx context.Context, args json.RawMessage) (any, error) { return nil, nil }).
		WithHandler("ghost", func(ctx context.Context, args json.RawMessage) (any, error) { return nil, nil }).
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no matching tool")
}
