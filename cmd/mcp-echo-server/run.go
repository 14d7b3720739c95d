// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/logger"
	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/toolserver"
	verpkg "github.com/H0llyW00dzZ/mcp-tool-runtime/src/version"
)

var version string // set by ldflags or defaults to imported version

func init() {
	if version == "" {
		version = verpkg.Version
	}
}

// echoManifest declares the reference tools inline so the binary runs
// without a manifest file on disk.
func echoManifest() *toolserver.Manifest {
	return &toolserver.Manifest{
		Name:    "mcp-echo-server",
		Version: version,
		Vendor:  "H0llyW00dzZ",
		Tools: []toolserver.ManifestTool{
			{
				Name:        "echo",
				Description: "Mirrors its arguments back to the caller.",
				InputSchema: map[string]any{
					"type":                 "object",
					"properties":           map[string]any{"text": map[string]any{"type": "string"}},
					"required":             []any{"text"},
					"additionalProperties": false,
				},
			},
			{
				Name:        "sleep",
				Description: "Waits for the requested number of milliseconds.",
				InputSchema: map[string]any{
					"type":       "object",
					"properties": map[string]any{"ms": map[string]any{"type": "integer", "minimum": 0}},
					"required":   []any{"ms"},
				},
			},
			{
				Name:        "fail",
				Description: "Always returns an execution error, for exercising error paths.",
			},
		},
	}
}

func echoExec(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, err
	}
	return map[string]any{"text": in.Text}, nil
}

func sleepExec(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Ms int `json:"ms"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, err
	}
	select {
	case <-time.After(time.Duration(in.Ms) * time.Millisecond):
		return map[string]any{"slept_ms": in.Ms}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func failExec(ctx context.Context, args json.RawMessage) (any, error) {
	return nil, fmt.Errorf("fail tool invoked")
}

func main() {
	// Stdout carries the protocol; diagnostics go to stderr, which the
	// host process inherits.
	log := logger.NewMCPLogger(os.Stderr, false).WithComponent("mcp-echo-server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := toolserver.NewServerBuilder().
		WithManifest(echoManifest()).
		WithHandler("echo", echoExec).
		WithHandler("sleep", sleepExec).
		WithHandler("fail", failExec).
		WithLogger(log).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}

	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
