// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/cli"
	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/logger"
	verpkg "github.com/H0llyW00dzZ/mcp-tool-runtime/src/version"
)

var version string // set by ldflags or defaults to imported version

func init() {
	if version == "" {
		version = verpkg.Version
	}
}

func main() {
	log := logger.NewCLILogger()

	// Signal handling via signal.NotifyContext; cancellation propagates to
	// every in-flight RPC through the command context.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() {
		done <- cli.Execute(ctx, version, log)
	}()

	select {
	case err := <-done:
		if err != nil {
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Println("Received termination signal. Exiting...")
		// Give the CLI a moment to stop child processes.
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
		os.Exit(130) // Standard exit code for SIGINT
	}
}
