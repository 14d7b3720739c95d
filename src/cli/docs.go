// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package cli provides the command-line interface for the MCP tool runtime.
// It implements a Cobra-based CLI for driving subprocess tool servers by
// logical name: listing their tool catalogs as markdown tables, calling
// tools with JSON arguments, pinging for liveness, and fetching manifest
// metadata. The package loads the host configuration (JSON or YAML),
// handles context cancellation, and integrates with the logger package
// for output and error reporting.
package cli
