// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// mcp-tool-runtime is a command-line host for subprocess tool servers.
// It spawns servers declared in a host configuration file, speaks framed
// JSON-RPC 2.0 over their stdio, and exposes their tool catalogs on the
// command line.
//
// # Installation
//
// Install with Go 1.25.5 or later:
//
//	go install github.com/H0llyW00dzZ/mcp-tool-runtime/cmd/mcp-tool-runtime@latest
//
// # Usage
//
//	mcp-tool-runtime <command> <server> [FLAGS]
//
// # Commands
//
//	tools     List the tools a server exposes as a markdown table
//	call      Call a tool with JSON arguments and print the result
//	ping      Check a server's liveness and report round-trip latency
//	manifest  Print a server's manifest metadata
//
// # Flags
//
//	-c, --config   Host configuration file (JSON or YAML); falls back to
//	               the MCP_TOOL_RUNTIME_CONFIG environment variable
//	-v, --verbose  Write runtime diagnostics to stderr
//	-a, --args     Tool arguments as a JSON object (call only)
//	-t, --timeout  Per-call timeout in milliseconds (call only)
//
// # Examples
//
// List the tools of the server named "audit":
//
//	mcp-tool-runtime tools audit --config servers.yaml
//
// Call a tool:
//
//	mcp-tool-runtime call audit check_links --args '{"url":"https://example.com"}'
//
// Ping a server:
//
//	mcp-tool-runtime ping audit
package main
