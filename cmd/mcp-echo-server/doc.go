// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// mcp-echo-server is a reference tool server for the MCP tool runtime.
// It serves three tools over stdio: echo (mirrors its arguments), sleep
// (waits a requested duration, honoring cancellation), and fail (always
// errors). The manifest is declared inline, so the binary runs standalone.
//
// # Usage
//
// Point a host configuration entry at the binary:
//
//	servers:
//	  echo:
//	    command: mcp-echo-server
//
// Then drive it from the CLI:
//
//	mcp-tool-runtime call echo echo --args '{"text":"hello"}'
package main
