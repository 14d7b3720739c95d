// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package toolserver is the server half of the tool-process runtime: it
// lets a subprocess expose a catalog of named tools to a host over its
// stdio pipes using JSON-RPC 2.0 envelopes.
//
// A server is described by a manifest (JSON or YAML) declaring its
// identity, operational limits, and tools with optional JSON schemas for
// inputs and outputs. Handlers are plain Go functions registered by tool
// name through [ServerBuilder]; the [Dispatcher] validates arguments
// against the input schema before a handler runs and its result against
// the output schema afterwards.
//
// Methods served: initialize, ping, manifest/get, tools/list, and
// tools/call. Unknown methods and tools answer with code -32601, schema
// rejections with -32602 (inputs) and -32001 (outputs), and anything a
// handler fails to classify with -32000, so every correlated id gets a
// reply.
package toolserver
