// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package protocol defines the [JSON-RPC 2.0] message model shared by both
// halves of the tool-process runtime: the client-side supervisor/correlator
// and the server-side dispatcher. It provides the envelope union
// (request/response/notification), the runtime's error codes, and helpers
// for id normalization (preserving values while normalizing types) and safe
// unmarshaling of params payloads into typed structs.
//
// [JSON-RPC 2.0]: https://www.jsonrpc.org/specification
package protocol
