// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package framing reassembles JSON-RPC frames from chunked pipe streams.
//
// Two framings are supported and auto-detected from the first bytes a
// channel produces:
//
//   - NDJSON: one JSON envelope per newline-terminated line
//   - LSP: Content-Length header blocks, as in the Language Server Protocol
//
// Detection happens once per channel and is then applied symmetrically to
// both directions, so a tool process that speaks Content-Length frames also
// receives them. Buffering uses the pooled buffers from the gc helper to
// keep per-frame allocations off the hot path; see [Codec].
package framing
