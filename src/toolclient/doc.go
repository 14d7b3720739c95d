// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package toolclient is the host half of the tool-process runtime: it
// spawns tool-server subprocesses, speaks JSON-RPC 2.0 to them over their
// stdio pipes, and correlates pipelined responses to callers by id.
//
// A [Registry] maps logical server names to [Supervisor] instances,
// created lazily from a [ConfigLookup]. Each supervisor owns exactly one
// child process: it handles spawning, the initialize/initialized
// handshake with a tools/list readiness probe, per-request timeouts,
// idle shutdown, and crash recovery. A child that exits rejects every
// in-flight request with "process exited" and the next call performs a
// clean cold start, including a fresh handshake.
//
// Cancellation is advisory only. A timed-out or cancelled call frees its
// id slot on the host side; no signal reaches the child, and a late
// response for that id is logged and ignored.
package toolclient
