// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package codegen generates handler scaffolding for tool servers.
//
// It reads a tool manifest (the same file the server loads at runtime)
// and emits a Go source file with a typed argument struct and handler
// stub per declared tool, plus a builder function that wires them onto a
// toolserver.ServerBuilder. The output is gofmt-formatted and meant to
// be filled in by hand.
package codegen
