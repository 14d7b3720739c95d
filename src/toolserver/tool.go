// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package toolserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// ExecFunc implements a tool's logic. It receives the validated arguments
// as raw JSON and returns any JSON-encodable result. Returning a
// *protocol.Error carries a custom code and structured data back to the
// caller; any other error becomes a generic internal error.
//
// The context carries the per-call deadline. Cancellation is advisory:
// a tool that ignores it keeps running after its caller has timed out,
// but its eventual result is discarded.
type ExecFunc func(ctx context.Context, args json.RawMessage) (any, error)

// tool is a compiled catalog entry: the manifest declaration joined with
// its handler, schemas compiled once at build time.
type tool struct {
	decl      ManifestTool
	exec      ExecFunc
	input     *gojsonschema.Schema
	output    *gojsonschema.Schema
	hasOutput bool
	timeout   time.Duration
}
