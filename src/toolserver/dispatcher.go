// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/internal/protocol"
	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/logger"
	"github.com/xeipuuv/gojsonschema"
)

// Dispatcher routes decoded requests to their handlers. It holds only the
// compiled tool table and the manifest metadata; all transport concerns
// live in [Server].
type Dispatcher struct {
	manifest *Manifest
	tools    map[string]*tool
	log      logger.Logger
}

// newDispatcher compiles the manifest's tool catalog against the supplied
// handlers. Every declared tool needs a handler and every handler needs a
// declaration; a mismatch either way fails the build.
func newDispatcher(manifest *Manifest, handlers map[string]ExecFunc, log logger.Logger) (*Dispatcher, error) {
	tools := make(map[string]*tool, len(manifest.Tools))
	for _, decl := range manifest.Tools {
		exec, ok := handlers[decl.Name]
		if !ok {
			return nil, fmt.Errorf("no handler registered for tool %s", decl.Name)
		}

		input, _, err := compileSchema(decl.InputSchema, decl.InputSchemaPath, manifest.BaseDir())
		if err != nil {
			return nil, fmt.Errorf("tool %s input schema: %w", decl.Name, err)
		}
		output, hasOutput, err := compileSchema(decl.OutputSchema, decl.OutputSchemaPath, manifest.BaseDir())
		if err != nil {
			return nil, fmt.Errorf("tool %s output schema: %w", decl.Name, err)
		}

		timeoutMs := decl.TimeoutMs
		if timeoutMs <= 0 {
			timeoutMs = manifest.Limits.TimeoutMsDefault
		}

		tools[decl.Name] = &tool{
			decl:      decl,
			exec:      exec,
			input:     input,
			output:    output,
			hasOutput: hasOutput,
			timeout:   time.Duration(timeoutMs) * time.Millisecond,
		}
	}

	for name := range handlers {
		if _, ok := tools[name]; !ok {
			return nil, fmt.Errorf("handler %s has no matching tool in the manifest", name)
		}
	}

	return &Dispatcher{manifest: manifest, tools: tools, log: log}, nil
}

// compileSchema compiles a tool schema declaration. The boolean reports
// whether the tool actually declared one (output validation only runs for
// declared schemas).
func compileSchema(inline map[string]any, path, baseDir string) (*gojsonschema.Schema, bool, error) {
	doc, declared, err := schemaDocument(inline, path, baseDir)
	if err != nil {
		return nil, false, err
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, false, fmt.Errorf("failed to compile schema: %w", err)
	}
	return schema, declared, nil
}

// Dispatch handles one decoded request and returns the response to write,
// or nil for notifications. A panic anywhere below the boundary is
// converted to a generic internal error so a correlated id is never
// silently dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *protocol.Message) (resp *protocol.Message) {
	if msg.IsNotification() {
		// notifications/initialized and anything else a client fires
		// without an id needs no reply.
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			d.log.Printf("panic handling %s: %v", msg.Method, r)
			resp = protocol.NewErrorResponse(msg.ID,
				protocol.Errorf(protocol.CodeInternal, "internal error handling %s", msg.Method))
		}
	}()

	switch msg.Method {
	case protocol.MethodInitialize:
		return d.handleInitialize(msg)
	case protocol.MethodPing:
		return d.respond(msg.ID, map[string]any{"ok": true, "ts": time.Now().UnixMilli()})
	case protocol.MethodManifestGet:
		return d.respond(msg.ID, map[string]any{
			"name":      d.manifest.Name,
			"version":   d.manifest.Version,
			"vendor":    d.manifest.Vendor,
			"transport": "stdio",
			"limits":    d.manifest.Limits,
		})
	case protocol.MethodToolsList:
		return d.respond(msg.ID, map[string]any{"tools": d.listTools()})
	case protocol.MethodToolsCall:
		return d.handleToolsCall(ctx, msg)
	default:
		return protocol.NewErrorResponse(msg.ID,
			protocol.Errorf(protocol.CodeMethodNotFound, "Method not found: %s", msg.Method))
	}
}

// handleInitialize answers the client handshake with the server's
// protocol revision and identity.
func (d *Dispatcher) handleInitialize(msg *protocol.Message) *protocol.Message {
	return d.respond(msg.ID, map[string]any{
		"protocolVersion": protocol.HandshakeVersion,
		"capabilities":    map[string]any{"tools": map[string]any{}},
		"serverInfo": map[string]any{
			"name":    d.manifest.Name,
			"version": d.manifest.Version,
		},
	})
}

// listTools renders the catalog in wire form.
func (d *Dispatcher) listTools() []map[string]any {
	out := make([]map[string]any, 0, len(d.manifest.Tools))
	for _, decl := range d.manifest.Tools {
		entry := map[string]any{
			"name":        decl.Name,
			"description": decl.Description,
		}
		if decl.InputSchema != nil {
			entry["input_schema"] = decl.InputSchema
		} else {
			entry["input_schema"] = map[string]any{"type": "object"}
		}
		out = append(out, entry)
	}
	return out
}

// callParams is the params shape of a tools/call request.
type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall runs the full call pipeline: lookup, input validation,
// deadline-bounded execution, output validation.
func (d *Dispatcher) handleToolsCall(ctx context.Context, msg *protocol.Message) *protocol.Message {
	var params callParams
	if err := protocol.UnmarshalParams(msg.Params, &params); err != nil {
		return protocol.NewErrorResponse(msg.ID,
			protocol.Errorf(protocol.CodeInvalidParams, "invalid tools/call params: %v", err))
	}

	t, ok := d.tools[params.Name]
	if !ok {
		return protocol.NewErrorResponse(msg.ID,
			protocol.Errorf(protocol.CodeMethodNotFound, "Unknown tool: %s", params.Name))
	}

	args := params.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	if rpcErr := validateAgainst(t.input, args,
		protocol.CodeInvalidParams, fmt.Sprintf("Invalid input for `%s`", params.Name)); rpcErr != nil {
		return protocol.NewErrorResponse(msg.ID, rpcErr)
	}

	result, rpcErr := d.execute(ctx, t, args)
	if rpcErr != nil {
		return protocol.NewErrorResponse(msg.ID, rpcErr)
	}

	if t.hasOutput {
		resultJSON, err := json.Marshal(result)
		if err != nil {
			return protocol.NewErrorResponse(msg.ID,
				protocol.Errorf(protocol.CodeInternal, "tool %s produced unencodable result: %v", params.Name, err))
		}
		if rpcErr := validateAgainst(t.output, resultJSON,
			protocol.CodeInvalidToolOutput, "Tool produced invalid output"); rpcErr != nil {
			return protocol.NewErrorResponse(msg.ID, rpcErr)
		}
	}

	return d.respond(msg.ID, map[string]any{"name": params.Name, "result": result})
}

// execute runs the tool under its deadline. When the timer fires first the
// call is abandoned locally and the context is cancelled, but the running
// exec is never forcibly killed; its eventual result is discarded.
func (d *Dispatcher) execute(ctx context.Context, t *tool, args json.RawMessage) (any, *protocol.Error) {
	execCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool %s panicked: %v", t.decl.Name, r)}
			}
		}()
		result, err := t.exec(execCtx, args)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if rpcErr, ok := out.err.(*protocol.Error); ok {
				return nil, rpcErr
			}
			return nil, protocol.NewError(protocol.CodeInternal, out.err.Error(), nil)
		}
		return out.result, nil
	case <-execCtx.Done():
		d.log.Printf("tool %s abandoned after %s", t.decl.Name, t.timeout)
		return nil, protocol.Errorf(protocol.CodeInternal,
			"Tool `%s` timed out after %dms", t.decl.Name, t.timeout.Milliseconds())
	}
}

// validateAgainst runs a compiled schema over a JSON document and shapes
// failures as a protocol error with the validator messages in data.errors.
func validateAgainst(schema *gojsonschema.Schema, doc json.RawMessage, code int, message string) *protocol.Error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return protocol.NewError(code, message, map[string]any{"errors": []string{err.Error()}})
	}
	if result.Valid() {
		return nil
	}
	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return protocol.NewError(code, message, map[string]any{"errors": errs})
}

// respond wraps a result and logs the unlikely marshal failure as a
// generic internal error instead of dropping the id.
func (d *Dispatcher) respond(id any, result any) *protocol.Message {
	msg, err := protocol.NewResponse(id, result)
	if err != nil {
		d.log.Printf("failed to encode response for id %v: %v", id, err)
		return protocol.NewErrorResponse(id,
			protocol.Errorf(protocol.CodeInternal, "failed to encode response"))
	}
	return msg
}
