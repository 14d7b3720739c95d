// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// Version is the JSON-RPC protocol version carried in every envelope.
const Version = mcp.JSONRPC_VERSION

// HandshakeVersion is the MCP protocol revision offered in the
// initialize request during the client-side handshake barrier.
const HandshakeVersion = mcp.LATEST_PROTOCOL_VERSION

// Method names understood by the tool-server dispatcher.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
	MethodManifestGet = "manifest/get"
)

// JSON-RPC error codes used by the runtime. Tools may carry their own codes;
// anything a tool does not classify collapses to CodeInternal so a correlated
// id is never silently dropped.
const (
	// CodeParseError indicates a frame that was not valid JSON.
	CodeParseError = -32700
	// CodeInvalidRequest indicates a structurally invalid envelope.
	CodeInvalidRequest = -32600
	// CodeMethodNotFound indicates an unknown method or tool name.
	CodeMethodNotFound = -32601
	// CodeInvalidParams indicates arguments rejected by the input schema.
	CodeInvalidParams = -32602
	// CodeInternal is the generic execution failure code.
	CodeInternal = -32000
	// CodeInvalidToolOutput indicates a result rejected by the output schema.
	CodeInvalidToolOutput = -32001
)

// Error represents a JSON-RPC 2.0 error object. It implements the error
// interface so tool exec functions can return it directly to carry a
// custom code and structured data back to the caller.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewError creates a JSON-RPC error with the given code, message, and
// optional structured data.
func NewError(code int, message string, data any) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

// Errorf creates a JSON-RPC error with a formatted message and no data.
func Errorf(code int, format string, v ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, v...)}
}

// Message is the decoded JSON-RPC envelope union. Exactly one of the three
// shapes applies:
//   - Request: Method set and ID present
//   - Notification: Method set and ID absent
//   - Response: Method empty, Result or Error set
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// IsRequest reports whether the message is a request (method plus id).
func (m *Message) IsRequest() bool { return m.Method != "" && m.ID != nil }

// IsNotification reports whether the message is a notification (method, no id).
func (m *Message) IsNotification() bool { return m.Method != "" && m.ID == nil }

// IsResponse reports whether the message is a response (no method).
func (m *Message) IsResponse() bool {
	return m.Method == "" && (m.Result != nil || m.Error != nil)
}

// Decode parses a single JSON-RPC envelope from raw bytes and normalizes
// its id (whole-number floats become int64, matching the ids the
// correlator allocates).
//
// Parameters:
//   - data: Raw JSON bytes of exactly one envelope
//
// Returns:
//   - *Message: The decoded envelope
//   - error: Error if the bytes are not a JSON object
func Decode(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m.ID = NormalizeID(m.ID)
	return &m, nil
}

// NewRequest builds a request envelope with the given id, method, and params.
// A nil params is omitted from the wire form.
func NewRequest(id int64, method string, params any) (*Message, error) {
	raw, err := marshalOptional(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params for %s: %w", method, err)
	}
	return &Message{JSONRPC: Version, ID: id, Method: method, Params: raw}, nil
}

// NewNotification builds a notification envelope (no id, no response expected).
func NewNotification(method string, params any) (*Message, error) {
	raw, err := marshalOptional(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params for %s: %w", method, err)
	}
	return &Message{JSONRPC: Version, Method: method, Params: raw}, nil
}

// NewResponse builds a success response for the given id. A nil result is
// encoded as JSON null so the response always carries a result member.
func NewResponse(id any, result any) (*Message, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &Message{JSONRPC: Version, ID: id, Result: raw}, nil
}

// NewErrorResponse builds an error response for the given id.
func NewErrorResponse(id any, rpcErr *Error) *Message {
	return &Message{JSONRPC: Version, ID: id, Error: rpcErr}
}

// NormalizeID converts whole number float64 values to int64 for JSON-RPC id fields.
//
// JSON unmarshaling treats numbers as float64. This function checks if
// a float64 value represents a whole number and converts it to int64 if so,
// which lets numeric ids from the wire match the int64 ids the correlator
// allocated.
//
// Parameters:
//   - v: Value to normalize
//
// Returns:
//   - any: Normalized value (int64 if whole number float, else original)
func NormalizeID(v any) any {
	if f, ok := v.(float64); ok {
		// Check if it's a whole number
		if f == float64(int64(f)) {
			return int64(f)
		}
	}
	return v
}

// UnmarshalParams decodes a params payload into a typed struct. An empty
// payload leaves dest at its zero value, mirroring an omitted params member.
func UnmarshalParams(raw json.RawMessage, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

// marshalOptional marshals v unless it is nil, in which case the member is
// omitted from the envelope entirely.
func marshalOptional(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
