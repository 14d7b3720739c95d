// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClassification(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		isRequest      bool
		isNotification bool
		isResponse     bool
	}{
		{
			name:      "request",
			input:     `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo"}}`,
			isRequest: true,
		},
		{
			name:           "notification",
			input:          `{"jsonrpc":"2.0","method":"notifications/initialized"}`,
			isNotification: true,
		},
		{
			name:       "success response",
			input:      `{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`,
			isResponse: true,
		},
		{
			name:       "error response",
			input:      `{"jsonrpc":"2.0","id":2,"error":{"code":-32601,"message":"Unknown tool"}}`,
			isResponse: true,
		},
		{
			name:       "null result response",
			input:      `{"jsonrpc":"2.0","id":3,"result":null}`,
			isResponse: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.input))
			require.NoError(t, err, "Decode failed")

			assert.Equal(t, tt.isRequest, msg.IsRequest(), "IsRequest")
			assert.Equal(t, tt.isNotification, msg.IsNotification(), "IsNotification")
			assert.Equal(t, tt.isResponse, msg.IsResponse(), "IsResponse")
		})
	}
}

func TestDecodeNormalizesNumericID(t *testing.T) {
	msg, err := Decode([]byte(`{"jsonrpc":"2.0","id":7,"result":{}}`))
	require.NoError(t, err)

	id, ok := msg.ID.(int64)
	require.True(t, ok, "expected int64 id, got %T", msg.ID)
	assert.Equal(t, int64(7), id)
}

func TestDecodePreservesStringID(t *testing.T) {
	msg, err := Decode([]byte(`{"jsonrpc":"2.0","id":"abc","result":{}}`))
	require.NoError(t, err)
	assert.Equal(t, "abc", msg.ID)
}

func TestDecodeRejectsNonObject(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err, "expected parse error")
}

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected any
	}{
		{"whole float", float64(42), int64(42)},
		{"fractional float", float64(1.5), float64(1.5)},
		{"string id", "req-1", "req-1"},
		{"nil id", nil, nil},
		{"already int64", int64(9), int64(9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeID(tt.input))
		})
	}
}

func TestNewRequestWire(t *testing.T) {
	msg, err := NewRequest(3, "tools/call", map[string]any{"name": "echo"})
	require.NoError(t, err)

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "2.0", decoded["jsonrpc"])
	assert.Equal(t, float64(3), decoded["id"])
	assert.Equal(t, "tools/call", decoded["method"])
	assert.NotContains(t, decoded, "result")
	assert.NotContains(t, decoded, "error")
}

func TestNewNotificationOmitsID(t *testing.T) {
	msg, err := NewNotification("notifications/initialized", nil)
	require.NoError(t, err)

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.NotContains(t, decoded, "id", "notification must not carry an id")
	assert.NotContains(t, decoded, "params", "nil params must be omitted")
}

func TestNewResponseNilResult(t *testing.T) {
	msg, err := NewResponse(int64(1), nil)
	require.NoError(t, err)

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"result":null`, "nil result encodes as JSON null")
}

func TestErrorRoundTrip(t *testing.T) {
	resp := NewErrorResponse(int64(5), NewError(CodeInvalidParams, "Invalid input for `echo`", map[string]any{
		"errors": []string{"name is required"},
	}))

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.NotNil(t, decoded.Error)

	assert.Equal(t, CodeInvalidParams, decoded.Error.Code)
	assert.Equal(t, "Invalid input for `echo`", decoded.Error.Message)
	assert.NotNil(t, decoded.Error.Data, "validator errors must survive the round trip")
}

func TestErrorImplementsError(t *testing.T) {
	var err error = NewError(CodeMethodNotFound, "Unknown tool", nil)
	assert.Contains(t, err.Error(), "-32601")
	assert.Contains(t, err.Error(), "Unknown tool")
}

func TestUnmarshalParams(t *testing.T) {
	type callParams struct {
		Name string `json:"name"`
	}

	var p callParams
	require.NoError(t, UnmarshalParams(json.RawMessage(`{"name":"echo"}`), &p))
	assert.Equal(t, "echo", p.Name)

	var empty callParams
	require.NoError(t, UnmarshalParams(nil, &empty), "empty params leaves dest zero")
	assert.Equal(t, "", empty.Name)
}
