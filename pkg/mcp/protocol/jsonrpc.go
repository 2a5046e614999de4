// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package protocol implements the JSON-RPC 2.0 message layer of the Model
// Context Protocol: request, response, and notification framing plus the
// MCP vocabulary for tools, resources, and prompts.
package protocol

import (
	"encoding/json"
	"fmt"
)

// JSONRPCVersion is the only wire version this package accepts.
const JSONRPCVersion = "2.0"

// Standard JSON-RPC 2.0 error codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603

	// ServerError starts the implementation-defined range, -32000 down
	// to -32099.
	ServerError = -32000
)

// RequestID is a JSON-RPC request id: a string or an integer. Requests
// carry a non-nil id; notifications omit it entirely.
type RequestID struct {
	Str *string
	Num *int64
}

// NewStringID returns a string-valued request id.
func NewStringID(s string) *RequestID {
	return &RequestID{Str: &s}
}

// NewNumberID returns a number-valued request id.
func NewNumberID(n int64) *RequestID {
	return &RequestID{Num: &n}
}

// String renders the id for reply matching and log fields. Nil and empty
// ids render as "null".
func (id *RequestID) String() string {
	switch {
	case id == nil:
		return "null"
	case id.Str != nil:
		return *id.Str
	case id.Num != nil:
		return fmt.Sprintf("%d", *id.Num)
	default:
		return "null"
	}
}

// MarshalJSON implements json.Marshaler.
func (id *RequestID) MarshalJSON() ([]byte, error) {
	switch {
	case id == nil:
		return []byte("null"), nil
	case id.Str != nil:
		return json.Marshal(*id.Str)
	case id.Num != nil:
		return json.Marshal(*id.Num)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler. The null literal is checked
// before the string probe because encoding/json treats null as a no-op
// for string targets, which would otherwise yield an empty string id.
// Fractional ids are rejected; reply matching needs an exact round-trip.
func (id *RequestID) UnmarshalJSON(data []byte) error {
	id.Str = nil
	id.Num = nil

	if string(data) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		id.Str = &s
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		id.Num = &n
		return nil
	}

	return fmt.Errorf("request id must be a string, an integer, or null: %s", data)
}

// Request is a JSON-RPC request or notification. A nil ID marks a
// notification and is omitted from the wire form.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *RequestID      `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r *Request) IsNotification() bool {
	return r.ID == nil || (r.ID.Str == nil && r.ID.Num == nil)
}

// Response is a JSON-RPC response. A valid response sets exactly one of
// Result and Error, and echoes the request id.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *RequestID      `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("JSON-RPC error %d: %s (data: %s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// NewError builds an Error, marshalling data into the payload field.
// A payload that fails to marshal is dropped rather than masking the
// error being reported.
func NewError(code int, message string, data any) *Error {
	e := &Error{Code: code, Message: message}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			e.Data = raw
		}
	}
	return e
}

// NewRequest builds a request with marshalled params.
func NewRequest(id *RequestID, method string, params any) (*Request, error) {
	req := &Request{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params for %s: %w", method, err)
		}
		req.Params = raw
	}
	return req, nil
}

// NewNotification builds a request without an id.
func NewNotification(method string, params any) (*Request, error) {
	return NewRequest(nil, method, params)
}

// NewResponse builds a success response with a marshalled result.
func NewResponse(id *RequestID, result any) (*Response, error) {
	resp := &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
	}
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("marshal result: %w", err)
		}
		resp.Result = raw
	}
	return resp, nil
}

// NewErrorResponse builds an error response.
func NewErrorResponse(id *RequestID, errObj *Error) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   errObj,
	}
}
