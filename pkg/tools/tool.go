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

// Package tools defines the tool contract shared by the orchestrator, the
// MCP server, and the builtin workflow editing tools. A tool is a named
// operation with a JSON Schema argument description suitable for exposing
// as an LLM function-calling definition.
package tools

import (
	"context"
	"fmt"
)

// Tool is a single operation exposed to the model.
type Tool interface {
	// Name returns the canonical tool name.
	Name() string

	// Description returns a human-readable description for LLM context.
	Description() string

	// Aliases returns alternative names the tool answers to. Aliases keep
	// older prompts and transcripts working after a tool is renamed.
	Aliases() []string

	// InputSchema returns the JSON Schema for tool arguments.
	InputSchema() *JSONSchema

	// Execute runs the tool against the caller's session state.
	Execute(ctx context.Context, args map[string]any, sess *SessionState) (*Result, error)
}

// Result is the outcome of a tool execution. Mutating workflow tools also
// return the post-state under Data so the orchestrator can reconcile the
// canvas across transports.
type Result struct {
	// Success indicates whether the tool completed its operation.
	Success bool `json:"success"`

	// Data carries tool-specific result fields.
	Data map[string]any `json:"data,omitempty"`

	// Message is an optional human-readable summary of what happened.
	Message string `json:"message,omitempty"`

	// Error is set when Success is false.
	Error *ToolError `json:"error,omitempty"`

	// ExecutionTimeMs is wall-clock execution time, set by the executor.
	ExecutionTimeMs int64 `json:"execution_time_ms,omitempty"`
}

// ToolError carries structured failure information callers can match on.
type ToolError struct {
	// Code is a stable machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// Retryable indicates whether retrying the same call can succeed.
	Retryable bool `json:"retryable,omitempty"`

	// Suggestion tells the model how to fix the call.
	Suggestion string `json:"suggestion,omitempty"`
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	return e.Code + ": " + e.Message
}

// Fail returns a failed Result with a structured error.
func Fail(code, message string) *Result {
	return &Result{
		Success: false,
		Error:   &ToolError{Code: code, Message: message},
	}
}

// Failf is Fail with printf formatting.
func Failf(code, format string, args ...any) *Result {
	return Fail(code, fmt.Sprintf(format, args...))
}

// Get reads a typed value out of Data. Missing keys and type mismatches
// return the zero value.
func Get[T any](r *Result, key string) T {
	var zero T
	if r == nil || r.Data == nil {
		return zero
	}
	v, ok := r.Data[key].(T)
	if !ok {
		return zero
	}
	return v
}
