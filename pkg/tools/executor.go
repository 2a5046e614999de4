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

package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/xeipuuv/gojsonschema"
)

// Error codes produced by the executor itself, as opposed to codes the
// tools return.
const (
	CodeToolNotFound     = "tool_not_found"
	CodeInvalidArguments = "invalid_arguments"
	CodeExecutionFailed  = "execution_failed"
)

// Executor dispatches tool calls with argument validation, timing and
// panic containment. Failures surface as structured Results rather than Go
// errors so the orchestrator can hand them back to the model.
type Executor struct {
	registry *Registry
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// Registry returns the registry the executor dispatches against.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Execute runs the named tool with the given arguments.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any, sess *SessionState) (*Result, error) {
	tool, ok := e.registry.Get(name)
	if !ok {
		res := Failf(CodeToolNotFound, "tool not found: %s", name)
		res.Error.Suggestion = "Check the tool list for available tool names."
		return res, nil
	}

	if args == nil {
		args = map[string]any{}
	}
	args = normalizeArgs(tool, args)

	if err := validateArgs(tool, args); err != nil {
		return Fail(CodeInvalidArguments, err.Error()), nil
	}

	start := time.Now()
	result, err := run(ctx, tool, args, sess)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		return &Result{
			Success:         false,
			Error:           &ToolError{Code: CodeExecutionFailed, Message: err.Error()},
			ExecutionTimeMs: elapsed,
		}, nil
	}
	if result == nil {
		result = &Result{Success: true}
	}
	// Executor timing is authoritative, even when the tool set its own.
	result.ExecutionTimeMs = elapsed
	return result, nil
}

// run invokes the tool, converting panics into errors.
func run(ctx context.Context, tool Tool, args map[string]any, sess *SessionState) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("tool %s panicked: %v", tool.Name(), r)
		}
	}()
	return tool.Execute(ctx, args, sess)
}

// validateArgs checks arguments against the tool's input schema.
func validateArgs(tool Tool, args map[string]any) error {
	schema := NormalizeSchema(tool.InputSchema())
	if schema == nil {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	argsLoader := gojsonschema.NewGoLoader(args)
	res, err := gojsonschema.Validate(schemaLoader, argsLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, len(res.Errors()))
		for i, verr := range res.Errors() {
			msgs[i] = verr.String()
		}
		return fmt.Errorf("invalid arguments: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// normalizeArgs maps argument keys onto the schema's property names.
// Models mix snake_case and camelCase freely, so both are accepted.
func normalizeArgs(tool Tool, args map[string]any) map[string]any {
	if len(args) == 0 {
		return args
	}
	schema := tool.InputSchema()
	if schema == nil || schema.Properties == nil {
		return args
	}

	schemaKeys := make(map[string]string, len(schema.Properties))
	for key := range schema.Properties {
		schemaKeys[toLowerUnderscore(key)] = key
	}

	normalized := make(map[string]any, len(args))
	for key, value := range args {
		if schemaKey, ok := schemaKeys[toLowerUnderscore(key)]; ok {
			normalized[schemaKey] = value
		} else {
			normalized[key] = value
		}
	}
	return normalized
}

// toLowerUnderscore converts any naming convention to lowercase with
// underscores so camelCase, PascalCase and snake_case all match.
func toLowerUnderscore(s string) string {
	if s == "" {
		return ""
	}
	var result []rune
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			result = append(result, '_')
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}
