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

// Package builtin implements the workflow editing and analysis tools the
// orchestrator exposes to the model. Editing tools share one pattern: the
// mutation is staged on a deep copy inside the store transaction, validated,
// and committed only when the staged state passes. Failures come back as
// structured Results, never as Go errors, so the model can read them.
package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/teradata-labs/heddle/pkg/tools"
	"github.com/teradata-labs/heddle/pkg/vision"
	"github.com/teradata-labs/heddle/pkg/workflow"
	"github.com/teradata-labs/heddle/pkg/workflow/store"
)

// Tool-level error codes, in the same vocabulary as the validator's.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidParams     = "INVALID_PARAMS"
	CodeDuplicateVariable = "DUPLICATE_VARIABLE"
	CodeVariableInUse     = "VARIABLE_IN_USE"
	CodeCompileFailed     = "COMPILE_FAILED"
	CodeAnnotationFailed  = "ANNOTATION_FAILED"
	CodeAnalysisFailed    = "ANALYSIS_FAILED"
	CodeStoreFailed       = "STORE_FAILED"
)

// Deps carries process-level capabilities the builtin tools need beyond the
// per-call session state.
type Deps struct {
	// Analyzer runs flowchart analysis. Nil skips the analysis tools, for
	// processes that only edit.
	Analyzer *vision.Analyzer
}

// RegisterAll installs the builtin tool set on the registry.
func RegisterAll(reg *tools.Registry, deps Deps) {
	reg.Register(NewCreateWorkflowTool())
	reg.Register(NewSaveWorkflowTool())
	reg.Register(NewListWorkflowsTool())
	reg.Register(NewGetWorkflowTool())
	reg.Register(NewAddNodeTool())
	reg.Register(NewModifyNodeTool())
	reg.Register(NewDeleteNodeTool())
	reg.Register(NewAddConnectionTool())
	reg.Register(NewDeleteConnectionTool())
	reg.Register(NewBatchEditTool())
	reg.Register(NewAddVariableTool())
	reg.Register(NewModifyVariableTool())
	reg.Register(NewRemoveVariableTool())
	reg.Register(NewSetOutputTool())
	reg.Register(NewCompilePythonTool())
	reg.Register(NewAddImageQuestionTool())
	reg.Register(NewClassifyFilesTool())
	if deps.Analyzer != nil {
		reg.Register(NewAnalyzeWorkflowTool(deps.Analyzer))
		reg.Register(NewPublishAnalysisTool(deps.Analyzer.Sessions()))
	}
}

// errStaged marks a mutation the closure rejected, as opposed to a store
// failure. The details live in the variables the closure captured.
var errStaged = errors.New("staged edit rejected")

// commitEdit runs mutate against a staged copy of the workflow inside the
// store transaction and commits only when the staged state passes lenient
// validation. It returns the pre and post states, or a structured failure
// Result.
func commitEdit(ctx context.Context, sess *tools.SessionState, workflowID string, mutate func(*workflow.Workflow) error) (*workflow.Workflow, *workflow.Workflow, *tools.Result) {
	if sess == nil || sess.Store == nil {
		return nil, nil, tools.Fail(CodeInvalidParams, "no workflow store attached to this session")
	}
	if workflowID == "" {
		return nil, nil, missingParam("workflow_id")
	}

	var (
		before  *workflow.Workflow
		verrs   []workflow.ValidationError
		toolErr *tools.ToolError
	)
	after, err := sess.Store.Update(ctx, workflowID, sess.UserID, func(w *workflow.Workflow) error {
		before = w.Clone()
		stage := w.Clone()
		if merr := mutate(stage); merr != nil {
			if errors.As(merr, &toolErr) {
				return errStaged
			}
			return merr
		}
		if ok, errs := workflow.Validate(stage, workflow.Lenient); !ok {
			verrs = errs
			return errStaged
		}
		*w = *stage
		return nil
	})

	switch {
	case err == nil:
		return before, after, nil
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrForbidden):
		return nil, nil, workflowNotFound(workflowID)
	case errors.Is(err, errStaged):
		if toolErr != nil {
			return nil, nil, &tools.Result{Success: false, Error: toolErr}
		}
		return nil, nil, validationFail(verrs)
	default:
		return nil, nil, tools.Failf(CodeStoreFailed, "failed to update workflow %s: %v", workflowID, err)
	}
}

// commitData builds the post-commit payload every mutating tool returns and
// mirrors it into the session so direct-mode callers see the new state
// immediately.
func commitData(sess *tools.SessionState, before, after *workflow.Workflow) map[string]any {
	payload := canvasPayload(after)
	if sess != nil {
		sess.WorkflowID = after.ID
		sess.Analysis = payload
	}
	return map[string]any{
		"workflow_id":       after.ID,
		"current_workflow":  workflowMap(after),
		"workflow_analysis": payload,
		"diff":              workflow.Diff(before, after),
	}
}

// workflowMap flattens a workflow to the generic map shape used on the wire.
func workflowMap(w *workflow.Workflow) map[string]any {
	raw, err := json.Marshal(w)
	if err != nil {
		return map[string]any{"id": w.ID}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"id": w.ID}
	}
	return m
}

// canvasPayload is the workflow_analysis shape the canvas reconciles from.
func canvasPayload(w *workflow.Workflow) map[string]any {
	m := workflowMap(w)
	return map[string]any{
		"workflow_id": w.ID,
		"name":        w.Metadata.Name,
		"nodes":       m["nodes"],
		"edges":       m["edges"],
		"variables":   m["variables"],
		"outputs":     m["outputs"],
		"is_draft":    w.Metadata.IsDraft,
	}
}

func workflowNotFound(id string) *tools.Result {
	res := tools.Failf(CodeNotFound, "workflow %s not found", id)
	res.Error.Suggestion = "Call list_workflows_in_library to see the workflows you can edit."
	return res
}

func missingParam(name string) *tools.Result {
	return tools.Failf(CodeInvalidParams, "%s is required", name)
}

// validationFail turns validator output into a structured Result. A single
// distinct code is surfaced directly so callers can match on it; mixed
// violations collapse to the generic code.
func validationFail(verrs []workflow.ValidationError) *tools.Result {
	code := workflow.CodeValidationFailed
	if len(verrs) > 0 {
		code = verrs[0].Code
		for _, ve := range verrs[1:] {
			if ve.Code != code {
				code = workflow.CodeValidationFailed
				break
			}
		}
	}
	msgs := make([]string, len(verrs))
	details := make([]map[string]any, len(verrs))
	for i, ve := range verrs {
		msgs[i] = ve.Message
		d := map[string]any{"code": ve.Code, "message": ve.Message}
		if ve.NodeID != "" {
			d["node_id"] = ve.NodeID
		}
		if ve.EdgeID != "" {
			d["edge_id"] = ve.EdgeID
		}
		details[i] = d
	}

	res := tools.Fail(code, strings.Join(msgs, "; "))
	res.Error.Suggestion = "Fix the listed violations and retry."
	res.Data = map[string]any{"validation_errors": details}
	return res
}

func toolError(code, message, suggestion string) *tools.ToolError {
	return &tools.ToolError{Code: code, Message: message, Suggestion: suggestion}
}

// strArg reads a trimmed string argument; absent or mistyped values
// become "".
func strArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

func boolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

// intArg reads an integer argument. JSON decoding hands numbers over as
// float64, so both shapes are accepted.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// floatVal coerces a JSON-decoded number.
func floatVal(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func floatArg(args map[string]any, key string) (float64, bool) {
	return floatVal(args[key])
}

// strSliceArg reads a string-array argument, tolerating []any payloads.
func strSliceArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func mapArg(args map[string]any, key string) map[string]any {
	m, _ := args[key].(map[string]any)
	return m
}

// strMapArg reads an object argument whose values are strings.
func strMapArg(args map[string]any, key string) map[string]string {
	m := mapArg(args, key)
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// resolveVariable finds a workflow variable by id or name.
func resolveVariable(w *workflow.Workflow, ref string) *workflow.Variable {
	if v := w.VariableByID(ref); v != nil {
		return v
	}
	return w.VariableByName(ref)
}

// parseCondition builds a decision condition from tool arguments. The input
// reference may be a variable id or name; it is stored as the id.
func parseCondition(w *workflow.Workflow, m map[string]any) (*workflow.Condition, *tools.ToolError) {
	if len(m) == 0 {
		return nil, toolError(workflow.CodeInvalidCondition,
			"decision nodes require a condition",
			`Provide condition: {"input_id", "comparator", "value"}.`)
	}
	ref := strings.TrimSpace(firstString(m, "input_id", "input", "variable"))
	if ref == "" {
		return nil, toolError(workflow.CodeInvalidCondition,
			"condition is missing input_id",
			"Reference a workflow variable by id or name.")
	}
	v := resolveVariable(w, ref)
	if v == nil {
		return nil, toolError(workflow.CodeUnknownInputReference,
			"condition references unknown variable "+strconvQuote(ref),
			"Add the variable first with add_workflow_variable, or use an existing variable id.")
	}
	comparator, _ := m["comparator"].(string)
	return &workflow.Condition{
		InputID:    v.ID,
		Comparator: strings.ToLower(strings.TrimSpace(comparator)),
		Value:      m["value"],
		Value2:     m["value2"],
	}, nil
}

// parseRange reads {"min", "max"} into a Range; either bound may be absent.
func parseRange(m map[string]any) *workflow.Range {
	if len(m) == 0 {
		return nil
	}
	var r workflow.Range
	if f, ok := floatVal(m["min"]); ok {
		r.Min = &f
	}
	if f, ok := floatVal(m["max"]); ok {
		r.Max = &f
	}
	if r.Min == nil && r.Max == nil {
		return nil
	}
	return &r
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func strconvQuote(s string) string {
	raw, _ := json.Marshal(s)
	return string(raw)
}
