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

package builtin

import (
	"context"
	"fmt"

	"github.com/teradata-labs/heddle/pkg/tools"
	"github.com/teradata-labs/heddle/pkg/workflow"
)

// CompilePythonTool renders the workflow as a standalone Python module.
// Compilation gates on strict validation, so the workflow must be complete:
// one start node, both branches on every decision, no unreachable nodes.
type CompilePythonTool struct{}

func NewCompilePythonTool() *CompilePythonTool { return &CompilePythonTool{} }

func (t *CompilePythonTool) Name() string      { return "compile_python" }
func (t *CompilePythonTool) Aliases() []string { return []string{"compile_workflow"} }

func (t *CompilePythonTool) Description() string {
	return "Compile the workflow to typed Python. The workflow must pass " +
		"strict validation first; violations are returned instead of code. " +
		"Subworkflows referenced by subprocess nodes are compiled into the " +
		"same module."
}

func (t *CompilePythonTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for compiling a workflow",
		map[string]*tools.JSONSchema{
			"workflow_id":       tools.NewStringSchema("Workflow to compile."),
			"include_docstring": tools.NewBooleanSchema("Emit a docstring describing inputs and output.").WithDefault(true),
			"include_main":      tools.NewBooleanSchema("Emit an argparse __main__ block.").WithDefault(false),
		},
		[]string{"workflow_id"},
	)
}

func (t *CompilePythonTool) Execute(ctx context.Context, args map[string]any, sess *tools.SessionState) (*tools.Result, error) {
	if sess == nil || sess.Store == nil {
		return tools.Fail(CodeInvalidParams, "no workflow store attached to this session"), nil
	}
	workflowID := strArg(args, "workflow_id")
	if workflowID == "" {
		workflowID = sess.WorkflowID
	}
	if workflowID == "" {
		return missingParam("workflow_id"), nil
	}

	w, err := sess.Store.Get(ctx, workflowID, sess.UserID)
	if err != nil {
		return workflowNotFound(workflowID), nil
	}

	opts := workflow.CompileOptions{IncludeDocstring: true}
	if _, ok := args["include_docstring"]; ok {
		opts.IncludeDocstring = boolArg(args, "include_docstring")
	}
	opts.IncludeMain = boolArg(args, "include_main")

	resolve := func(id string) (*workflow.Workflow, error) {
		return sess.Store.Get(ctx, id, sess.UserID)
	}

	source, verrs, err := workflow.CompilePython(w, resolve, opts)
	if err != nil {
		res := tools.Failf(CodeCompileFailed, "compilation failed: %v", err)
		res.Error.Suggestion = "Check that every subprocess node references a workflow you own."
		return res, nil
	}
	if len(verrs) > 0 {
		return validationFail(verrs), nil
	}

	sess.WorkflowID = w.ID
	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("Compiled %q to Python (%d bytes).", w.Metadata.Name, len(source)),
		Data: map[string]any{
			"workflow_id":   w.ID,
			"python_source": source,
		},
	}, nil
}
