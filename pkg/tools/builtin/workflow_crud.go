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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/teradata-labs/heddle/pkg/tools"
	"github.com/teradata-labs/heddle/pkg/workflow"
	"github.com/teradata-labs/heddle/pkg/workflow/store"
)

// CreateWorkflowTool starts a fresh draft workflow.
type CreateWorkflowTool struct{}

func NewCreateWorkflowTool() *CreateWorkflowTool { return &CreateWorkflowTool{} }

func (t *CreateWorkflowTool) Name() string      { return "create_workflow" }
func (t *CreateWorkflowTool) Aliases() []string { return nil }

func (t *CreateWorkflowTool) Description() string {
	return "Create a new empty draft workflow. Returns the workflow_id every " +
		"editing tool needs. The output_type declares what the finished " +
		"workflow returns."
}

func (t *CreateWorkflowTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for creating a workflow",
		map[string]*tools.JSONSchema{
			"name":        tools.NewStringSchema("Workflow name shown in the library."),
			"output_type": tools.NewStringSchema("Type of the workflow result.").WithEnum(outputTypeEnum()...),
			"description": tools.NewStringSchema("What the workflow decides."),
			"domain":      tools.NewStringSchema("Business domain, e.g. lending or claims."),
			"tags":        tools.NewArraySchema("Free-form tags.", tools.NewStringSchema("")),
		},
		[]string{"name", "output_type"},
	)
}

func (t *CreateWorkflowTool) Execute(ctx context.Context, args map[string]any, sess *tools.SessionState) (*tools.Result, error) {
	if sess == nil || sess.Store == nil {
		return tools.Fail(CodeInvalidParams, "no workflow store attached to this session"), nil
	}
	name := strArg(args, "name")
	if name == "" {
		return missingParam("name"), nil
	}
	outputType := strArg(args, "output_type")
	if !workflow.ValidOutputType(outputType) {
		res := tools.Failf(CodeInvalidParams, "output_type %q is not valid", outputType)
		res.Error.Suggestion = "Use one of: " + strings.Join(workflow.OutputTypes, ", ")
		return res, nil
	}

	w := workflow.New(sess.UserID, name, outputType)
	w.Metadata.Description = strArg(args, "description")
	w.Metadata.Domain = strArg(args, "domain")
	w.Metadata.Tags = strSliceArg(args, "tags")

	if err := sess.Store.Create(ctx, w); err != nil {
		return tools.Failf(CodeStoreFailed, "failed to create workflow: %v", err), nil
	}

	payload := canvasPayload(w)
	sess.WorkflowID = w.ID
	sess.Analysis = payload
	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("Created draft workflow %q (%s).", name, w.ID),
		Data: map[string]any{
			"workflow_id":       w.ID,
			"current_workflow":  workflowMap(w),
			"workflow_analysis": payload,
		},
	}, nil
}

// SaveWorkflowTool publishes a draft to the library.
type SaveWorkflowTool struct{}

func NewSaveWorkflowTool() *SaveWorkflowTool { return &SaveWorkflowTool{} }

func (t *SaveWorkflowTool) Name() string      { return "save_workflow_to_library" }
func (t *SaveWorkflowTool) Aliases() []string { return []string{"save_workflow"} }

func (t *SaveWorkflowTool) Description() string {
	return "Publish a workflow to the library so other workflows can call it " +
		"as a subprocess. Optionally updates name, description, domain, or " +
		"tags in the same step. Saving an already-published workflow is a " +
		"no-op, not an error."
}

func (t *SaveWorkflowTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for saving a workflow to the library",
		map[string]*tools.JSONSchema{
			"workflow_id": tools.NewStringSchema("Workflow to publish."),
			"name":        tools.NewStringSchema("New name, if renaming."),
			"description": tools.NewStringSchema("New description."),
			"domain":      tools.NewStringSchema("New domain."),
			"tags":        tools.NewArraySchema("Replacement tag list.", tools.NewStringSchema("")),
		},
		[]string{"workflow_id"},
	)
}

func (t *SaveWorkflowTool) Execute(ctx context.Context, args map[string]any, sess *tools.SessionState) (*tools.Result, error) {
	alreadySaved := false
	before, after, fail := commitEdit(ctx, sess, strArg(args, "workflow_id"), func(w *workflow.Workflow) error {
		alreadySaved = !w.Metadata.IsDraft
		if name := strArg(args, "name"); name != "" {
			w.Metadata.Name = name
		}
		if desc := strArg(args, "description"); desc != "" {
			w.Metadata.Description = desc
		}
		if domain := strArg(args, "domain"); domain != "" {
			w.Metadata.Domain = domain
		}
		if tags := strSliceArg(args, "tags"); tags != nil {
			w.Metadata.Tags = tags
		}
		w.Metadata.IsDraft = false
		return nil
	})
	if fail != nil {
		return fail, nil
	}

	data := commitData(sess, before, after)
	data["already_saved"] = alreadySaved
	msg := fmt.Sprintf("Saved %q to the library.", after.Metadata.Name)
	if alreadySaved {
		msg = fmt.Sprintf("%q is already in the library.", after.Metadata.Name)
	}
	return &tools.Result{Success: true, Message: msg, Data: data}, nil
}

// ListWorkflowsTool searches the caller's workflow library.
type ListWorkflowsTool struct{}

func NewListWorkflowsTool() *ListWorkflowsTool { return &ListWorkflowsTool{} }

func (t *ListWorkflowsTool) Name() string      { return "list_workflows_in_library" }
func (t *ListWorkflowsTool) Aliases() []string { return []string{"list_workflows"} }

func (t *ListWorkflowsTool) Description() string {
	return "List the workflows in the user's library. search_query " +
		"fuzzy-matches names and descriptions. Published workflows are " +
		"listed by default; set include_drafts or drafts_only to see drafts."
}

func (t *ListWorkflowsTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for listing library workflows",
		map[string]*tools.JSONSchema{
			"search_query":   tools.NewStringSchema("Fuzzy filter on name and description."),
			"domain":         tools.NewStringSchema("Only workflows in this domain."),
			"include_drafts": tools.NewBooleanSchema("Include drafts alongside published workflows.").WithDefault(false),
			"drafts_only":    tools.NewBooleanSchema("Only drafts.").WithDefault(false),
			"limit":          tools.NewIntegerSchema("Maximum entries to return.").WithDefault(20),
		},
		nil,
	)
}

func (t *ListWorkflowsTool) Execute(ctx context.Context, args map[string]any, sess *tools.SessionState) (*tools.Result, error) {
	if sess == nil || sess.Store == nil {
		return tools.Fail(CodeInvalidParams, "no workflow store attached to this session"), nil
	}
	draftsOnly := boolArg(args, "drafts_only")

	items, err := sess.Store.List(ctx, sess.UserID, store.Filter{
		Domain:        strArg(args, "domain"),
		IncludeDrafts: boolArg(args, "include_drafts") || draftsOnly,
	})
	if err != nil {
		return tools.Failf(CodeStoreFailed, "failed to list workflows: %v", err), nil
	}

	if draftsOnly {
		kept := items[:0]
		for _, w := range items {
			if w.Metadata.IsDraft {
				kept = append(kept, w)
			}
		}
		items = kept
	}

	if query := strArg(args, "search_query"); query != "" {
		texts := make([]string, len(items))
		for i, w := range items {
			texts[i] = w.Metadata.Name + " " + w.Metadata.Description
		}
		matches := fuzzy.Find(query, texts)
		ranked := make([]*workflow.Workflow, len(matches))
		for i, m := range matches {
			ranked[i] = items[m.Index]
		}
		items = ranked
	}

	limit := intArg(args, "limit", 20)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	entries := make([]map[string]any, len(items))
	for i, w := range items {
		entries[i] = libraryEntry(w)
	}
	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("%d workflow(s) found.", len(entries)),
		Data:    map[string]any{"workflows": entries, "count": len(entries)},
	}, nil
}

func libraryEntry(w *workflow.Workflow) map[string]any {
	status := "published"
	if w.Metadata.IsDraft {
		status = "draft"
	}
	return map[string]any{
		"id":          w.ID,
		"name":        w.Metadata.Name,
		"description": w.Metadata.Description,
		"domain":      w.Metadata.Domain,
		"tags":        w.Metadata.Tags,
		"output_type": w.Metadata.OutputType,
		"status":      status,
		"nodes":       len(w.Nodes),
		"updated_at":  w.Metadata.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// GetWorkflowTool fetches one workflow and binds the session to it.
type GetWorkflowTool struct{}

func NewGetWorkflowTool() *GetWorkflowTool { return &GetWorkflowTool{} }

func (t *GetWorkflowTool) Name() string      { return "get_current_workflow" }
func (t *GetWorkflowTool) Aliases() []string { return []string{"get_workflow"} }

func (t *GetWorkflowTool) Description() string {
	return "Fetch a workflow with a human-readable summary of its nodes, " +
		"connections, variables, and validation status. Use it to refresh " +
		"your picture of the graph before editing."
}

func (t *GetWorkflowTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for fetching a workflow",
		map[string]*tools.JSONSchema{
			"workflow_id": tools.NewStringSchema("Workflow to fetch."),
		},
		[]string{"workflow_id"},
	)
}

func (t *GetWorkflowTool) Execute(ctx context.Context, args map[string]any, sess *tools.SessionState) (*tools.Result, error) {
	if sess == nil || sess.Store == nil {
		return tools.Fail(CodeInvalidParams, "no workflow store attached to this session"), nil
	}
	id := strArg(args, "workflow_id")
	if id == "" {
		return missingParam("workflow_id"), nil
	}

	w, err := sess.Store.Get(ctx, id, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrForbidden) {
			return workflowNotFound(id), nil
		}
		return tools.Failf(CodeStoreFailed, "failed to load workflow %s: %v", id, err), nil
	}

	payload := canvasPayload(w)
	sess.WorkflowID = w.ID
	sess.Analysis = payload
	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("Loaded workflow %q (%s).", w.Metadata.Name, w.ID),
		Data: map[string]any{
			"workflow_id":       w.ID,
			"current_workflow":  workflowMap(w),
			"workflow_analysis": payload,
			"summary":           workflow.Summary(w),
		},
	}, nil
}

func outputTypeEnum() []any {
	out := make([]any, len(workflow.OutputTypes))
	for i, t := range workflow.OutputTypes {
		out[i] = t
	}
	return out
}
