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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teradata-labs/heddle/pkg/tools"
	"github.com/teradata-labs/heddle/pkg/workflow"
)

// AddVariableTool declares an input variable on the workflow.
type AddVariableTool struct{}

func NewAddVariableTool() *AddVariableTool { return &AddVariableTool{} }

func (t *AddVariableTool) Name() string      { return "add_workflow_variable" }
func (t *AddVariableTool) Aliases() []string { return []string{"add_variable"} }

func (t *AddVariableTool) Description() string {
	return "Declare an input variable. The id is derived from the name and " +
		"type. Enum variables need enum_values; numeric variables may carry " +
		"a range."
}

func (t *AddVariableTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for declaring an input variable",
		map[string]*tools.JSONSchema{
			"workflow_id": tools.NewStringSchema("Workflow to edit."),
			"name":        tools.NewStringSchema("Variable name as the user refers to it."),
			"type": tools.NewStringSchema("Variable type.").
				WithEnum("int", "float", "number", "bool", "string", "enum", "date"),
			"description": tools.NewStringSchema("What the variable holds."),
			"enum_values": tools.NewArraySchema("Allowed values for enum variables.",
				tools.NewStringSchema("")),
			"range": tools.NewObjectSchema("Bounds for numeric variables.", map[string]*tools.JSONSchema{
				"min": tools.NewNumberSchema("Inclusive lower bound."),
				"max": tools.NewNumberSchema("Inclusive upper bound."),
			}, nil),
		},
		[]string{"workflow_id", "name", "type"},
	)
}

func (t *AddVariableTool) Execute(ctx context.Context, args map[string]any, sess *tools.SessionState) (*tools.Result, error) {
	var added workflow.Variable
	before, after, fail := commitEdit(ctx, sess, strArg(args, "workflow_id"), func(w *workflow.Workflow) error {
		v, terr := stageAddVariable(w, args)
		if terr != nil {
			return terr
		}
		added = *v
		return nil
	})
	if fail != nil {
		return fail, nil
	}

	data := commitData(sess, before, after)
	data["variable_id"] = added.ID
	data["variable"] = variableMap(&added)
	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("Declared input variable %q (%s).", added.Name, added.ID),
		Data:    data,
	}, nil
}

// stageAddVariable validates the variable arguments and appends an
// input-source variable to w. It returns a pointer into w.Variables.
func stageAddVariable(w *workflow.Workflow, args map[string]any) (*workflow.Variable, *tools.ToolError) {
	name := strArg(args, "name")
	if name == "" {
		return nil, toolError(CodeInvalidParams, "name is required", "")
	}
	varType := workflow.VariableType(strArg(args, "type"))
	if !workflow.ValidVariableType(varType) {
		return nil, toolError(CodeInvalidParams,
			fmt.Sprintf("variable type %q is not valid", varType),
			"Use one of: int, float, number, bool, string, enum, date.")
	}

	enumValues := strSliceArg(args, "enum_values")
	if varType == workflow.TypeEnum && len(enumValues) == 0 {
		return nil, toolError(CodeInvalidParams, "enum variables require enum_values", "")
	}
	if varType != workflow.TypeEnum && len(enumValues) > 0 {
		return nil, toolError(CodeInvalidParams,
			fmt.Sprintf("enum_values only apply to enum variables, not %s", varType), "")
	}

	rng := parseRange(mapArg(args, "range"))
	if rng != nil && !numericType(varType) {
		return nil, toolError(CodeInvalidParams,
			fmt.Sprintf("range only applies to numeric variables, not %s", varType), "")
	}

	if existing := w.VariableByName(name); existing != nil {
		return nil, toolError(CodeDuplicateVariable,
			fmt.Sprintf("a variable named %q already exists (%s)", existing.Name, existing.ID),
			"Use modify_workflow_variable to change it, or pick another name.")
	}

	w.Variables = append(w.Variables, workflow.Variable{
		ID:          workflow.VariableID(name, workflow.SourceInput, varType),
		Name:        name,
		Type:        varType,
		Source:      workflow.SourceInput,
		Description: strArg(args, "description"),
		Range:       rng,
		EnumValues:  enumValues,
	})
	return &w.Variables[len(w.Variables)-1], nil
}

// ModifyVariableTool changes a declared variable. Renames and type changes
// regenerate the id; conditions referencing the old id are rewritten and the
// affected decisions are named in the returned warning.
type ModifyVariableTool struct{}

func NewModifyVariableTool() *ModifyVariableTool { return &ModifyVariableTool{} }

func (t *ModifyVariableTool) Name() string      { return "modify_workflow_variable" }
func (t *ModifyVariableTool) Aliases() []string { return []string{"modify_variable"} }

func (t *ModifyVariableTool) Description() string {
	return "Change a variable's name, type, range, enum values, or " +
		"description. Renaming or retyping regenerates the id; decision " +
		"conditions pointing at the old id are updated and listed in the " +
		"warning so they can be reviewed."
}

func (t *ModifyVariableTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for modifying a variable",
		map[string]*tools.JSONSchema{
			"workflow_id": tools.NewStringSchema("Workflow to edit."),
			"name":        tools.NewStringSchema("Current variable name or id."),
			"new_name":    tools.NewStringSchema("Replacement name."),
			"new_type": tools.NewStringSchema("Replacement type.").
				WithEnum("int", "float", "number", "bool", "string", "enum", "date"),
			"description": tools.NewStringSchema("Replacement description."),
			"enum_values": tools.NewArraySchema("Replacement enum values.",
				tools.NewStringSchema("")),
			"range": tools.NewObjectSchema("Replacement numeric bounds.", map[string]*tools.JSONSchema{
				"min": tools.NewNumberSchema("Inclusive lower bound."),
				"max": tools.NewNumberSchema("Inclusive upper bound."),
			}, nil),
		},
		[]string{"workflow_id", "name"},
	)
}

func (t *ModifyVariableTool) Execute(ctx context.Context, args map[string]any, sess *tools.SessionState) (*tools.Result, error) {
	ref := strArg(args, "name")
	if ref == "" {
		return missingParam("name"), nil
	}

	var modified workflow.Variable
	var oldID string
	var updatedDecisions []string
	before, after, fail := commitEdit(ctx, sess, strArg(args, "workflow_id"), func(w *workflow.Workflow) error {
		v := resolveVariable(w, ref)
		if v == nil {
			return toolError(CodeNotFound,
				fmt.Sprintf("no variable named %q", ref),
				"List the declared variables with get_current_workflow.")
		}
		oldID = v.ID
		updatedDecisions = nil

		name := v.Name
		if newName := strArg(args, "new_name"); newName != "" && !strings.EqualFold(newName, v.Name) {
			if dup := w.VariableByName(newName); dup != nil {
				return toolError(CodeDuplicateVariable,
					fmt.Sprintf("a variable named %q already exists (%s)", dup.Name, dup.ID),
					"Pick a name no other variable uses.")
			}
			name = newName
		} else if newName != "" {
			name = newName
		}

		varType := v.Type
		if nt := strArg(args, "new_type"); nt != "" {
			varType = workflow.VariableType(nt)
			if !workflow.ValidVariableType(varType) {
				return toolError(CodeInvalidParams,
					fmt.Sprintf("variable type %q is not valid", nt),
					"Use one of: int, float, number, bool, string, enum, date.")
			}
		}

		enumValues := v.EnumValues
		if ev := strSliceArg(args, "enum_values"); len(ev) > 0 {
			enumValues = ev
		}
		if varType == workflow.TypeEnum && len(enumValues) == 0 {
			return toolError(CodeInvalidParams, "enum variables require enum_values", "")
		}
		if varType != workflow.TypeEnum {
			enumValues = nil
		}

		rng := v.Range
		if r := parseRange(mapArg(args, "range")); r != nil {
			rng = r
		}
		if rng != nil && !numericType(varType) {
			rng = nil
		}

		v.Name = name
		v.Type = varType
		v.EnumValues = enumValues
		v.Range = rng
		if desc := strArg(args, "description"); desc != "" {
			v.Description = desc
		}

		newID := workflow.VariableID(v.Name, v.Source, v.Type)
		if newID != oldID {
			v.ID = newID
			for i := range w.Nodes {
				n := &w.Nodes[i]
				if n.Type == workflow.NodeDecision && n.Condition != nil && n.Condition.InputID == oldID {
					n.Condition.InputID = newID
					updatedDecisions = append(updatedDecisions, fmt.Sprintf("%s (%s)", n.Label, n.ID))
				}
			}
		}
		modified = *v
		return nil
	})
	if fail != nil {
		return fail, nil
	}

	data := commitData(sess, before, after)
	data["variable_id"] = modified.ID
	data["variable"] = variableMap(&modified)
	msg := fmt.Sprintf("Updated variable %q (%s).", modified.Name, modified.ID)
	if modified.ID != oldID {
		data["old_id"] = oldID
		data["new_id"] = modified.ID
		warning := fmt.Sprintf("variable id changed from %s to %s", oldID, modified.ID)
		if len(updatedDecisions) > 0 {
			warning += "; conditions updated on: " + strings.Join(updatedDecisions, ", ")
			data["updated_decisions"] = updatedDecisions
		}
		data["warning"] = warning
		msg += " " + strings.ToUpper(warning[:1]) + warning[1:] + "."
	}
	return &tools.Result{Success: true, Message: msg, Data: data}, nil
}

// RemoveVariableTool deletes a variable. Variables referenced by decision
// conditions are protected unless force is set, which clears those
// conditions and leaves the decisions to be repaired.
type RemoveVariableTool struct{}

func NewRemoveVariableTool() *RemoveVariableTool { return &RemoveVariableTool{} }

func (t *RemoveVariableTool) Name() string      { return "remove_workflow_variable" }
func (t *RemoveVariableTool) Aliases() []string { return []string{"remove_variable"} }

func (t *RemoveVariableTool) Description() string {
	return "Remove a declared variable. Fails if a decision condition still " +
		"references it unless force=true, which also clears those conditions."
}

func (t *RemoveVariableTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for removing a variable",
		map[string]*tools.JSONSchema{
			"workflow_id": tools.NewStringSchema("Workflow to edit."),
			"name":        tools.NewStringSchema("Variable name or id."),
			"force":       tools.NewBooleanSchema("Remove even when conditions reference the variable.").WithDefault(false),
		},
		[]string{"workflow_id", "name"},
	)
}

func (t *RemoveVariableTool) Execute(ctx context.Context, args map[string]any, sess *tools.SessionState) (*tools.Result, error) {
	ref := strArg(args, "name")
	if ref == "" {
		return missingParam("name"), nil
	}
	force := boolArg(args, "force")

	var removed workflow.Variable
	var clearedDecisions []string
	before, after, fail := commitEdit(ctx, sess, strArg(args, "workflow_id"), func(w *workflow.Workflow) error {
		v := resolveVariable(w, ref)
		if v == nil {
			return toolError(CodeNotFound,
				fmt.Sprintf("no variable named %q", ref),
				"List the declared variables with get_current_workflow.")
		}

		var referencing []string
		for i := range w.Nodes {
			n := &w.Nodes[i]
			if n.Type == workflow.NodeDecision && n.Condition != nil && n.Condition.InputID == v.ID {
				referencing = append(referencing, fmt.Sprintf("%s (%s)", n.Label, n.ID))
			}
		}
		if len(referencing) > 0 && !force {
			return toolError(CodeVariableInUse,
				fmt.Sprintf("variable %q is referenced by: %s", v.Name, strings.Join(referencing, ", ")),
				"Update those decisions first, or pass force=true to clear their conditions.")
		}

		removed = *v
		clearedDecisions = nil
		if force {
			for i := range w.Nodes {
				n := &w.Nodes[i]
				if n.Type == workflow.NodeDecision && n.Condition != nil && n.Condition.InputID == v.ID {
					n.Condition = nil
					clearedDecisions = append(clearedDecisions, fmt.Sprintf("%s (%s)", n.Label, n.ID))
				}
			}
		}
		for i := range w.Variables {
			if w.Variables[i].ID == v.ID {
				w.Variables = append(w.Variables[:i], w.Variables[i+1:]...)
				break
			}
		}
		return nil
	})
	if fail != nil {
		return fail, nil
	}

	data := commitData(sess, before, after)
	data["variable_id"] = removed.ID
	msg := fmt.Sprintf("Removed variable %q (%s).", removed.Name, removed.ID)
	if len(clearedDecisions) > 0 {
		data["cleared_decisions"] = clearedDecisions
		warning := "cleared conditions on: " + strings.Join(clearedDecisions, ", ") +
			"; those decisions need new conditions before the workflow can be compiled"
		data["warning"] = warning
		msg += " Cleared conditions on: " + strings.Join(clearedDecisions, ", ") + "."
	}
	return &tools.Result{Success: true, Message: msg, Data: data}, nil
}

// SetOutputTool declares or updates a named workflow output.
type SetOutputTool struct{}

func NewSetOutputTool() *SetOutputTool { return &SetOutputTool{} }

func (t *SetOutputTool) Name() string      { return "set_workflow_output" }
func (t *SetOutputTool) Aliases() []string { return []string{"set_output"} }

func (t *SetOutputTool) Description() string {
	return "Declare a named output, or update its type and description when " +
		"one with the same name already exists."
}

func (t *SetOutputTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for declaring an output",
		map[string]*tools.JSONSchema{
			"workflow_id": tools.NewStringSchema("Workflow to edit."),
			"name":        tools.NewStringSchema("Output name."),
			"type":        tools.NewStringSchema("Output type.").WithEnum(outputTypeEnum()...),
			"description": tools.NewStringSchema("What the output carries."),
		},
		[]string{"workflow_id", "name", "type"},
	)
}

func (t *SetOutputTool) Execute(ctx context.Context, args map[string]any, sess *tools.SessionState) (*tools.Result, error) {
	var set workflow.Output
	var replaced bool
	before, after, fail := commitEdit(ctx, sess, strArg(args, "workflow_id"), func(w *workflow.Workflow) error {
		var terr *tools.ToolError
		set, replaced, terr = stageSetOutput(w, args)
		if terr != nil {
			return terr
		}
		return nil
	})
	if fail != nil {
		return fail, nil
	}

	data := commitData(sess, before, after)
	data["output"] = map[string]any{"name": set.Name, "type": set.Type, "description": set.Description}
	verb := "Declared"
	if replaced {
		verb = "Updated"
	}
	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("%s output %q (%s).", verb, set.Name, set.Type),
		Data:    data,
	}, nil
}

// stageSetOutput declares the output named by args["name"], replacing an
// existing output with the same name.
func stageSetOutput(w *workflow.Workflow, args map[string]any) (workflow.Output, bool, *tools.ToolError) {
	name := strArg(args, "name")
	if name == "" {
		return workflow.Output{}, false, toolError(CodeInvalidParams, "name is required", "")
	}
	outType := strArg(args, "type")
	if !workflow.ValidOutputType(outType) {
		return workflow.Output{}, false, toolError(CodeInvalidParams,
			fmt.Sprintf("output type %q is not valid", outType),
			"Use one of: "+strings.Join(workflow.OutputTypes, ", "))
	}

	set := workflow.Output{Name: name, Type: outType, Description: strArg(args, "description")}
	for i := range w.Outputs {
		if strings.EqualFold(w.Outputs[i].Name, name) {
			if set.Description == "" {
				set.Description = w.Outputs[i].Description
			}
			w.Outputs[i] = set
			return set, true, nil
		}
	}
	w.Outputs = append(w.Outputs, set)
	return set, false, nil
}

func numericType(t workflow.VariableType) bool {
	return t == workflow.TypeInt || t == workflow.TypeFloat || t == workflow.TypeNumber
}

func variableMap(v *workflow.Variable) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{"id": v.ID}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"id": v.ID}
	}
	return m
}
