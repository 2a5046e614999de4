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

// Package workflow defines the workflow graph model extracted from
// flowchart images: typed nodes, labelled edges, declared variables and
// outputs, plus the validator and the Python code generator that operate
// on it.
package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// NodeType enumerates the node kinds a workflow may contain.
type NodeType string

const (
	NodeStart      NodeType = "start"
	NodeProcess    NodeType = "process"
	NodeDecision   NodeType = "decision"
	NodeSubprocess NodeType = "subprocess"
	NodeEnd        NodeType = "end"
)

// ValidNodeType reports whether t is a known node type.
func ValidNodeType(t NodeType) bool {
	switch t {
	case NodeStart, NodeProcess, NodeDecision, NodeSubprocess, NodeEnd:
		return true
	}
	return false
}

// VariableSource says where a variable's value comes from at run time.
type VariableSource string

const (
	SourceInput      VariableSource = "input"
	SourceSubprocess VariableSource = "subprocess"
	SourceCalculated VariableSource = "calculated"
	SourceConstant   VariableSource = "constant"
)

// ValidVariableSource reports whether s is a known source.
func ValidVariableSource(s VariableSource) bool {
	switch s {
	case SourceInput, SourceSubprocess, SourceCalculated, SourceConstant:
		return true
	}
	return false
}

// VariableType enumerates variable value types.
type VariableType string

const (
	TypeInt    VariableType = "int"
	TypeFloat  VariableType = "float"
	TypeNumber VariableType = "number"
	TypeBool   VariableType = "bool"
	TypeString VariableType = "string"
	TypeEnum   VariableType = "enum"
	TypeDate   VariableType = "date"
)

// ValidVariableType reports whether t is a known variable type.
func ValidVariableType(t VariableType) bool {
	switch t {
	case TypeInt, TypeFloat, TypeNumber, TypeBool, TypeString, TypeEnum, TypeDate:
		return true
	}
	return false
}

// OutputTypes lists the allowed workflow-level output types.
var OutputTypes = []string{"string", "int", "float", "bool", "json"}

// ValidOutputType reports whether t is an allowed workflow output type.
func ValidOutputType(t string) bool {
	for _, v := range OutputTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Condition is the predicate attached to a decision node.
type Condition struct {
	InputID    string      `json:"input_id"`
	Comparator string      `json:"comparator"`
	Value      interface{} `json:"value"`
	Value2     interface{} `json:"value2,omitempty"`
}

// Range constrains a numeric variable. Either bound may be open.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Variable is a declared workflow variable.
//
// The ID is deterministic (see VariableID): renaming or retyping a variable
// produces a new id, and every reference must be updated by the caller.
type Variable struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        VariableType   `json:"type"`
	Source      VariableSource `json:"source"`
	Description string         `json:"description,omitempty"`
	Range       *Range         `json:"range,omitempty"`
	EnumValues  []string       `json:"enum_values,omitempty"`
}

// Node is one vertex of the workflow graph. Typed fields are populated
// according to Type and ignored otherwise.
type Node struct {
	ID    string   `json:"id"`
	Type  NodeType `json:"type"`
	Label string   `json:"label"`
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Color string   `json:"color,omitempty"`

	// decision
	Condition *Condition `json:"condition,omitempty"`

	// subprocess
	SubworkflowID  string            `json:"subworkflow_id,omitempty"`
	InputMapping   map[string]string `json:"input_mapping,omitempty"`
	OutputVariable string            `json:"output_variable,omitempty"`

	// end
	OutputType     string      `json:"output_type,omitempty"`
	OutputTemplate string      `json:"output_template,omitempty"`
	OutputValue    interface{} `json:"output_value,omitempty"`
}

// Edge connects two nodes. Its ID is always EdgeID(From, To). Edges leaving
// a decision node carry a "true" or "false" label.
type Edge struct {
	ID    string `json:"id"`
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// EdgeID builds the canonical edge identifier.
func EdgeID(from, to string) string {
	return from + "->" + to
}

// Output declares one element of the workflow's output shape.
type Output struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Metadata carries the declarative workflow attributes.
type Metadata struct {
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Domain          string    `json:"domain,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	OutputType      string    `json:"output_type"`
	IsDraft         bool      `json:"is_draft"`
	ValidationScore float64   `json:"validation_score"`
	ValidationCount int       `json:"validation_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Workflow is a labelled directed acyclic graph plus metadata. Nodes,
// edges, and variables are index-addressed slices; content ids are the
// LLM-visible references and are resolved to positions per operation.
type Workflow struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Metadata  Metadata   `json:"metadata"`
	Nodes     []Node     `json:"nodes"`
	Edges     []Edge     `json:"edges"`
	Variables []Variable `json:"variables"`
	Outputs   []Output   `json:"outputs"`
}

// New creates an empty draft workflow with a fresh id.
func New(userID, name, outputType string) *Workflow {
	now := time.Now().UTC()
	return &Workflow{
		ID:     NewWorkflowID(),
		UserID: userID,
		Metadata: Metadata{
			Name:       name,
			OutputType: outputType,
			IsDraft:    true,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}
}

// Clone returns a deep copy. Editing tools stage mutations on a clone and
// commit only after validation.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	// JSON round-trip keeps the copy honest for nested maps and interface
	// values (condition values, input mappings, output literals).
	raw, err := json.Marshal(w)
	if err != nil {
		c := *w
		return &c
	}
	var c Workflow
	if err := json.Unmarshal(raw, &c); err != nil {
		c := *w
		return &c
	}
	return &c
}

// Touch bumps the updated-at timestamp.
func (w *Workflow) Touch() {
	w.Metadata.UpdatedAt = time.Now().UTC()
}

// NodeByID returns the node with the given id, or nil.
func (w *Workflow) NodeByID(id string) *Node {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i]
		}
	}
	return nil
}

// NodeByRef resolves a node reference that may be an id or a label.
// Label resolution requires the label to be unique; an ambiguous label
// returns an error naming the candidates.
func (w *Workflow) NodeByRef(ref string) (*Node, error) {
	if n := w.NodeByID(ref); n != nil {
		return n, nil
	}
	var matches []int
	for i := range w.Nodes {
		if strings.EqualFold(w.Nodes[i].Label, ref) {
			matches = append(matches, i)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("node %q not found", ref)
	case 1:
		return &w.Nodes[matches[0]], nil
	default:
		ids := make([]string, len(matches))
		for i, idx := range matches {
			ids[i] = w.Nodes[idx].ID
		}
		return nil, fmt.Errorf("label %q is ambiguous: matches %s", ref, strings.Join(ids, ", "))
	}
}

// VariableByID returns the variable with the given id, or nil.
func (w *Workflow) VariableByID(id string) *Variable {
	for i := range w.Variables {
		if w.Variables[i].ID == id {
			return &w.Variables[i]
		}
	}
	return nil
}

// VariableByName returns the variable with the given name
// (case-insensitive), or nil.
func (w *Workflow) VariableByName(name string) *Variable {
	for i := range w.Variables {
		if strings.EqualFold(w.Variables[i].Name, name) {
			return &w.Variables[i]
		}
	}
	return nil
}

// EdgesFrom returns the outgoing edges of a node, in declaration order.
func (w *Workflow) EdgesFrom(nodeID string) []Edge {
	var out []Edge
	for _, e := range w.Edges {
		if e.From == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// RemoveNode deletes the node and every incident edge. Reports whether the
// node existed.
func (w *Workflow) RemoveNode(id string) bool {
	idx := -1
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	w.Nodes = append(w.Nodes[:idx], w.Nodes[idx+1:]...)
	kept := w.Edges[:0]
	for _, e := range w.Edges {
		if e.From != id && e.To != id {
			kept = append(kept, e)
		}
	}
	w.Edges = kept
	return true
}

// RemoveEdge deletes the edge between from and to. Reports whether it
// existed.
func (w *Workflow) RemoveEdge(from, to string) bool {
	id := EdgeID(from, to)
	for i := range w.Edges {
		if w.Edges[i].ID == id {
			w.Edges = append(w.Edges[:i], w.Edges[i+1:]...)
			return true
		}
	}
	return false
}

// StartNodes returns all nodes of type start.
func (w *Workflow) StartNodes() []Node {
	var out []Node
	for _, n := range w.Nodes {
		if n.Type == NodeStart {
			out = append(out, n)
		}
	}
	return out
}

// InputVariables returns the input-source variables in declaration order.
func (w *Workflow) InputVariables() []Variable {
	var out []Variable
	for _, v := range w.Variables {
		if v.Source == SourceInput {
			out = append(out, v)
		}
	}
	return out
}
