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

package workflow

import (
	"fmt"
	"regexp"
	"strings"
)

// Mode selects the invariant set the validator enforces.
//
// Lenient permits partial workflows (no start node yet, decisions with
// fewer than two branches or no condition) but enforces structural
// integrity: referential soundness, no cycles, no self-loops, and condition
// validity for decisions that already carry one. Strict adds the completion
// invariants required before publishing or compiling.
type Mode int

const (
	Lenient Mode = iota
	Strict
)

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "lenient"
}

// Stable error codes callers match on.
const (
	CodeNodeNotFound               = "NODE_NOT_FOUND"
	CodeInvalidNodeType            = "INVALID_NODE_TYPE"
	CodeMultipleStartNodes         = "MULTIPLE_START_NODES"
	CodeMissingStartNode           = "MISSING_START_NODE"
	CodeCycleDetected              = "CYCLE_DETECTED"
	CodeSelfLoop                   = "SELF_LOOP"
	CodeInvalidEdgeLabel           = "INVALID_EDGE_LABEL"
	CodeDuplicateEdgeLabel         = "DUPLICATE_EDGE_LABEL"
	CodeMaxBranchesReached         = "MAX_BRANCHES_REACHED"
	CodeInvalidCondition           = "INVALID_CONDITION"
	CodeUnknownInputReference      = "UNKNOWN_INPUT_REFERENCE"
	CodeSubprocessValidationFailed = "SUBPROCESS_VALIDATION_FAILED"
	CodeValidationFailed           = "VALIDATION_FAILED"
)

// ValidationError describes one violated invariant. NodeID or EdgeID
// points at the offending entity when one exists.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	NodeID  string `json:"node_id,omitempty"`
	EdgeID  string `json:"edge_id,omitempty"`
}

// Validate checks a candidate workflow against the invariant set for the
// given mode. It is deterministic, side-effect free, and never fails with
// a Go error: violations come back as values.
func Validate(w *Workflow, mode Mode) (bool, []ValidationError) {
	var errs []ValidationError

	nodeIDs := make(map[string]bool, len(w.Nodes))
	startCount := 0
	for i := range w.Nodes {
		n := &w.Nodes[i]
		if !ValidNodeType(n.Type) {
			errs = append(errs, ValidationError{
				Code:    CodeInvalidNodeType,
				Message: fmt.Sprintf("node %s has unknown type %q", n.ID, n.Type),
				NodeID:  n.ID,
			})
		}
		if nodeIDs[n.ID] {
			errs = append(errs, ValidationError{
				Code:    CodeValidationFailed,
				Message: fmt.Sprintf("duplicate node id %s", n.ID),
				NodeID:  n.ID,
			})
		}
		nodeIDs[n.ID] = true
		if n.Type == NodeStart {
			startCount++
		}
	}

	if startCount > 1 {
		errs = append(errs, ValidationError{
			Code:    CodeMultipleStartNodes,
			Message: fmt.Sprintf("workflow has %d start nodes, expected exactly one", startCount),
		})
	}
	if mode == Strict && startCount == 0 {
		errs = append(errs, ValidationError{
			Code:    CodeMissingStartNode,
			Message: "workflow has no start node",
		})
	}

	errs = append(errs, validateEdges(w, nodeIDs, mode)...)
	errs = append(errs, validateConditions(w, mode)...)
	errs = append(errs, validateSubprocessNodes(w)...)
	errs = append(errs, detectCycles(w)...)

	if mode == Strict {
		errs = append(errs, validateCompletion(w)...)
	}

	return len(errs) == 0, errs
}

func validateEdges(w *Workflow, nodeIDs map[string]bool, mode Mode) []ValidationError {
	var errs []ValidationError

	type branchState struct {
		total      int
		trueCount  int
		falseCount int
	}
	branches := make(map[string]*branchState)

	seen := make(map[string]bool, len(w.Edges))
	for _, e := range w.Edges {
		if !nodeIDs[e.From] {
			errs = append(errs, ValidationError{
				Code:    CodeNodeNotFound,
				Message: fmt.Sprintf("edge %s references missing source node %s", e.ID, e.From),
				EdgeID:  e.ID,
			})
		}
		if !nodeIDs[e.To] {
			errs = append(errs, ValidationError{
				Code:    CodeNodeNotFound,
				Message: fmt.Sprintf("edge %s references missing target node %s", e.ID, e.To),
				EdgeID:  e.ID,
			})
		}
		if e.From == e.To {
			errs = append(errs, ValidationError{
				Code:    CodeSelfLoop,
				Message: fmt.Sprintf("node %s connects to itself", e.From),
				NodeID:  e.From,
				EdgeID:  e.ID,
			})
		}
		if seen[e.ID] {
			errs = append(errs, ValidationError{
				Code:    CodeValidationFailed,
				Message: fmt.Sprintf("duplicate edge %s", e.ID),
				EdgeID:  e.ID,
			})
		}
		seen[e.ID] = true

		src := w.NodeByID(e.From)
		if src == nil || src.Type != NodeDecision {
			continue
		}
		st := branches[e.From]
		if st == nil {
			st = &branchState{}
			branches[e.From] = st
		}
		st.total++
		switch strings.ToLower(e.Label) {
		case "true":
			st.trueCount++
			if st.trueCount > 1 {
				errs = append(errs, ValidationError{
					Code:    CodeDuplicateEdgeLabel,
					Message: fmt.Sprintf("decision node %s already has a %q branch", e.From, "true"),
					NodeID:  e.From,
					EdgeID:  e.ID,
				})
			}
		case "false":
			st.falseCount++
			if st.falseCount > 1 {
				errs = append(errs, ValidationError{
					Code:    CodeDuplicateEdgeLabel,
					Message: fmt.Sprintf("decision node %s already has a %q branch", e.From, "false"),
					NodeID:  e.From,
					EdgeID:  e.ID,
				})
			}
		default:
			errs = append(errs, ValidationError{
				Code:    CodeInvalidEdgeLabel,
				Message: fmt.Sprintf("edge %s leaving decision node %s must be labelled true or false, got %q", e.ID, e.From, e.Label),
				NodeID:  e.From,
				EdgeID:  e.ID,
			})
		}
	}

	for nodeID, st := range branches {
		if st.total > 2 {
			errs = append(errs, ValidationError{
				Code:    CodeMaxBranchesReached,
				Message: fmt.Sprintf("decision node %s has %d outgoing edges, maximum is 2", nodeID, st.total),
				NodeID:  nodeID,
			})
		}
		if mode == Strict && (st.trueCount != 1 || st.falseCount != 1) {
			errs = append(errs, ValidationError{
				Code:    CodeValidationFailed,
				Message: fmt.Sprintf("decision node %s must have exactly one true and one false branch", nodeID),
				NodeID:  nodeID,
			})
		}
	}

	if mode == Strict {
		// Decisions with no outgoing edges never enter the branch map.
		for i := range w.Nodes {
			n := &w.Nodes[i]
			if n.Type == NodeDecision && branches[n.ID] == nil {
				errs = append(errs, ValidationError{
					Code:    CodeValidationFailed,
					Message: fmt.Sprintf("decision node %s must have exactly one true and one false branch", n.ID),
					NodeID:  n.ID,
				})
			}
		}
	}

	return errs
}

func validateConditions(w *Workflow, mode Mode) []ValidationError {
	var errs []ValidationError
	for i := range w.Nodes {
		n := &w.Nodes[i]
		if n.Type != NodeDecision {
			continue
		}
		if n.Condition == nil {
			if mode == Strict {
				errs = append(errs, ValidationError{
					Code:    CodeInvalidCondition,
					Message: fmt.Sprintf("decision node %s has no condition", n.ID),
					NodeID:  n.ID,
				})
			}
			continue
		}
		errs = append(errs, validateCondition(w, n.ID, n.Condition)...)
	}
	return errs
}

func validateCondition(w *Workflow, nodeID string, c *Condition) []ValidationError {
	var errs []ValidationError

	v := w.VariableByID(c.InputID)
	if v == nil {
		errs = append(errs, ValidationError{
			Code:    CodeUnknownInputReference,
			Message: fmt.Sprintf("condition on node %s references unknown variable %q", nodeID, c.InputID),
			NodeID:  nodeID,
		})
		return errs
	}

	if !ComparatorValid(v.Type, c.Comparator) {
		errs = append(errs, ValidationError{
			Code: CodeInvalidCondition,
			Message: fmt.Sprintf("comparator %q is not valid for %s variable %q (valid: %s)",
				c.Comparator, v.Type, v.Name, strings.Join(ComparatorsFor(v.Type), ", ")),
			NodeID: nodeID,
		})
		return errs
	}

	if ComparatorTakesValue(c.Comparator) && c.Value == nil {
		errs = append(errs, ValidationError{
			Code:    CodeInvalidCondition,
			Message: fmt.Sprintf("comparator %q on node %s requires a value", c.Comparator, nodeID),
			NodeID:  nodeID,
		})
	}
	if ComparatorNeedsSecondValue(c.Comparator) && c.Value2 == nil {
		errs = append(errs, ValidationError{
			Code:    CodeInvalidCondition,
			Message: fmt.Sprintf("comparator %q on node %s requires value2", c.Comparator, nodeID),
			NodeID:  nodeID,
		})
	}

	if v.Type == TypeEnum && len(v.EnumValues) > 0 {
		if s, ok := c.Value.(string); ok && !containsString(v.EnumValues, s) {
			errs = append(errs, ValidationError{
				Code: CodeInvalidCondition,
				Message: fmt.Sprintf("value %q is not one of enum %q's values (%s)",
					s, v.Name, strings.Join(v.EnumValues, ", ")),
				NodeID: nodeID,
			})
		}
	}

	return errs
}

// validateSubprocessNodes checks the structural half of the subprocess
// invariant. Whether subworkflow_id references a real workflow owned by the
// same user needs the store and is enforced by the editing tools, which
// surface SUBPROCESS_VALIDATION_FAILED.
func validateSubprocessNodes(w *Workflow) []ValidationError {
	var errs []ValidationError
	for i := range w.Nodes {
		n := &w.Nodes[i]
		if n.Type != NodeSubprocess {
			continue
		}
		if n.SubworkflowID == "" {
			errs = append(errs, ValidationError{
				Code:    CodeSubprocessValidationFailed,
				Message: fmt.Sprintf("subprocess node %s has no subworkflow_id", n.ID),
				NodeID:  n.ID,
			})
		}
		if n.OutputVariable == "" {
			errs = append(errs, ValidationError{
				Code:    CodeSubprocessValidationFailed,
				Message: fmt.Sprintf("subprocess node %s has no output_variable", n.ID),
				NodeID:  n.ID,
			})
		}
	}
	return errs
}

// detectCycles runs an iterative depth-first search with grey/black
// colouring. A back edge to a grey node is a cycle; the error message
// carries the cycle path joined with arrows. Self-loops are excluded here
// because they are reported separately as SELF_LOOP.
func detectCycles(w *Workflow) []ValidationError {
	adjacency := make(map[string][]string)
	for _, e := range w.Edges {
		if e.From == e.To {
			continue
		}
		adjacency[e.From] = append(adjacency[e.From], e.To)
	}

	const (
		white = 0
		grey  = 1
		black = 2
	)
	colour := make(map[string]int, len(w.Nodes))

	type frame struct {
		id   string
		next int
	}

	var errs []ValidationError
	for i := range w.Nodes {
		root := w.Nodes[i].ID
		if colour[root] != white {
			continue
		}
		stack := []frame{{id: root}}
		colour[root] = grey

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			neighbours := adjacency[top.id]
			if top.next < len(neighbours) {
				next := neighbours[top.next]
				top.next++
				switch colour[next] {
				case white:
					colour[next] = grey
					stack = append(stack, frame{id: next})
				case grey:
					path := make([]string, 0, len(stack)+1)
					start := 0
					for j := range stack {
						if stack[j].id == next {
							start = j
							break
						}
					}
					for j := start; j < len(stack); j++ {
						path = append(path, stack[j].id)
					}
					path = append(path, next)
					errs = append(errs, ValidationError{
						Code:    CodeCycleDetected,
						Message: "cycle detected: " + strings.Join(path, "→"),
						NodeID:  next,
					})
				}
			} else {
				colour[top.id] = black
				stack = stack[:len(stack)-1]
			}
		}
	}
	return errs
}

var templatePlaceholder = regexp.MustCompile(`\{([^{}]+)\}`)

// validateCompletion enforces the strict-only invariants: end nodes exist
// and are reachable, no dangling non-end leaves, input variables are
// consumed somewhere, and output templates resolve.
func validateCompletion(w *Workflow) []ValidationError {
	var errs []ValidationError

	endCount := 0
	for i := range w.Nodes {
		if w.Nodes[i].Type == NodeEnd {
			endCount++
		}
	}
	if endCount == 0 {
		errs = append(errs, ValidationError{
			Code:    CodeValidationFailed,
			Message: "workflow has no end node",
		})
	}

	reachable := reachableFromStart(w)
	for i := range w.Nodes {
		n := &w.Nodes[i]
		if !reachable[n.ID] {
			errs = append(errs, ValidationError{
				Code:    CodeValidationFailed,
				Message: fmt.Sprintf("node %s (%s) is not reachable from the start node", n.ID, n.Label),
				NodeID:  n.ID,
			})
		}
		if n.Type != NodeEnd && len(w.EdgesFrom(n.ID)) == 0 {
			errs = append(errs, ValidationError{
				Code:    CodeValidationFailed,
				Message: fmt.Sprintf("node %s (%s) is a dead end: only end nodes may have no outgoing edge", n.ID, n.Label),
				NodeID:  n.ID,
			})
		}
	}

	used := usedVariableIDs(w)
	for _, v := range w.Variables {
		if v.Source != SourceInput {
			continue
		}
		if !used[v.ID] {
			errs = append(errs, ValidationError{
				Code:    CodeValidationFailed,
				Message: fmt.Sprintf("input variable %q (%s) is never used", v.Name, v.ID),
			})
		}
	}

	for i := range w.Nodes {
		n := &w.Nodes[i]
		if n.Type != NodeEnd || n.OutputTemplate == "" {
			continue
		}
		for _, m := range templatePlaceholder.FindAllStringSubmatch(n.OutputTemplate, -1) {
			ref := strings.TrimSpace(m[1])
			if w.VariableByID(ref) == nil && w.VariableByName(ref) == nil {
				errs = append(errs, ValidationError{
					Code:    CodeUnknownInputReference,
					Message: fmt.Sprintf("output template of node %s references unknown variable %q", n.ID, ref),
					NodeID:  n.ID,
				})
			}
		}
	}

	return errs
}

// reachableFromStart walks forward from every start node.
func reachableFromStart(w *Workflow) map[string]bool {
	adjacency := make(map[string][]string)
	for _, e := range w.Edges {
		adjacency[e.From] = append(adjacency[e.From], e.To)
	}
	reachable := make(map[string]bool)
	var queue []string
	for _, n := range w.Nodes {
		if n.Type == NodeStart {
			queue = append(queue, n.ID)
			reachable[n.ID] = true
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[id] {
			if !reachable[next] {
				reachable[next] = true
				queue = append(queue, next)
			}
		}
	}
	return reachable
}

// usedVariableIDs collects the ids of variables referenced by decision
// conditions, output templates, and subprocess input mappings.
func usedVariableIDs(w *Workflow) map[string]bool {
	used := make(map[string]bool)
	markByName := func(name string) {
		if v := w.VariableByName(name); v != nil {
			used[v.ID] = true
		} else if v := w.VariableByID(name); v != nil {
			used[v.ID] = true
		}
	}
	for i := range w.Nodes {
		n := &w.Nodes[i]
		if n.Condition != nil {
			used[n.Condition.InputID] = true
		}
		for parentName := range n.InputMapping {
			markByName(parentName)
		}
		if n.Type == NodeEnd && n.OutputTemplate != "" {
			for _, m := range templatePlaceholder.FindAllStringSubmatch(n.OutputTemplate, -1) {
				markByName(strings.TrimSpace(m[1]))
			}
		}
	}
	return used
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
