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
	"strings"
)

// Summary renders a multi-line, human-readable description of the workflow:
// metadata, variables, nodes grouped by type, edges, and the lenient
// validation status. The output is meant for model and human consumption,
// not for parsing.
func Summary(w *Workflow) string {
	var b strings.Builder

	status := "draft"
	if !w.Metadata.IsDraft {
		status = "published"
	}
	fmt.Fprintf(&b, "Workflow: %s (%s, %s)\n", w.Metadata.Name, w.ID, status)
	if w.Metadata.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", w.Metadata.Description)
	}
	if w.Metadata.Domain != "" {
		fmt.Fprintf(&b, "Domain: %s\n", w.Metadata.Domain)
	}
	if len(w.Metadata.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(w.Metadata.Tags, ", "))
	}
	fmt.Fprintf(&b, "Output type: %s\n", w.Metadata.OutputType)

	fmt.Fprintf(&b, "\nVariables (%d):\n", len(w.Variables))
	if len(w.Variables) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, v := range w.Variables {
		fmt.Fprintf(&b, "  - %s: %s %s (%s)", v.ID, v.Name, typeWithRange(&v), v.Source)
		if v.Description != "" {
			fmt.Fprintf(&b, " - %s", v.Description)
		}
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "\nNodes (%d):\n", len(w.Nodes))
	for _, t := range []NodeType{NodeStart, NodeProcess, NodeDecision, NodeSubprocess, NodeEnd} {
		group := nodesOfType(w, t)
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&b, "  %s:\n", t)
		for _, n := range group {
			fmt.Fprintf(&b, "    - %s %q%s\n", n.ID, n.Label, nodeDetail(n))
		}
	}
	if len(w.Nodes) == 0 {
		b.WriteString("  (none)\n")
	}

	fmt.Fprintf(&b, "\nEdges (%d):\n", len(w.Edges))
	if len(w.Edges) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, e := range w.Edges {
		fromLabel := labelOf(w, e.From)
		toLabel := labelOf(w, e.To)
		if e.Label != "" {
			fmt.Fprintf(&b, "  - %s -> %s [%s]\n", fromLabel, toLabel, e.Label)
		} else {
			fmt.Fprintf(&b, "  - %s -> %s\n", fromLabel, toLabel)
		}
	}

	ok, verrs := Validate(w, Lenient)
	if ok {
		b.WriteString("\nValidation: passing\n")
	} else {
		fmt.Fprintf(&b, "\nValidation: %d issue(s)\n", len(verrs))
		for _, ve := range verrs {
			fmt.Fprintf(&b, "  - [%s] %s\n", ve.Code, ve.Message)
		}
	}

	return b.String()
}

func typeWithRange(v *Variable) string {
	switch {
	case v.Type == TypeEnum && len(v.EnumValues) > 0:
		return fmt.Sprintf("enum[%s]", strings.Join(v.EnumValues, "|"))
	case v.Range != nil && v.Range.Min != nil && v.Range.Max != nil:
		return fmt.Sprintf("%s[%v..%v]", v.Type, *v.Range.Min, *v.Range.Max)
	case v.Range != nil && v.Range.Min != nil:
		return fmt.Sprintf("%s[>=%v]", v.Type, *v.Range.Min)
	case v.Range != nil && v.Range.Max != nil:
		return fmt.Sprintf("%s[<=%v]", v.Type, *v.Range.Max)
	default:
		return string(v.Type)
	}
}

func nodesOfType(w *Workflow, t NodeType) []*Node {
	var out []*Node
	for i := range w.Nodes {
		if w.Nodes[i].Type == t {
			out = append(out, &w.Nodes[i])
		}
	}
	return out
}

func nodeDetail(n *Node) string {
	switch n.Type {
	case NodeDecision:
		if n.Condition == nil {
			return " (no condition)"
		}
		c := n.Condition
		if c.Value2 != nil {
			return fmt.Sprintf(" if %s %s %v and %v", c.InputID, c.Comparator, c.Value, c.Value2)
		}
		if c.Value != nil {
			return fmt.Sprintf(" if %s %s %v", c.InputID, c.Comparator, c.Value)
		}
		return fmt.Sprintf(" if %s %s", c.InputID, c.Comparator)
	case NodeSubprocess:
		return fmt.Sprintf(" calls %s -> %s", n.SubworkflowID, n.OutputVariable)
	case NodeEnd:
		switch {
		case n.OutputTemplate != "":
			return fmt.Sprintf(" returns %q", n.OutputTemplate)
		case n.OutputValue != nil:
			return fmt.Sprintf(" returns %v", n.OutputValue)
		default:
			return ""
		}
	default:
		return ""
	}
}

func labelOf(w *Workflow, nodeID string) string {
	if n := w.NodeByID(nodeID); n != nil && n.Label != "" {
		return fmt.Sprintf("%s (%s)", n.Label, nodeID)
	}
	return nodeID
}
