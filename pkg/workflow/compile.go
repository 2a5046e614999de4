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
	"sort"
	"strconv"
	"strings"
)

// CompileOptions controls optional sections of the generated Python.
type CompileOptions struct {
	IncludeDocstring bool
	IncludeMain      bool
}

// Resolver loads a workflow by id so subprocess nodes can be compiled into
// calls to their subworkflow's function.
type Resolver func(id string) (*Workflow, error)

// CompilePython turns a workflow into a standalone, typed Python module.
// The workflow must pass strict validation; violations come back as the
// second return value and no code is generated. Subworkflows referenced by
// subprocess nodes are compiled into the same module, dependencies first.
func CompilePython(w *Workflow, resolve Resolver, opts CompileOptions) (string, []ValidationError, error) {
	if ok, verrs := Validate(w, Strict); !ok {
		return "", verrs, nil
	}

	c := &pyCompiler{opts: opts, resolve: resolve, emitted: map[string]bool{}}
	if err := c.compileTree(w); err != nil {
		return "", nil, err
	}

	var out strings.Builder
	if c.needsDate {
		out.WriteString("from datetime import date\n\n\n")
	}
	out.WriteString(strings.Join(c.functions, "\n\n"))
	if opts.IncludeMain {
		out.WriteString("\n\n" + c.mainBlock(w))
	}
	return out.String(), nil, nil
}

type pyCompiler struct {
	opts      CompileOptions
	resolve   Resolver
	emitted   map[string]bool
	functions []string
	needsDate bool
}

// compileTree emits subworkflow functions depth-first so every function is
// defined before its first call site, then the workflow itself.
func (c *pyCompiler) compileTree(w *Workflow) error {
	if c.emitted[w.ID] {
		return nil
	}
	c.emitted[w.ID] = true

	for i := range w.Nodes {
		n := &w.Nodes[i]
		if n.Type != NodeSubprocess {
			continue
		}
		if c.resolve == nil {
			return fmt.Errorf("workflow %s has subprocess nodes but no resolver was provided", w.ID)
		}
		sub, err := c.resolve(n.SubworkflowID)
		if err != nil {
			return fmt.Errorf("resolve subworkflow %s: %w", n.SubworkflowID, err)
		}
		if ok, verrs := Validate(sub, Strict); !ok {
			return fmt.Errorf("subworkflow %s (%s) fails strict validation: %s",
				sub.Metadata.Name, sub.ID, verrs[0].Message)
		}
		if err := c.compileTree(sub); err != nil {
			return err
		}
	}

	fn, err := c.compileFunction(w)
	if err != nil {
		return err
	}
	c.functions = append(c.functions, fn)
	return nil
}

func (c *pyCompiler) compileFunction(w *Workflow) (string, error) {
	var b strings.Builder

	params := make([]string, 0, len(w.Variables))
	for _, v := range w.InputVariables() {
		if v.Type == TypeDate {
			c.needsDate = true
		}
		params = append(params, fmt.Sprintf("%s: %s", pyIdent(v.Name), pyType(v.Type)))
	}
	fmt.Fprintf(&b, "def %s(%s) -> %s:\n",
		pyFuncName(w), strings.Join(params, ", "), pyReturnType(w.Metadata.OutputType))

	if c.opts.IncludeDocstring {
		doc := w.Metadata.Description
		if doc == "" {
			doc = w.Metadata.Name
		}
		fmt.Fprintf(&b, "    \"\"\"%s\"\"\"\n", strings.ReplaceAll(doc, `"""`, `'''`))
	}

	starts := w.StartNodes()
	if len(starts) != 1 {
		return "", fmt.Errorf("workflow %s: expected one start node, found %d", w.ID, len(starts))
	}
	if err := c.emitFrom(&b, w, c.firstSuccessor(w, starts[0].ID), 1); err != nil {
		return "", err
	}
	return b.String(), nil
}

// emitFrom writes the statements for the path beginning at nodeID. Strict
// validation guarantees the graph is acyclic and every path reaches an end
// node, so the recursion terminates with a return statement on every branch.
func (c *pyCompiler) emitFrom(b *strings.Builder, w *Workflow, nodeID string, depth int) error {
	pad := strings.Repeat("    ", depth)

	for nodeID != "" {
		n := w.NodeByID(nodeID)
		if n == nil {
			return fmt.Errorf("node %s not found", nodeID)
		}
		switch n.Type {
		case NodeProcess:
			fmt.Fprintf(b, "%s# %s\n", pad, n.Label)
			nodeID = c.firstSuccessor(w, n.ID)

		case NodeSubprocess:
			sub, err := c.resolve(n.SubworkflowID)
			if err != nil {
				return err
			}
			args := c.callArgs(w, sub, n)
			fmt.Fprintf(b, "%s%s = %s(%s)\n", pad, pyIdent(n.OutputVariable), pyFuncName(sub), args)
			nodeID = c.firstSuccessor(w, n.ID)

		case NodeDecision:
			cond, err := c.renderCondition(w, n)
			if err != nil {
				return err
			}
			trueNext, falseNext := c.branchTargets(w, n.ID)
			fmt.Fprintf(b, "%sif %s:\n", pad, cond)
			if err := c.emitFrom(b, w, trueNext, depth+1); err != nil {
				return err
			}
			fmt.Fprintf(b, "%selse:\n", pad)
			return c.emitFrom(b, w, falseNext, depth+1)

		case NodeEnd:
			fmt.Fprintf(b, "%sreturn %s\n", pad, c.renderReturn(w, n))
			return nil

		default:
			return fmt.Errorf("cannot compile node %s of type %s", n.ID, n.Type)
		}
	}
	return nil
}

// firstSuccessor follows the first outgoing edge in declaration order.
// Non-decision nodes in a compilable workflow have a single successor.
func (c *pyCompiler) firstSuccessor(w *Workflow, nodeID string) string {
	edges := w.EdgesFrom(nodeID)
	if len(edges) == 0 {
		return ""
	}
	return edges[0].To
}

func (c *pyCompiler) branchTargets(w *Workflow, nodeID string) (trueNext, falseNext string) {
	for _, e := range w.EdgesFrom(nodeID) {
		switch strings.ToLower(e.Label) {
		case "true":
			trueNext = e.To
		case "false":
			falseNext = e.To
		}
	}
	return trueNext, falseNext
}

// callArgs builds keyword arguments for a subprocess call from the node's
// input mapping: parent variable -> subworkflow input name. Mapping keys in
// sorted order keep the output deterministic.
func (c *pyCompiler) callArgs(parent, sub *Workflow, n *Node) string {
	keys := make([]string, 0, len(n.InputMapping))
	for k := range n.InputMapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys))
	for _, parentRef := range keys {
		childName := n.InputMapping[parentRef]
		parentName := parentRef
		if v := parent.VariableByID(parentRef); v != nil {
			parentName = v.Name
		} else if v := parent.VariableByName(parentRef); v != nil {
			parentName = v.Name
		}
		childIdent := childName
		if v := sub.VariableByName(childName); v != nil {
			childIdent = v.Name
		} else if v := sub.VariableByID(childName); v != nil {
			childIdent = v.Name
		}
		args = append(args, fmt.Sprintf("%s=%s", pyIdent(childIdent), pyIdent(parentName)))
	}
	return strings.Join(args, ", ")
}

func (c *pyCompiler) renderCondition(w *Workflow, n *Node) (string, error) {
	cond := n.Condition
	v := w.VariableByID(cond.InputID)
	if v == nil {
		return "", fmt.Errorf("condition on node %s references unknown variable %s", n.ID, cond.InputID)
	}
	ident := pyIdent(v.Name)

	switch cond.Comparator {
	case "eq", "str_eq", "enum_eq", "date_eq":
		return fmt.Sprintf("%s == %s", ident, c.literal(cond.Value, v.Type)), nil
	case "neq", "str_neq", "enum_neq":
		return fmt.Sprintf("%s != %s", ident, c.literal(cond.Value, v.Type)), nil
	case "lt", "date_before":
		return fmt.Sprintf("%s < %s", ident, c.literal(cond.Value, v.Type)), nil
	case "lte":
		return fmt.Sprintf("%s <= %s", ident, c.literal(cond.Value, v.Type)), nil
	case "gt", "date_after":
		return fmt.Sprintf("%s > %s", ident, c.literal(cond.Value, v.Type)), nil
	case "gte":
		return fmt.Sprintf("%s >= %s", ident, c.literal(cond.Value, v.Type)), nil
	case "within_range", "date_between":
		return fmt.Sprintf("%s <= %s <= %s",
			c.literal(cond.Value, v.Type), ident, c.literal(cond.Value2, v.Type)), nil
	case "is_true":
		return ident, nil
	case "is_false":
		return "not " + ident, nil
	case "str_contains":
		return fmt.Sprintf("%s in %s", c.literal(cond.Value, v.Type), ident), nil
	case "str_starts_with":
		return fmt.Sprintf("%s.startswith(%s)", ident, c.literal(cond.Value, v.Type)), nil
	case "str_ends_with":
		return fmt.Sprintf("%s.endswith(%s)", ident, c.literal(cond.Value, v.Type)), nil
	default:
		return "", fmt.Errorf("unsupported comparator %q on node %s", cond.Comparator, n.ID)
	}
}

// renderReturn prefers the template, then the literal value, then the node
// label for string workflows. Non-string workflows without an explicit
// output fall back to None.
func (c *pyCompiler) renderReturn(w *Workflow, n *Node) string {
	if n.OutputTemplate != "" {
		return c.renderTemplate(w, n.OutputTemplate)
	}
	if n.OutputValue != nil {
		t := TypeString
		switch effectiveOutputType(w, n) {
		case "int":
			t = TypeInt
		case "float":
			t = TypeFloat
		case "bool":
			t = TypeBool
		case "json":
			return pyValue(n.OutputValue)
		}
		return c.literal(n.OutputValue, t)
	}
	if effectiveOutputType(w, n) == "string" && n.Label != "" {
		return pyString(n.Label)
	}
	return "None"
}

func effectiveOutputType(w *Workflow, n *Node) string {
	if n.OutputType != "" {
		return n.OutputType
	}
	return w.Metadata.OutputType
}

// renderTemplate rewrites {Variable Name} placeholders to f-string
// interpolations of the matching parameter identifier. Templates without
// placeholders become plain string literals.
func (c *pyCompiler) renderTemplate(w *Workflow, template string) string {
	if !templatePlaceholder.MatchString(template) {
		return pyString(template)
	}
	body := templatePlaceholder.ReplaceAllStringFunc(template, func(m string) string {
		ref := strings.TrimSpace(m[1 : len(m)-1])
		if v := w.VariableByID(ref); v != nil {
			return "{" + pyIdent(v.Name) + "}"
		}
		if v := w.VariableByName(ref); v != nil {
			return "{" + pyIdent(v.Name) + "}"
		}
		return m
	})
	body = strings.ReplaceAll(body, `"`, `\"`)
	return `f"` + body + `"`
}

func (c *pyCompiler) literal(value any, t VariableType) string {
	switch t {
	case TypeInt:
		switch n := value.(type) {
		case float64:
			return strconv.FormatInt(int64(n), 10)
		case int:
			return strconv.Itoa(n)
		case int64:
			return strconv.FormatInt(n, 10)
		}
	case TypeFloat, TypeNumber:
		switch n := value.(type) {
		case float64:
			return strconv.FormatFloat(n, 'g', -1, 64)
		case int:
			return strconv.Itoa(n)
		}
	case TypeBool:
		if b, ok := value.(bool); ok {
			if b {
				return "True"
			}
			return "False"
		}
	case TypeDate:
		if s, ok := value.(string); ok {
			c.needsDate = true
			return fmt.Sprintf("date.fromisoformat(%s)", pyString(s))
		}
	}
	if s, ok := value.(string); ok {
		return pyString(s)
	}
	return pyValue(value)
}

// pyValue renders an arbitrary JSON-decoded value as a Python literal.
func pyValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "None"
	case bool:
		if v {
			return "True"
		}
		return "False"
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return pyString(v)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = pyValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s: %s", pyString(k), pyValue(v[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func pyString(s string) string {
	return strconv.Quote(s)
}

func pyType(t VariableType) string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat, TypeNumber:
		return "float"
	case TypeBool:
		return "bool"
	case TypeDate:
		return "date"
	default:
		return "str"
	}
}

func pyReturnType(outputType string) string {
	switch outputType {
	case "int":
		return "int"
	case "float":
		return "float"
	case "bool":
		return "bool"
	case "json":
		return "dict"
	default:
		return "str"
	}
}

var pythonKeywords = map[string]bool{
	"and": true, "as": true, "assert": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

// pyIdent derives a safe Python identifier from a variable name.
func pyIdent(name string) string {
	s := Slug(name)
	if s == "" {
		return "value"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "v_" + s
	}
	if pythonKeywords[s] {
		s += "_"
	}
	return s
}

// pyFuncName derives the function name from workflow metadata, falling back
// to the workflow id.
func pyFuncName(w *Workflow) string {
	s := Slug(w.Metadata.Name)
	if s == "" {
		s = Slug(w.ID)
	}
	if s == "" {
		return "workflow"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "wf_" + s
	}
	if pythonKeywords[s] {
		s += "_"
	}
	return s
}

func (c *pyCompiler) mainBlock(w *Workflow) string {
	var b strings.Builder
	b.WriteString("if __name__ == \"__main__\":\n")
	args := make([]string, 0, len(w.Variables))
	for _, v := range w.InputVariables() {
		args = append(args, fmt.Sprintf("%s=%s", pyIdent(v.Name), pySampleValue(v.Type)))
	}
	fmt.Fprintf(&b, "    print(%s(%s))\n", pyFuncName(w), strings.Join(args, ", "))
	return b.String()
}

func pySampleValue(t VariableType) string {
	switch t {
	case TypeInt:
		return "0"
	case TypeFloat, TypeNumber:
		return "0.0"
	case TypeBool:
		return "False"
	case TypeDate:
		return "date.today()"
	default:
		return `""`
	}
}
