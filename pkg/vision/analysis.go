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

// Package vision reads flowchart images and PDFs with a vision-capable LLM
// and turns them into structured workflow analyses. Guidance documents are
// read in a first phase; the flowchart itself is read in a second call that
// carries the collected guidance. Sessions keep the conversation so the
// user can send feedback against an earlier reading.
package vision

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teradata-labs/heddle/pkg/workflow"
)

// Guidance note categories.
const (
	GuidanceBusinessRule   = "business_rule"
	GuidanceDataDefinition = "data_definition"
	GuidanceProcessNote    = "process_note"
	GuidanceOther          = "other"
)

// Child is one outgoing arrow of a tree node. Decision nodes carry exactly
// two children labelled true and false.
type Child struct {
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// TreeNode is one flowchart shape, in reading order.
type TreeNode struct {
	ID        string              `json:"id"`
	Type      string              `json:"type"`
	Label     string              `json:"label"`
	InputIDs  []string            `json:"input_ids,omitempty"`
	Condition *workflow.Condition `json:"condition,omitempty"`
	Children  []Child             `json:"children,omitempty"`
}

// GuidanceNote is a rule, legend, or margin note lifted from an upload that
// is not part of the flow itself.
type GuidanceNote struct {
	Text     string `json:"text"`
	Location string `json:"location,omitempty"`
	Category string `json:"category,omitempty"`
}

// Analysis is the structured reading of a flowchart upload set.
type Analysis struct {
	Variables []workflow.Variable `json:"variables"`
	Outputs   []workflow.Output   `json:"outputs"`
	Tree      []TreeNode          `json:"tree"`
	Doubts    []string            `json:"doubts"`
	Reasoning string              `json:"reasoning,omitempty"`
	Guidance  []GuidanceNote      `json:"guidance,omitempty"`
}

// MissingFilesAnalysis is returned when analysis runs with nothing to look
// at. The single doubt asks for an upload instead of failing the tool call.
func MissingFilesAnalysis() *Analysis {
	return &Analysis{
		Variables: []workflow.Variable{},
		Outputs:   []workflow.Output{},
		Tree:      []TreeNode{},
		Doubts: []string{
			"No flowchart image was attached. Ask the user to upload an image or PDF of the flow before analyzing.",
		},
	}
}

// ParseAnalysis decodes an LLM analysis reply, tolerating code fences and
// prose around the JSON object.
func ParseAnalysis(raw string) (*Analysis, error) {
	var a Analysis
	if err := json.Unmarshal([]byte(StripCodeFences(raw)), &a); err != nil {
		return nil, fmt.Errorf("failed to parse analysis JSON: %w", err)
	}
	return &a, nil
}

// parseGuidance decodes a guidance-extraction reply, a JSON array of notes.
func parseGuidance(raw string) ([]GuidanceNote, error) {
	var notes []GuidanceNote
	if err := json.Unmarshal([]byte(StripCodeFences(raw)), &notes); err != nil {
		return nil, fmt.Errorf("failed to parse guidance JSON: %w", err)
	}
	return notes, nil
}

// StripCodeFences removes markdown code fences and any prose around the
// outermost JSON value.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)

	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		// Drop the language tag line, if any.
		if j := strings.Index(rest, "\n"); j >= 0 {
			rest = rest[j+1:]
		}
		if j := strings.LastIndex(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		s = strings.TrimSpace(rest)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	end := strings.LastIndex(s, "}")
	if s[start] == '[' {
		end = strings.LastIndex(s, "]")
	}
	if end <= start {
		return s
	}
	return s[start : end+1]
}

// Normalize enforces the guarantees downstream consumers rely on: variable
// ids are unique, tree nodes reference only known variable ids, and the
// list fields are never nil. Everything repaired is recorded as a doubt.
func (a *Analysis) Normalize() {
	if a.Variables == nil {
		a.Variables = []workflow.Variable{}
	}
	if a.Outputs == nil {
		a.Outputs = []workflow.Output{}
	}
	if a.Tree == nil {
		a.Tree = []TreeNode{}
	}
	if a.Doubts == nil {
		a.Doubts = []string{}
	}

	known := make(map[string]bool, len(a.Variables))
	kept := a.Variables[:0]
	for _, v := range a.Variables {
		if known[v.ID] {
			a.Doubts = append(a.Doubts, fmt.Sprintf(
				"Duplicate variable id %q was dropped; check whether the chart defines it twice.", v.ID))
			continue
		}
		known[v.ID] = true
		kept = append(kept, v)
	}
	a.Variables = kept

	for i := range a.Tree {
		node := &a.Tree[i]
		if len(node.InputIDs) == 0 {
			continue
		}
		filtered := node.InputIDs[:0]
		for _, id := range node.InputIDs {
			if !known[id] {
				a.Doubts = append(a.Doubts, fmt.Sprintf(
					"Node %s referenced unknown variable id %q; the reference was removed.", node.ID, id))
				continue
			}
			filtered = append(filtered, id)
		}
		node.InputIDs = filtered
	}
}
