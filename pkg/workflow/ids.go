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
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// shortHex returns the first n hex characters of a fresh UUID.
func shortHex(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

// NewWorkflowID allocates a workflow identifier of the form wf_<8 hex>.
func NewWorkflowID() string {
	return "wf_" + shortHex(8)
}

// NewNodeID allocates a node identifier of the form node_<8 hex>.
func NewNodeID() string {
	return "node_" + shortHex(8)
}

// deaccent strips combining marks so "Résumé" slugs like "Resume".
var deaccent = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug lowercases a name and collapses every non-alphanumeric run into a
// single underscore, with no leading or trailing underscore.
func Slug(name string) string {
	if folded, _, err := transform.String(deaccent, name); err == nil {
		name = folded
	}

	var b strings.Builder
	b.Grow(len(name))
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			if b.Len() > 0 {
				pendingSep = true
			}
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

var sourcePrefixes = map[VariableSource]string{
	SourceSubprocess: "sub",
	SourceCalculated: "calc",
	SourceConstant:   "const",
}

// VariableID derives the deterministic variable identifier from name,
// source, and type: var_<slug>_<type> for inputs,
// var_<prefix>_<slug>_<type> for derived variables.
func VariableID(name string, source VariableSource, typ VariableType) string {
	slug := Slug(name)
	if source == SourceInput || source == "" {
		return "var_" + slug + "_" + string(typ)
	}
	prefix, ok := sourcePrefixes[source]
	if !ok {
		prefix = string(source)
	}
	return "var_" + prefix + "_" + slug + "_" + string(typ)
}
