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

package prompts

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Raw marks a value as trusted prompt text. Raw values are substituted
// verbatim, keeping newlines and markup. Use it only for content the
// system composed itself (analysis reasoning, guidance sections), never
// for user-supplied strings.
type Raw string

var placeholderRe = regexp.MustCompile(`\{\{\.(\w+)\}\}`)

// Interpolate substitutes {{.name}} placeholders in a prompt template.
//
// Values are hardened before substitution so that file names, session ids,
// and other user-reachable strings cannot smuggle role markers or fence
// sequences into the prompt. Unknown placeholders are left in place, which
// also makes a nil vars map return the raw template.
//
// Example:
//
//	template := "The user attached {{.count}} files to this turn."
//	result := Interpolate(template, map[string]interface{}{"count": 3})
func Interpolate(template string, vars map[string]interface{}) string {
	if vars == nil {
		return template
	}

	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		name := strings.TrimPrefix(strings.TrimSuffix(match, "}}"), "{{.")

		value, ok := vars[name]
		if !ok {
			return match
		}
		return renderValue(value)
	})
}

// renderValue converts a value to its substituted string form.
func renderValue(value interface{}) string {
	switch v := value.(type) {
	case Raw:
		return string(v)
	case string:
		return hardenString(v)
	case int, int8, int16, int32, int64, uint, uint64, float32, float64:
		return fmt.Sprintf("%v", v)
	case bool:
		return fmt.Sprintf("%t", v)
	case []string:
		hardened := make([]string, len(v))
		for i, s := range v {
			hardened[i] = hardenString(s)
		}
		return strings.Join(hardened, ", ")
	default:
		return hardenString(fmt.Sprintf("%v", v))
	}
}

// hardenString flattens an untrusted value to a single safe line.
//
// Steps: drop null bytes and invalid UTF-8, flatten line breaks and tabs,
// strip remaining control characters, blank out role markers and fence
// sequences, collapse runs of whitespace.
func hardenString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}

	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\t", " ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) && r != ' ' {
			continue
		}
		b.WriteRune(r)
	}
	s = b.String()

	s = blankRoleMarkers(s)

	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// blankRoleMarkers replaces sequences that could open a fake conversation
// turn or a code fence inside the prompt.
func blankRoleMarkers(s string) string {
	markers := []string{
		"```",
		"###",
		"---",
		"System:",
		"Assistant:",
		"Human:",
	}
	for _, m := range markers {
		s = strings.ReplaceAll(s, m, strings.Repeat(" ", len(m)))
	}
	return s
}
