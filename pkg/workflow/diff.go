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

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Diff renders a line-oriented diff between two workflows, comparing their
// summaries. Useful for showing what an editing session changed or how a
// draft differs from the published version.
func Diff(before, after *Workflow) string {
	return DiffText(Summary(before), Summary(after))
}

// DiffText renders a line-oriented diff between two texts with -/+ markers
// and collapsed context.
func DiffText(before, after string) string {
	if before == after {
		return "(no differences)\n"
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			writeMarked(&out, "- ", d.Text)
		case diffmatchpatch.DiffInsert:
			writeMarked(&out, "+ ", d.Text)
		case diffmatchpatch.DiffEqual:
			writeContext(&out, d.Text)
		}
	}
	return out.String()
}

func writeMarked(out *strings.Builder, marker, text string) {
	for _, line := range splitLines(text) {
		out.WriteString(marker)
		out.WriteString(line)
		out.WriteByte('\n')
	}
}

// writeContext keeps at most one line of context on each side of a change.
func writeContext(out *strings.Builder, text string) {
	lines := splitLines(text)
	if len(lines) > 2 {
		out.WriteString("  " + lines[0] + "\n")
		out.WriteString("  ...\n")
		out.WriteString("  " + lines[len(lines)-1] + "\n")
		return
	}
	for _, line := range lines {
		out.WriteString("  " + line + "\n")
	}
}

func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
