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

package uploads

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddQuestion_CreatesSidecar(t *testing.T) {
	img := writeFile(t, "flow.png", encodePNG(t, 4, 4))

	ann, added, err := AddQuestion(img, 120, 80, "  Is this the approval branch?  ")
	require.NoError(t, err)

	assert.True(t, added)
	assert.True(t, strings.HasPrefix(ann.ID, "ann_"))
	assert.Equal(t, AnnotationQuestion, ann.Type)
	assert.Equal(t, 120.0, ann.X)
	assert.Equal(t, 80.0, ann.Y)
	assert.Equal(t, "Is this the approval branch?", ann.Text)
	assert.False(t, ann.CreatedAt.IsZero())

	_, err = os.Stat(img + ".annotations.json")
	require.NoError(t, err)

	list, err := LoadAnnotations(img)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ann.ID, list[0].ID)
}

func TestAddQuestion_DedupsWithinRadius(t *testing.T) {
	img := writeFile(t, "flow.png", encodePNG(t, 4, 4))

	first, added, err := AddQuestion(img, 100, 100, "Is this the approval branch?")
	require.NoError(t, err)
	require.True(t, added)

	// 9.4px away with identical text collapses onto the first question.
	again, added, err := AddQuestion(img, 105, 108, "Is this the approval branch?")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, first.ID, again.ID)

	list, err := LoadAnnotations(img)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAddQuestion_NearIdenticalTextDedups(t *testing.T) {
	img := writeFile(t, "flow.png", encodePNG(t, 4, 4))

	first, _, err := AddQuestion(img, 50, 50, "Is this the approval branch?")
	require.NoError(t, err)

	// Case and a dropped question mark still count as the same question.
	again, added, err := AddQuestion(img, 52, 52, "is this the Approval branch")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, first.ID, again.ID)
}

func TestAddQuestion_DifferentTextSamePoint(t *testing.T) {
	img := writeFile(t, "flow.png", encodePNG(t, 4, 4))

	_, added, err := AddQuestion(img, 10, 10, "Is this the approval branch?")
	require.NoError(t, err)
	require.True(t, added)

	_, added, err = AddQuestion(img, 10, 10, "What feeds the income check?")
	require.NoError(t, err)
	assert.True(t, added)

	list, err := LoadAnnotations(img)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestAddQuestion_OutsideRadiusRepeats(t *testing.T) {
	img := writeFile(t, "flow.png", encodePNG(t, 4, 4))

	_, added, err := AddQuestion(img, 100, 100, "Is this the approval branch?")
	require.NoError(t, err)
	require.True(t, added)

	_, added, err = AddQuestion(img, 100, 111, "Is this the approval branch?")
	require.NoError(t, err)
	assert.True(t, added, "11px apart is a distinct question")
}

func TestLoadAnnotations_Missing(t *testing.T) {
	img := writeFile(t, "flow.png", encodePNG(t, 4, 4))

	list, err := LoadAnnotations(img)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLoadAnnotations_Corrupt(t *testing.T) {
	img := writeFile(t, "flow.png", encodePNG(t, 4, 4))
	require.NoError(t, os.WriteFile(SidecarPath(img), []byte("{not json"), 0o644))

	_, err := LoadAnnotations(img)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse annotations")
}

func TestSaveAnnotations_NilWritesEmptyList(t *testing.T) {
	img := writeFile(t, "flow.png", encodePNG(t, 4, 4))

	require.NoError(t, SaveAnnotations(img, nil))

	raw, err := os.ReadFile(SidecarPath(img))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestSidecarPath(t *testing.T) {
	assert.Equal(t, "/data/uploads/a.png.annotations.json", SidecarPath("/data/uploads/a.png"))
}

func TestQuestionsAlike(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", "Is this right?", "Is this right?", true},
		{"case folded", "IS THIS RIGHT?", "is this right?", true},
		{"whitespace collapsed", "Is  this\tright?", "Is this right?", true},
		{"small edit", "Is this the approval branch?", "Is this the approval branch", true},
		{"different question", "Is this the approval branch?", "What feeds the income check?", false},
		{"both empty", "", "", true},
		{"empty versus text", "", "x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, questionsAlike(tt.a, tt.b))
		})
	}
}
