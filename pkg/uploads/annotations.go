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
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// AnnotationQuestion marks a reviewer question pinned to an image location.
const AnnotationQuestion = "question"

// sidecarSuffix is appended to an image file name to form its sidecar.
const sidecarSuffix = ".annotations.json"

// questionDedupRadius is the pixel distance within which a repeated
// question collapses onto the existing one.
const questionDedupRadius = 10.0

// Annotation is one entry in an image's sidecar file.
type Annotation struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Text      string    `json:"text,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// SidecarPath returns the annotations file adjacent to an image.
func SidecarPath(imagePath string) string {
	return imagePath + sidecarSuffix
}

// LoadAnnotations reads an image's sidecar. A missing sidecar is an empty
// list, not an error.
func LoadAnnotations(imagePath string) ([]Annotation, error) {
	raw, err := os.ReadFile(SidecarPath(imagePath))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read annotations: %w", err)
	}

	var list []Annotation
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("failed to parse annotations: %w", err)
	}
	return list, nil
}

// SaveAnnotations writes an image's sidecar.
func SaveAnnotations(imagePath string, list []Annotation) error {
	if list == nil {
		list = []Annotation{}
	}
	raw, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal annotations: %w", err)
	}
	if err := os.WriteFile(SidecarPath(imagePath), raw, 0o644); err != nil {
		return fmt.Errorf("failed to write annotations: %w", err)
	}
	return nil
}

// AddQuestion pins a question annotation onto an image and persists the
// sidecar. A near-identical question within questionDedupRadius pixels of
// an existing one is not duplicated; the existing annotation is returned
// with added=false.
func AddQuestion(imagePath string, x, y float64, text string) (Annotation, bool, error) {
	list, err := LoadAnnotations(imagePath)
	if err != nil {
		return Annotation{}, false, err
	}

	for _, a := range list {
		if a.Type != AnnotationQuestion {
			continue
		}
		if math.Hypot(a.X-x, a.Y-y) > questionDedupRadius {
			continue
		}
		if questionsAlike(a.Text, text) {
			return a, false, nil
		}
	}

	ann := Annotation{
		ID:        "ann_" + randomHex()[:8],
		Type:      AnnotationQuestion,
		X:         x,
		Y:         y,
		Text:      strings.TrimSpace(text),
		CreatedAt: time.Now().UTC(),
	}
	list = append(list, ann)
	if err := SaveAnnotations(imagePath, list); err != nil {
		return Annotation{}, false, err
	}
	return ann, true, nil
}

// questionsAlike reports whether two question texts differ by no more than
// a tenth of their length after case and whitespace normalization.
func questionsAlike(a, b string) bool {
	a = normalizeQuestion(a)
	b = normalizeQuestion(b)
	if a == b {
		return true
	}

	dmp := diffmatchpatch.New()
	dist := dmp.DiffLevenshtein(dmp.DiffMain(a, b, false))

	longer := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longer {
		longer = n
	}
	return dist <= longer/10
}

func normalizeQuestion(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
