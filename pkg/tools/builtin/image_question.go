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

package builtin

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/teradata-labs/heddle/pkg/tools"
	"github.com/teradata-labs/heddle/pkg/uploads"
)

// AddImageQuestionTool pins a question onto an uploaded flowchart image.
// Questions land in the image's annotations sidecar so the canvas can render
// them at the marked spot.
type AddImageQuestionTool struct{}

func NewAddImageQuestionTool() *AddImageQuestionTool { return &AddImageQuestionTool{} }

func (t *AddImageQuestionTool) Name() string      { return "add_image_question" }
func (t *AddImageQuestionTool) Aliases() []string { return []string{"annotate_image"} }

func (t *AddImageQuestionTool) Description() string {
	return "Pin a question to a location on an uploaded image. Repeating a " +
		"near-identical question within 10 pixels of an existing one " +
		"returns the existing annotation instead of adding another."
}

func (t *AddImageQuestionTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for annotating an image",
		map[string]*tools.JSONSchema{
			"image_name": tools.NewStringSchema("Name of an uploaded image."),
			"x":          tools.NewNumberSchema("Pixel x coordinate of the question marker."),
			"y":          tools.NewNumberSchema("Pixel y coordinate of the question marker."),
			"question":   tools.NewStringSchema("The question to pin there."),
		},
		[]string{"image_name", "x", "y", "question"},
	)
}

func (t *AddImageQuestionTool) Execute(ctx context.Context, args map[string]any, sess *tools.SessionState) (*tools.Result, error) {
	if sess == nil {
		return tools.Fail(CodeInvalidParams, "no session attached to this call"), nil
	}
	imageName := strArg(args, "image_name")
	if imageName == "" {
		return missingParam("image_name"), nil
	}
	question := strArg(args, "question")
	if question == "" {
		return missingParam("question"), nil
	}
	x, okX := floatArg(args, "x")
	y, okY := floatArg(args, "y")
	if !okX || !okY {
		return tools.Fail(CodeInvalidParams, "x and y coordinates are required"), nil
	}

	f := sess.FileByName(imageName)
	if f == nil {
		res := tools.Failf(CodeNotFound, "no uploaded file named %q", imageName)
		if len(sess.UploadedFiles) > 0 {
			names := make([]string, 0, len(sess.UploadedFiles))
			for _, uf := range sess.UploadedFiles {
				names = append(names, uf.Name)
			}
			res.Error.Suggestion = "Uploaded files: " + strings.Join(names, ", ")
		}
		return res, nil
	}
	if !isImageFile(*f) {
		res := tools.Failf(CodeInvalidParams, "%q is not an image", f.Name)
		res.Error.Suggestion = "Questions can only be pinned onto images."
		return res, nil
	}

	man := uploads.NewManager(sess.DataDir)
	ann, added, err := uploads.AddQuestion(man.Abs(f.Path), x, y, question)
	if err != nil {
		return tools.Failf(CodeAnnotationFailed, "failed to annotate %q: %v", f.Name, err), nil
	}

	msg := fmt.Sprintf("Pinned question to %q at (%.0f, %.0f).", f.Name, ann.X, ann.Y)
	if !added {
		msg = fmt.Sprintf("A matching question already exists on %q at (%.0f, %.0f).", f.Name, ann.X, ann.Y)
	}
	return &tools.Result{
		Success: true,
		Message: msg,
		Data: map[string]any{
			"image_name":   f.Name,
			"annotation":   map[string]any{"id": ann.ID, "type": ann.Type, "x": ann.X, "y": ann.Y, "text": ann.Text},
			"deduplicated": !added,
		},
	}, nil
}

func isImageFile(f tools.UploadedFile) bool {
	if f.FileType != "" {
		return f.FileType == uploads.FileTypeImage
	}
	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".png", ".jpg", ".jpeg", ".webp", ".gif", ".bmp":
		return true
	}
	return false
}
