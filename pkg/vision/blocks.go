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

package vision

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/teradata-labs/heddle/pkg/tools"
	"github.com/teradata-labs/heddle/pkg/types"
	"github.com/teradata-labs/heddle/pkg/uploads"
)

// maxPDFPages is how many pages vision models actually read from one
// document block.
const maxPDFPages = 100

// buildBlocks converts stored uploads into LLM content blocks. Oversized
// images are downscaled before encoding; PDFs become document blocks. The
// returned notes flag anything the user should hear about as a doubt.
func buildBlocks(man *uploads.Manager, files []tools.UploadedFile) ([]types.ContentBlock, []string, error) {
	var blocks []types.ContentBlock
	var notes []string

	for _, f := range files {
		path := man.Abs(f.Path)

		switch resolveFileType(f) {
		case uploads.FileTypePDF:
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
			}
			if pages, err := uploads.PDFPageCount(path); err != nil {
				notes = append(notes, fmt.Sprintf(
					"Could not read the page count of %s; the document may be malformed.", f.Name))
			} else if pages > maxPDFPages {
				notes = append(notes, fmt.Sprintf(
					"%s has %d pages; only the first %d were considered.", f.Name, pages, maxPDFPages))
			}
			blocks = append(blocks, types.ContentBlock{
				Type: "document",
				Document: &types.DocumentContent{
					Source: types.DocumentSource{
						Type:      "base64",
						MediaType: "application/pdf",
						Data:      base64.StdEncoding.EncodeToString(raw),
					},
				},
			})

		case uploads.FileTypeImage:
			data, mediaType, err := uploads.PrepareImage(path)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to prepare %s: %w", f.Name, err)
			}
			blocks = append(blocks, types.ContentBlock{
				Type: "image",
				Image: &types.ImageContent{
					Source: types.ImageSource{
						Type:      "base64",
						MediaType: mediaType,
						Data:      base64.StdEncoding.EncodeToString(data),
					},
				},
			})

		default:
			notes = append(notes, fmt.Sprintf(
				"%s has an unrecognized file type and was skipped.", f.Name))
		}
	}

	return blocks, notes, nil
}

// resolveFileType falls back to the file extension when the upload carries
// no explicit type. Unknown extensions resolve to an empty type.
func resolveFileType(f tools.UploadedFile) string {
	if f.FileType != "" {
		return f.FileType
	}
	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".pdf":
		return uploads.FileTypePDF
	case ".png", ".jpg", ".jpeg", ".webp", ".gif", ".bmp":
		return uploads.FileTypeImage
	default:
		return ""
	}
}
