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

// Package uploads stores user-supplied flowchart images and PDFs. Files
// arrive as data-URLs and are written under <data_dir>/uploads with random
// names; each image can carry an adjacent annotations sidecar, and a cron
// janitor removes files once their retention window lapses.
package uploads

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// File types reported for stored uploads.
const (
	FileTypeImage = "image"
	FileTypePDF   = "pdf"
)

// SubdirName is the directory under the data dir where uploads land.
const SubdirName = "uploads"

// extensions maps each recognised media type to its on-disk extension.
var extensions = map[string]string{
	"image/png":       "png",
	"image/jpeg":      "jpg",
	"image/webp":      "webp",
	"image/gif":       "gif",
	"image/bmp":       "bmp",
	"application/pdf": "pdf",
}

func randomHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewFileID allocates an upload identifier of the form file_<8 hex>.
func NewFileID() string {
	return "file_" + randomHex()[:8]
}

// Saved describes one stored upload.
type Saved struct {
	// ID is the upload identifier, file_<8 hex>. The stored file name
	// starts with the same 8 hex characters.
	ID string
	// RelPath locates the file relative to the data dir, e.g.
	// uploads/3f2a9c1e...a4.png.
	RelPath string
	AbsPath string
	// MediaType is the declared type from the data URL, e.g. image/png.
	MediaType string
	// FileType is image or pdf.
	FileType string
	Size     int64
}

// Manager writes uploads beneath a single data directory.
type Manager struct {
	dataDir string
}

// NewManager returns a Manager rooted at dataDir.
func NewManager(dataDir string) *Manager {
	return &Manager{dataDir: dataDir}
}

// Dir returns the uploads directory.
func (m *Manager) Dir() string {
	return filepath.Join(m.dataDir, SubdirName)
}

// Abs resolves a stored relative path against the data dir. Absolute paths
// pass through unchanged.
func (m *Manager) Abs(relPath string) string {
	if filepath.IsAbs(relPath) {
		return relPath
	}
	return filepath.Join(m.dataDir, relPath)
}

// SaveDataURL decodes a data:<media>;base64,<payload> URL and writes the
// payload under <data_dir>/uploads/<random>.<ext>. Recognised media types
// are image/png, image/jpeg, image/webp, image/gif, image/bmp, and
// application/pdf.
func (m *Manager) SaveDataURL(dataURL string) (*Saved, error) {
	mediaType, payload, err := ParseDataURL(dataURL)
	if err != nil {
		return nil, err
	}

	ext, ok := extensions[mediaType]
	if !ok {
		return nil, fmt.Errorf("unsupported media type %q", mediaType)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode upload payload: %w", err)
	}

	dir := m.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	hex := randomHex()
	fileName := hex + "." + ext
	absPath := filepath.Join(dir, fileName)
	if err := os.WriteFile(absPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}

	fileType := FileTypeImage
	if mediaType == "application/pdf" {
		fileType = FileTypePDF
	}

	return &Saved{
		ID:        "file_" + hex[:8],
		RelPath:   filepath.Join(SubdirName, fileName),
		AbsPath:   absPath,
		MediaType: mediaType,
		FileType:  fileType,
		Size:      int64(len(data)),
	}, nil
}

// ParseDataURL splits a data:<media>;base64,<payload> URL into its media
// type and undecoded payload. Parameters between the media type and the
// base64 marker are tolerated and ignored.
func ParseDataURL(dataURL string) (mediaType, payload string, err error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", "", fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", fmt.Errorf("malformed data URL: no payload separator")
	}

	params := strings.Split(meta, ";")
	mediaType = strings.ToLower(strings.TrimSpace(params[0]))
	if mediaType == "" {
		return "", "", fmt.Errorf("malformed data URL: empty media type")
	}
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			return mediaType, payload, nil
		}
	}
	return "", "", fmt.Errorf("data URL for %s is not base64-encoded", mediaType)
}
