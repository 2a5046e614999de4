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
	"bytes"
	"fmt"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"os"

	"github.com/disintegration/imageorient"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Vision models cap useful resolution around 1568px on the long edge and
// reject request bodies past a few megabytes per image.
const (
	MaxImageDimension = 1568
	MaxImageBytes     = 5 * 1024 * 1024
)

// PrepareImage loads a stored image and returns the bytes and media type to
// place in an LLM image block. Files within the dimension and size limits
// pass through byte-for-byte; oversized ones are decoded with EXIF
// orientation applied, downscaled to fit MaxImageDimension, and re-encoded.
func PrepareImage(path string) ([]byte, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}

	img, format, err := imageorient.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= MaxImageDimension && bounds.Dy() <= MaxImageDimension && len(raw) <= MaxImageBytes {
		return raw, "image/" + format, nil
	}

	img = resize.Thumbnail(MaxImageDimension, MaxImageDimension, img, resize.Lanczos3)

	// JPEG sources stay JPEG so photographed whiteboards keep compressing
	// well; everything else becomes PNG, which keeps line art crisp.
	var buf bytes.Buffer
	if format == "jpeg" {
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			return nil, "", fmt.Errorf("failed to encode image: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	}
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}
