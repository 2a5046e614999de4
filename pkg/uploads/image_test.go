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
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestPrepareImage_SmallPassesThrough(t *testing.T) {
	raw := encodePNG(t, 40, 30)
	path := writeFile(t, "small.png", raw)

	got, mediaType, err := PrepareImage(path)
	require.NoError(t, err)

	assert.Equal(t, "image/png", mediaType)
	assert.Equal(t, raw, got, "in-bounds image should not be re-encoded")
}

func TestPrepareImage_DownscalesWide(t *testing.T) {
	path := writeFile(t, "wide.png", encodePNG(t, 2*MaxImageDimension, 40))

	got, mediaType, err := PrepareImage(path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mediaType)

	img, format, err := image.Decode(bytes.NewReader(got))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, MaxImageDimension, img.Bounds().Dx())
	assert.LessOrEqual(t, img.Bounds().Dy(), 40)
}

func TestPrepareImage_DownscalesTall(t *testing.T) {
	path := writeFile(t, "tall.png", encodePNG(t, 40, MaxImageDimension+200))

	got, _, err := PrepareImage(path)
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(got))
	require.NoError(t, err)
	assert.LessOrEqual(t, img.Bounds().Dx(), 40)
	assert.Equal(t, MaxImageDimension, img.Bounds().Dy())
}

func TestPrepareImage_JPEGStaysJPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, MaxImageDimension+100, 60))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, &jpeg.Options{Quality: 90}))
	path := writeFile(t, "photo.jpg", buf.Bytes())

	got, mediaType, err := PrepareImage(path)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mediaType)

	_, format, err := image.Decode(bytes.NewReader(got))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestPrepareImage_MissingFile(t *testing.T) {
	_, _, err := PrepareImage(filepath.Join(t.TempDir(), "absent.png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read image")
}

func TestPrepareImage_Corrupt(t *testing.T) {
	path := writeFile(t, "corrupt.png", []byte("not an image at all"))

	_, _, err := PrepareImage(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode image")
}
