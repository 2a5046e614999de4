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

package store

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/teradata-labs/heddle/pkg/workflow"
)

// compressionThreshold is the minimum serialized size in bytes before the
// definition blob is compressed.
const compressionThreshold = 1024

var (
	// Encoder and decoder are reusable and safe for concurrent use with
	// EncodeAll/DecodeAll.
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// encodeDefinition serializes a workflow for the definition column. Blobs
// at or above the threshold are zstd-compressed when that actually shrinks
// them; the flag records which form was stored.
func encodeDefinition(w *workflow.Workflow) (data []byte, compressed bool, err error) {
	raw, err := json.Marshal(w)
	if err != nil {
		return nil, false, fmt.Errorf("marshal workflow %s: %w", w.ID, err)
	}
	if len(raw) >= compressionThreshold {
		packed := zstdEncoder.EncodeAll(raw, nil)
		if len(packed) < len(raw) {
			return packed, true, nil
		}
	}
	return raw, false, nil
}

// decodeDefinition reverses encodeDefinition.
func decodeDefinition(data []byte, compressed bool) (*workflow.Workflow, error) {
	raw := data
	if compressed {
		var err error
		raw, err = zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress workflow definition: %w", err)
		}
	}
	var w workflow.Workflow
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("unmarshal workflow definition: %w", err)
	}
	return &w, nil
}
