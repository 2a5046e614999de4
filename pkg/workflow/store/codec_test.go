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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/heddle/pkg/workflow"
)

func TestCodec_SmallWorkflowStaysUncompressed(t *testing.T) {
	w := workflow.New("u", "Tiny", "string")

	data, compressed, err := encodeDefinition(w)
	require.NoError(t, err)
	assert.False(t, compressed)

	got, err := decodeDefinition(data, compressed)
	require.NoError(t, err)
	assert.Equal(t, w.ID, got.ID)
}

func TestCodec_LargeWorkflowCompresses(t *testing.T) {
	w := workflow.New("u", "Big", "string")
	for i := 0; i < 200; i++ {
		w.Nodes = append(w.Nodes, workflow.Node{
			ID:    fmt.Sprintf("node_%08d", i),
			Type:  workflow.NodeProcess,
			Label: fmt.Sprintf("Step %d with a reasonably descriptive label", i),
		})
	}

	data, compressed, err := encodeDefinition(w)
	require.NoError(t, err)
	assert.True(t, compressed, "repetitive node JSON well past the threshold should shrink")

	got, err := decodeDefinition(data, compressed)
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 200)
	assert.Equal(t, w.Nodes[123].Label, got.Nodes[123].Label)
}
