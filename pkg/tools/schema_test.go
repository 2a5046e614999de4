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

package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNormalizeSchema fills nil property maps and infers missing types.
func TestNormalizeSchema(t *testing.T) {
	schema := &JSONSchema{Type: "object"}
	NormalizeSchema(schema)
	assert.NotNil(t, schema.Properties)

	nested := &JSONSchema{
		Type: "object",
		Properties: map[string]*JSONSchema{
			"inner": {Type: "object"},
			"list":  {Items: &JSONSchema{Type: "object"}},
			"level": {Enum: []any{"low", "high"}},
		},
	}
	NormalizeSchema(nested)
	assert.NotNil(t, nested.Properties["inner"].Properties)
	assert.Equal(t, "array", nested.Properties["list"].Type)
	assert.NotNil(t, nested.Properties["list"].Items.Properties)
	assert.Equal(t, "string", nested.Properties["level"].Type)

	assert.Nil(t, NormalizeSchema(nil))
}

// TestSchemaBuilders exercises the fluent construction helpers.
func TestSchemaBuilders(t *testing.T) {
	min, max := 1.0, 50.0
	schema := NewObjectSchema("list workflows", map[string]*JSONSchema{
		"search_query":   NewStringSchema("fuzzy name filter"),
		"limit":          NewIntegerSchema("max results").WithDefault(20).WithRange(&min, &max),
		"include_drafts": NewBooleanSchema("include drafts").WithDefault(false),
		"domain":         NewStringSchema("domain filter").WithEnum("health", "finance"),
		"tags":           NewArraySchema("tag filter", NewStringSchema("tag")),
	}, []string{"search_query"})

	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, []string{"search_query"}, schema.Required)
	assert.Equal(t, 20, schema.Properties["limit"].Default)
	require.NotNil(t, schema.Properties["limit"].Minimum)
	assert.Equal(t, 1.0, *schema.Properties["limit"].Minimum)
	assert.Len(t, schema.Properties["domain"].Enum, 2)
	assert.Equal(t, "string", schema.Properties["tags"].Items.Type)
}

// TestSchemaToMap produces the generic map shape used for MCP inputSchema.
func TestSchemaToMap(t *testing.T) {
	schema := NewObjectSchema("", map[string]*JSONSchema{
		"name": NewStringSchema("workflow name"),
	}, []string{"name"})

	m := schema.ToMap()
	assert.Equal(t, "object", m["type"])
	props, ok := m["properties"].(map[string]any)
	require.True(t, ok)
	name, ok := props["name"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", name["type"])

	raw, err := schema.ToJSON()
	require.NoError(t, err)
	parsed, err := SchemaFromJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, "workflow name", parsed.Properties["name"].Description)
}
