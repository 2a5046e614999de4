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

package prompts

import "context"

// PromptRegistry resolves prompt templates by key.
//
// The production registry is a FileRegistry (compiled-in defaults plus an
// optional override directory); a CachedRegistry can wrap any registry.
type PromptRegistry interface {
	// Get retrieves the default variant of a prompt with variable
	// interpolation. Variables use {{.name}} syntax and untrusted values
	// are hardened before substitution.
	//
	// Example:
	//
	//	note, err := registry.Get(ctx, "orchestrator.session_note", map[string]interface{}{
	//	    "session_id": "sess_a1b2c3d4",
	//	})
	Get(ctx context.Context, key string, vars map[string]interface{}) (string, error)

	// GetWithVariant retrieves a named variant of a prompt.
	//
	// Example:
	//
	//	msg, err := registry.GetWithVariant(ctx, "orchestrator.frame", "failure", nil)
	GetWithVariant(ctx context.Context, key string, variant string, vars map[string]interface{}) (string, error)

	// GetMetadata retrieves prompt metadata without the content.
	GetMetadata(ctx context.Context, key string) (*PromptMetadata, error)

	// List returns all known prompt keys, optionally filtered.
	//
	// Filters:
	//   - "tag": "subagent"
	//   - "prefix": "orchestrator."
	List(ctx context.Context, filters map[string]string) ([]string, error)

	// Reload re-reads prompts from the source.
	Reload(ctx context.Context) error

	// Watch returns a channel receiving updates when prompts change on
	// disk. Only meaningful for registries with a live source.
	Watch(ctx context.Context) (<-chan PromptUpdate, error)
}
