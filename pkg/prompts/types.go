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

// Package prompts externalizes every prompt the assistant sends: the
// orchestrator system prompt, the flowchart analysis schema prompt, the
// guidance-extraction prompt, tool framing messages. Prompts live in YAML
// files with frontmatter; a compiled-in default set ships with the binary
// and an on-disk directory can override any key.
//
// Example usage:
//
//	registry := prompts.NewFileRegistry(cfg.PromptsDir)
//	system, err := registry.Get(ctx, "orchestrator.system", nil)
package prompts

import "time"

// PromptMetadata describes a prompt without its content.
type PromptMetadata struct {
	// Key is the unique identifier, dotted by area.
	// Example: "orchestrator.system", "subagent.analyze"
	Key string

	// Version using semantic versioning (e.g. "1.2.0").
	Version string

	// Author of the prompt (email or username).
	Author string

	// Description of what this prompt does.
	Description string

	// Tags for categorization and search.
	Tags []string

	// Variants available for this key.
	// Example: ["default", "strict"] or ["success", "failure"]
	Variants []string

	// Variables that can be interpolated in the prompt.
	// Example: ["session_id", "count"]
	Variables []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PromptUpdate is a change notification sent on the Watch channel when a
// prompt file is created, modified, or deleted.
type PromptUpdate struct {
	Key       string
	Version   string
	Action    string // "created", "modified", "deleted", "error"
	Timestamp time.Time
	Error     error // set when Action is "error"
}

// PromptContent pairs a prompt's metadata with its raw template text.
type PromptContent struct {
	Metadata PromptMetadata
	Content  string
}
