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

package prompts_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/teradata-labs/heddle/pkg/prompts"
)

func ExampleFileRegistry() {
	tmpDir, err := os.MkdirTemp("", "prompts-example-")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	promptContent := `---
key: flows.greeting
version: 1.0.0
description: Greeting shown when a workflow is opened
tags: [flows]
variants: [default]
variables: [workflow_name, node_count]
---
Workflow "{{.workflow_name}}" is loaded with {{.node_count}} nodes.`

	flowsDir := filepath.Join(tmpDir, "flows")
	if err := os.MkdirAll(flowsDir, 0o755); err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(flowsDir, "greeting.yaml"), []byte(promptContent), 0o644); err != nil {
		log.Fatal(err)
	}

	registry := prompts.NewFileRegistry(tmpDir)
	ctx := context.Background()
	if err := registry.Reload(ctx); err != nil {
		log.Fatal(err)
	}

	prompt, err := registry.Get(ctx, "flows.greeting", map[string]interface{}{
		"workflow_name": "loan approval",
		"node_count":    7,
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(prompt)
	// Output:
	// Workflow "loan approval" is loaded with 7 nodes.
}

func ExampleFileRegistry_embeddedDefaults() {
	// An empty directory serves the compiled-in prompt set.
	registry := prompts.NewFileRegistry("")

	note, err := registry.Get(context.Background(), "orchestrator.session_note", map[string]interface{}{
		"session_id": "sess_a1b2c3d4",
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(note[:48])
	// Output:
	// The most recent image analysis ran in session se
}
