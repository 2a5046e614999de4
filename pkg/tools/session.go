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
	"encoding/json"

	"github.com/teradata-labs/heddle/pkg/workflow/store"
)

// File purposes assigned by classification.
const (
	PurposeUnclassified = "unclassified"
	PurposeFlowchart    = "flowchart"
	PurposeGuidance     = "guidance"
	PurposeMixed        = "mixed"
)

// UploadedFile describes one user upload available to the session.
type UploadedFile struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	FileType string `json:"file_type,omitempty"`
	Purpose  string `json:"purpose,omitempty"`
}

// SessionState is the per-conversation context handed to every tool
// invocation. The json tags define the wire shape used when a call crosses
// the MCP transport; runtime capabilities are injected by the host process
// and never serialized.
type SessionState struct {
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`

	// WorkflowID is the workflow currently bound to the conversation.
	WorkflowID string `json:"workflow_id,omitempty"`

	// Analysis mirrors the most recent workflow analysis payload (nodes,
	// edges, variables, tree, doubts, reasoning, guidance) so the canvas
	// can be reconciled after a tool call returns.
	Analysis map[string]any `json:"analysis,omitempty"`

	// LastSessionID names the most recent vision analysis session. Follow-up
	// feedback rounds continue that session instead of starting over.
	LastSessionID string `json:"last_session_id,omitempty"`

	UploadedFiles []UploadedFile `json:"uploaded_files,omitempty"`

	// Store is the workflow library the tools read and write.
	Store store.Store `json:"-"`

	// DataDir is the root directory for uploads and annotation sidecars.
	DataDir string `json:"-"`
}

// FileByName returns a pointer to the uploaded file with the given name so
// callers can update its classification in place, or nil if no upload has
// that name.
func (s *SessionState) FileByName(name string) *UploadedFile {
	if s == nil {
		return nil
	}
	for i := range s.UploadedFiles {
		if s.UploadedFiles[i].Name == name {
			return &s.UploadedFiles[i]
		}
	}
	return nil
}

// FilesByPurpose returns the uploaded files classified with the given
// purpose, preserving upload order.
func (s *SessionState) FilesByPurpose(purpose string) []UploadedFile {
	if s == nil {
		return nil
	}
	var out []UploadedFile
	for _, f := range s.UploadedFiles {
		if f.Purpose == purpose {
			out = append(out, f)
		}
	}
	return out
}

// ToMap flattens the serializable fields into a plain map for transport.
func (s *SessionState) ToMap() map[string]any {
	if s == nil {
		return nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// SessionStateFromMap reconstructs a SessionState from its wire shape.
// Unknown keys are ignored; runtime capabilities are left unset.
func SessionStateFromMap(m map[string]any) *SessionState {
	s := &SessionState{}
	if len(m) == 0 {
		return s
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return s
	}
	_ = json.Unmarshal(raw, s)
	return s
}

// ApplyResultData reconciles the session from a successful tool result.
//
// Tools report their session mutations through result data so the caller
// can observe them regardless of transport: in direct mode the tool already
// mutated this session and reapplying is a no-op, in remote mode the tool
// mutated a reconstruction that was discarded with the call. Recognized
// keys: workflow_id, workflow_analysis, session_id, and classified (a list
// of {file_name, purpose} applied to the uploaded files).
func ApplyResultData(sess *SessionState, res *Result) {
	if sess == nil || res == nil || !res.Success || len(res.Data) == 0 {
		return
	}

	if id, ok := res.Data["workflow_id"].(string); ok && id != "" {
		sess.WorkflowID = id
	}
	if analysis, ok := res.Data["workflow_analysis"].(map[string]any); ok {
		sess.Analysis = analysis
	}
	if id, ok := res.Data["session_id"].(string); ok && id != "" {
		sess.LastSessionID = id
	}
	if classified, ok := res.Data["classified"].([]any); ok {
		for _, raw := range classified {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			name, _ := entry["file_name"].(string)
			purpose, _ := entry["purpose"].(string)
			if f := sess.FileByName(name); f != nil && purpose != "" {
				f.Purpose = purpose
			}
		}
	}
}
