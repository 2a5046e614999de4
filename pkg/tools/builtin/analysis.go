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

package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teradata-labs/heddle/pkg/tools"
	"github.com/teradata-labs/heddle/pkg/vision"
)

// AnalyzeWorkflowTool reads the session's uploaded files into a structured
// workflow analysis. With a session id and feedback it continues the stored
// analysis session instead of starting over.
type AnalyzeWorkflowTool struct {
	analyzer *vision.Analyzer
}

func NewAnalyzeWorkflowTool(analyzer *vision.Analyzer) *AnalyzeWorkflowTool {
	return &AnalyzeWorkflowTool{analyzer: analyzer}
}

func (t *AnalyzeWorkflowTool) Name() string      { return "analyze_workflow" }
func (t *AnalyzeWorkflowTool) Aliases() []string { return []string{"analyze_files"} }

func (t *AnalyzeWorkflowTool) Description() string {
	return "Analyze the uploaded flowchart images and guidance documents " +
		"into variables, outputs, and a decision tree. Pass feedback to " +
		"refine an earlier analysis; the previous session is reused unless " +
		"session_id says otherwise."
}

func (t *AnalyzeWorkflowTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for analyzing uploads",
		map[string]*tools.JSONSchema{
			"session_id": tools.NewStringSchema("Analysis session to continue. Defaults to the most recent one when feedback is set."),
			"feedback":   tools.NewStringSchema("Correction or question about the previous analysis."),
		},
		nil,
	)
}

func (t *AnalyzeWorkflowTool) Execute(ctx context.Context, args map[string]any, sess *tools.SessionState) (*tools.Result, error) {
	if sess == nil {
		return tools.Fail(CodeInvalidParams, "no session attached to this call"), nil
	}

	sessionID := strArg(args, "session_id")
	feedback := strArg(args, "feedback")
	if feedback != "" && sessionID == "" {
		sessionID = sess.LastSessionID
	}

	res, err := t.analyzer.Analyze(ctx, vision.Request{
		Files:     sess.UploadedFiles,
		SessionID: sessionID,
		Feedback:  feedback,
	})
	if err != nil {
		fail := tools.Failf(CodeAnalysisFailed, "analysis failed: %v", err)
		fail.Error.Retryable = true
		return fail, nil
	}

	if res.SessionID != "" {
		sess.LastSessionID = res.SessionID
	}

	data := map[string]any{"session_id": res.SessionID}
	if res.Analysis == nil {
		return &tools.Result{Success: true, Message: res.Message, Data: data}, nil
	}

	m := analysisMap(res.Analysis)
	sess.Analysis = m
	data["workflow_analysis"] = m

	msg := fmt.Sprintf("Analysis ready: %d variable(s), %d output(s), %d tree node(s).",
		len(res.Analysis.Variables), len(res.Analysis.Outputs), len(res.Analysis.Tree))
	if n := len(res.Analysis.Doubts); n > 0 {
		msg += fmt.Sprintf(" %d open question(s) need the user's input.", n)
	}
	return &tools.Result{Success: true, Message: msg, Data: data}, nil
}

// ClassifyFilesTool records what each uploaded file is for, steering which
// files the analyzer reads as charts and which as guidance.
type ClassifyFilesTool struct{}

func NewClassifyFilesTool() *ClassifyFilesTool { return &ClassifyFilesTool{} }

func (t *ClassifyFilesTool) Name() string      { return "classify_uploaded_files" }
func (t *ClassifyFilesTool) Aliases() []string { return []string{"classify_files"} }

func (t *ClassifyFilesTool) Description() string {
	return "Mark each uploaded file as flowchart, guidance, mixed, or " +
		"unclassified. Guidance files are read for rules before the charts " +
		"are analyzed."
}

func (t *ClassifyFilesTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for classifying uploads",
		map[string]*tools.JSONSchema{
			"classifications": tools.NewArraySchema(
				"One entry per file.",
				tools.NewObjectSchema("A file and its purpose.", map[string]*tools.JSONSchema{
					"file_name": tools.NewStringSchema("Uploaded file name."),
					"purpose": tools.NewStringSchema("What the file is for.").
						WithEnum(tools.PurposeFlowchart, tools.PurposeGuidance, tools.PurposeMixed, tools.PurposeUnclassified),
				}, []string{"file_name", "purpose"}),
			),
		},
		[]string{"classifications"},
	)
}

func (t *ClassifyFilesTool) Execute(ctx context.Context, args map[string]any, sess *tools.SessionState) (*tools.Result, error) {
	if sess == nil {
		return tools.Fail(CodeInvalidParams, "no session attached to this call"), nil
	}
	entries, ok := args["classifications"].([]any)
	if !ok || len(entries) == 0 {
		return tools.Fail(CodeInvalidParams, "classifications must be a non-empty array"), nil
	}

	var classified []map[string]any
	var unknown []string
	for i, raw := range entries {
		m, ok := raw.(map[string]any)
		if !ok {
			return tools.Failf(CodeInvalidParams, "classification %d is not an object", i), nil
		}
		name := strArg(m, "file_name")
		purpose := strings.ToLower(strArg(m, "purpose"))
		if name == "" || purpose == "" {
			return tools.Failf(CodeInvalidParams, "classification %d needs file_name and purpose", i), nil
		}
		switch purpose {
		case tools.PurposeFlowchart, tools.PurposeGuidance, tools.PurposeMixed, tools.PurposeUnclassified:
		default:
			res := tools.Failf(CodeInvalidParams, "purpose %q is not valid", purpose)
			res.Error.Suggestion = "Use one of: flowchart, guidance, mixed, unclassified."
			return res, nil
		}

		f := sess.FileByName(name)
		if f == nil {
			unknown = append(unknown, name)
			continue
		}
		f.Purpose = purpose
		classified = append(classified, map[string]any{"file_name": f.Name, "purpose": f.Purpose})
	}

	if len(classified) == 0 {
		res := tools.Failf(CodeNotFound, "none of the named files are uploaded: %s", strings.Join(unknown, ", "))
		res.Error.Suggestion = "Use the exact names from the uploaded files list."
		return res, nil
	}

	data := map[string]any{"classified": classified}
	if len(unknown) > 0 {
		data["unknown_files"] = unknown
	}
	msg := fmt.Sprintf("Classified %d file(s).", len(classified))
	if len(unknown) > 0 {
		msg += fmt.Sprintf(" %d name(s) did not match any upload.", len(unknown))
	}
	return &tools.Result{Success: true, Message: msg, Data: data}, nil
}

// PublishAnalysisTool pushes a stored analysis session's result into the
// conversation so the canvas and later edits can build on it.
type PublishAnalysisTool struct {
	sessions *vision.SessionStore
}

func NewPublishAnalysisTool(sessions *vision.SessionStore) *PublishAnalysisTool {
	return &PublishAnalysisTool{sessions: sessions}
}

func (t *PublishAnalysisTool) Name() string      { return "publish_latest_analysis" }
func (t *PublishAnalysisTool) Aliases() []string { return []string{"publish_analysis"} }

func (t *PublishAnalysisTool) Description() string {
	return "Publish the analysis from an earlier analyze_workflow session. " +
		"Defaults to the most recent session in this conversation."
}

func (t *PublishAnalysisTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for publishing an analysis",
		map[string]*tools.JSONSchema{
			"session_id": tools.NewStringSchema("Analysis session to publish. Defaults to the most recent one."),
		},
		nil,
	)
}

func (t *PublishAnalysisTool) Execute(ctx context.Context, args map[string]any, sess *tools.SessionState) (*tools.Result, error) {
	if sess == nil {
		return tools.Fail(CodeInvalidParams, "no session attached to this call"), nil
	}
	sessionID := strArg(args, "session_id")
	if sessionID == "" {
		sessionID = sess.LastSessionID
	}
	if sessionID == "" {
		res := tools.Fail(CodeInvalidParams, "no analysis session to publish")
		res.Error.Suggestion = "Run analyze_workflow first."
		return res, nil
	}

	vs, ok := t.sessions.Get(sessionID)
	if !ok {
		res := tools.Failf(CodeNotFound, "analysis session %s not found or expired", sessionID)
		res.Error.Suggestion = "Run analyze_workflow again to start a fresh session."
		return res, nil
	}
	if vs.Analysis == nil {
		res := tools.Failf(CodeNotFound, "session %s has no completed analysis", sessionID)
		res.Error.Suggestion = "Run analyze_workflow to completion first."
		return res, nil
	}

	m := analysisMap(vs.Analysis)
	sess.Analysis = m
	sess.LastSessionID = sessionID
	return &tools.Result{
		Success: true,
		Message: fmt.Sprintf("Published the analysis from session %s.", sessionID),
		Data: map[string]any{
			"session_id":        sessionID,
			"workflow_analysis": m,
		},
	}, nil
}

func analysisMap(a *vision.Analysis) map[string]any {
	raw, err := json.Marshal(a)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}
