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

package vision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/pkg/prompts"
	"github.com/teradata-labs/heddle/pkg/tools"
	"github.com/teradata-labs/heddle/pkg/types"
	"github.com/teradata-labs/heddle/pkg/uploads"
)

// jsonTriggers are the feedback phrases that request a full structured
// re-analysis instead of a conversational reply. Matched case-insensitively
// as substrings.
var jsonTriggers = [...]string{
	"json",
	"re-analyze",
	"reanalyze",
	"re-run",
	"rerun",
	"full analysis",
	"updated analysis",
}

// wantsJSON reports whether follow-up feedback asks for the structured
// analysis object.
func wantsJSON(feedback string) bool {
	lower := strings.ToLower(feedback)
	for _, t := range jsonTriggers {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// Config assembles an Analyzer.
type Config struct {
	// Provider makes the vision calls. Give the subagent its own provider
	// instance so usage records carry its caller tag.
	Provider types.LLMProvider
	Prompts  prompts.PromptRegistry
	Uploads  *uploads.Manager
	// Sessions may be shared with the janitor. Nil creates a private store
	// with the default TTL.
	Sessions *SessionStore
	Logger   *zap.Logger
}

// Analyzer converts classified uploads into structured analyses. Safe for
// concurrent use across conversations.
type Analyzer struct {
	provider types.LLMProvider
	prompts  prompts.PromptRegistry
	uploads  *uploads.Manager
	sessions *SessionStore
	logger   *zap.Logger
}

// NewAnalyzer validates the configuration and returns an Analyzer.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Prompts == nil {
		return nil, fmt.Errorf("prompt registry is required")
	}
	if cfg.Uploads == nil {
		return nil, fmt.Errorf("uploads manager is required")
	}
	if cfg.Sessions == nil {
		cfg.Sessions = NewSessionStore(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Analyzer{
		provider: cfg.Provider,
		prompts:  cfg.Prompts,
		uploads:  cfg.Uploads,
		sessions: cfg.Sessions,
		logger:   cfg.Logger,
	}, nil
}

// Sessions exposes the session store so the janitor can sweep it.
func (a *Analyzer) Sessions() *SessionStore {
	return a.sessions
}

// Request asks for a fresh analysis of the attached files, or continues an
// earlier session when SessionID and Feedback are both set.
type Request struct {
	Files     []tools.UploadedFile
	SessionID string
	Feedback  string
}

// Result carries either a structured analysis or, for free-form follow-ups,
// a plain message.
type Result struct {
	SessionID string
	Analysis  *Analysis
	Message   string
}

// Analyze runs the two-phase reading of the attached files. With no files
// it returns a structured analysis whose single doubt asks for an upload.
// With a session id and feedback it continues the stored session instead.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Result, error) {
	if req.SessionID != "" && strings.TrimSpace(req.Feedback) != "" {
		return a.followUp(ctx, req.SessionID, req.Feedback)
	}
	if len(req.Files) == 0 {
		a.logger.Info("Analysis requested without files")
		return &Result{Analysis: MissingFilesAnalysis()}, nil
	}

	// Phase 1: read every guidance-bearing file on its own. A single
	// upload skips this; the schema prompt already collects guidance.
	var p1 phaseOne
	if len(req.Files) > 1 {
		var err error
		p1, err = a.collectGuidance(ctx, req.Files)
		if err != nil {
			return nil, err
		}
	}

	chartFiles := analysisFiles(req.Files)
	if len(chartFiles) == 0 {
		a.logger.Info("Only guidance files attached, skipping analysis call",
			zap.Int("guidance_notes", len(p1.notes)))
		analysis := MissingFilesAnalysis()
		analysis.Guidance = p1.notes
		analysis.Doubts = append(analysis.Doubts, p1.doubts...)
		analysis.Reasoning = joinThinking(p1.thinking)
		return &Result{Analysis: analysis}, nil
	}

	blocks, blockNotes, err := buildBlocks(a.uploads, chartFiles)
	if err != nil {
		return nil, err
	}

	system, err := a.prompts.Get(ctx, "subagent.analyze", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to render analysis prompt: %w", err)
	}
	if len(p1.notes) > 0 {
		system += "\n\n" + renderGuidance(p1.notes)
	}

	names := make([]string, len(chartFiles))
	for i, f := range chartFiles {
		names[i] = f.Name
	}
	msgs := []types.Message{
		{Role: "system", Content: system, Timestamp: time.Now()},
		{
			Role:          "user",
			Content:       "Attached files: " + strings.Join(names, ", ") + ". Read them and return the JSON object.",
			ContentBlocks: blocks,
			Timestamp:     time.Now(),
		},
	}

	a.logger.Info("Starting flowchart analysis",
		zap.Int("files", len(chartFiles)),
		zap.Int("guidance_notes", len(p1.notes)))

	analysis, history, thinking, err := a.chatForAnalysis(ctx, msgs)
	if err != nil {
		return nil, err
	}

	// Phase-1 notes come first so later readers see document guidance
	// before anything the chart call added.
	analysis.Guidance = append(append([]GuidanceNote{}, p1.notes...), analysis.Guidance...)
	analysis.Doubts = append(analysis.Doubts, p1.doubts...)
	analysis.Doubts = append(analysis.Doubts, blockNotes...)
	analysis.Reasoning = joinThinking(append(p1.thinking, thinking...))
	analysis.Normalize()

	sess := &Session{
		ID:       NewSessionID(),
		Messages: history,
		Analysis: analysis,
		Files:    chartFiles,
	}
	a.sessions.Put(sess)

	a.logger.Info("Analysis complete",
		zap.String("session_id", sess.ID),
		zap.Int("variables", len(analysis.Variables)),
		zap.Int("tree_nodes", len(analysis.Tree)),
		zap.Int("doubts", len(analysis.Doubts)))

	return &Result{SessionID: sess.ID, Analysis: analysis}, nil
}

// phaseOne accumulates what the guidance-extraction calls produced.
type phaseOne struct {
	notes    []GuidanceNote
	doubts   []string
	thinking []string
}

// collectGuidance issues one extraction call per guidance or mixed file, in
// upload order. Every call completes before the analysis call starts.
func (a *Analyzer) collectGuidance(ctx context.Context, files []tools.UploadedFile) (phaseOne, error) {
	var p1 phaseOne

	for _, f := range files {
		if f.Purpose != tools.PurposeGuidance && f.Purpose != tools.PurposeMixed {
			continue
		}

		prompt, err := a.prompts.Get(ctx, "subagent.guidance", map[string]interface{}{
			"file_name": f.Name,
		})
		if err != nil {
			return phaseOne{}, fmt.Errorf("failed to render guidance prompt: %w", err)
		}

		blocks, _, err := buildBlocks(a.uploads, []tools.UploadedFile{f})
		if err != nil {
			return phaseOne{}, err
		}

		msgs := []types.Message{
			{Role: "system", Content: prompt, Timestamp: time.Now()},
			{
				Role:          "user",
				Content:       "Extract the guidance from this file.",
				ContentBlocks: blocks,
				Timestamp:     time.Now(),
			},
		}

		resp, err := a.provider.Chat(ctx, msgs, nil)
		if err != nil {
			return phaseOne{}, fmt.Errorf("guidance extraction for %s failed: %w", f.Name, err)
		}
		if resp.Thinking != "" {
			p1.thinking = append(p1.thinking, resp.Thinking)
		}

		notes, perr := parseGuidance(resp.Content)
		if perr != nil {
			a.logger.Warn("Guidance reply was not valid JSON",
				zap.String("file", f.Name), zap.Error(perr))
			p1.doubts = append(p1.doubts, fmt.Sprintf(
				"Guidance could not be extracted from %s; review that file manually.", f.Name))
			continue
		}

		a.logger.Info("Extracted guidance",
			zap.String("file", f.Name), zap.Int("notes", len(notes)))
		p1.notes = append(p1.notes, notes...)
	}

	return p1, nil
}

// analysisFiles picks the files the combined analysis call looks at:
// flowchart and mixed uploads, plus anything never classified.
func analysisFiles(files []tools.UploadedFile) []tools.UploadedFile {
	var out []tools.UploadedFile
	for _, f := range files {
		switch f.Purpose {
		case tools.PurposeGuidance:
		default:
			out = append(out, f)
		}
	}
	// A single upload is always worth looking at, whatever it was
	// classified as.
	if len(out) == 0 && len(files) == 1 {
		return files
	}
	return out
}

// chatForAnalysis sends the messages and parses the reply into an Analysis,
// retrying once with a stricter instruction when the reply is not JSON. It
// returns the history including assistant replies, for session storage.
func (a *Analyzer) chatForAnalysis(ctx context.Context, msgs []types.Message) (*Analysis, []types.Message, []string, error) {
	var thinking []string

	resp, err := a.provider.Chat(ctx, msgs, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("analysis call failed: %w", err)
	}
	if resp.Thinking != "" {
		thinking = append(thinking, resp.Thinking)
	}
	msgs = append(msgs, assistantMessage(resp))

	analysis, perr := ParseAnalysis(resp.Content)
	if perr == nil {
		return analysis, msgs, thinking, nil
	}

	a.logger.Warn("Analysis reply was not valid JSON, retrying once", zap.Error(perr))
	retry, err := a.prompts.Get(ctx, "subagent.retry", nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to render retry prompt: %w", err)
	}
	msgs = append(msgs, types.Message{Role: "user", Content: retry, Timestamp: time.Now()})

	resp, err = a.provider.Chat(ctx, msgs, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("analysis retry call failed: %w", err)
	}
	if resp.Thinking != "" {
		thinking = append(thinking, resp.Thinking)
	}
	msgs = append(msgs, assistantMessage(resp))

	analysis, perr = ParseAnalysis(resp.Content)
	if perr != nil {
		return nil, nil, nil, fmt.Errorf("analysis reply was not valid JSON after one retry: %w", perr)
	}
	return analysis, msgs, thinking, nil
}

// followUp continues a stored session with user feedback. JSON-trigger
// phrases produce a fresh normalized analysis; anything else comes back as
// a plain message.
func (a *Analyzer) followUp(ctx context.Context, sessionID, feedback string) (*Result, error) {
	sess, ok := a.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("analysis session %s not found or expired", sessionID)
	}

	instr, err := a.prompts.Get(ctx, "subagent.followup", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to render follow-up prompt: %w", err)
	}

	msgs := make([]types.Message, len(sess.Messages), len(sess.Messages)+2)
	copy(msgs, sess.Messages)
	msgs = append(msgs, types.Message{
		Role:      "user",
		Content:   instr + "\n\nFeedback:\n" + feedback,
		Timestamp: time.Now(),
	})

	a.logger.Info("Continuing analysis session",
		zap.String("session_id", sessionID),
		zap.Bool("wants_json", wantsJSON(feedback)))

	if !wantsJSON(feedback) {
		resp, err := a.provider.Chat(ctx, msgs, nil)
		if err != nil {
			return nil, fmt.Errorf("follow-up call failed: %w", err)
		}
		sess.Messages = append(msgs, assistantMessage(resp))
		a.sessions.Put(sess)
		return &Result{SessionID: sess.ID, Message: resp.Content}, nil
	}

	analysis, history, thinking, err := a.chatForAnalysis(ctx, msgs)
	if err != nil {
		return nil, err
	}
	analysis.Reasoning = joinThinking(thinking)
	analysis.Normalize()

	sess.Messages = history
	sess.Analysis = analysis
	a.sessions.Put(sess)

	return &Result{SessionID: sess.ID, Analysis: analysis}, nil
}

// renderGuidance formats collected notes for injection into the analysis
// prompt.
func renderGuidance(notes []GuidanceNote) string {
	var b strings.Builder
	b.WriteString("Guidance extracted from the accompanying documents. Honor it when reading the chart and carry it into the \"guidance\" array:\n")
	for _, g := range notes {
		b.WriteString("- ")
		if g.Location != "" {
			fmt.Fprintf(&b, "[%s] ", g.Location)
		}
		b.WriteString(g.Text)
		if g.Category != "" {
			fmt.Fprintf(&b, " (%s)", g.Category)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinThinking(thinking []string) string {
	var parts []string
	for _, t := range thinking {
		if strings.TrimSpace(t) != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

func assistantMessage(resp *types.LLMResponse) types.Message {
	return types.Message{Role: "assistant", Content: resp.Content, Timestamp: time.Now()}
}
