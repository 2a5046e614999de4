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

// Package agent drives user turns to completion: it composes the system
// prompt, streams model output, dispatches tool calls through the local or
// remote registry, reconciles session state from tool results, and enforces
// the per-turn safety budgets.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/pkg/prompts"
	"github.com/teradata-labs/heddle/pkg/tools"
	"github.com/teradata-labs/heddle/pkg/types"
	"github.com/teradata-labs/heddle/pkg/workflow/store"
)

const (
	// defaultMaxIterations bounds the LLM round-trips in one turn.
	defaultMaxIterations = 50

	// streamChunkSize is how many runes of a non-streamed response are
	// emitted per callback invocation.
	streamChunkSize = 800
)

// ErrIterationBudget marks a turn that hit the round-trip cap.
var ErrIterationBudget = errors.New("iteration budget exhausted")

// Tool lifecycle event types delivered to the OnToolEvent callback.
const (
	EventToolStart     = "tool_start"
	EventToolComplete  = "tool_complete"
	EventToolSkipped   = "tool_skipped"
	EventBatchComplete = "tool_batch_complete"
)

// ToolEvent reports one step of tool dispatch within a turn.
type ToolEvent struct {
	Type     string         `json:"type"`
	ToolName string         `json:"tool_name,omitempty"`
	Args     map[string]any `json:"args,omitempty"`
	Result   *ToolResult    `json:"result,omitempty"`
}

// ToolEventCallback receives tool lifecycle events. Implementations must be
// fast; they run on the turn's goroutine.
type ToolEventCallback func(ToolEvent)

// ToolResult is a tool outcome with the tool's name attached, the shape
// handed to event callbacks and returned by RunTool.
type ToolResult struct {
	Name            string           `json:"name"`
	Success         bool             `json:"success"`
	Data            map[string]any   `json:"data,omitempty"`
	Message         string           `json:"message,omitempty"`
	Error           *tools.ToolError `json:"error,omitempty"`
	ExecutionTimeMs int64            `json:"execution_time_ms,omitempty"`
}

func newToolResult(name string, res *tools.Result) *ToolResult {
	if res == nil {
		res = &tools.Result{Success: true}
	}
	return &ToolResult{
		Name:            name,
		Success:         res.Success,
		Data:            res.Data,
		Message:         res.Message,
		Error:           res.Error,
		ExecutionTimeMs: res.ExecutionTimeMs,
	}
}

// Turn is one user message plus the callbacks and switches for handling it.
type Turn struct {
	// Message is the user's text for this turn.
	Message string

	// HasFiles marks that uploads were attached to this turn.
	HasFiles bool

	// AllowTools exposes the tool catalogue to the model. When false the
	// model is asked for plain text only.
	AllowTools bool

	// OnToken receives streamed text fragments. Optional.
	OnToken types.TokenCallback

	// OnToolEvent receives tool lifecycle events. Optional.
	OnToolEvent ToolEventCallback
}

// Config assembles an Orchestrator.
type Config struct {
	ConversationID string
	UserID         string

	// Provider is the LLM the orchestrator converses with. Streaming is
	// used when the provider supports it.
	Provider types.LLMProvider

	// Dispatcher routes tool calls to the in-process registry or a remote
	// MCP server.
	Dispatcher *Dispatcher

	// Prompts serves the orchestrator's prompt sections.
	Prompts prompts.PromptRegistry

	// Store is the workflow library attached to the session. Nil in remote
	// mode, where the library lives behind the MCP server.
	Store store.Store

	// DataDir is the root for uploads and annotation sidecars.
	DataDir string

	Logger *zap.Logger

	// HistoryBudget is the token budget for the dispatch window.
	// Zero means the default of 100k tokens.
	HistoryBudget int

	// MaxIterations caps LLM round-trips per turn. Zero means 50.
	MaxIterations int
}

// Orchestrator owns one conversation: its history, its session state, and
// the turn loop. Respond is not re-entrant; concurrent turns on the same
// conversation serialize on an internal mutex.
type Orchestrator struct {
	provider   types.LLMProvider
	dispatcher *Dispatcher
	prompts    prompts.PromptRegistry
	logger     *zap.Logger
	window     *historyWindow
	maxIter    int

	mu            sync.Mutex
	history       []types.Message
	sess          *tools.SessionState
	workflowState map[string]any
}

// NewOrchestrator wires an orchestrator for one conversation.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Provider == nil {
		return nil, errors.New("provider is required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if cfg.Prompts == nil {
		return nil, errors.New("prompts registry is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}

	return &Orchestrator{
		provider:   cfg.Provider,
		dispatcher: cfg.Dispatcher,
		prompts:    cfg.Prompts,
		logger:     cfg.Logger,
		window:     newHistoryWindow(cfg.HistoryBudget),
		maxIter:    cfg.MaxIterations,
		sess: &tools.SessionState{
			ConversationID: cfg.ConversationID,
			UserID:         cfg.UserID,
			Store:          cfg.Store,
			DataDir:        cfg.DataDir,
		},
	}, nil
}

// Session exposes the orchestrator's session state for host wiring (upload
// ingestion, canvas reads). Callers must not mutate it during a turn.
func (o *Orchestrator) Session() *tools.SessionState {
	return o.sess
}

// History returns a copy of the conversation history.
func (o *Orchestrator) History() []types.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]types.Message, len(o.history))
	copy(out, o.history)
	return out
}

// WorkflowState returns the canvas mirror: the current workflow document as
// of the last sync event or mutating tool result.
func (o *Orchestrator) WorkflowState() map[string]any {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.workflowState
}

// AttachUpload registers an uploaded file with the session. New uploads are
// unclassified until the classification tool assigns them a purpose.
func (o *Orchestrator) AttachUpload(f tools.UploadedFile) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if f.Purpose == "" {
		f.Purpose = tools.PurposeUnclassified
	}
	o.sess.UploadedFiles = append(o.sess.UploadedFiles, f)
}

// StateSource supplies an external state payload, the pull half of canvas
// synchronization.
type StateSource func(ctx context.Context) (map[string]any, error)

// SyncWorkflow refreshes the canvas mirror and the session's workflow
// binding from an external source.
func (o *Orchestrator) SyncWorkflow(ctx context.Context, src StateSource) error {
	state, err := src(ctx)
	if err != nil {
		return fmt.Errorf("sync workflow: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.workflowState = state
	if id, ok := state["workflow_id"].(string); ok && id != "" {
		o.sess.WorkflowID = id
	}
	return nil
}

// SyncWorkflowAnalysis refreshes the session's analysis payload from an
// external source.
func (o *Orchestrator) SyncWorkflowAnalysis(ctx context.Context, src StateSource) error {
	analysis, err := src(ctx)
	if err != nil {
		return fmt.Errorf("sync workflow analysis: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.sess.Analysis = analysis
	return nil
}

// RunTool dispatches one tool call outside the turn loop, reconciling
// session state from the result. Failures come back inside the ToolResult;
// the error return is reserved for dispatch-level breakage.
func (o *Orchestrator) RunTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runToolLocked(ctx, name, args)
}

func (o *Orchestrator) runToolLocked(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	res, err := o.dispatcher.Execute(ctx, name, args, o.sess)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}

	if res.Success {
		tools.ApplyResultData(o.sess, res)
		if cw, ok := res.Data["current_workflow"].(map[string]any); ok {
			o.workflowState = cw
		}
	}
	return newToolResult(name, res), nil
}

// Respond drives one user turn: prompt composition, the model call, tool
// dispatch, and the final text. Cancellation is cooperative and is not an
// error: whatever text already streamed is committed to history and
// returned.
func (o *Orchestrator) Respond(ctx context.Context, turn Turn) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	emit := func(ev ToolEvent) {
		if turn.OnToolEvent != nil {
			turn.OnToolEvent(ev)
		}
	}

	// A turn that arrives already cancelled still records the user message.
	if ctx.Err() != nil {
		o.history = append(o.history, userMessage(turn.Message))
		return "", nil
	}

	systemPrompt := o.buildSystemPrompt(ctx, turn)
	o.history = append(o.history, userMessage(turn.Message))

	var catalogue []tools.Tool
	if turn.AllowTools {
		catalogue = o.dispatcher.Tools()
	}

	toolsExecuted := 0
	for iteration := 0; iteration < o.maxIter; iteration++ {
		messages := append([]types.Message{systemMessage(systemPrompt)}, o.window.apply(o.history)...)

		resp, streamed, err := o.chat(ctx, messages, catalogue, turn.OnToken)
		if ctx.Err() != nil {
			// Cancelled between deltas: the partial chunk is the turn.
			o.commitAssistant(streamed)
			return streamed, nil
		}
		if err != nil {
			o.commitAssistant("LLM error: " + err.Error())
			return "", fmt.Errorf("llm call: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			final := resp.Content
			if streamed == "" && final != "" && turn.OnToken != nil {
				chunkEmit(final, turn.OnToken)
			}
			o.commitAssistant(final)
			return final, nil
		}

		// The assistant message carrying the tool calls goes to history
		// before any result, so the transcript stays provider-legal.
		o.history = append(o.history, types.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
			Timestamp: time.Now(),
		})

		batchFailed := false
		failedTool := ""
		for _, call := range resp.ToolCalls {
			if ctx.Err() != nil {
				emit(ToolEvent{Type: EventBatchComplete})
				return streamed, nil
			}
			if batchFailed {
				o.skipToolCall(call, failedTool, emit)
				continue
			}

			args := call.Input
			if args == nil {
				args = map[string]any{}
			}
			emit(ToolEvent{Type: EventToolStart, ToolName: call.Name, Args: args})

			result, err := o.runToolLocked(ctx, call.Name, args)
			if err != nil {
				// Dispatch breakage is terminal for the turn.
				o.history = append(o.history, toolMessage(call.ID, nil,
					fmt.Sprintf("runtime error: %v", err)))
				o.commitAssistant(fmt.Sprintf("Tool %s hit a runtime error: %v", call.Name, err))
				return "", err
			}
			toolsExecuted++

			o.history = append(o.history, toolMessage(call.ID, result.toToolsResult(), formatToolResult(result)))
			emit(ToolEvent{Type: EventToolComplete, ToolName: call.Name, Args: args, Result: result})

			if !result.Success {
				batchFailed = true
				failedTool = call.Name
			}
		}
		emit(ToolEvent{Type: EventBatchComplete})

		variant := "success"
		if batchFailed {
			variant = "failure"
		}
		o.history = append(o.history, systemMessage(o.framingPrompt(ctx, variant)))
	}

	msg := fmt.Sprintf("Stopping: this request used all %d tool iterations (%d tools executed) without reaching a final answer. Ask me to continue or narrow the request.",
		o.maxIter, toolsExecuted)
	o.commitAssistant(msg)
	return msg, fmt.Errorf("%w: %d iterations, %d tools executed", ErrIterationBudget, o.maxIter, toolsExecuted)
}

// chat performs one model call, streaming when the provider supports it.
// The returned string is the text that went through the token callback.
func (o *Orchestrator) chat(ctx context.Context, messages []types.Message, catalogue []tools.Tool, onToken types.TokenCallback) (*types.LLMResponse, string, error) {
	var streamed strings.Builder

	if sp, ok := o.provider.(types.StreamingLLMProvider); ok {
		capture := func(token string) {
			streamed.WriteString(token)
			if onToken != nil {
				onToken(token)
			}
		}
		resp, err := sp.ChatStream(ctx, messages, catalogue, capture)
		return resp, streamed.String(), err
	}

	resp, err := o.provider.Chat(ctx, messages, catalogue)
	return resp, "", err
}

// skipToolCall records a synthetic result for a call that never ran because
// an earlier call in the same batch failed.
func (o *Orchestrator) skipToolCall(call types.ToolCall, failedTool string, emit func(ToolEvent)) {
	res := &tools.Result{
		Success: false,
		Error: &tools.ToolError{
			Code:    "SKIPPED",
			Message: fmt.Sprintf("skipped because %s failed earlier in this batch", failedTool),
		},
	}
	skipped := newToolResult(call.Name, res)
	o.history = append(o.history, toolMessage(call.ID, res, formatToolResult(skipped)))
	emit(ToolEvent{Type: EventToolSkipped, ToolName: call.Name, Args: call.Input, Result: skipped})
}

// commitAssistant appends a plain assistant message. Empty text is skipped:
// an empty turn carries no information and would only pollute the window.
func (o *Orchestrator) commitAssistant(text string) {
	if text == "" {
		return
	}
	o.history = append(o.history, types.Message{
		Role:      "assistant",
		Content:   text,
		Timestamp: time.Now(),
	})
}

// buildSystemPrompt assembles the per-turn system prompt from the prompt
// registry: the base role, the live analysis session, the upload list, the
// accumulated analysis context and guidance, and the tool policy.
func (o *Orchestrator) buildSystemPrompt(ctx context.Context, turn Turn) string {
	var sections []string
	add := func(text string) {
		if text != "" {
			sections = append(sections, text)
		}
	}

	add(o.promptText(ctx, "orchestrator.system", nil))

	if o.sess.LastSessionID != "" {
		add(o.promptText(ctx, "orchestrator.session_note",
			map[string]any{"session_id": o.sess.LastSessionID}))
	}

	if len(o.sess.UploadedFiles) > 0 {
		entries := make([]string, 0, len(o.sess.UploadedFiles))
		for _, f := range o.sess.UploadedFiles {
			entries = append(entries, fmt.Sprintf("%s (%s)", f.Name, f.Purpose))
		}
		add(o.promptText(ctx, "orchestrator.uploads",
			map[string]any{"files": entries}))

		if turn.HasFiles {
			if n := len(o.sess.FilesByPurpose(tools.PurposeUnclassified)); n > 1 {
				add(o.promptText(ctx, "orchestrator.classify_first",
					map[string]any{"count": n}))
			}
		}
	}

	if reasoning := analysisText(o.sess.Analysis, "reasoning"); reasoning != "" {
		add(o.promptText(ctx, "orchestrator.analysis_context",
			map[string]any{"reasoning": prompts.Raw(reasoning)}))
	}
	if guidance := analysisGuidance(o.sess.Analysis); guidance != "" {
		add(o.promptText(ctx, "orchestrator.guidance_notes",
			map[string]any{"notes": prompts.Raw(guidance)}))
	}

	if !turn.AllowTools {
		add(o.promptText(ctx, "orchestrator.no_tools", nil))
	}

	return strings.Join(sections, "\n\n")
}

// framingPrompt fetches the post-batch framing message.
func (o *Orchestrator) framingPrompt(ctx context.Context, variant string) string {
	text, err := o.prompts.GetWithVariant(ctx, "orchestrator.frame", variant, nil)
	if err != nil {
		o.logger.Warn("framing prompt unavailable", zap.String("variant", variant), zap.Error(err))
		if variant == "failure" {
			return "A tool call failed. Explain the failure to the user in plain text and suggest a next step."
		}
		return "All requested tools completed. Summarise the outcome for the user in plain text."
	}
	return text
}

func (o *Orchestrator) promptText(ctx context.Context, key string, vars map[string]any) string {
	text, err := o.prompts.Get(ctx, key, vars)
	if err != nil {
		o.logger.Warn("prompt unavailable", zap.String("key", key), zap.Error(err))
		return ""
	}
	return text
}

// analysisText pulls a string field from the analysis payload.
func analysisText(analysis map[string]any, key string) string {
	if analysis == nil {
		return ""
	}
	s, _ := analysis[key].(string)
	return strings.TrimSpace(s)
}

// analysisGuidance flattens the analysis guidance notes into one block.
func analysisGuidance(analysis map[string]any) string {
	if analysis == nil {
		return ""
	}
	notes, ok := analysis["guidance"].([]any)
	if !ok || len(notes) == 0 {
		return ""
	}

	var b strings.Builder
	for _, raw := range notes {
		note, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		text, _ := note["text"].(string)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(text)
		if cat, _ := note["category"].(string); cat != "" {
			b.WriteString(" [")
			b.WriteString(cat)
			b.WriteString("]")
		}
	}
	return b.String()
}

// chunkEmit delivers text through the callback in fixed-size rune chunks,
// for providers that returned everything at once.
func chunkEmit(text string, onToken types.TokenCallback) {
	runes := []rune(text)
	for start := 0; start < len(runes); start += streamChunkSize {
		end := start + streamChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		onToken(string(runes[start:end]))
	}
}

// formatToolResult flattens a tool outcome into the text the model reads.
func formatToolResult(res *ToolResult) string {
	if res.Success {
		if res.Message != "" {
			return res.Message
		}
		if len(res.Data) > 0 {
			if raw, err := json.Marshal(res.Data); err == nil {
				return string(raw)
			}
		}
		return "ok"
	}
	if res.Error != nil {
		msg := fmt.Sprintf("%s: %s", res.Error.Code, res.Error.Message)
		if res.Error.Suggestion != "" {
			msg += " (" + res.Error.Suggestion + ")"
		}
		return msg
	}
	return "tool failed without diagnostics"
}

func (r *ToolResult) toToolsResult() *tools.Result {
	return &tools.Result{
		Success:         r.Success,
		Data:            r.Data,
		Message:         r.Message,
		Error:           r.Error,
		ExecutionTimeMs: r.ExecutionTimeMs,
	}
}

func userMessage(text string) types.Message {
	return types.Message{Role: "user", Content: text, Timestamp: time.Now()}
}

func systemMessage(text string) types.Message {
	return types.Message{Role: "system", Content: text, Timestamp: time.Now()}
}

func toolMessage(toolUseID string, res *tools.Result, content string) types.Message {
	return types.Message{
		Role:       "tool",
		Content:    content,
		ToolUseID:  toolUseID,
		ToolResult: res,
		Timestamp:  time.Now(),
	}
}
