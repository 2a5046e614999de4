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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/teradata-labs/heddle/pkg/mcp/protocol"
	"github.com/teradata-labs/heddle/pkg/prompts"
	"github.com/teradata-labs/heddle/pkg/tools"
	"github.com/teradata-labs/heddle/pkg/workflow/store"
	"go.uber.org/zap"
)

// sessionStateArg is the reserved tools/call argument that carries the
// caller's serialized session state across the transport. It is stripped
// before the tool sees its arguments.
const sessionStateArg = "session_state"

// workflowURIScheme prefixes the resource URIs under which the workflow
// library is exposed.
const workflowURIScheme = "workflow://"

// libraryMutators names the tools whose success changes the set of
// workflows in the library, and with it the resource list.
var libraryMutators = map[string]bool{
	"create_workflow":          true,
	"save_workflow_to_library": true,
}

// RegistryBridge exposes the in-process tool registry, the workflow
// library, and the prompt registry as MCP providers. It implements
// ToolProvider, ResourceProvider, and PromptProvider.
//
// Tool calls may carry a session_state argument: the bridge rebuilds the
// caller's session from it, reattaches the runtime capabilities that never
// cross the wire (store, data directory), and returns the structured tool
// result under structuredContent for the caller to reconcile against.
type RegistryBridge struct {
	executor *tools.Executor
	store    store.Store
	prompts  prompts.PromptRegistry
	dataDir  string
	userID   string
	logger   *zap.Logger

	onLibraryChanged func()
}

// BridgeConfig configures a RegistryBridge.
type BridgeConfig struct {
	// Executor dispatches tool calls. Required.
	Executor *tools.Executor

	// Store is the workflow library, exposed as workflow:// resources and
	// injected into every tool session. Required.
	Store store.Store

	// Prompts enables the prompts surface. Optional.
	Prompts prompts.PromptRegistry

	// DataDir is the uploads root injected into tool sessions.
	DataDir string

	// UserID is the identity used for sessions that carry none, and for
	// resource reads.
	UserID string

	Logger *zap.Logger
}

// NewRegistryBridge creates a bridge over the given executor and library.
func NewRegistryBridge(cfg BridgeConfig) (*RegistryBridge, error) {
	if cfg.Executor == nil {
		return nil, errors.New("executor is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.UserID == "" {
		cfg.UserID = "local"
	}

	return &RegistryBridge{
		executor: cfg.Executor,
		store:    cfg.Store,
		prompts:  cfg.Prompts,
		dataDir:  cfg.DataDir,
		userID:   cfg.UserID,
		logger:   cfg.Logger,
	}, nil
}

// SetOnLibraryChanged registers a callback invoked after a tool call that
// changed the set of workflows in the library. The server wires this to
// NotifyResourceListChanged.
func (b *RegistryBridge) SetOnLibraryChanged(fn func()) {
	b.onLibraryChanged = fn
}

// ListTools implements ToolProvider.
func (b *RegistryBridge) ListTools(_ context.Context) ([]protocol.Tool, error) {
	registered := b.executor.Registry().ListTools()
	out := make([]protocol.Tool, 0, len(registered))
	for _, t := range registered {
		schema := tools.NormalizeSchema(t.InputSchema()).ToMap()
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		out = append(out, protocol.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: schema,
		})
	}
	return out, nil
}

// CallTool implements ToolProvider. Business failures come back as Go
// errors carrying the tool's code, message, and suggestion in one string;
// the tools/call handler folds them into is_error results.
func (b *RegistryBridge) CallTool(ctx context.Context, name string, args map[string]interface{}) (*protocol.CallToolResult, error) {
	sess := b.newSession()

	if raw, ok := args[sessionStateArg]; ok {
		args = cloneArgsWithout(args, sessionStateArg)
		if m, ok := raw.(map[string]any); ok {
			sess = tools.SessionStateFromMap(m)
			b.attachRuntime(sess)
		} else {
			b.logger.Warn("ignoring malformed session_state argument",
				zap.String("tool", name))
		}
	}

	b.logger.Debug("calling tool",
		zap.String("tool", name),
		zap.String("conversation_id", sess.ConversationID))

	res, err := b.executor.Execute(ctx, name, args, sess)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, toolFailure(name, res)
	}

	structured := resultMap(res)

	text := res.Message
	if text == "" {
		if len(res.Data) > 0 {
			if raw, err := json.Marshal(res.Data); err == nil {
				text = string(raw)
			}
		}
		if text == "" {
			text = "ok"
		}
	}

	if canonical, ok := b.executor.Registry().Resolve(name); ok && libraryMutators[canonical] {
		if b.onLibraryChanged != nil {
			b.onLibraryChanged()
		}
	}

	return &protocol.CallToolResult{
		Content:           []protocol.Content{{Type: "text", Text: text}},
		StructuredContent: structured,
	}, nil
}

// ListResources implements ResourceProvider, exposing each workflow in the
// library under workflow://<id>.
func (b *RegistryBridge) ListResources(ctx context.Context) ([]protocol.Resource, error) {
	workflows, err := b.store.List(ctx, b.userID, store.Filter{IncludeDrafts: true})
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}

	out := make([]protocol.Resource, 0, len(workflows))
	for _, w := range workflows {
		out = append(out, protocol.Resource{
			URI:         workflowURIScheme + w.ID,
			Name:        w.Metadata.Name,
			Description: w.Metadata.Description,
			MimeType:    "application/json",
		})
	}
	return out, nil
}

// ReadResource implements ResourceProvider.
func (b *RegistryBridge) ReadResource(ctx context.Context, uri string) (*protocol.ReadResourceResult, error) {
	id := strings.TrimPrefix(uri, workflowURIScheme)
	if id == uri || id == "" {
		return nil, protocol.NewError(protocol.InvalidParams,
			fmt.Sprintf("unsupported resource uri: %s", uri), nil)
	}

	w, err := b.store.Get(ctx, id, b.userID)
	if err != nil {
		return nil, fmt.Errorf("read workflow %s: %w", id, err)
	}

	raw, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal workflow %s: %w", id, err)
	}

	return &protocol.ReadResourceResult{
		Contents: []protocol.ResourceContents{{
			URI:      uri,
			MimeType: "application/json",
			Text:     string(raw),
		}},
	}, nil
}

// ListPrompts implements PromptProvider.
func (b *RegistryBridge) ListPrompts(ctx context.Context) ([]protocol.Prompt, error) {
	if b.prompts == nil {
		return []protocol.Prompt{}, nil
	}

	keys, err := b.prompts.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}

	out := make([]protocol.Prompt, 0, len(keys))
	for _, key := range keys {
		meta, err := b.prompts.GetMetadata(ctx, key)
		if err != nil {
			b.logger.Warn("skipping prompt without metadata", zap.String("key", key), zap.Error(err))
			continue
		}
		args := make([]protocol.PromptArgument, 0, len(meta.Variables))
		for _, v := range meta.Variables {
			args = append(args, protocol.PromptArgument{Name: v})
		}
		out = append(out, protocol.Prompt{
			Name:        key,
			Description: meta.Description,
			Arguments:   args,
		})
	}
	return out, nil
}

// GetPrompt implements PromptProvider.
func (b *RegistryBridge) GetPrompt(ctx context.Context, name string, args map[string]interface{}) (*protocol.GetPromptResult, error) {
	if b.prompts == nil {
		return nil, protocol.NewError(protocol.InvalidParams, "prompts are not available", nil)
	}

	meta, err := b.prompts.GetMetadata(ctx, name)
	if err != nil {
		return nil, protocol.NewError(protocol.InvalidParams,
			fmt.Sprintf("unknown prompt: %s", name), nil)
	}

	text, err := b.prompts.Get(ctx, name, args)
	if err != nil {
		return nil, fmt.Errorf("render prompt %s: %w", name, err)
	}

	return &protocol.GetPromptResult{
		Description: meta.Description,
		Messages: []protocol.PromptMessage{{
			Role:    "user",
			Content: protocol.Content{Type: "text", Text: text},
		}},
	}, nil
}

// newSession builds the default session for calls that carry no state of
// their own, such as a desktop MCP host invoking tools directly.
func (b *RegistryBridge) newSession() *tools.SessionState {
	sess := &tools.SessionState{UserID: b.userID}
	b.attachRuntime(sess)
	return sess
}

// attachRuntime reattaches the capabilities that never cross the wire.
func (b *RegistryBridge) attachRuntime(sess *tools.SessionState) {
	sess.Store = b.store
	sess.DataDir = b.dataDir
	if sess.UserID == "" {
		sess.UserID = b.userID
	}
}

// toolFailure flattens a failed tool result into one diagnostic string.
func toolFailure(name string, res *tools.Result) error {
	if res.Error == nil {
		return fmt.Errorf("tool %s failed", name)
	}
	msg := fmt.Sprintf("%s: %s", res.Error.Code, res.Error.Message)
	if res.Error.Suggestion != "" {
		msg = fmt.Sprintf("%s (%s)", msg, res.Error.Suggestion)
	}
	return errors.New(msg)
}

// resultMap renders a tool result into the structuredContent wire shape.
func resultMap(res *tools.Result) map[string]any {
	raw, err := json.Marshal(res)
	if err != nil {
		return map[string]any{"success": res.Success}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"success": res.Success}
	}
	return m
}

// cloneArgsWithout copies args minus one key, leaving the caller's map
// untouched.
func cloneArgsWithout(args map[string]interface{}, drop string) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		if k == drop {
			continue
		}
		out[k] = v
	}
	return out
}
