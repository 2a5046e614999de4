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

// Package types holds the message and provider types shared between the
// orchestrator and the LLM adapters. It lives below both so neither has to
// import the other.
package types

import (
	"context"
	"time"

	"github.com/teradata-labs/heddle/pkg/tools"
)

// ToolCall represents a tool invocation requested by the LLM.
type ToolCall struct {
	ID    string                 `json:"id"`
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"`
}

// ImageSource describes where image bytes come from.
type ImageSource struct {
	Type      string `json:"type"`       // "base64" or "url"
	MediaType string `json:"media_type"` // "image/png", "image/jpeg", ...
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// ImageContent is an image attached to a message.
type ImageContent struct {
	Source ImageSource `json:"source"`
}

// DocumentSource describes an inline document payload.
type DocumentSource struct {
	Type      string `json:"type"`       // "base64"
	MediaType string `json:"media_type"` // "application/pdf"
	Data      string `json:"data"`
}

// DocumentContent is a document (PDF) attached to a message.
type DocumentContent struct {
	Source DocumentSource `json:"source"`
}

// ContentBlock is one element of a multi-modal message.
// Type is one of "text", "image", "document", "thinking".
type ContentBlock struct {
	Type     string           `json:"type"`
	Text     string           `json:"text,omitempty"`
	Image    *ImageContent    `json:"image,omitempty"`
	Document *DocumentContent `json:"document,omitempty"`
	Thinking string           `json:"thinking,omitempty"`
}

// Message is a single conversation entry.
//
// Role is "system", "user", "assistant", or "tool". Tool messages carry the
// ToolUseID of the call they answer and the structured ToolResult alongside
// the flattened Content string sent to the provider.
type Message struct {
	Role          string         `json:"role"`
	Content       string         `json:"content"`
	ContentBlocks []ContentBlock `json:"content_blocks,omitempty"`
	ToolCalls     []ToolCall     `json:"tool_calls,omitempty"`
	ToolUseID     string         `json:"tool_use_id,omitempty"`
	ToolResult    *tools.Result  `json:"tool_result,omitempty"`
	Timestamp     time.Time      `json:"timestamp,omitempty"`
	TokenCount    int            `json:"token_count,omitempty"`
}

// Usage reports token consumption for one provider call.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
	TotalTokens              int `json:"total_tokens"`
}

// LLMResponse is the normalized result of one provider call.
type LLMResponse struct {
	Content    string                 `json:"content"`
	Thinking   string                 `json:"thinking,omitempty"`
	ToolCalls  []ToolCall             `json:"tool_calls,omitempty"`
	StopReason string                 `json:"stop_reason"`
	Usage      Usage                  `json:"usage"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// TokenCallback receives streamed text fragments as they arrive.
// Implementations must be fast; they run on the stream-decoding goroutine.
type TokenCallback func(token string)

// LLMProvider is the minimal completion interface.
type LLMProvider interface {
	// Name identifies the provider ("anthropic", "bedrock").
	Name() string
	// Model returns the configured model identifier.
	Model() string
	// Chat sends the conversation and returns the complete response.
	Chat(ctx context.Context, messages []Message, catalogue []tools.Tool) (*LLMResponse, error)
}

// StreamingLLMProvider extends LLMProvider with incremental delivery.
// Cancellation is observed between stream events via ctx.
type StreamingLLMProvider interface {
	LLMProvider
	ChatStream(ctx context.Context, messages []Message, catalogue []tools.Tool, onToken TokenCallback) (*LLMResponse, error)
}

// SupportsStreaming reports whether the provider implements
// StreamingLLMProvider.
func SupportsStreaming(provider LLMProvider) bool {
	_, ok := provider.(StreamingLLMProvider)
	return ok
}
