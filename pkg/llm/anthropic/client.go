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

// Package anthropic implements the LLM provider for the Anthropic Messages
// API. It is hand-rolled rather than SDK-based so the streaming loop can
// surface every delta (text, thinking, partial tool JSON) to the caller and
// so prompt caching headers stay under our control.
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/teradata-labs/heddle/pkg/llm"
	"github.com/teradata-labs/heddle/pkg/llm/usage"
	"github.com/teradata-labs/heddle/pkg/tools"
	"github.com/teradata-labs/heddle/pkg/types"
)

const (
	// DefaultModel is used when neither the config nor the environment
	// names one.
	DefaultModel = "claude-sonnet-4-5-20250929"

	defaultEndpoint    = "https://api.anthropic.com/v1/messages"
	defaultMaxTokens   = 4096
	defaultTemperature = 1.0
	defaultTimeout     = 60 * time.Second

	apiVersion        = "2023-06-01"
	promptCachingBeta = "prompt-caching-2024-07-31"
)

// Config configures an Anthropic client. Zero values fall back to the
// ANTHROPIC_API_KEY, ANTHROPIC_DEFAULT_MODEL and ANTHROPIC_API_ENDPOINT
// environment variables and then to package defaults.
type Config struct {
	APIKey      string
	Model       string
	Endpoint    string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration

	// Caller tags usage records so a session's token spend can be broken
	// down by component ("main", "vision", ...).
	Caller string

	// RateLimiter enables the shared process-wide limiter. Nil or
	// Enabled=false means requests go out directly. Only the first client
	// constructed with a limiter gets to shape the shared config.
	RateLimiter *llm.RateLimiterConfig

	// Usage receives one record per completed call. Nil means discard.
	Usage usage.Sink
}

// Client talks to the Anthropic Messages API.
type Client struct {
	apiKey      string
	model       string
	endpoint    string
	maxTokens   int
	temperature float64
	caller      string

	httpClient   *http.Client
	streamClient *http.Client
	limiter      *llm.RateLimiter
	usage        usage.Sink
}

var (
	_ types.LLMProvider          = (*Client)(nil)
	_ types.StreamingLLMProvider = (*Client)(nil)
)

var (
	sharedLimiterOnce sync.Once
	sharedLimiter     *llm.RateLimiter
)

// sharedRateLimiter returns the process-wide limiter. All clients share one
// bucket so concurrent conversations cannot overrun the account budget.
func sharedRateLimiter(override *llm.RateLimiterConfig) *llm.RateLimiter {
	sharedLimiterOnce.Do(func() {
		merged := llm.DefaultRateLimiterConfig()
		if override != nil {
			merged.Enabled = override.Enabled
			if override.RequestsPerSecond > 0 {
				merged.RequestsPerSecond = override.RequestsPerSecond
			}
			if override.TokensPerMinute > 0 {
				merged.TokensPerMinute = override.TokensPerMinute
			}
			if override.BurstCapacity > 0 {
				merged.BurstCapacity = override.BurstCapacity
			}
			if override.MinDelay > 0 {
				merged.MinDelay = override.MinDelay
			}
			if override.MaxRetries > 0 {
				merged.MaxRetries = override.MaxRetries
			}
			if override.RetryBackoff > 0 {
				merged.RetryBackoff = override.RetryBackoff
			}
			if override.QueueTimeout > 0 {
				merged.QueueTimeout = override.QueueTimeout
			}
			if override.Logger != nil {
				merged.Logger = override.Logger
			}
		}
		sharedLimiter = llm.NewRateLimiter(merged)
	})
	return sharedLimiter
}

// NewClient builds a client from config and environment.
func NewClient(cfg Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: API key not set (config or ANTHROPIC_API_KEY)")
	}

	model := cfg.Model
	if model == "" {
		model = os.Getenv("ANTHROPIC_DEFAULT_MODEL")
	}
	if model == "" {
		model = DefaultModel
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = os.Getenv("ANTHROPIC_API_ENDPOINT")
	}
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	caller := cfg.Caller
	if caller == "" {
		caller = "main"
	}
	sink := cfg.Usage
	if sink == nil {
		sink = usage.Discard
	}
	var limiter *llm.RateLimiter
	if cfg.RateLimiter != nil && cfg.RateLimiter.Enabled {
		limiter = sharedRateLimiter(cfg.RateLimiter)
	}

	return &Client{
		apiKey:      apiKey,
		model:       model,
		endpoint:    endpoint,
		maxTokens:   maxTokens,
		temperature: temperature,
		caller:      caller,
		httpClient:  &http.Client{Timeout: timeout},
		// Streams outlive any sane whole-request timeout. Cancellation
		// comes from the request context instead.
		streamClient: &http.Client{},
		limiter:      limiter,
		usage:        sink,
	}, nil
}

// limited routes call through the shared rate limiter when one is
// configured.
func (c *Client) limited(ctx context.Context, call func(context.Context) (interface{}, error)) (interface{}, error) {
	if c.limiter == nil {
		return call(ctx)
	}
	return c.limiter.Do(ctx, call)
}

// Name implements types.LLMProvider.
func (c *Client) Name() string { return "anthropic" }

// Model implements types.LLMProvider.
func (c *Client) Model() string { return c.model }

// Chat sends the conversation and blocks for the complete response.
func (c *Client) Chat(ctx context.Context, messages []types.Message, catalogue []tools.Tool) (*types.LLMResponse, error) {
	apiMessages, system := convertMessages(messages)
	apiTools, nameMap := convertTools(catalogue)

	buildReq := func() MessagesRequest {
		return MessagesRequest{
			Model:       c.model,
			Messages:    apiMessages,
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
			System:      system,
			Tools:       apiTools,
		}
	}

	started := time.Now()
	value, err := c.limited(ctx, func(ctx context.Context) (interface{}, error) {
		return c.send(ctx, buildReq())
	})
	if err != nil {
		return nil, err
	}
	out := convertResponse(value.(*MessagesResponse), nameMap)
	c.finish(out, time.Since(started))
	return out, nil
}

// ChatStream sends the conversation and streams text fragments to onToken
// as they arrive. The returned response is the fully reconstructed message.
func (c *Client) ChatStream(ctx context.Context, messages []types.Message, catalogue []tools.Tool, onToken types.TokenCallback) (*types.LLMResponse, error) {
	apiMessages, system := convertMessages(messages)
	apiTools, nameMap := convertTools(catalogue)

	buildReq := func() MessagesRequest {
		return MessagesRequest{
			Model:       c.model,
			Messages:    apiMessages,
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
			System:      system,
			Tools:       apiTools,
			Stream:      true,
		}
	}

	started := time.Now()
	value, err := c.limited(ctx, func(ctx context.Context) (interface{}, error) {
		return c.stream(ctx, buildReq(), nameMap, onToken)
	})
	if err != nil {
		return nil, err
	}
	out := value.(*types.LLMResponse)
	c.finish(out, time.Since(started))
	return out, nil
}

// finish records usage for a completed call.
func (c *Client) finish(out *types.LLMResponse, elapsed time.Duration) {
	if c.limiter != nil {
		c.limiter.RecordTokenUsage(int64(out.Usage.InputTokens + out.Usage.OutputTokens))
	}
	c.usage.Record(usage.Record{
		Caller:           c.caller,
		Model:            c.model,
		InputTokens:      out.Usage.InputTokens,
		OutputTokens:     out.Usage.OutputTokens,
		CacheReadTokens:  out.Usage.CacheReadInputTokens,
		CacheWriteTokens: out.Usage.CacheCreationInputTokens,
		ElapsedMs:        elapsed.Milliseconds(),
	})
}

func (c *Client) send(ctx context.Context, req MessagesRequest) (*MessagesResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, apiError(httpResp)
	}

	var resp MessagesResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

func (c *Client) stream(ctx context.Context, req MessagesRequest, nameMap map[string]string, onToken types.TokenCallback) (*types.LLMResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	httpResp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, apiError(httpResp)
	}
	return readStream(ctx, httpResp.Body, nameMap, onToken)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("anthropic-beta", promptCachingBeta)
}

// apiError turns a non-200 response into an error. The status code is kept
// in the message so the rate limiter can recognize 429s and retry.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return fmt.Errorf("anthropic API error (status %d): %s: %s",
			resp.StatusCode, payload.Error.Type, payload.Error.Message)
	}
	return fmt.Errorf("anthropic API error (status %d): %s",
		resp.StatusCode, strings.TrimSpace(string(body)))
}

// readStream consumes the SSE body and reconstructs the full message.
// Tool inputs arrive as input_json_delta fragments which are buffered per
// content-block index and parsed at content_block_stop. Cancellation is
// checked between events.
func readStream(ctx context.Context, body io.Reader, nameMap map[string]string, onToken types.TokenCallback) (*types.LLMResponse, error) {
	out := &types.LLMResponse{Metadata: map[string]interface{}{}}

	var text, thinking strings.Builder
	toolInputBuffers := make(map[int]*strings.Builder)
	toolCallIndex := make(map[int]int)

	scanner := bufio.NewScanner(body)
	// Single deltas stay small, but the final message_start of a cached
	// prompt can be large.
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			break
		}

		var event StreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			// Keepalives and unknown event shapes are skipped.
			continue
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				out.Usage = convertUsage(event.Message.Usage)
				out.Metadata["id"] = event.Message.ID
				out.Metadata["model"] = event.Message.Model
			}

		case "content_block_start":
			if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
				toolCallIndex[event.Index] = len(out.ToolCalls)
				call := types.ToolCall{
					ID:   event.ContentBlock.ID,
					Name: llm.ReverseToolName(nameMap, event.ContentBlock.Name),
				}
				// Some gateways deliver the input whole here instead of
				// as input_json_delta fragments.
				if len(event.ContentBlock.Input) > 0 {
					call.Input = event.ContentBlock.Input
				}
				out.ToolCalls = append(out.ToolCalls, call)
				toolInputBuffers[event.Index] = &strings.Builder{}
			}

		case "content_block_delta":
			if event.Delta == nil {
				continue
			}
			switch event.Delta.Type {
			case "text_delta":
				text.WriteString(event.Delta.Text)
				if onToken != nil {
					onToken(event.Delta.Text)
				}
			case "thinking_delta":
				thinking.WriteString(event.Delta.Thinking)
			case "input_json_delta":
				if buf, ok := toolInputBuffers[event.Index]; ok {
					buf.WriteString(event.Delta.PartialJSON)
				}
			}

		case "content_block_stop":
			if buf, ok := toolInputBuffers[event.Index]; ok {
				pos := toolCallIndex[event.Index]
				if raw := strings.TrimSpace(buf.String()); raw != "" {
					var input map[string]interface{}
					if err := json.Unmarshal([]byte(raw), &input); err == nil {
						out.ToolCalls[pos].Input = input
					}
				}
				if out.ToolCalls[pos].Input == nil {
					out.ToolCalls[pos].Input = map[string]interface{}{}
				}
				delete(toolInputBuffers, event.Index)
			}

		case "message_delta":
			if event.Delta != nil && event.Delta.StopReason != "" {
				out.StopReason = event.Delta.StopReason
			}
			if event.Usage != nil {
				if event.Usage.InputTokens > 0 {
					out.Usage.InputTokens = event.Usage.InputTokens
				}
				out.Usage.OutputTokens = event.Usage.OutputTokens
				if event.Usage.CacheCreationInputTokens > 0 {
					out.Usage.CacheCreationInputTokens = event.Usage.CacheCreationInputTokens
				}
				if event.Usage.CacheReadInputTokens > 0 {
					out.Usage.CacheReadInputTokens = event.Usage.CacheReadInputTokens
				}
			}

		case "error":
			if event.Error != nil {
				return nil, fmt.Errorf("anthropic stream error: %s: %s",
					event.Error.Type, event.Error.Message)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read stream: %w", err)
	}

	out.Content = text.String()
	out.Thinking = thinking.String()
	out.ToolCalls = dedupToolCalls(out.ToolCalls)
	if out.StopReason == "" {
		if len(out.ToolCalls) > 0 {
			out.StopReason = "tool_use"
		} else {
			out.StopReason = "end_turn"
		}
	}
	out.Usage.TotalTokens = out.Usage.InputTokens + out.Usage.OutputTokens
	return out, nil
}

// convertMessages splits the internal history into wire messages plus the
// top-level system blocks. System text gets a cache_control breakpoint so
// repeated turns reuse the prompt cache.
func convertMessages(messages []types.Message) ([]Message, []TextBlockParam) {
	var system []TextBlockParam
	apiMessages := make([]Message, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = append(system, TextBlockParam{Type: "text", Text: msg.Content})

		case "tool":
			apiMessages = append(apiMessages, Message{
				Role: "user",
				Content: []ContentBlock{{
					Type:      "tool_result",
					ToolUseID: msg.ToolUseID,
					Content:   msg.Content,
				}},
			})

		case "assistant":
			blocks := make([]ContentBlock, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				blocks = append(blocks, ContentBlock{Type: "text", Text: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, ContentBlock{
					Type:  "tool_use",
					ID:    call.ID,
					Name:  llm.SanitizeToolName(call.Name),
					Input: call.Input,
				})
			}
			if len(blocks) == 0 {
				blocks = append(blocks, ContentBlock{Type: "text", Text: msg.Content})
			}
			apiMessages = append(apiMessages, Message{Role: "assistant", Content: blocks})

		default: // user
			apiMessages = append(apiMessages, Message{
				Role:    "user",
				Content: convertUserBlocks(msg),
			})
		}
	}

	if len(system) > 0 {
		system[len(system)-1].CacheControl = &CacheControl{Type: "ephemeral"}
	}
	return apiMessages, system
}

// convertUserBlocks maps a user message's content blocks to wire blocks.
// Messages without explicit blocks become a single text block.
func convertUserBlocks(msg types.Message) []ContentBlock {
	if len(msg.ContentBlocks) == 0 {
		return []ContentBlock{{Type: "text", Text: msg.Content}}
	}

	blocks := make([]ContentBlock, 0, len(msg.ContentBlocks))
	for _, b := range msg.ContentBlocks {
		switch b.Type {
		case "text":
			blocks = append(blocks, ContentBlock{Type: "text", Text: b.Text})
		case "image":
			if b.Image == nil {
				continue
			}
			blocks = append(blocks, ContentBlock{
				Type: "image",
				Source: &MediaSource{
					Type:      b.Image.Source.Type,
					MediaType: b.Image.Source.MediaType,
					Data:      b.Image.Source.Data,
					URL:       b.Image.Source.URL,
				},
			})
		case "document":
			if b.Document == nil {
				continue
			}
			blocks = append(blocks, ContentBlock{
				Type: "document",
				Source: &MediaSource{
					Type:      b.Document.Source.Type,
					MediaType: b.Document.Source.MediaType,
					Data:      b.Document.Source.Data,
				},
			})
		}
	}
	if len(blocks) == 0 {
		blocks = append(blocks, ContentBlock{Type: "text", Text: msg.Content})
	}
	return blocks
}

// convertTools maps the catalogue to wire tools with sanitized names and
// returns the sanitized-to-original name map for response conversion. The
// last tool carries the cache breakpoint, caching the whole catalogue.
func convertTools(catalogue []tools.Tool) ([]CacheableTool, map[string]string) {
	if len(catalogue) == 0 {
		return nil, nil
	}

	names := make([]string, len(catalogue))
	for i, t := range catalogue {
		names[i] = t.Name()
	}
	nameMap := llm.BuildToolNameMap(names)

	apiTools := make([]CacheableTool, 0, len(catalogue))
	for _, t := range catalogue {
		inputSchema := map[string]any{"type": "object", "properties": map[string]any{}}
		if schema := tools.NormalizeSchema(t.InputSchema()); schema != nil {
			inputSchema = schema.ToMap()
		}
		apiTools = append(apiTools, CacheableTool{
			Name:        llm.SanitizeToolName(t.Name()),
			Description: t.Description(),
			InputSchema: inputSchema,
		})
	}
	apiTools[len(apiTools)-1].CacheControl = &CacheControl{Type: "ephemeral"}
	return apiTools, nameMap
}

// convertResponse maps a non-streaming wire response to the internal form.
func convertResponse(resp *MessagesResponse, nameMap map[string]string) *types.LLMResponse {
	out := &types.LLMResponse{
		StopReason: resp.StopReason,
		Usage:      convertUsage(resp.Usage),
		Metadata: map[string]interface{}{
			"id":    resp.ID,
			"model": resp.Model,
		},
	}

	var text, thinking strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "thinking":
			thinking.WriteString(block.Thinking)
		case "tool_use":
			input := block.Input
			if input == nil {
				input = map[string]interface{}{}
			}
			out.ToolCalls = append(out.ToolCalls, types.ToolCall{
				ID:    block.ID,
				Name:  llm.ReverseToolName(nameMap, block.Name),
				Input: input,
			})
		}
	}
	out.Content = text.String()
	out.Thinking = thinking.String()
	out.ToolCalls = dedupToolCalls(out.ToolCalls)
	return out
}

func convertUsage(u Usage) types.Usage {
	return types.Usage{
		InputTokens:              u.InputTokens,
		OutputTokens:             u.OutputTokens,
		CacheCreationInputTokens: u.CacheCreationInputTokens,
		CacheReadInputTokens:     u.CacheReadInputTokens,
		TotalTokens:              u.InputTokens + u.OutputTokens,
	}
}

// dedupToolCalls drops duplicate calls a resumed or glitchy stream can
// produce. Calls are keyed by id when present, otherwise by name plus the
// marshaled input (map marshaling is key-sorted, so the key is stable).
func dedupToolCalls(calls []types.ToolCall) []types.ToolCall {
	if len(calls) < 2 {
		return calls
	}
	seen := make(map[string]bool, len(calls))
	out := make([]types.ToolCall, 0, len(calls))
	for _, call := range calls {
		key := call.ID
		if key == "" {
			input, _ := json.Marshal(call.Input)
			key = call.Name + ":" + string(input)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, call)
	}
	return out
}
