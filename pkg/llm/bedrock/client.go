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

// Package bedrock implements the LLM provider for Anthropic models hosted
// on AWS Bedrock, via the official Anthropic SDK with the Bedrock backend.
// The SDK handles SigV4 signing and endpoint resolution.
//
// Bedrock requests support text and image content. PDF document blocks are
// only available through the direct Anthropic provider.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/teradata-labs/heddle/pkg/llm"
	"github.com/teradata-labs/heddle/pkg/llm/usage"
	"github.com/teradata-labs/heddle/pkg/tools"
	"github.com/teradata-labs/heddle/pkg/types"
)

// Default Bedrock configuration. Overridable via AWS_BEDROCK_MODEL_ID and
// AWS_DEFAULT_REGION.
const (
	// DefaultModelID uses the cross-region inference profile (us.* prefix).
	DefaultModelID     = "us.anthropic.claude-sonnet-4-5-20250929-v1:0"
	DefaultRegion      = "us-west-2"
	defaultMaxTokens   = 4096
	defaultTemperature = 1.0
)

// Config holds configuration for the Bedrock client.
type Config struct {
	// AWS configuration. Credentials resolve in order: explicit keys,
	// named profile, default chain (env vars, shared config, IAM role).
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Profile         string

	ModelID     string
	MaxTokens   int
	Temperature float64

	// Caller tags usage records, as in the anthropic provider.
	Caller string

	// RateLimiter enables the shared process-wide limiter.
	RateLimiter *llm.RateLimiterConfig

	// Usage receives one record per completed call. Nil means discard.
	Usage usage.Sink
}

// Client talks to Bedrock-hosted Anthropic models.
type Client struct {
	client      anthropic.Client
	modelID     string
	region      string
	maxTokens   int64
	temperature float64
	caller      string
	limiter     *llm.RateLimiter
	usage       usage.Sink
}

var (
	_ types.LLMProvider          = (*Client)(nil)
	_ types.StreamingLLMProvider = (*Client)(nil)
)

// Bedrock clients coordinate through one limiter so concurrent
// conversations cannot trip AWS throttling.
var (
	sharedLimiterOnce sync.Once
	sharedLimiter     *llm.RateLimiter
)

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

// NewClient creates a Bedrock client from config and environment.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ModelID == "" {
		cfg.ModelID = os.Getenv("AWS_BEDROCK_MODEL_ID")
	}
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	if cfg.Region == "" {
		cfg.Region = os.Getenv("AWS_DEFAULT_REGION")
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	caller := cfg.Caller
	if caller == "" {
		caller = "main"
	}
	sink := cfg.Usage
	if sink == nil {
		sink = usage.Discard
	}

	var awsCfg aws.Config
	var err error
	switch {
	case cfg.AccessKeyID != "" && cfg.SecretAccessKey != "":
		awsCfg, err = config.LoadDefaultConfig(context.Background(),
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				cfg.SessionToken,
			)),
		)
	case cfg.Profile != "":
		awsCfg, err = config.LoadDefaultConfig(context.Background(),
			config.WithRegion(cfg.Region),
			config.WithSharedConfigProfile(cfg.Profile),
		)
	default:
		awsCfg, err = config.LoadDefaultConfig(context.Background(),
			config.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var limiter *llm.RateLimiter
	if cfg.RateLimiter != nil && cfg.RateLimiter.Enabled {
		limiter = sharedRateLimiter(cfg.RateLimiter)
	}

	return &Client{
		client:      anthropic.NewClient(bedrock.WithConfig(awsCfg)),
		modelID:     cfg.ModelID,
		region:      cfg.Region,
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
		caller:      caller,
		limiter:     limiter,
		usage:       sink,
	}, nil
}

// Name implements types.LLMProvider.
func (c *Client) Name() string { return "bedrock" }

// Model implements types.LLMProvider.
func (c *Client) Model() string { return c.modelID }

// Chat sends the conversation and blocks for the complete response.
func (c *Client) Chat(ctx context.Context, messages []types.Message, catalogue []tools.Tool) (*types.LLMResponse, error) {
	params, nameMap, err := c.buildParams(messages, catalogue, false)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	var message *anthropic.Message
	if c.limiter != nil {
		result, err := c.limiter.Do(ctx, func(ctx context.Context) (interface{}, error) {
			return c.client.Messages.New(ctx, params)
		})
		if err != nil {
			return nil, fmt.Errorf("bedrock invocation failed: %w", err)
		}
		message = result.(*anthropic.Message)
	} else {
		message, err = c.client.Messages.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("bedrock invocation failed: %w", err)
		}
	}

	out := c.convertResponse(message, nameMap)
	c.finish(out, time.Since(started))
	return out, nil
}

// ChatStream streams tokens as they arrive. The stream itself is not rate
// limited; it is consumed synchronously and its usage still feeds the
// limiter's token window.
func (c *Client) ChatStream(ctx context.Context, messages []types.Message, catalogue []tools.Tool, onToken types.TokenCallback) (*types.LLMResponse, error) {
	params, nameMap, err := c.buildParams(messages, catalogue, true)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	stream := c.client.Messages.NewStreaming(ctx, params)

	var content strings.Builder
	var toolCalls []types.ToolCall
	var u types.Usage
	var stopReason string
	var messageID string

	toolInputBuffers := make(map[int64]*strings.Builder)
	blockToCall := make(map[int64]int)

	for stream.Next() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		event := stream.Current()

		switch event.Type {
		case "message_start":
			messageID = event.Message.ID
			u.InputTokens = int(event.Message.Usage.InputTokens)

		case "content_block_start":
			if event.ContentBlock.Type == "tool_use" {
				blockToCall[event.Index] = len(toolCalls)
				toolCalls = append(toolCalls, types.ToolCall{
					ID:    event.ContentBlock.ID,
					Name:  llm.ReverseToolName(nameMap, event.ContentBlock.Name),
					Input: map[string]interface{}{},
				})
				toolInputBuffers[event.Index] = &strings.Builder{}
			}

		case "content_block_delta":
			if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				content.WriteString(event.Delta.Text)
				if onToken != nil {
					onToken(event.Delta.Text)
				}
			}
			if event.Delta.Type == "input_json_delta" {
				if buf, ok := toolInputBuffers[event.Index]; ok {
					buf.WriteString(event.Delta.PartialJSON)
				}
			}

		case "content_block_stop":
			if buf, ok := toolInputBuffers[event.Index]; ok && buf.Len() > 0 {
				var input map[string]interface{}
				if err := json.Unmarshal([]byte(buf.String()), &input); err == nil {
					if idx, ok := blockToCall[event.Index]; ok && idx < len(toolCalls) {
						toolCalls[idx].Input = input
					}
				}
				delete(toolInputBuffers, event.Index)
			}

		case "message_delta":
			if event.Delta.StopReason != "" {
				stopReason = string(event.Delta.StopReason)
			}
			if event.Usage.OutputTokens > 0 {
				u.OutputTokens = int(event.Usage.OutputTokens)
			}
		}
	}
	if err := stream.Err(); err != nil && err != io.EOF {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("stream error: %w", err)
	}

	u.TotalTokens = u.InputTokens + u.OutputTokens
	out := &types.LLMResponse{
		Content:    content.String(),
		StopReason: stopReason,
		Usage:      u,
		ToolCalls:  toolCalls,
		Metadata: map[string]interface{}{
			"id":    messageID,
			"model": c.modelID,
		},
	}
	c.finish(out, time.Since(started))
	return out, nil
}

func (c *Client) finish(out *types.LLMResponse, elapsed time.Duration) {
	if c.limiter != nil {
		c.limiter.RecordTokenUsage(int64(out.Usage.InputTokens + out.Usage.OutputTokens))
	}
	c.usage.Record(usage.Record{
		Caller:       c.caller,
		Model:        c.modelID,
		InputTokens:  out.Usage.InputTokens,
		OutputTokens: out.Usage.OutputTokens,
		ElapsedMs:    elapsed.Milliseconds(),
	})
}

// buildParams converts the conversation and tool catalogue to SDK params.
func (c *Client) buildParams(messages []types.Message, catalogue []tools.Tool, streaming bool) (anthropic.MessageNewParams, map[string]string, error) {
	systemPrompt, sdkMessages := convertMessages(messages)
	if len(sdkMessages) == 0 {
		return anthropic.MessageNewParams{}, nil, fmt.Errorf("no valid messages to send")
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.modelID),
		Messages:    sdkMessages,
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	var nameMap map[string]string
	if len(catalogue) > 0 {
		var sdkTools []anthropic.ToolParam
		sdkTools, nameMap = convertTools(catalogue)
		toolUnions := make([]anthropic.ToolUnionParam, len(sdkTools))
		for i := range sdkTools {
			toolUnions[i] = anthropic.ToolUnionParam{OfTool: &sdkTools[i]}
		}
		params.Tools = toolUnions
	}
	return params, nameMap, nil
}

// convertMessages maps the internal history to SDK messages. System text is
// returned separately; document blocks are dropped (not supported here).
func convertMessages(messages []types.Message) (string, []anthropic.MessageParam) {
	var systemPrompts []string
	var sdkMessages []anthropic.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if msg.Content != "" {
				systemPrompts = append(systemPrompts, msg.Content)
			}

		case "user":
			if len(msg.ContentBlocks) > 0 {
				var content []anthropic.ContentBlockParamUnion
				for _, block := range msg.ContentBlocks {
					switch block.Type {
					case "text":
						if block.Text != "" {
							content = append(content, anthropic.NewTextBlock(block.Text))
						}
					case "image":
						if block.Image != nil && block.Image.Source.Type == "base64" {
							content = append(content, anthropic.NewImageBlockBase64(
								block.Image.Source.MediaType,
								block.Image.Source.Data,
							))
						}
					}
				}
				if len(content) > 0 {
					sdkMessages = append(sdkMessages, anthropic.NewUserMessage(content...))
				}
			} else if msg.Content != "" {
				sdkMessages = append(sdkMessages, anthropic.NewUserMessage(
					anthropic.NewTextBlock(msg.Content),
				))
			}

		case "assistant":
			var content []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				content = append(content, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var input interface{} = map[string]interface{}{}
				if tc.Input != nil {
					input = tc.Input
				}
				content = append(content, anthropic.NewToolUseBlock(tc.ID, input, llm.SanitizeToolName(tc.Name)))
			}
			if len(content) > 0 {
				sdkMessages = append(sdkMessages, anthropic.NewAssistantMessage(content...))
			}

		case "tool":
			isError := msg.ToolResult != nil && !msg.ToolResult.Success
			sdkMessages = append(sdkMessages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolUseID, msg.Content, isError),
			))
		}
	}

	return strings.Join(systemPrompts, "\n\n"), sdkMessages
}

// convertTools maps the catalogue to SDK tool params with sanitized names.
func convertTools(catalogue []tools.Tool) ([]anthropic.ToolParam, map[string]string) {
	names := make([]string, len(catalogue))
	for i, t := range catalogue {
		names[i] = t.Name()
	}
	nameMap := llm.BuildToolNameMap(names)

	sdkTools := make([]anthropic.ToolParam, 0, len(catalogue))
	for _, t := range catalogue {
		sdkTool := anthropic.ToolParam{
			Name:        llm.SanitizeToolName(t.Name()),
			Description: anthropic.String(t.Description()),
		}
		if schema := tools.NormalizeSchema(t.InputSchema()); schema != nil {
			// Round-trip through JSON to populate the SDK schema param.
			schemaJSON, _ := json.Marshal(schema.ToMap())
			var inputSchema anthropic.ToolInputSchemaParam
			_ = json.Unmarshal(schemaJSON, &inputSchema)
			sdkTool.InputSchema = inputSchema
		}
		sdkTools = append(sdkTools, sdkTool)
	}
	return sdkTools, nameMap
}

// convertResponse maps an SDK message to the internal form.
func (c *Client) convertResponse(message *anthropic.Message, nameMap map[string]string) *types.LLMResponse {
	out := &types.LLMResponse{
		StopReason: string(message.StopReason),
		Usage: types.Usage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
			TotalTokens:  int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
		Metadata: map[string]interface{}{
			"id":    message.ID,
			"model": c.modelID,
		},
	}

	for _, block := range message.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "tool_use":
			var input map[string]interface{}
			if block.Input != nil {
				_ = json.Unmarshal(block.Input, &input)
			}
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
	return out
}
