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

// Package factory builds LLM providers from configuration.
package factory

import (
	"fmt"
	"os"
	"time"

	"github.com/teradata-labs/heddle/pkg/llm"
	"github.com/teradata-labs/heddle/pkg/llm/anthropic"
	"github.com/teradata-labs/heddle/pkg/llm/bedrock"
	"github.com/teradata-labs/heddle/pkg/llm/usage"
	"github.com/teradata-labs/heddle/pkg/types"
)

// ProviderFactory creates LLM providers from configuration.
type ProviderFactory struct {
	config FactoryConfig
}

// FactoryConfig holds configuration for creating LLM providers.
type FactoryConfig struct {
	// DefaultProvider is used when CreateProvider is called without one.
	DefaultProvider string
	DefaultModel    string

	// Anthropic configuration.
	AnthropicAPIKey   string
	AnthropicEndpoint string

	// Bedrock configuration.
	BedrockRegion          string
	BedrockAccessKeyID     string
	BedrockSecretAccessKey string
	BedrockSessionToken    string
	BedrockProfile         string

	// Common settings.
	MaxTokens   int
	Temperature float64
	Timeout     int // seconds

	// Caller tags usage records from providers built here.
	Caller string

	// RateLimiter, when non-nil with Enabled set, turns on the shared
	// per-provider limiter.
	RateLimiter *llm.RateLimiterConfig

	// Usage receives per-call token records from every provider built
	// here. Nil means discard.
	Usage usage.Sink
}

// NewProviderFactory creates a provider factory with defaults applied.
func NewProviderFactory(config FactoryConfig) *ProviderFactory {
	if config.DefaultProvider == "" {
		config.DefaultProvider = "anthropic"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 4096
	}
	if config.Temperature == 0 {
		config.Temperature = 1.0
	}
	if config.Timeout == 0 {
		config.Timeout = 60
	}
	return &ProviderFactory{config: config}
}

// CreateProvider creates a provider of the given type. Empty provider and
// model fall back to the factory defaults.
func (f *ProviderFactory) CreateProvider(provider, model string) (types.LLMProvider, error) {
	if provider == "" {
		provider = f.config.DefaultProvider
	}
	if model == "" {
		model = f.config.DefaultModel
	}

	switch provider {
	case "anthropic":
		return f.createAnthropicProvider(model)
	case "bedrock":
		return f.createBedrockProvider(model)
	default:
		return nil, fmt.Errorf("unsupported provider: %s (supported: anthropic, bedrock)", provider)
	}
}

func (f *ProviderFactory) createAnthropicProvider(model string) (types.LLMProvider, error) {
	apiKey := f.config.AnthropicAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key not configured (set llm.api_key or ANTHROPIC_API_KEY)")
	}

	return anthropic.NewClient(anthropic.Config{
		APIKey:      apiKey,
		Model:       model,
		Endpoint:    f.config.AnthropicEndpoint,
		MaxTokens:   f.config.MaxTokens,
		Temperature: f.config.Temperature,
		Timeout:     time.Duration(f.config.Timeout) * time.Second,
		Caller:      f.config.Caller,
		RateLimiter: f.config.RateLimiter,
		Usage:       f.config.Usage,
	})
}

func (f *ProviderFactory) createBedrockProvider(model string) (types.LLMProvider, error) {
	region := f.config.BedrockRegion
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	return bedrock.NewClient(bedrock.Config{
		Region:          region,
		AccessKeyID:     f.config.BedrockAccessKeyID,
		SecretAccessKey: f.config.BedrockSecretAccessKey,
		SessionToken:    f.config.BedrockSessionToken,
		Profile:         f.config.BedrockProfile,
		ModelID:         model,
		MaxTokens:       f.config.MaxTokens,
		Temperature:     f.config.Temperature,
		Caller:          f.config.Caller,
		RateLimiter:     f.config.RateLimiter,
		Usage:           f.config.Usage,
	})
}

// IsProviderAvailable reports whether a provider has enough configuration
// to be constructed.
func (f *ProviderFactory) IsProviderAvailable(provider string) bool {
	_, err := f.CreateProvider(provider, "")
	return err == nil
}
