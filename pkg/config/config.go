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
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
)

const (
	// ServiceName for keyring storage
	ServiceName = "heddle"
	// DefaultConfigFileName is the name of the config file
	DefaultConfigFileName = "heddle"
)

// Config holds all configuration for Heddle.
// Priority: CLI flags > env vars > config file > defaults
type Config struct {
	// DataDir is the Heddle data directory (computed from HEDDLE_DATA_DIR env var or ~/.heddle)
	// This field is set during config initialization and is read-only.
	// It is not loaded from the config file - use HEDDLE_DATA_DIR to override.
	DataDir string `mapstructure:"-"`

	// UseMCP dispatches tool calls over a remote MCP server instead of the
	// in-process registry.
	UseMCP bool `mapstructure:"use_mcp"`

	// MCPURL is the streamable HTTP endpoint of the remote MCP server.
	MCPURL string `mapstructure:"mcp_url"`

	// MCPTimeoutSeconds bounds each remote request. Zero means the client default.
	MCPTimeoutSeconds int `mapstructure:"mcp_timeout_seconds"`

	// TokensLogFile is where per-call LLM usage records are mirrored.
	TokensLogFile string `mapstructure:"tokens_log_file"`

	// TokensSummaryFile is where the rolled-up usage summary is mirrored.
	TokensSummaryFile string `mapstructure:"tokens_summary_file"`

	// LLM provider configuration
	LLM LLMConfig `mapstructure:"llm"`

	// Storage configuration for the workflow store
	Storage StorageConfig `mapstructure:"storage"`

	// Prompts configuration (for PromptRegistry overrides)
	Prompts PromptsConfig `mapstructure:"prompts"`

	// Uploads configuration (janitor retention)
	Uploads UploadsConfig `mapstructure:"uploads"`

	// Log configuration
	Log LogConfig `mapstructure:"log"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider string `mapstructure:"provider"` // anthropic, bedrock
	Model    string `mapstructure:"model"`    // Empty means the provider default

	// Anthropic-specific
	APIKey            string `mapstructure:"api_key"` // From CLI/env/keyring only
	AnthropicEndpoint string `mapstructure:"anthropic_endpoint"`

	// Bedrock-specific
	BedrockRegion          string `mapstructure:"bedrock_region"`
	BedrockAccessKeyID     string `mapstructure:"bedrock_access_key_id"`     // From CLI/env/keyring only
	BedrockSecretAccessKey string `mapstructure:"bedrock_secret_access_key"` // From CLI/env/keyring only
	BedrockSessionToken    string `mapstructure:"bedrock_session_token"`     // From CLI/env/keyring only
	BedrockProfile         string `mapstructure:"bedrock_profile"`

	// Common generation parameters
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Timeout     int     `mapstructure:"timeout_seconds"`
}

// StorageConfig holds workflow store configuration.
type StorageConfig struct {
	Driver        string `mapstructure:"driver"`         // memory, sqlite, postgres, mysql
	DSN           string `mapstructure:"dsn"`            // File path for sqlite, connection string otherwise
	Encrypt       bool   `mapstructure:"encrypt"`        // SQLCipher at-rest encryption (sqlite only)
	EncryptionKey string `mapstructure:"encryption_key"` // From CLI/env/keyring only
}

// PromptsConfig holds prompt registry configuration.
type PromptsConfig struct {
	// Dir is an override directory of prompt YAML files layered on top of
	// the embedded defaults. Empty means embedded defaults only.
	Dir string `mapstructure:"dir"`

	// HotReload re-reads override files when they change on disk.
	HotReload bool `mapstructure:"hot_reload"`
}

// UploadsConfig holds upload janitor configuration.
type UploadsConfig struct {
	// Retention is how long an upload survives past its last modification
	// before the janitor removes it. Zero means the janitor default.
	Retention time.Duration `mapstructure:"retention"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
}

// Load loads configuration from multiple sources with proper priority:
// 1. Command line flags (highest priority)
// 2. Environment variables (prefix HEDDLE, dots become underscores)
// 3. Config file
// 4. Defaults (lowest priority)
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Setup config file
	if cfgFile != "" {
		// Use config file from flag
		v.SetConfigFile(cfgFile)
	} else {
		// Search for config in standard locations
		v.AddConfigPath(GetDataDir())          // Heddle data directory (respects HEDDLE_DATA_DIR)
		v.AddConfigPath(".")                   // Current directory
		v.AddConfigPath("/etc/heddle/")        // System-wide
		v.SetConfigName(DefaultConfigFileName) // heddle.yaml
		v.SetConfigType("yaml")
	}

	// Read config file (if it exists)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error occurred
			return nil, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
		// Config file not found; using defaults + env vars + flags
	}

	// Bind environment variables. HEDDLE_USE_MCP=1 sets use_mcp,
	// HEDDLE_LLM_API_KEY sets llm.api_key, and so on.
	v.SetEnvPrefix("HEDDLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Set DataDir from environment or default
	// This must be done after unmarshal since it's not loaded from config file
	config.DataDir = GetDataDir()

	// Load secrets from keyring if not provided via CLI/env
	// Non-fatal: keyring might not be available - user can provide secrets via CLI/env
	_ = loadSecretsFromKeyring(&config)

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	dataDir := GetDataDir()

	// Transport defaults
	v.SetDefault("use_mcp", false)
	v.SetDefault("mcp_url", "http://localhost:8700/mcp")
	v.SetDefault("mcp_timeout_seconds", 30)

	// Token usage sinks
	v.SetDefault("tokens_log_file", filepath.Join(dataDir, "tokens_log.json"))
	v.SetDefault("tokens_summary_file", filepath.Join(dataDir, "tokens_summary.json"))

	// LLM defaults
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.anthropic_endpoint", "")
	v.SetDefault("llm.bedrock_region", "us-west-2")
	v.SetDefault("llm.bedrock_access_key_id", "")
	v.SetDefault("llm.bedrock_secret_access_key", "")
	v.SetDefault("llm.bedrock_session_token", "")
	v.SetDefault("llm.bedrock_profile", "")
	v.SetDefault("llm.temperature", 1.0)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.timeout_seconds", 60)

	// Storage defaults
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", filepath.Join(dataDir, "workflows.db"))
	v.SetDefault("storage.encrypt", false)
	v.SetDefault("storage.encryption_key", "")

	// Prompts defaults (empty dir means embedded defaults only)
	v.SetDefault("prompts.dir", "")
	v.SetDefault("prompts.hot_reload", false)

	// Uploads defaults
	v.SetDefault("uploads.retention", 24*time.Hour)

	// Logging defaults
	v.SetDefault("log.level", "info")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "anthropic":
		if c.LLM.APIKey == "" && os.Getenv("ANTHROPIC_API_KEY") == "" {
			return fmt.Errorf("anthropic API key is required (set HEDDLE_LLM_API_KEY, ANTHROPIC_API_KEY, or save to keyring with 'heddle config set-key api_key')")
		}

	case "bedrock":
		if c.LLM.BedrockRegion == "" {
			return fmt.Errorf("bedrock region is required (set llm.bedrock_region in config or HEDDLE_LLM_BEDROCK_REGION env var)")
		}
		// Note: We don't require explicit credentials here because:
		// - User might be using AWS profile (BedrockProfile)
		// - User might be using IAM role (default credentials chain)
		// - User might be using environment variables (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY)
		// The Bedrock client will handle auth validation at runtime

	default:
		return fmt.Errorf("unsupported llm provider: %s (supported: anthropic, bedrock)", c.LLM.Provider)
	}

	switch c.Storage.Driver {
	case "memory", "sqlite", "sqlite3", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported storage driver: %s (supported: memory, sqlite, postgres, mysql)", c.Storage.Driver)
	}
	if c.Storage.Driver != "memory" && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for driver %s", c.Storage.Driver)
	}

	if c.UseMCP && c.MCPURL == "" {
		return fmt.Errorf("use_mcp is set but mcp_url is empty")
	}
	if c.MCPTimeoutSeconds < 0 {
		return fmt.Errorf("mcp_timeout_seconds must not be negative: %d", c.MCPTimeoutSeconds)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %s (supported: debug, info, warn, error)", c.Log.Level)
	}

	return nil
}

// MCPTimeout returns the remote dispatch timeout as a duration.
// Zero means the MCP client default.
func (c *Config) MCPTimeout() time.Duration {
	return time.Duration(c.MCPTimeoutSeconds) * time.Second
}

// SecretMapping defines how to load a secret from keyring into the config.
// The key is the keyring key name, and the setter is a function that applies the value to the config.
type SecretMapping struct {
	KeyringKey string
	Setter     func(*Config, string)
	IsSet      func(*Config) bool // Returns true if the value is already set (skip keyring lookup)
}

// GetSecretMappings returns all secret mappings for the application.
// Developers can extend this by adding new SecretMapping entries.
func GetSecretMappings() []SecretMapping {
	return []SecretMapping{
		{
			KeyringKey: "api_key",
			Setter:     func(c *Config, val string) { c.LLM.APIKey = val },
			IsSet:      func(c *Config) bool { return c.LLM.APIKey != "" },
		},
		{
			KeyringKey: "bedrock_access_key_id",
			Setter:     func(c *Config, val string) { c.LLM.BedrockAccessKeyID = val },
			IsSet:      func(c *Config) bool { return c.LLM.BedrockAccessKeyID != "" },
		},
		{
			KeyringKey: "bedrock_secret_access_key",
			Setter:     func(c *Config, val string) { c.LLM.BedrockSecretAccessKey = val },
			IsSet:      func(c *Config) bool { return c.LLM.BedrockSecretAccessKey != "" },
		},
		{
			KeyringKey: "bedrock_session_token",
			Setter:     func(c *Config, val string) { c.LLM.BedrockSessionToken = val },
			IsSet:      func(c *Config) bool { return c.LLM.BedrockSessionToken != "" },
		},
		{
			KeyringKey: "db_key",
			Setter:     func(c *Config, val string) { c.Storage.EncryptionKey = val },
			IsSet:      func(c *Config) bool { return c.Storage.EncryptionKey != "" },
		},
	}
}

// loadSecretsFromKeyring loads API keys from system keyring using the secret mappings.
// This is extensible - just add more entries to GetSecretMappings().
func loadSecretsFromKeyring(config *Config) error {
	for _, mapping := range GetSecretMappings() {
		// Skip if value is already set (from CLI/env/config file)
		if mapping.IsSet(config) {
			continue
		}

		// Try to load from keyring
		value, err := GetSecretFromKeyring(mapping.KeyringKey)
		if err == nil && value != "" {
			mapping.Setter(config, value)
		}
		// Non-fatal: if keyring doesn't have the key, just continue
	}

	return nil
}

// GetSecretFromKeyring retrieves a secret from the system keyring.
func GetSecretFromKeyring(key string) (string, error) {
	return keyring.Get(ServiceName, key)
}

// SaveSecretToKeyring saves a secret to the system keyring.
func SaveSecretToKeyring(key, value string) error {
	return keyring.Set(ServiceName, key, value)
}

// DeleteSecretFromKeyring removes a secret from the system keyring.
func DeleteSecretFromKeyring(key string) error {
	return keyring.Delete(ServiceName, key)
}

// ListAvailableSecretKeys returns all known secret keys that can be stored in the keyring.
// Useful for CLI commands that need to show available options.
func ListAvailableSecretKeys() []string {
	mappings := GetSecretMappings()
	keys := make([]string, len(mappings))
	for i, mapping := range mappings {
		keys[i] = mapping.KeyringKey
	}
	return keys
}
