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
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/internal/log"
	"github.com/teradata-labs/heddle/pkg/config"
	"github.com/teradata-labs/heddle/pkg/llm/factory"
	"github.com/teradata-labs/heddle/pkg/llm/usage"
	"github.com/teradata-labs/heddle/pkg/prompts"
	"github.com/teradata-labs/heddle/pkg/tools"
	"github.com/teradata-labs/heddle/pkg/tools/builtin"
	"github.com/teradata-labs/heddle/pkg/types"
	"github.com/teradata-labs/heddle/pkg/uploads"
	"github.com/teradata-labs/heddle/pkg/vision"
	"github.com/teradata-labs/heddle/pkg/workflow/store"
)

// runtime is the process-level assembly shared by the chat REPL and the
// embedded MCP server: the workflow library, the prompt registry, the
// upload manager, the vision subagent, and the builtin tool registry.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    store.Store
	prompts  prompts.PromptRegistry
	uploads  *uploads.Manager
	analyzer *vision.Analyzer
	registry *tools.Registry
	usage    *usage.FileSink
	janitor  *uploads.Janitor

	stopWatch context.CancelFunc
}

// buildRuntime assembles the runtime from loaded config.
func buildRuntime(cfg *config.Config) (*runtime, error) {
	logger := log.Logger()

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", cfg.DataDir, err)
	}

	st, err := store.Open(store.Config{
		Driver:        cfg.Storage.Driver,
		DSN:           cfg.Storage.DSN,
		Encrypt:       cfg.Storage.Encrypt,
		EncryptionKey: cfg.Storage.EncryptionKey,
	})
	if err != nil {
		return nil, fmt.Errorf("open workflow store: %w", err)
	}

	sink := usage.NewFileSink(cfg.TokensLogFile, cfg.TokensSummaryFile)

	reg := prompts.NewFileRegistry(cfg.Prompts.Dir)
	var promptReg prompts.PromptRegistry = reg
	var stopWatch context.CancelFunc
	if cfg.Prompts.Dir != "" && cfg.Prompts.HotReload {
		watchCtx, cancel := context.WithCancel(context.Background())
		updates, err := reg.Watch(watchCtx)
		if err != nil {
			cancel()
			st.Close()
			return nil, fmt.Errorf("watch prompts dir: %w", err)
		}
		stopWatch = cancel
		go func() {
			for upd := range updates {
				logger.Info("prompt reloaded",
					zap.String("key", upd.Key),
					zap.String("action", upd.Action))
			}
		}()
	}

	uploadMgr := uploads.NewManager(cfg.DataDir)

	subagentProvider, err := buildProvider(cfg, sink, "subagent")
	if err != nil {
		if stopWatch != nil {
			stopWatch()
		}
		st.Close()
		return nil, err
	}
	analyzer, err := vision.NewAnalyzer(vision.Config{
		Provider: subagentProvider,
		Prompts:  promptReg,
		Uploads:  uploadMgr,
		Logger:   logger.Named("vision"),
	})
	if err != nil {
		if stopWatch != nil {
			stopWatch()
		}
		st.Close()
		return nil, fmt.Errorf("build analyzer: %w", err)
	}

	toolReg := tools.NewRegistry()
	builtin.RegisterAll(toolReg, builtin.Deps{Analyzer: analyzer})

	janitor, err := uploads.NewJanitor(uploads.JanitorConfig{
		UploadsDir: uploadMgr.Dir(),
		Retention:  cfg.Uploads.Retention,
		Sweepers:   []uploads.SessionSweeper{analyzer.Sessions()},
		Logger:     logger.Named("janitor"),
	})
	if err != nil {
		if stopWatch != nil {
			stopWatch()
		}
		st.Close()
		return nil, fmt.Errorf("build janitor: %w", err)
	}

	return &runtime{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		prompts:   promptReg,
		uploads:   uploadMgr,
		analyzer:  analyzer,
		registry:  toolReg,
		usage:     sink,
		janitor:   janitor,
		stopWatch: stopWatch,
	}, nil
}

// buildProvider constructs one tagged LLM provider from config.
func buildProvider(cfg *config.Config, sink usage.Sink, caller string) (types.LLMProvider, error) {
	f := factory.NewProviderFactory(factory.FactoryConfig{
		DefaultProvider:        cfg.LLM.Provider,
		DefaultModel:           cfg.LLM.Model,
		AnthropicAPIKey:        cfg.LLM.APIKey,
		AnthropicEndpoint:      cfg.LLM.AnthropicEndpoint,
		BedrockRegion:          cfg.LLM.BedrockRegion,
		BedrockAccessKeyID:     cfg.LLM.BedrockAccessKeyID,
		BedrockSecretAccessKey: cfg.LLM.BedrockSecretAccessKey,
		BedrockSessionToken:    cfg.LLM.BedrockSessionToken,
		BedrockProfile:         cfg.LLM.BedrockProfile,
		MaxTokens:              cfg.LLM.MaxTokens,
		Temperature:            cfg.LLM.Temperature,
		Timeout:                cfg.LLM.Timeout,
		Caller:                 caller,
		Usage:                  sink,
	})
	provider, err := f.CreateProvider(cfg.LLM.Provider, cfg.LLM.Model)
	if err != nil {
		return nil, fmt.Errorf("build %s provider: %w", caller, err)
	}
	return provider, nil
}

// Close releases everything the runtime holds.
func (r *runtime) Close() {
	if r.stopWatch != nil {
		r.stopWatch()
	}
	if err := r.janitor.Stop(context.Background()); err != nil {
		r.logger.Warn("stopping janitor", zap.Error(err))
	}
	if err := r.store.Close(); err != nil {
		r.logger.Warn("closing workflow store", zap.Error(err))
	}
}
