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

// heddle-mcp is a standalone MCP (Model Context Protocol) server exposing
// the Heddle workflow tool registry. It is the remote half of the MCP
// transport mode: a heddle process started with use_mcp dispatches every
// tool call here, and MCP hosts like Claude Desktop can drive the same
// tools directly.
//
// Over stdio the server speaks JSON-RPC on stdin/stdout, so logs go to a
// file or stderr, never stdout. Over HTTP it serves the streamable
// transport on one endpoint.
//
// Claude Desktop configuration (claude_desktop_config.json):
//
//	{
//	  "mcpServers": {
//	    "heddle": {
//	      "command": "/path/to/heddle-mcp",
//	      "args": ["--transport", "stdio"]
//	    }
//	  }
//	}
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/teradata-labs/heddle/internal/version"
	"github.com/teradata-labs/heddle/pkg/config"
	"github.com/teradata-labs/heddle/pkg/llm/factory"
	"github.com/teradata-labs/heddle/pkg/llm/usage"
	"github.com/teradata-labs/heddle/pkg/mcp/server"
	"github.com/teradata-labs/heddle/pkg/mcp/transport"
	"github.com/teradata-labs/heddle/pkg/prompts"
	"github.com/teradata-labs/heddle/pkg/tools"
	"github.com/teradata-labs/heddle/pkg/tools/builtin"
	"github.com/teradata-labs/heddle/pkg/uploads"
	"github.com/teradata-labs/heddle/pkg/vision"
	"github.com/teradata-labs/heddle/pkg/workflow/store"
)

const serverName = "heddle-mcp"

func main() {
	cfgFile := flag.String("config", "", "config file (default: $HEDDLE_DATA_DIR/heddle.yaml)")
	transportMode := flag.String("transport", "stdio", "transport (stdio, http)")
	addr := flag.String("addr", "localhost:8700", "listen address for the http transport")
	path := flag.String("path", "/mcp", "endpoint path for the http transport")
	userID := flag.String("user", "local", "user the served library belongs to")
	logFile := flag.String("log-file", "", "log file path (default: stderr)")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	// stdio mode owns stdout for the MCP transport; the logger must never
	// write there.
	logger, err := buildLogger(*logFile, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(*cfgFile, *transportMode, *addr, *path, *userID, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfgFile, transportMode, addr, path, userID string, logger *zap.Logger) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Info("starting heddle-mcp",
		zap.String("version", version.Get()),
		zap.String("transport", transportMode),
		zap.String("storage", cfg.Storage.Driver))

	st, err := store.Open(store.Config{
		Driver:        cfg.Storage.Driver,
		DSN:           cfg.Storage.DSN,
		Encrypt:       cfg.Storage.Encrypt,
		EncryptionKey: cfg.Storage.EncryptionKey,
	})
	if err != nil {
		return fmt.Errorf("open workflow store: %w", err)
	}
	defer st.Close()

	promptReg := prompts.NewFileRegistry(cfg.Prompts.Dir)
	reg := tools.NewRegistry()
	builtin.RegisterAll(reg, builtin.Deps{
		Analyzer: buildAnalyzer(cfg, promptReg, logger),
	})

	bridge, err := server.NewRegistryBridge(server.BridgeConfig{
		Executor: tools.NewExecutor(reg),
		Store:    st,
		Prompts:  promptReg,
		DataDir:  cfg.DataDir,
		UserID:   userID,
		Logger:   logger.Named("bridge"),
	})
	if err != nil {
		return err
	}

	mcpServer := server.NewMCPServer(serverName, version.Get(), logger,
		server.WithToolProvider(bridge),
		server.WithResourceProvider(bridge),
		server.WithPromptProvider(bridge),
	)
	bridge.SetOnLibraryChanged(mcpServer.NotifyResourceListChanged)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch transportMode {
	case "stdio":
		logger.Info("mcp server ready on stdio")
		err := mcpServer.Serve(ctx, transport.NewStdioServerTransport(os.Stdin, os.Stdout))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err

	case "http":
		return serveHTTP(ctx, mcpServer, logger, addr, path)

	default:
		return fmt.Errorf("unsupported transport: %s (supported: stdio, http)", transportMode)
	}
}

// buildAnalyzer wires the vision subagent when a provider is configured.
// Without one the server still runs; only the analysis tools are absent.
func buildAnalyzer(cfg *config.Config, promptReg prompts.PromptRegistry, logger *zap.Logger) *vision.Analyzer {
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
		Caller:                 "subagent",
		Usage:                  usage.NewFileSink(cfg.TokensLogFile, cfg.TokensSummaryFile),
	})
	provider, err := f.CreateProvider(cfg.LLM.Provider, cfg.LLM.Model)
	if err != nil {
		logger.Warn("vision provider unavailable, analysis tools disabled", zap.Error(err))
		return nil
	}

	analyzer, err := vision.NewAnalyzer(vision.Config{
		Provider: provider,
		Prompts:  promptReg,
		Uploads:  uploads.NewManager(cfg.DataDir),
		Logger:   logger.Named("vision"),
	})
	if err != nil {
		logger.Warn("vision analyzer unavailable, analysis tools disabled", zap.Error(err))
		return nil
	}
	return analyzer
}

func serveHTTP(ctx context.Context, mcpServer *server.MCPServer, logger *zap.Logger, addr, path string) error {
	transport.WarnIfNotLocalhost(logger, addr)

	httpTransport, err := transport.NewStreamableHTTPServer(transport.StreamableHTTPServerConfig{
		Handler: func(msg []byte) ([]byte, error) {
			return mcpServer.HandleMessage(ctx, msg)
		},
		Logger:     logger.Named("http"),
		SessionTTL: 30 * time.Minute,
	})
	if err != nil {
		return err
	}
	defer httpTransport.Close()

	mux := http.NewServeMux()
	mux.Handle(path, httpTransport)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mcp http server listening",
			zap.String("addr", addr),
			zap.String("path", path))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// buildLogger creates the process logger. Over the stdio transport stdout
// belongs to JSON-RPC, so output goes to the given file or stderr.
func buildLogger(logFile, logLevel string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(logLevel)); err != nil {
		lvl = zapcore.InfoLevel
	}

	var output zapcore.WriteSyncer
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304 -- log file path from CLI flag
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", logFile, err)
		}
		output = zapcore.AddSync(f)
	} else {
		output = zapcore.AddSync(os.Stderr)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), output, lvl)
	return zap.New(core), nil
}
