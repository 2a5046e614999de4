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
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/internal/version"
	"github.com/teradata-labs/heddle/pkg/mcp/server"
	"github.com/teradata-labs/heddle/pkg/mcp/transport"
	"github.com/teradata-labs/heddle/pkg/tools"
)

var serveMCPCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Serve the tool registry over MCP",
	Long: heredoc.Doc(`
		Host the full Heddle tool registry as an MCP server, so remote
		orchestrators (use_mcp: true) and MCP hosts like Claude Desktop can
		dispatch workflow tools against this machine's library.

		With --transport stdio the server speaks JSON-RPC on stdin/stdout;
		logs go to stderr. With --transport http it listens on --addr with
		the streamable HTTP transport. The HTTP transport carries no
		authentication: bind it to localhost.
	`),
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd, true)
	},
	RunE: runServeMCP,
}

func init() {
	serveMCPCmd.Flags().String("transport", "stdio", "transport (stdio, http)")
	serveMCPCmd.Flags().String("addr", "localhost:8700", "listen address for the http transport")
	serveMCPCmd.Flags().String("path", "/mcp", "endpoint path for the http transport")
	rootCmd.AddCommand(serveMCPCmd)
}

func runServeMCP(cmd *cobra.Command, _ []string) error {
	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.janitor.Start(); err != nil {
		rt.logger.Warn("upload janitor not started", zap.Error(err))
	}

	bridge, err := server.NewRegistryBridge(server.BridgeConfig{
		Executor: tools.NewExecutor(rt.registry),
		Store:    rt.store,
		Prompts:  rt.prompts,
		DataDir:  cfg.DataDir,
		UserID:   localUser,
		Logger:   rt.logger.Named("bridge"),
	})
	if err != nil {
		return err
	}

	mcpServer := server.NewMCPServer("heddle-mcp", version.Get(), rt.logger.Named("mcp"),
		server.WithToolProvider(bridge),
		server.WithResourceProvider(bridge),
		server.WithPromptProvider(bridge),
	)
	bridge.SetOnLibraryChanged(mcpServer.NotifyResourceListChanged)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode, _ := cmd.Flags().GetString("transport")
	switch mode {
	case "stdio":
		return serveStdio(ctx, mcpServer)
	case "http":
		addr, _ := cmd.Flags().GetString("addr")
		path, _ := cmd.Flags().GetString("path")
		return serveHTTP(ctx, mcpServer, rt.logger, addr, path)
	default:
		return fmt.Errorf("unsupported transport: %s (supported: stdio, http)", mode)
	}
}

func serveStdio(ctx context.Context, mcpServer *server.MCPServer) error {
	t := transport.NewStdioServerTransport(os.Stdin, os.Stdout)
	err := mcpServer.Serve(ctx, t)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
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
