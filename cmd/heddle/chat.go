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
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/pkg/agent"
	"github.com/teradata-labs/heddle/pkg/tools"
	"github.com/teradata-labs/heddle/pkg/uploads"
)

// localUser scopes library access for the single-user CLI.
const localUser = "local"

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Converse with the workflow assistant",
	Long: heredoc.Doc(`
		Start a line-oriented chat session against the orchestrator. Each
		message runs one full turn: the model may call workflow tools,
		analyze uploaded flowchart images, and edit the library.

		Commands inside the session:
		  /upload <path>   attach an image or PDF to the next message
		  /new             start a fresh conversation
		  /quit            exit

		Ctrl-C cancels the in-flight turn without ending the session; text
		already streamed is kept in the conversation.
	`),
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd, true)
	},
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.janitor.Start(); err != nil {
		rt.logger.Warn("upload janitor not started", zap.Error(err))
	}

	ctx := cmd.Context()
	dispatcher, err := agent.NewDispatcher(ctx, agent.TransportConfig{
		UseMCP:     cfg.UseMCP,
		MCPURL:     cfg.MCPURL,
		MCPTimeout: cfg.MCPTimeout(),
	}, rt.registry, rt.logger)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	provider, err := buildProvider(cfg, rt.usage, "orchestrator")
	if err != nil {
		return err
	}

	conversations := agent.NewConversationStore(func(conversationID string) (*agent.Orchestrator, error) {
		return agent.NewOrchestrator(agent.Config{
			ConversationID: conversationID,
			UserID:         localUser,
			Provider:       provider,
			Dispatcher:     dispatcher,
			Prompts:        rt.prompts,
			Store:          rt.store,
			DataDir:        cfg.DataDir,
			Logger:         rt.logger.Named("orchestrator"),
		})
	})

	conv, err := conversations.GetOrCreate("")
	if err != nil {
		return err
	}

	fmt.Printf("heddle chat — %s via %s (conversation %s)\n", provider.Model(), provider.Name(), conv.ID)
	fmt.Println("Type a message, /upload <path> to attach a flowchart, /quit to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	pendingFiles := false

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit", line == "/exit":
			return nil

		case line == "/new":
			conv, err = conversations.GetOrCreate("")
			if err != nil {
				return err
			}
			pendingFiles = false
			fmt.Printf("started conversation %s\n", conv.ID)
			continue

		case strings.HasPrefix(line, "/upload "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/upload "))
			name, err := ingestUpload(rt.uploads, conv.Orchestrator, path)
			if err != nil {
				fmt.Fprintln(os.Stderr, "upload failed:", err)
				continue
			}
			pendingFiles = true
			fmt.Printf("attached %s\n", name)
			continue

		case strings.HasPrefix(line, "/"):
			fmt.Fprintln(os.Stderr, "unknown command:", line)
			continue
		}

		runTurn(ctx, conv.Orchestrator, line, pendingFiles)
		pendingFiles = false
	}
}

// runTurn drives one turn with Ctrl-C bound to turn cancellation.
func runTurn(ctx context.Context, orch *agent.Orchestrator, message string, hasFiles bool) {
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	_, err := orch.Respond(turnCtx, agent.Turn{
		Message:    message,
		HasFiles:   hasFiles,
		AllowTools: true,
		OnToken: func(token string) {
			fmt.Print(token)
		},
		OnToolEvent: func(ev agent.ToolEvent) {
			switch ev.Type {
			case agent.EventToolStart:
				fmt.Printf("\n[%s...]\n", ev.ToolName)
			case agent.EventToolComplete:
				if ev.Result != nil && !ev.Result.Success && ev.Result.Error != nil {
					fmt.Printf("[%s failed: %s]\n", ev.ToolName, ev.Result.Error.Message)
				}
			}
		},
	})
	fmt.Println()

	switch {
	case turnCtx.Err() != nil:
		fmt.Println("(turn cancelled)")
	case errors.Is(err, agent.ErrIterationBudget):
		// The budget notice is already part of the streamed answer.
	case err != nil:
		fmt.Fprintln(os.Stderr, "turn failed:", err)
	}
}

// ingestUpload stores a local file through the upload manager and attaches
// it to the conversation, unclassified.
func ingestUpload(mgr *uploads.Manager, orch *agent.Orchestrator, path string) (string, error) {
	if path == "" {
		return "", errors.New("usage: /upload <path>")
	}
	media, ok := mediaTypeForPath(path)
	if !ok {
		return "", fmt.Errorf("unsupported file type %q (png, jpeg, webp, gif, bmp, pdf)", filepath.Ext(path))
	}

	raw, err := os.ReadFile(path) // #nosec G304 -- path from interactive user input
	if err != nil {
		return "", err
	}
	dataURL := "data:" + media + ";base64," + base64.StdEncoding.EncodeToString(raw)

	saved, err := mgr.SaveDataURL(dataURL)
	if err != nil {
		return "", err
	}

	name := filepath.Base(path)
	orch.AttachUpload(tools.UploadedFile{
		ID:       saved.ID,
		Name:     name,
		Path:     saved.RelPath,
		FileType: saved.FileType,
		Purpose:  tools.PurposeUnclassified,
	})
	return name, nil
}

// mediaTypeForPath maps a file extension to its upload media type.
func mediaTypeForPath(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png", true
	case ".jpg", ".jpeg":
		return "image/jpeg", true
	case ".webp":
		return "image/webp", true
	case ".gif":
		return "image/gif", true
	case ".bmp":
		return "image/bmp", true
	case ".pdf":
		return "application/pdf", true
	}
	return "", false
}
