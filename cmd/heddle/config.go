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
	"fmt"
	"strings"
	"syscall"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/teradata-labs/heddle/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration and manage secrets",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd, false)
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		fmt.Printf("data_dir:            %s\n", cfg.DataDir)
		fmt.Printf("use_mcp:             %t\n", cfg.UseMCP)
		if cfg.UseMCP {
			fmt.Printf("mcp_url:             %s\n", cfg.MCPURL)
			fmt.Printf("mcp_timeout_seconds: %d\n", cfg.MCPTimeoutSeconds)
		}
		fmt.Printf("llm.provider:        %s\n", cfg.LLM.Provider)
		fmt.Printf("llm.model:           %s\n", orDefault(cfg.LLM.Model, "(provider default)"))
		fmt.Printf("llm.api_key:         %s\n", maskSecret(cfg.LLM.APIKey))
		fmt.Printf("storage.driver:      %s\n", cfg.Storage.Driver)
		fmt.Printf("storage.dsn:         %s\n", cfg.Storage.DSN)
		fmt.Printf("storage.encrypt:     %t\n", cfg.Storage.Encrypt)
		fmt.Printf("prompts.dir:         %s\n", orDefault(cfg.Prompts.Dir, "(embedded defaults)"))
		fmt.Printf("log.level:           %s\n", cfg.Log.Level)
		return nil
	},
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key <name> [value]",
	Short: "Save a secret to the system keyring",
	Long: heredoc.Doc(`
		Save a secret to the system keyring so it never has to live in a
		config file or the environment. When the value is omitted it is
		read from the terminal without echo.

		Known keys: api_key, bedrock_access_key_id,
		bedrock_secret_access_key, bedrock_session_token, db_key.
	`),
	Args: cobra.RangeArgs(1, 2),
	RunE: func(_ *cobra.Command, args []string) error {
		name := args[0]
		if !isKnownSecretKey(name) {
			return fmt.Errorf("unknown secret key %q (known: %s)",
				name, strings.Join(config.ListAvailableSecretKeys(), ", "))
		}

		var value string
		if len(args) == 2 {
			value = args[1]
		} else {
			fmt.Printf("Value for %s: ", name)
			raw, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("read secret: %w", err)
			}
			value = strings.TrimSpace(string(raw))
		}
		if value == "" {
			return fmt.Errorf("empty value for %s", name)
		}

		if err := config.SaveSecretToKeyring(name, value); err != nil {
			return fmt.Errorf("save to keyring: %w", err)
		}
		fmt.Printf("Saved %s to keyring.\n", name)
		return nil
	},
}

var configDeleteKeyCmd = &cobra.Command{
	Use:   "delete-key <name>",
	Short: "Remove a secret from the system keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if err := config.DeleteSecretFromKeyring(args[0]); err != nil {
			return fmt.Errorf("delete from keyring: %w", err)
		}
		fmt.Printf("Deleted %s from keyring.\n", args[0])
		return nil
	},
}

var configListKeysCmd = &cobra.Command{
	Use:   "list-keys",
	Short: "List known secret keys and whether each is set",
	RunE: func(_ *cobra.Command, _ []string) error {
		for _, key := range config.ListAvailableSecretKeys() {
			status := "unset"
			if v, err := config.GetSecretFromKeyring(key); err == nil && v != "" {
				status = "set"
			}
			fmt.Printf("%-28s %s\n", key, status)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetKeyCmd)
	configCmd.AddCommand(configDeleteKeyCmd)
	configCmd.AddCommand(configListKeysCmd)
	rootCmd.AddCommand(configCmd)
}

func isKnownSecretKey(name string) bool {
	for _, key := range config.ListAvailableSecretKeys() {
		if key == name {
			return true
		}
	}
	return false
}

func maskSecret(s string) string {
	if s == "" {
		return "(unset)"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "…" + s[len(s)-4:]
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
