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
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/teradata-labs/heddle/internal/log"
	"github.com/teradata-labs/heddle/internal/version"
	"github.com/teradata-labs/heddle/pkg/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "heddle",
	Short: "Heddle - flowchart images to executable workflows",
	Long: heredoc.Doc(`
		Heddle converts hand-drawn or screenshot flowchart images into
		validated workflow graphs through a conversational LLM loop, and
		keeps the results in a persistent workflow library.

		Start with 'heddle chat', attach an image with /upload, and ask for
		an analysis. Published workflows can be listed, exported, and
		compiled to Python from the library subcommands.
	`),
	Version:       version.Get(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: $HEDDLE_DATA_DIR/heddle.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "log in JSON format")
}

// loadConfig loads and validates configuration for commands that need the
// full runtime. Commands that only touch the keyring skip validation.
func loadConfig(cmd *cobra.Command, validate bool) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	jsonFormat, _ := cmd.Flags().GetBool("log-json")
	if err := log.Init(cfg.Log.Level, jsonFormat); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	if validate {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	return nil
}
