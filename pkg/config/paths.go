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
	"os"
	"path/filepath"
	"strings"
)

// GetDataDir returns the Heddle data directory.
//
// Priority:
// 1. HEDDLE_DATA_DIR environment variable (if set and non-empty)
// 2. ~/.heddle (default)
//
// The returned path is always absolute. Tilde (~) in HEDDLE_DATA_DIR is
// expanded to the user's home directory, and relative paths are converted
// to absolute paths.
//
// This function is called during bootstrap (before the config file is
// loaded) to locate the config file itself. After config is loaded, prefer
// Config.DataDir for consistency.
//
// Examples:
//
//	HEDDLE_DATA_DIR=/custom/heddle    -> /custom/heddle
//	HEDDLE_DATA_DIR=~/my-heddle       -> /home/user/my-heddle
//	HEDDLE_DATA_DIR=relative/path     -> /current/dir/relative/path
//	HEDDLE_DATA_DIR not set           -> /home/user/.heddle
//
// Note: This function reads directly from os.Getenv(), not from viper, to
// avoid a circular dependency during config initialization.
func GetDataDir() string {
	if dataDir := os.Getenv("HEDDLE_DATA_DIR"); dataDir != "" {
		return expandPath(dataDir)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home dir cannot be determined
		return ".heddle"
	}
	return filepath.Join(homeDir, ".heddle")
}

// GetSubDir returns a subdirectory within the Heddle data directory.
// Example: GetSubDir("uploads") returns ~/.heddle/uploads
func GetSubDir(subdir string) string {
	return filepath.Join(GetDataDir(), subdir)
}

// expandPath expands ~ and resolves to absolute path
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path // Return as-is if we can't get home dir
		}
		return filepath.Join(homeDir, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return path // Return as-is if we can't make it absolute
	}
	return absPath
}
