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
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/teradata-labs/heddle/pkg/workflow"
	"github.com/teradata-labs/heddle/pkg/workflow/store"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Browse and export the workflow library",
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflows in the library",
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd, false)
	},
	RunE: runLibraryList,
}

var libraryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the library to JSON or XLSX",
	Long: heredoc.Doc(`
		Export the workflow library to a file. JSON exports carry the full
		workflow definitions; XLSX exports one summary row per workflow,
		suitable for review outside Heddle.
	`),
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd, false)
	},
	RunE: runLibraryExport,
}

func init() {
	libraryListCmd.Flags().Bool("drafts", false, "include draft workflows")
	libraryListCmd.Flags().String("domain", "", "filter by domain")

	libraryExportCmd.Flags().Bool("drafts", false, "include draft workflows")
	libraryExportCmd.Flags().String("format", "json", "export format (json, xlsx)")
	libraryExportCmd.Flags().String("out", "", "output file (default: heddle-library.<format>)")

	libraryCmd.AddCommand(libraryListCmd)
	libraryCmd.AddCommand(libraryExportCmd)
	rootCmd.AddCommand(libraryCmd)
}

// openStore opens the configured workflow store for library commands that
// do not need the full runtime.
func openStore() (store.Store, error) {
	return store.Open(store.Config{
		Driver:        cfg.Storage.Driver,
		DSN:           cfg.Storage.DSN,
		Encrypt:       cfg.Storage.Encrypt,
		EncryptionKey: cfg.Storage.EncryptionKey,
	})
}

func runLibraryList(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	drafts, _ := cmd.Flags().GetBool("drafts")
	domain, _ := cmd.Flags().GetString("domain")
	workflows, err := st.List(cmd.Context(), localUser, store.Filter{
		Domain:        domain,
		IncludeDrafts: drafts,
	})
	if err != nil {
		return err
	}

	if len(workflows) == 0 {
		fmt.Println("No workflows in the library.")
		return nil
	}
	for _, w := range workflows {
		status := "published"
		if w.Metadata.IsDraft {
			status = "draft"
		}
		line := fmt.Sprintf("%s  %-30s %-9s %d nodes, %d edges",
			w.ID, w.Metadata.Name, status, len(w.Nodes), len(w.Edges))
		if w.Metadata.Domain != "" {
			line += "  [" + w.Metadata.Domain + "]"
		}
		fmt.Println(line)
	}
	return nil
}

func runLibraryExport(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	drafts, _ := cmd.Flags().GetBool("drafts")
	workflows, err := st.List(cmd.Context(), localUser, store.Filter{IncludeDrafts: drafts})
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = "heddle-library." + format
	}

	switch format {
	case "json":
		err = exportJSON(workflows, out)
	case "xlsx":
		err = exportXLSX(workflows, out)
	default:
		return fmt.Errorf("unsupported export format: %s (supported: json, xlsx)", format)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d workflows to %s\n", len(workflows), out)
	return nil
}

func exportJSON(workflows []*workflow.Workflow, path string) error {
	raw, err := json.MarshalIndent(workflows, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

// exportXLSX writes one summary row per workflow.
func exportXLSX(workflows []*workflow.Workflow, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Workflows"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	headers := []string{"ID", "Name", "Description", "Domain", "Tags",
		"Output Type", "Status", "Nodes", "Edges", "Variables", "Updated"}
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	for row, w := range workflows {
		status := "published"
		if w.Metadata.IsDraft {
			status = "draft"
		}
		values := []any{
			w.ID,
			w.Metadata.Name,
			w.Metadata.Description,
			w.Metadata.Domain,
			strings.Join(w.Metadata.Tags, ", "),
			w.Metadata.OutputType,
			status,
			len(w.Nodes),
			len(w.Edges),
			len(w.Variables),
			w.Metadata.UpdatedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	return f.SaveAs(path)
}
