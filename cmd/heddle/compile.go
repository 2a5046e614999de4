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

	"github.com/MakeNowJust/heredoc"
	"github.com/alecthomas/chroma/v2/quick"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/teradata-labs/heddle/pkg/workflow"
	"github.com/teradata-labs/heddle/pkg/workflow/store"
)

var compileCmd = &cobra.Command{
	Use:   "compile <workflow-id>",
	Short: "Compile a workflow to Python",
	Long: heredoc.Doc(`
		Compile a library workflow into a standalone, typed Python module.
		The workflow must pass strict validation; violations are listed
		instead of code. Output is syntax-highlighted when stdout is a
		terminal, or plain text when piped.
	`),
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd, false)
	},
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().Bool("main", false, "append a __main__ demo block")
	compileCmd.Flags().Bool("docstring", true, "include the module docstring")
	compileCmd.Flags().String("out", "", "write to a file instead of stdout")
	rootCmd.AddCommand(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	w, err := st.Get(ctx, args[0], localUser)
	if err != nil {
		return fmt.Errorf("load workflow %s: %w", args[0], err)
	}

	includeMain, _ := cmd.Flags().GetBool("main")
	includeDocstring, _ := cmd.Flags().GetBool("docstring")
	code, verrs, err := workflow.CompilePython(w, storeResolver(ctx, st), workflow.CompileOptions{
		IncludeMain:      includeMain,
		IncludeDocstring: includeDocstring,
	})
	if err != nil {
		return err
	}
	if len(verrs) > 0 {
		fmt.Fprintf(os.Stderr, "Workflow %s fails strict validation:\n", w.ID)
		for _, ve := range verrs {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", ve.Code, ve.Message)
		}
		return fmt.Errorf("workflow is not compilable")
	}

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		if err := os.WriteFile(out, []byte(code), 0o600); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", out)
		return nil
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		if err := quick.Highlight(os.Stdout, code, "python", "terminal256", "monokai"); err == nil {
			fmt.Println()
			return nil
		}
	}
	fmt.Println(code)
	return nil
}

// storeResolver loads subworkflows for subprocess nodes from the library.
func storeResolver(ctx context.Context, st store.Store) workflow.Resolver {
	return func(id string) (*workflow.Workflow, error) {
		return st.Get(ctx, id, localUser)
	}
}
