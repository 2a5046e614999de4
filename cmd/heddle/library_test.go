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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/teradata-labs/heddle/pkg/workflow"
)

func sampleWorkflows(t *testing.T) []*workflow.Workflow {
	t.Helper()

	w := workflow.New("local", "BMI Checker", "string")
	w.Metadata.Description = "Classifies BMI readings"
	w.Metadata.Domain = "health"
	w.Metadata.Tags = []string{"bmi", "triage"}
	w.Metadata.IsDraft = false

	draft := workflow.New("local", "Loan Screen", "bool")
	return []*workflow.Workflow{w, draft}
}

func TestExportJSONRoundTrip(t *testing.T) {
	workflows := sampleWorkflows(t)
	path := filepath.Join(t.TempDir(), "library.json")

	require.NoError(t, exportJSON(workflows, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded []*workflow.Workflow
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, workflows[0].ID, decoded[0].ID)
	assert.Equal(t, "BMI Checker", decoded[0].Metadata.Name)
	assert.True(t, decoded[1].Metadata.IsDraft)
}

func TestExportXLSX(t *testing.T) {
	workflows := sampleWorkflows(t)
	path := filepath.Join(t.TempDir(), "library.xlsx")

	require.NoError(t, exportXLSX(workflows, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	name, err := f.GetCellValue("Workflows", "B2")
	require.NoError(t, err)
	assert.Equal(t, "BMI Checker", name)

	status, err := f.GetCellValue("Workflows", "G2")
	require.NoError(t, err)
	assert.Equal(t, "published", status)

	draftStatus, err := f.GetCellValue("Workflows", "G3")
	require.NoError(t, err)
	assert.Equal(t, "draft", draftStatus)
}

func TestExportXLSXEmptyLibrary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, exportXLSX(nil, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("Workflows", "A1")
	require.NoError(t, err)
	assert.Equal(t, "ID", header)
}
