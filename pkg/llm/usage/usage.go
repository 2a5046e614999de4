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

// Package usage persists per-call LLM token consumption. Each process
// session appends to one JSON array log plus a rolled-up summary file.
// Writes go through a process-wide lock and land via write-then-rename so
// a crash never leaves a torn file.
package usage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is one LLM call's token consumption.
type Record struct {
	Timestamp        time.Time `json:"timestamp"`
	Caller           string    `json:"caller"`
	Model            string    `json:"model"`
	InputTokens      int       `json:"input_tokens"`
	OutputTokens     int       `json:"output_tokens"`
	CacheReadTokens  int       `json:"cache_read_tokens,omitempty"`
	CacheWriteTokens int       `json:"cache_write_tokens,omitempty"`
	ElapsedMs        int64     `json:"elapsed_ms"`
}

// Summary aggregates a session's records.
type Summary struct {
	Calls            int            `json:"calls"`
	InputTokens      int            `json:"input_tokens"`
	OutputTokens     int            `json:"output_tokens"`
	CacheReadTokens  int            `json:"cache_read_tokens"`
	CacheWriteTokens int            `json:"cache_write_tokens"`
	ElapsedMs        int64          `json:"elapsed_ms"`
	ByCaller         map[string]int `json:"by_caller,omitempty"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Sink receives per-call usage records.
type Sink interface {
	Record(rec Record)
}

// Discard is a Sink that drops all records.
var Discard Sink = discard{}

type discard struct{}

func (discard) Record(Record) {}

// fileMu serializes all usage file writes in the process. Multiple sinks
// pointed at the same paths must not interleave rename pairs.
var fileMu sync.Mutex

// FileSink accumulates the session's records and mirrors them to disk on
// every Record call.
type FileSink struct {
	logPath     string
	summaryPath string

	mu      sync.Mutex
	records []Record
}

// NewFileSink creates a sink writing the session log and summary to the
// given paths. Either path may be empty to skip that file.
func NewFileSink(logPath, summaryPath string) *FileSink {
	return &FileSink{logPath: logPath, summaryPath: summaryPath}
}

// Record appends one usage record and rewrites both files.
func (s *FileSink) Record(rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	s.records = append(s.records, rec)
	records := make([]Record, len(s.records))
	copy(records, s.records)
	s.mu.Unlock()

	s.flush(records)
}

// Records returns a copy of the session's records.
func (s *FileSink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Summarize rolls the given records up into a Summary.
func Summarize(records []Record) Summary {
	sum := Summary{ByCaller: make(map[string]int), UpdatedAt: time.Now().UTC()}
	for _, rec := range records {
		sum.Calls++
		sum.InputTokens += rec.InputTokens
		sum.OutputTokens += rec.OutputTokens
		sum.CacheReadTokens += rec.CacheReadTokens
		sum.CacheWriteTokens += rec.CacheWriteTokens
		sum.ElapsedMs += rec.ElapsedMs
		if rec.Caller != "" {
			sum.ByCaller[rec.Caller] += rec.InputTokens + rec.OutputTokens
		}
	}
	return sum
}

func (s *FileSink) flush(records []Record) {
	fileMu.Lock()
	defer fileMu.Unlock()

	if s.logPath != "" {
		raw, err := json.MarshalIndent(records, "", "  ")
		if err == nil {
			_ = writeAtomic(s.logPath, raw)
		}
	}
	if s.summaryPath != "" {
		raw, err := json.MarshalIndent(Summarize(records), "", "  ")
		if err == nil {
			_ = writeAtomic(s.summaryPath, raw)
		}
	}
}

// writeAtomic writes data to a sibling temp file and renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
