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
package agent

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/teradata-labs/heddle/pkg/types"
)

const (
	// defaultHistoryBudget bounds the token estimate of the windowed history
	// sent to the provider on each iteration.
	defaultHistoryBudget = 100_000

	// historyFloor is the minimum number of trailing messages the window
	// keeps regardless of the token budget.
	historyFloor = 20
)

// tokenCounter estimates token counts for context management. It uses
// tiktoken with cl100k_base encoding, a close approximation for Claude
// models, and falls back to char-based estimation when the encoding
// tables are unavailable.
type tokenCounter struct {
	encoder *tiktoken.Tiktoken
	mu      sync.Mutex
}

var (
	sharedCounter   *tokenCounter
	counterInitOnce sync.Once
)

// getTokenCounter returns the process-wide counter. The encoder loads its
// tables once; every conversation shares the instance.
func getTokenCounter() *tokenCounter {
	counterInitOnce.Do(func() {
		tkm, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			sharedCounter = &tokenCounter{encoder: nil}
			return
		}
		sharedCounter = &tokenCounter{encoder: tkm}
	})
	return sharedCounter
}

// countTokens returns the token count for a given text.
func (tc *tokenCounter) countTokens(text string) int {
	if tc.encoder == nil {
		// Fallback to char-based estimation if encoder not available
		return len(text) / 4
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()

	return len(tc.encoder.Encode(text, nil, nil))
}

// estimateMessage returns the token cost of one message, including
// ~10 tokens of role and formatting overhead, tool call arguments, and
// inline tool results.
func (tc *tokenCounter) estimateMessage(msg types.Message) int {
	total := 10
	total += tc.countTokens(msg.Content)
	if len(msg.ToolCalls) > 0 {
		total += tc.countTokens(fmt.Sprintf("%v", msg.ToolCalls))
	}
	if msg.ToolResult != nil {
		total += tc.countTokens(fmt.Sprintf("%v", *msg.ToolResult))
	}
	return total
}

// historyWindow selects the slice of conversation history that accompanies
// each provider call. It always keeps the most recent historyFloor messages
// and extends backwards while the token estimate stays within budget.
type historyWindow struct {
	budget  int
	counter *tokenCounter
}

func newHistoryWindow(budget int) *historyWindow {
	if budget <= 0 {
		budget = defaultHistoryBudget
	}
	return &historyWindow{budget: budget, counter: getTokenCounter()}
}

// apply returns the windowed suffix of history. Tool result messages are
// never separated from the assistant message that requested them: once the
// floor and budget pick a start index, the window extends past any leading
// tool messages even when that overshoots the budget, because a tool result
// without its tool_use is rejected by the provider.
func (w *historyWindow) apply(history []types.Message) []types.Message {
	if len(history) <= historyFloor {
		return history
	}

	start := len(history) - historyFloor
	used := 0
	for _, msg := range history[start:] {
		used += w.counter.estimateMessage(msg)
	}

	for start > 0 {
		cost := w.counter.estimateMessage(history[start-1])
		if used+cost > w.budget {
			break
		}
		start--
		used += cost
	}

	for start > 0 && history[start].Role == "tool" {
		start--
	}

	return history[start:]
}
