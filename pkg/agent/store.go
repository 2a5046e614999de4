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
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teradata-labs/heddle/internal/csync"
)

// NewConversationID allocates a conversation identifier, conv_<32 hex>.
func NewConversationID() string {
	return "conv_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Conversation binds an orchestrator to its stable identifier. The
// orchestrator owns the history and session state; the conversation is the
// handle callers pass around.
type Conversation struct {
	ID           string
	Orchestrator *Orchestrator
	CreatedAt    time.Time
}

// OrchestratorFactory builds the orchestrator for a newly minted
// conversation id. The store calls it under its create lock.
type OrchestratorFactory func(conversationID string) (*Orchestrator, error)

// ConversationStore keeps one orchestrator per conversation id. Ids the
// store did not mint are never adopted: presenting an unknown or empty id
// starts a fresh conversation under a fresh id, so callers cannot claim
// arbitrary identifiers and collide with each other.
type ConversationStore struct {
	conversations *csync.Map[string, *Conversation]
	build         OrchestratorFactory

	// createMu serializes minting. csync.Map.GetOrSet cannot serve here
	// because creation writes under a key the caller did not present.
	createMu sync.Mutex
}

// NewConversationStore returns an empty store backed by the given factory.
func NewConversationStore(build OrchestratorFactory) *ConversationStore {
	return &ConversationStore{
		conversations: csync.NewMap[string, *Conversation](),
		build:         build,
	}
}

// GetOrCreate returns the conversation registered under id, or starts a new
// one when id is empty or unknown. A known id always yields the same
// conversation and orchestrator.
func (s *ConversationStore) GetOrCreate(id string) (*Conversation, error) {
	if conv, ok := s.conversations.Get(id); ok {
		return conv, nil
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	if conv, ok := s.conversations.Get(id); ok {
		return conv, nil
	}

	fresh := NewConversationID()
	orch, err := s.build(fresh)
	if err != nil {
		return nil, err
	}

	conv := &Conversation{
		ID:           fresh,
		Orchestrator: orch,
		CreatedAt:    time.Now(),
	}
	s.conversations.Set(fresh, conv)
	return conv, nil
}

// Get returns the conversation registered under id, or nil.
func (s *ConversationStore) Get(id string) *Conversation {
	conv, ok := s.conversations.Get(id)
	if !ok {
		return nil
	}
	return conv
}

// Len returns the number of live conversations.
func (s *ConversationStore) Len() int {
	return s.conversations.Len()
}
