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

package transport

import (
	"fmt"
	"sync"
)

// SessionManager tracks the Mcp-Session-Id assigned by a streamable HTTP
// server. Session ids must consist of visible ASCII (0x21 through 0x7E)
// so they survive header transport unmangled.
type SessionManager struct {
	mu        sync.RWMutex
	sessionID string
}

// NewSessionManager returns an empty manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{}
}

// SetSessionID stores the id from the server's Mcp-Session-Id header,
// rejecting ids with characters outside the visible ASCII range.
func (s *SessionManager) SetSessionID(id string) error {
	for _, c := range id {
		if c < 0x21 || c > 0x7E {
			return fmt.Errorf("session id contains invisible or non-ASCII characters")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = id
	return nil
}

// SessionID returns the current session id, or "" when none is set.
func (s *SessionManager) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// HasSession reports whether a session id is set.
func (s *SessionManager) HasSession() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID != ""
}

// ClearSession drops the session id, after expiry or termination.
func (s *SessionManager) ClearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = ""
}
