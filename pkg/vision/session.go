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

package vision

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teradata-labs/heddle/pkg/tools"
	"github.com/teradata-labs/heddle/pkg/types"
)

// DefaultSessionTTL bounds how long an idle analysis session accepts
// feedback before the janitor reclaims it.
const DefaultSessionTTL = 2 * time.Hour

// NewSessionID allocates a session identifier of the form sess_<8 hex>.
func NewSessionID() string {
	return "sess_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Session holds one analysis run and its conversation so feedback rounds
// continue where the last call stopped.
type Session struct {
	ID        string
	Messages  []types.Message
	Analysis  *Analysis
	Files     []tools.UploadedFile
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionStore keeps analysis sessions in memory with a sliding TTL.
type SessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*Session
}

// NewSessionStore returns a store whose sessions idle out after ttl.
// Non-positive ttl means DefaultSessionTTL.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// Put stores a session and stamps its expiry.
func (s *SessionStore) Put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.ExpiresAt = now.Add(s.ttl)
	s.sessions[sess.ID] = sess
}

// Get returns a live session and slides its expiry window. Expired sessions
// are dropped on access, before the janitor ever sees them.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := time.Now()
	if !sess.ExpiresAt.After(now) {
		delete(s.sessions, id)
		return nil, false
	}
	sess.ExpiresAt = now.Add(s.ttl)
	return sess, true
}

// Len reports the number of stored sessions, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// SweepExpired removes sessions whose expiry has passed and reports how
// many were dropped. The janitor calls this on every sweep.
func (s *SessionStore) SweepExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if !sess.ExpiresAt.After(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
