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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewSessionID()
		assert.True(t, strings.HasPrefix(id, "sess_"))
		assert.Len(t, id, len("sess_")+8)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestSessionStore_PutGet(t *testing.T) {
	store := NewSessionStore(time.Minute)

	sess := &Session{ID: NewSessionID()}
	store.Put(sess)

	assert.False(t, sess.CreatedAt.IsZero())
	assert.False(t, sess.ExpiresAt.IsZero())

	got, ok := store.Get(sess.ID)
	require.True(t, ok)
	assert.Same(t, sess, got)

	_, ok = store.Get("sess_missing1")
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())
}

func TestSessionStore_ExpiresOnGet(t *testing.T) {
	store := NewSessionStore(15 * time.Millisecond)

	sess := &Session{ID: NewSessionID()}
	store.Put(sess)
	time.Sleep(30 * time.Millisecond)

	_, ok := store.Get(sess.ID)
	assert.False(t, ok)
	assert.Zero(t, store.Len(), "expired session is dropped on access")
}

func TestSessionStore_GetSlidesExpiry(t *testing.T) {
	store := NewSessionStore(60 * time.Millisecond)

	sess := &Session{ID: NewSessionID()}
	store.Put(sess)

	// Keep touching the session past its original window.
	for i := 0; i < 3; i++ {
		time.Sleep(35 * time.Millisecond)
		_, ok := store.Get(sess.ID)
		require.True(t, ok, "touch %d should keep the session alive", i)
	}
}

func TestSessionStore_SweepExpired(t *testing.T) {
	store := NewSessionStore(time.Hour)
	for i := 0; i < 3; i++ {
		store.Put(&Session{ID: NewSessionID()})
	}

	assert.Zero(t, store.SweepExpired(time.Now()))
	assert.Equal(t, 3, store.Len())

	removed := store.SweepExpired(time.Now().Add(2 * time.Hour))
	assert.Equal(t, 3, removed)
	assert.Zero(t, store.Len())
}

func TestSessionStore_DefaultTTL(t *testing.T) {
	store := NewSessionStore(0)
	assert.Equal(t, DefaultSessionTTL, store.ttl)
}
